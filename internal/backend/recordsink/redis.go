package recordsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/jo-hoe/goclerk/internal/backend/extraction"
)

const DefaultRedisKeyPrefix = "goclerk:record:"

// RedisSink stores records as string values keyed by prefix + absolute image path
type RedisSink struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisSink(address, password string, db int, keyPrefix string) (*RedisSink, error) {
	if address == "" {
		return nil, fmt.Errorf("redis address must not be empty")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return &RedisSink{client: client, keyPrefix: keyPrefix}, nil
}

// Key returns the redis key used for an image
func (s *RedisSink) Key(imagePath string) (string, error) {
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", imagePath, err)
	}
	return s.keyPrefix + abs, nil
}

func (s *RedisSink) Write(ctx context.Context, imagePath string, record *extraction.ExtractionRecord) error {
	data, err := record.MarshalIndent()
	if err != nil {
		return err
	}
	key, err := s.Key(imagePath)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store record under %s: %w", key, err)
	}
	slog.Info("RedisSink: saved record", "image", imagePath, "key", key)
	return nil
}

func (s *RedisSink) Read(ctx context.Context, imagePath string) (*extraction.ExtractionRecord, error) {
	key, err := s.Key(imagePath)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record under %s: %w", key, err)
	}
	return decodeRecord(data, key)
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

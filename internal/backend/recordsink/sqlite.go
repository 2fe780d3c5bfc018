package recordsink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jo-hoe/goclerk/internal/backend/extraction"
)

// SQLiteSink keeps records in a SQLite table keyed by absolute image path
type SQLiteSink struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteSink(connectionString string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// an in-memory database only lives as long as its single connection
	db.SetMaxOpenConns(1)

	sink := &SQLiteSink{
		db:               db,
		connectionString: connectionString,
	}
	if err := sink.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return sink, nil
}

func (s *SQLiteSink) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS records (
		image_path TEXT PRIMARY KEY,
		identifier TEXT NOT NULL,
		record TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	return err
}

func (s *SQLiteSink) Write(ctx context.Context, imagePath string, record *extraction.ExtractionRecord) error {
	data, err := record.MarshalIndent()
	if err != nil {
		return err
	}
	key, err := filepath.Abs(imagePath)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", imagePath, err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO records (image_path, identifier, record, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(image_path) DO UPDATE SET identifier = excluded.identifier, record = excluded.record, updated_at = excluded.updated_at`,
		key, record.Identifier, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store record for %s: %w", key, err)
	}
	slog.Info("SQLiteSink: saved record", "image", key, "identifier", record.Identifier)
	return nil
}

func (s *SQLiteSink) Read(ctx context.Context, imagePath string) (*extraction.ExtractionRecord, error) {
	key, err := filepath.Abs(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", imagePath, err)
	}
	row := s.db.QueryRowContext(ctx, "SELECT record FROM records WHERE image_path = ?", key)
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return decodeRecord([]byte(data), key)
}

// Count returns the number of stored records
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

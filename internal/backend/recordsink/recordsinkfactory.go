package recordsink

import (
	"fmt"
	"log/slog"
)

const (
	TypeXattr   = "xattr"
	TypeSidecar = "sidecar"
	TypeSQLite  = "sqlite"
	TypeRedis   = "redis"
)

// Config selects and parameterizes a record sink
type Config struct {
	Type             string `yaml:"type" validate:"omitempty,oneof=xattr sidecar sqlite redis"`
	Attribute        string `yaml:"attribute"`
	SidecarExtension string `yaml:"sidecarExtension"`
	ConnectionString string `yaml:"connectionString"`
	RedisAddress     string `yaml:"redisAddress"`
	RedisPassword    string `yaml:"redisPassword"`
	RedisDB          int    `yaml:"redisDB" validate:"gte=0"`
	KeyPrefix        string `yaml:"keyPrefix"`
}

// NewRecordSink creates the sink named by config.Type
func NewRecordSink(config Config) (sink RecordSink, err error) {
	switch config.Type {
	case TypeXattr:
		sink, err = NewXattrSink(config.Attribute)
	case TypeSidecar:
		sink = NewSidecarSink(config.SidecarExtension)
	case TypeSQLite:
		if config.ConnectionString == "" {
			return nil, fmt.Errorf("sqlite sink requires a connectionString")
		}
		sink, err = NewSQLiteSink(config.ConnectionString)
	case TypeRedis:
		sink, err = NewRedisSink(config.RedisAddress, config.RedisPassword, config.RedisDB, config.KeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported record sink: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s sink: %w", config.Type, err)
	}

	slog.Info("record sink initialized", "type", config.Type)
	return sink, nil
}

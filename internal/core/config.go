package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/goclerk/internal/backend/annotation"
	"github.com/jo-hoe/goclerk/internal/backend/gateway"
	"github.com/jo-hoe/goclerk/internal/backend/recordsink"
	"github.com/jo-hoe/goclerk/internal/common"
)

const DefaultMaxSize = 1280

// RotationConfig controls the lookup of stored rotation corrections
type RotationConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Attribute string `yaml:"attribute"`
}

// ServerConfig is only used by the HTTP front end
type ServerConfig struct {
	Port      int    `yaml:"port" validate:"gte=0,lte=65535"`
	UploadDir string `yaml:"uploadDir"`
}

type ServiceConfig struct {
	MaxSize  int    `yaml:"maxSize" validate:"gt=0"`
	Prompt   string `yaml:"prompt" validate:"required"`
	Debug    bool   `yaml:"debug"`
	TempDir  string `yaml:"tempDir"`
	LogLevel string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`

	Rotation RotationConfig    `yaml:"rotation"`
	Gateway  gateway.Config    `yaml:"gateway"`
	Sink     recordsink.Config `yaml:"sink"`
	Server   ServerConfig      `yaml:"server"`
}

// DefaultConfig returns the settings used when no config file is present.
// Records go to an extended attribute where the platform supports it, else to a sidecar file.
func DefaultConfig() *ServiceConfig {
	sinkType := recordsink.TypeSidecar
	if annotation.Supported() {
		sinkType = recordsink.TypeXattr
	}
	return &ServiceConfig{
		MaxSize:  DefaultMaxSize,
		Prompt:   gateway.DefaultPrompt,
		LogLevel: "info",
		Rotation: RotationConfig{
			Enabled:   annotation.Supported(),
			Attribute: annotation.DefaultRotationAttribute,
		},
		Gateway: gateway.Config{
			Space:    gateway.DefaultSpace,
			APIName:  gateway.DefaultAPIName,
			Model:    gateway.DefaultModel,
			TokenEnv: gateway.DefaultTokenEnv,
		},
		Sink: recordsink.Config{
			Type:             sinkType,
			Attribute:        recordsink.DefaultRecordAttribute,
			SidecarExtension: recordsink.DefaultSidecarExtension,
			KeyPrefix:        recordsink.DefaultRedisKeyPrefix,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// LoadConfig loads configuration from the specified YAML file on top of DefaultConfig
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	config := DefaultConfig()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return config, nil
}

// Validate checks field constraints; call it again after applying overrides
func (c *ServiceConfig) Validate() error {
	return common.ValidateStruct(c)
}

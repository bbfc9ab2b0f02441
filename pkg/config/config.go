// Package config provides configuration management for graphpack.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/graphpack/pkg/compression"
	apperrors "github.com/graphpack/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. GRAPHPACK_CODEC_COMPRESSION.
const EnvPrefix = "GRAPHPACK"

// Config holds all configuration for the application.
type Config struct {
	Codec    CodecConfig    `mapstructure:"codec"`
	Unpack   UnpackConfig   `mapstructure:"unpack"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

// CodecConfig controls how artifacts are encoded.
type CodecConfig struct {
	Compression string `mapstructure:"compression"` // zstd, gzip or none
	Level       string `mapstructure:"level"`       // fastest, default or best
	// MaxDecodedSize caps the decompressed body of an artifact in bytes.
	MaxDecodedSize int64 `mapstructure:"max_decoded_size"`
}

// UnpackConfig controls the resolution engine.
type UnpackConfig struct {
	// MaxSweeps caps completion sweeps; 0 means bounded only by the number
	// of pending entities.
	MaxSweeps int `mapstructure:"max_sweeps"`
}

// BatchConfig controls concurrent batch saves.
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// DatabaseConfig holds artifact catalog connection configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
	Path     string `mapstructure:"path"` // sqlite file, ":memory:" allowed
	// RawSQL serves the catalog through hand-written statements instead of
	// GORM queries. The schema is still migrated through GORM.
	RawSQL bool `mapstructure:"raw_sql"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Load reads configuration from the specified file path. A missing file is
// not an error; defaults and environment overrides still apply.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("graphpack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/graphpack")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config file", err)
		}
	}

	return unmarshal(v)
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config", err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("codec.compression", "zstd")
	v.SetDefault("codec.level", "default")
	v.SetDefault("codec.max_decoded_size", compression.DefaultMaxDecodedSize)

	v.SetDefault("unpack.max_sweeps", 0)

	v.SetDefault("batch.workers", 4)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./data/graphpack.db")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./data/artifacts")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate validates the configuration. Storage settings are checked by the
// storage package.
func (c *Config) Validate() error {
	if _, _, err := c.Codec.Parse(); err != nil {
		return err
	}
	if c.Codec.MaxDecodedSize <= 0 {
		return apperrors.New(apperrors.CodeConfigError, "codec.max_decoded_size must be positive")
	}
	if c.Unpack.MaxSweeps < 0 {
		return apperrors.New(apperrors.CodeConfigError, "unpack.max_sweeps must not be negative")
	}
	if c.Batch.Workers < 1 {
		return apperrors.New(apperrors.CodeConfigError, "batch.workers must be at least 1")
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return apperrors.New(apperrors.CodeConfigError, "database path is required for sqlite")
		}
	case "postgres", "mysql":
		if c.Database.Host == "" {
			return apperrors.New(apperrors.CodeConfigError, "database host is required")
		}
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported database type: %s", c.Database.Type)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDataDir creates the directories the local backends write into.
func (c *Config) EnsureDataDir() error {
	if c.Storage.Type == "local" && c.Storage.LocalPath != "" {
		if err := os.MkdirAll(c.Storage.LocalPath, 0755); err != nil {
			return apperrors.Wrap(apperrors.CodeConfigError, "failed to create storage dir", err)
		}
	}
	if c.Database.Type == "sqlite" && c.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.Database.Path), 0755); err != nil {
			return apperrors.Wrap(apperrors.CodeConfigError, "failed to create database dir", err)
		}
	}
	return nil
}

// Parse returns the compression type and level named by the section.
func (c CodecConfig) Parse() (compression.Type, compression.Level, error) {
	t, err := compression.ParseType(c.Compression)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.CodeConfigError, "invalid codec.compression", err)
	}
	level, err := compression.ParseLevel(c.Level)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.CodeConfigError, "invalid codec.level", err)
	}
	return t, level, nil
}

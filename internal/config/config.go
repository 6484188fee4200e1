// Package config provides unified configuration loading for the invoice
// parser. Supports YAML files, environment variable overrides, and
// programmatic defaults; core packages never read the environment
// themselves.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
)

// Config holds all configuration for the invoice parser service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Processing    ProcessingConfig    `yaml:"processing"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// ProcessingConfig holds the pipeline knobs. Snapshot() converts it to the
// immutable per-request domain.ProcessingConfig.
type ProcessingConfig struct {
	EnableOCRValidation    bool    `yaml:"enable_ocr_validation"`
	OCRConfidenceThreshold float64 `yaml:"ocr_confidence_threshold"`
	TableExtractionFlavor  string  `yaml:"table_extraction_flavor"`
	MaxPagesToProcess      int     `yaml:"max_pages_to_process"`
	ValidateChecksums      bool    `yaml:"validate_checksums"`
	MaxConcurrentPages     int     `yaml:"max_concurrent_pages"`
	CoordinateStartMarker  string  `yaml:"coordinate_start_marker"`
	CoordinateEndMarker    string  `yaml:"coordinate_end_marker"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file (optional) and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   32 << 20,
		},
		Processing: ProcessingConfig{
			EnableOCRValidation:    true,
			OCRConfidenceThreshold: 0.8,
			TableExtractionFlavor:  string(domain.FlavorStructuredThenFlexible),
			MaxPagesToProcess:      0,
			ValidateChecksums:      true,
			MaxConcurrentPages:     4,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        10 * time.Minute,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "invoice-parser",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Processing.OCRConfidenceThreshold < 0 || c.Processing.OCRConfidenceThreshold > 1 {
		return fmt.Errorf("ocr_confidence_threshold must be in [0,1], got %g",
			c.Processing.OCRConfidenceThreshold)
	}
	switch domain.ExtractionFlavor(c.Processing.TableExtractionFlavor) {
	case domain.FlavorStructured, domain.FlavorFlexible, domain.FlavorCoordinate,
		domain.FlavorStructuredThenFlexible:
	default:
		return fmt.Errorf("invalid table_extraction_flavor: %s", c.Processing.TableExtractionFlavor)
	}
	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}
	if c.Processing.MaxConcurrentPages < 1 {
		return fmt.Errorf("max_concurrent_pages must be at least 1")
	}
	return nil
}

// Snapshot builds the immutable per-request processing configuration.
func (c *Config) Snapshot() domain.ProcessingConfig {
	return domain.ProcessingConfig{
		EnableOCRValidation:    c.Processing.EnableOCRValidation,
		OCRConfidenceThreshold: c.Processing.OCRConfidenceThreshold,
		TableExtractionFlavor:  domain.ExtractionFlavor(c.Processing.TableExtractionFlavor),
		MaxPagesToProcess:      c.Processing.MaxPagesToProcess,
		ValidateChecksums:      c.Processing.ValidateChecksums,
		MaxConcurrentPages:     c.Processing.MaxConcurrentPages,
		CoordinateStartMarker:  c.Processing.CoordinateStartMarker,
		CoordinateEndMarker:    c.Processing.CoordinateEndMarker,
	}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ENABLE_OCR_VALIDATION"); v != "" {
		cfg.Processing.EnableOCRValidation = parseBool(v, cfg.Processing.EnableOCRValidation)
	}
	if v := os.Getenv("OCR_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Processing.OCRConfidenceThreshold = f
		}
	}
	if v := os.Getenv("TABLE_EXTRACTION_FLAVOR"); v != "" {
		cfg.Processing.TableExtractionFlavor = v
	}
	if v := os.Getenv("MAX_PAGES_TO_PROCESS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Processing.MaxPagesToProcess = n
		}
	}
	if v := os.Getenv("VALIDATE_CHECKSUMS"); v != "" {
		cfg.Processing.ValidateChecksums = parseBool(v, cfg.Processing.ValidateChecksums)
	}
	if v := os.Getenv("COORDINATE_START_MARKER"); v != "" {
		cfg.Processing.CoordinateStartMarker = v
	}
	if v := os.Getenv("COORDINATE_END_MARKER"); v != "" {
		cfg.Processing.CoordinateEndMarker = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}

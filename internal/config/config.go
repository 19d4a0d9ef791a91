// Package config loads kimconv settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the complete kimconv configuration.
type Config struct {
	Converter ConverterConfig `yaml:"converter"`
	Query     QueryConfig     `yaml:"query"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ConverterConfig controls record conversion.
type ConverterConfig struct {
	ProgramName     string  `yaml:"program_name" validate:"required"`
	ExtensionPrefix string  `yaml:"extension_prefix" validate:"required,startswith=x_"`
	MetaAttribute   string  `yaml:"meta_attribute" validate:"required"`
	LengthUnit      string  `yaml:"length_unit" validate:"required"`
	Tolerance       float64 `yaml:"tolerance" validate:"gt=0,lt=0.5"`
	Workers         int     `yaml:"workers" validate:"min=1,max=256"`
}

// QueryConfig controls the remote OpenKIM query client.
type QueryConfig struct {
	URL      string        `yaml:"url" validate:"required,url"`
	Timeout  string        `yaml:"timeout" validate:"required"`
	Database string        `yaml:"database" validate:"required"`
	Limit    int           `yaml:"limit" validate:"min=0"`
	Breaker  BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the query circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32  `yaml:"max_requests" validate:"min=1"`
	Interval         string  `yaml:"interval"`
	Timeout          string  `yaml:"timeout"`
	FailureThreshold float64 `yaml:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32  `yaml:"min_requests" validate:"min=1"`
}

// CatalogConfig locates the entry catalog. An empty path disables it.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Converter: ConverterConfig{
			ProgramName:     "OpenKIM",
			ExtensionPrefix: "x_openkim_",
			MetaAttribute:   "x_openkim_meta",
			LengthUnit:      "m",
			Tolerance:       1e-5,
			Workers:         1,
		},
		Query: QueryConfig{
			URL:      "https://query.openkim.org/api",
			Timeout:  "60s",
			Database: "data",
			Limit:    0,
			Breaker: BreakerConfig{
				MaxRequests:      1,
				Interval:         "60s",
				Timeout:          "30s",
				FailureThreshold: 0.6,
				MinRequests:      3,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
// Environment overrides are applied in both cases and the result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies KIMCONV_* environment variables.
// Unparsable numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KIMCONV_QUERY_URL"); v != "" {
		c.Query.URL = v
	}
	if v := os.Getenv("KIMCONV_QUERY_TIMEOUT"); v != "" {
		c.Query.Timeout = v
	}
	if v := os.Getenv("KIMCONV_CATALOG"); v != "" {
		c.Catalog.Path = v
	}
	if v := os.Getenv("KIMCONV_LENGTH_UNIT"); v != "" {
		c.Converter.LengthUnit = v
	}
	if v := os.Getenv("KIMCONV_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Converter.Workers = n
		}
	}
	if v := os.Getenv("KIMCONV_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("KIMCONV_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
}

var validate = newValidator()

// newValidator reports fields by their YAML names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags and duration fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	for name, d := range map[string]string{
		"query.timeout":          c.Query.Timeout,
		"query.breaker.interval": c.Query.Breaker.Interval,
		"query.breaker.timeout":  c.Query.Breaker.Timeout,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Namespace())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		case "startswith":
			msgs = append(msgs, fmt.Sprintf("%s must start with %q", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, e.Tag(), e.Param()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// QueryTimeout returns the query timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return parseDuration(c.Query.Timeout, 60*time.Second)
}

// BreakerInterval returns the breaker's counting interval.
func (c *Config) BreakerInterval() time.Duration {
	return parseDuration(c.Query.Breaker.Interval, 60*time.Second)
}

// BreakerTimeout returns how long the breaker stays open.
func (c *Config) BreakerTimeout() time.Duration {
	return parseDuration(c.Query.Breaker.Timeout, 30*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

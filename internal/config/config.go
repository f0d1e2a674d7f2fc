// Package config loads linepack settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"crosswarped.com/linepack/pkg/primitives"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Config struct {
	Width     int           `yaml:"width" validate:"gt=0"`
	Measure   string        `yaml:"measure" validate:"oneof=runes graphemes cells"`
	Normalize bool          `yaml:"normalize"`
	Memoize   bool          `yaml:"memoize"`
	Parallel  bool          `yaml:"parallel"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`

	Log      LogConfig      `yaml:"log"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// BigQueryConfig selects a table column to read words from. Words are read
// from BigQuery only when Table is set.
type BigQueryConfig struct {
	Project  string `yaml:"project" validate:"required_with=Table"`
	Table    string `yaml:"table"`
	Column   string `yaml:"column" validate:"required_with=Table"`
	Location string `yaml:"location"`
	Limit    int    `yaml:"limit" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Width:   80,
		Measure: "runes",
		Memoize: true,
		Timeout: time.Minute,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		BigQuery: BigQueryConfig{
			Column:   "text",
			Location: "US",
		},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg, keeping the values of keys data does not
// set, and validates the result. Unknown keys are an error.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}
	return cfg.Validate()
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	c.Measure = strings.ToLower(c.Measure)
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// MeasureValue returns the configured measure.
func (c Config) MeasureValue() primitives.Measure {
	m, _ := primitives.ParseMeasure(c.Measure)
	return m
}

// NewLogger builds a logger writing to w in the configured format and level.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

// Config represents the mseedkit configuration
type Config struct {
	Engine    Engine    `yaml:"engine"`
	Resegment Resegment `yaml:"resegment"`
	Pool      Pool      `yaml:"pool"`
	Dedup     Dedup     `yaml:"dedup"`
	Archive   Archive   `yaml:"archive"`
	Logging   Logging   `yaml:"logging"`
}

// Engine contains record parsing configuration
type Engine struct {
	Strict              bool `yaml:"strict"`
	MinYear             int  `yaml:"min_year"`
	MaxYear             int  `yaml:"max_year"`
	DefaultRecordLength int  `yaml:"default_record_length"`
}

// Resegment contains record splitting configuration
type Resegment struct {
	TargetSize int    `yaml:"target_size"`
	Encoding   string `yaml:"encoding"`
}

// Pool contains record pool configuration
type Pool struct {
	MaxFree int `yaml:"max_free"`
}

// Dedup contains duplicate detection configuration
type Dedup struct {
	Window int `yaml:"window"`
}

// Archive contains record archive configuration
type Archive struct {
	Dir  string `yaml:"dir"`
	Sync bool   `yaml:"sync"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Engine: Engine{
			MinYear:             mseed.DefaultMinYear,
			MaxYear:             mseed.DefaultMaxYear,
			DefaultRecordLength: mseed.DefaultRecordLength,
		},
		Resegment: Resegment{
			TargetSize: mseed.DefaultRecordLength,
			Encoding:   "steim2",
		},
		Pool: Pool{
			MaxFree: 64,
		},
		Dedup: Dedup{
			Window: 64,
		},
		Archive: Archive{
			Dir: "./archive",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from the specified path. Fields missing
// from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the engine cannot use
func (c *Config) Validate() error {
	if c.Engine.MinYear > c.Engine.MaxYear {
		return fmt.Errorf("engine.min_year %d is after engine.max_year %d", c.Engine.MinYear, c.Engine.MaxYear)
	}
	if !validRecordLength(c.Engine.DefaultRecordLength) {
		return fmt.Errorf("engine.default_record_length %d is not a power of two in [128, 65536]", c.Engine.DefaultRecordLength)
	}
	if !validRecordLength(c.Resegment.TargetSize) || c.Resegment.TargetSize <= mseed.HeaderSize {
		return fmt.Errorf("resegment.target_size %d is not a power of two in [128, 65536]", c.Resegment.TargetSize)
	}
	if _, err := c.ResegmentEncoding(); err != nil {
		return err
	}
	if c.Pool.MaxFree < 0 {
		return fmt.Errorf("pool.max_free must not be negative")
	}
	if c.Dedup.Window < 0 {
		return fmt.Errorf("dedup.window must not be negative")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	return nil
}

func validRecordLength(n int) bool {
	return n >= 128 && n <= mseed.MaxRecordLength && n&(n-1) == 0
}

// ResegmentEncoding returns the Steim encoding used when recompressing
func (c *Config) ResegmentEncoding() (mseed.Encoding, error) {
	switch strings.ToLower(c.Resegment.Encoding) {
	case "", "steim2":
		return mseed.EncodingSteim2, nil
	case "steim1":
		return mseed.EncodingSteim1, nil
	}
	return mseed.EncodingUnknown, fmt.Errorf("resegment.encoding %q must be steim1 or steim2", c.Resegment.Encoding)
}

// RecordOptions maps the engine section to record options
func (c *Config) RecordOptions(logger *slog.Logger, observer mseed.Observer) []mseed.Option {
	opts := []mseed.Option{
		mseed.WithStrict(c.Engine.Strict),
		mseed.WithYearRange(c.Engine.MinYear, c.Engine.MaxYear),
		mseed.WithLogger(logger),
	}
	if observer != nil {
		opts = append(opts, mseed.WithObserver(observer))
	}
	return opts
}

// ParseLevel converts a level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level %q must be debug, info, warn or error", level)
}

// NewLogger builds the logger described by the logging section
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./mseedkit.yaml"
	}

	// For Linux/macOS, use ~/.config/mseedkit/config.yaml
	configDir := filepath.Join(homeDir, ".config", "mseedkit")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

// BootstrapConfig writes the default configuration to configPath
func BootstrapConfig(configPath string, archiveDir string) (*Config, error) {
	config := DefaultConfig()
	if archiveDir != "" {
		config.Archive.Dir = archiveDir
	}

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

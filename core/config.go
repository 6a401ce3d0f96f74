// Package core provides configuration, exit codes and shared error types for
// the crowd viewer.
package core

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Ingest modes.
const (
	IngestBatched   = "batched"
	IngestImmediate = "immediate"
)

// ConfigPathEnvVar points at an optional YAML config file.
const ConfigPathEnvVar = "CROWDVIEW_CONFIG"

// Config holds all runtime settings for the viewer.
//
// Values are resolved in increasing precedence: built-in defaults, the YAML
// file named by CROWDVIEW_CONFIG, then the process environment (which
// includes anything loaded from .env).
type Config struct {
	// Upstream stream
	StreamURL              string        `yaml:"stream_url"`
	StreamHandshakeTimeout time.Duration `yaml:"stream_handshake_timeout"`
	StreamBufferSize       int           `yaml:"stream_buffer_size"` // inbound message channel capacity

	// Series and ingestion
	MaxDataPoints         int           `yaml:"max_data_points"`
	BatchInterval         time.Duration `yaml:"batch_interval"`
	BatchMaxMessages      int           `yaml:"batch_max_messages"`
	IngestMode            string        `yaml:"ingest_mode"`
	AnomalyScoreThreshold float64       `yaml:"anomaly_score_threshold"`

	// Dashboard
	WebUIHost     string `yaml:"webui_host"`
	WebUIPort     int    `yaml:"webui_port"`
	FrameMaxWidth int    `yaml:"frame_max_width"`

	// Logging
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"` // empty: debug in dev mode, info otherwise
	DevMode  bool   `yaml:"dev_mode"`

	// Sources the config was loaded from, for diagnostics.
	EnvPath    string `yaml:"-"`
	ConfigPath string `yaml:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		StreamURL:              "ws://localhost:8765/ui",
		StreamHandshakeTimeout: 10 * time.Second,
		StreamBufferSize:       1024,

		MaxDataPoints:    50,
		BatchInterval:    100 * time.Millisecond,
		BatchMaxMessages: 10,
		IngestMode:       IngestBatched,

		WebUIHost:     "localhost",
		WebUIPort:     3000,
		FrameMaxWidth: 1280,

		LogFile: "crowdview.log",
	}
}

// LoadConfig loads .env from the working directory (a missing file is not an
// error), applies the optional YAML file, then the environment, and
// validates the result.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

// LoadConfigFrom is LoadConfig with an explicit .env path.
func LoadConfigFrom(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	cfg := DefaultConfig()
	cfg.EnvPath = envPath

	if path := GetEnvOrDefault(ConfigPathEnvVar, ""); path != "" {
		if err := cfg.mergeYAMLFile(path); err != nil {
			return nil, err
		}
		cfg.ConfigPath = path
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) mergeYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrConfigFile(path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return ErrConfigFile(path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.StreamURL = GetEnvOrDefault("STREAM_URL", c.StreamURL)
	c.StreamHandshakeTimeout = ParseDurationEnv("STREAM_HANDSHAKE_TIMEOUT", c.StreamHandshakeTimeout)
	c.StreamBufferSize = ParseIntEnv("STREAM_BUFFER_SIZE", c.StreamBufferSize)

	c.MaxDataPoints = ParseIntEnv("MAX_DATA_POINTS", c.MaxDataPoints)
	c.BatchInterval = ParseMillisEnv("BATCH_INTERVAL_MS", c.BatchInterval)
	c.BatchMaxMessages = ParseIntEnv("BATCH_MAX_MESSAGES", c.BatchMaxMessages)
	c.IngestMode = strings.ToLower(GetEnvOrDefault("INGEST_MODE", c.IngestMode))
	c.AnomalyScoreThreshold = ParseFloat64Env("ANOMALY_SCORE_THRESHOLD", c.AnomalyScoreThreshold)

	c.WebUIHost = GetEnvOrDefault("WEBUI_HOST", c.WebUIHost)
	c.WebUIPort = ParseIntEnv("WEBUI_PORT", c.WebUIPort)
	c.FrameMaxWidth = ParseIntEnv("FRAME_MAX_WIDTH", c.FrameMaxWidth)

	c.LogFile = GetEnvOrDefault("LOG_FILE", c.LogFile)
	c.LogLevel = GetEnvOrDefault("CROWDVIEW_LOG_LEVEL", c.LogLevel)
	c.DevMode = ParseBoolEnv("DEV_MODE", c.DevMode)
}

// Validate checks every setting and returns the first problem as a
// *ConfigError.
func (c *Config) Validate() error {
	if err := ValidateStreamURL(c.StreamURL); err != nil {
		return err
	}
	if c.StreamHandshakeTimeout <= 0 {
		return ErrInvalidValue("STREAM_HANDSHAKE_TIMEOUT", c.StreamHandshakeTimeout, "a positive duration")
	}
	if c.StreamBufferSize < 1 {
		return ErrInvalidValue("STREAM_BUFFER_SIZE", c.StreamBufferSize, "a positive number of messages")
	}
	if c.MaxDataPoints < 1 {
		return ErrInvalidValue("MAX_DATA_POINTS", c.MaxDataPoints, "a positive integer")
	}
	if c.BatchInterval <= 0 {
		return ErrInvalidValue("BATCH_INTERVAL_MS", c.BatchInterval, "a positive number of milliseconds")
	}
	if c.BatchMaxMessages < 1 {
		return ErrInvalidValue("BATCH_MAX_MESSAGES", c.BatchMaxMessages, "a positive integer")
	}
	if c.IngestMode != IngestBatched && c.IngestMode != IngestImmediate {
		return ErrInvalidValue("INGEST_MODE", c.IngestMode, "batched or immediate")
	}
	if c.AnomalyScoreThreshold < 0 {
		return ErrInvalidValue("ANOMALY_SCORE_THRESHOLD", c.AnomalyScoreThreshold, "0 (disabled) or a positive score")
	}
	if c.WebUIPort < 1 || c.WebUIPort > 65535 {
		return ErrInvalidValue("WEBUI_PORT", c.WebUIPort, "a port between 1 and 65535")
	}
	if c.FrameMaxWidth < 16 {
		return ErrInvalidValue("FRAME_MAX_WIDTH", c.FrameMaxWidth, "at least 16 pixels")
	}
	return nil
}

// ValidateStreamURL requires a ws or wss URL with a host.
func ValidateStreamURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrMissingConfig("STREAM_URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidStreamURL(raw, err.Error())
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	default:
		return ErrInvalidStreamURL(raw, fmt.Sprintf("scheme must be ws or wss, got %q", u.Scheme))
	}
	if u.Host == "" {
		return ErrInvalidStreamURL(raw, "missing host")
	}
	return nil
}

// IsImmediate reports whether messages are committed on arrival rather than
// on the batch timer.
func (c *Config) IsImmediate() bool {
	return c.IngestMode == IngestImmediate
}

// WebUIAddr returns host:port for the dashboard listener.
func (c *Config) WebUIAddr() string {
	return fmt.Sprintf("%s:%d", c.WebUIHost, c.WebUIPort)
}

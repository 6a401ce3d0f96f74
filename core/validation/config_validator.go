package validation

import (
	"fmt"
	"os"

	"crowdview/core"
)

// ValidationResult is the outcome of one configuration check.
type ValidationResult struct {
	Valid   bool
	Warning bool // Valid but worth flagging
	Message string
	Error   error
}

// ConfigValidator checks a loaded core.Config without touching the network.
type ConfigValidator struct {
	cfg     *core.Config
	envPath string
}

func NewConfigValidator(cfg *core.Config) *ConfigValidator {
	envPath := ".env"
	if cfg != nil && cfg.EnvPath != "" {
		envPath = cfg.EnvPath
	}
	return &ConfigValidator{cfg: cfg, envPath: envPath}
}

// WithEnvPath overrides the .env location reported by CheckEnvFile.
func (v *ConfigValidator) WithEnvPath(path string) *ConfigValidator {
	v.envPath = path
	return v
}

// CheckEnvFile warns when no .env file is present. Defaults and process
// environment are enough to run, so this never fails.
func (v *ConfigValidator) CheckEnvFile() ValidationResult {
	if _, err := os.Stat(v.envPath); err != nil {
		return ValidationResult{
			Valid:   true,
			Warning: true,
			Message: "No .env file, using defaults and environment",
			Error:   core.ErrEnvFileMissing(v.envPath),
		}
	}
	return ValidationResult{Valid: true, Message: "Environment file found"}
}

func (v *ConfigValidator) CheckStreamURL() ValidationResult {
	if err := core.ValidateStreamURL(v.cfg.StreamURL); err != nil {
		return ValidationResult{Valid: false, Message: "Stream URL invalid", Error: err}
	}
	return ValidationResult{Valid: true, Message: "Stream URL valid"}
}

// CheckBuffers covers the rolling series bound, the batch cap and interval,
// and the socket buffer size.
func (v *ConfigValidator) CheckBuffers() ValidationResult {
	c := v.cfg
	switch {
	case c.MaxDataPoints < 1:
		return invalid(core.ErrInvalidValue("MAX_DATA_POINTS", c.MaxDataPoints, "a positive integer"))
	case c.BatchMaxMessages < 1:
		return invalid(core.ErrInvalidValue("BATCH_MAX_MESSAGES", c.BatchMaxMessages, "a positive integer"))
	case c.BatchInterval <= 0:
		return invalid(core.ErrInvalidValue("BATCH_INTERVAL_MS", c.BatchInterval, "a positive number of milliseconds"))
	case c.StreamBufferSize < 1:
		return invalid(core.ErrInvalidValue("STREAM_BUFFER_SIZE", c.StreamBufferSize, "a positive number of messages"))
	}
	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("%d points per series, up to %d messages every %v", c.MaxDataPoints, c.BatchMaxMessages, c.BatchInterval),
	}
}

func (v *ConfigValidator) CheckIngestMode() ValidationResult {
	switch v.cfg.IngestMode {
	case core.IngestBatched, core.IngestImmediate:
		return ValidationResult{Valid: true, Message: "Ingest mode " + v.cfg.IngestMode}
	default:
		return invalid(core.ErrInvalidValue("INGEST_MODE", v.cfg.IngestMode, "batched or immediate"))
	}
}

func (v *ConfigValidator) CheckPort() ValidationResult {
	if p := v.cfg.WebUIPort; p < 1 || p > 65535 {
		return invalid(core.ErrInvalidValue("WEBUI_PORT", p, "a port between 1 and 65535"))
	}
	return ValidationResult{Valid: true, Message: "Dashboard on " + v.cfg.WebUIAddr()}
}

// ValidateAll runs every check in order.
func (v *ConfigValidator) ValidateAll() []ValidationResult {
	return []ValidationResult{
		v.CheckEnvFile(),
		v.CheckStreamURL(),
		v.CheckBuffers(),
		v.CheckIngestMode(),
		v.CheckPort(),
	}
}

// GetFirstError returns the first failing check's error, ignoring warnings.
func (v *ConfigValidator) GetFirstError() error {
	for _, r := range v.ValidateAll() {
		if !r.Valid {
			return r.Error
		}
	}
	return nil
}

func invalid(err *core.ConfigError) ValidationResult {
	return ValidationResult{Valid: false, Message: err.Message, Error: err}
}

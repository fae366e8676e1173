package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, ValidationError{
			Field:   "camera",
			Message: fmt.Sprintf("invalid resolution %dx%d", c.Camera.Width, c.Camera.Height),
		})
	}
	if c.Camera.FPS <= 0 || c.Camera.FPS > 60 {
		errs = append(errs, ValidationError{
			Field:   "camera.fps",
			Message: fmt.Sprintf("fps %d out of range (1-60)", c.Camera.FPS),
		})
	}

	if c.Vision.ConfidenceThreshold <= 0 || c.Vision.ConfidenceThreshold >= 1 {
		errs = append(errs, ValidationError{
			Field:   "vision.confidence_threshold",
			Message: fmt.Sprintf("threshold %.2f must be in (0,1)", c.Vision.ConfidenceThreshold),
		})
	}
	if c.Vision.ModelPath == "" && c.Camera.FrameDir == "" {
		errs = append(errs, ValidationError{
			Field:   "vision.model_path",
			Message: "model path is required",
		})
	}

	if c.Spectral.PeriodSec <= 0 {
		errs = append(errs, ValidationError{
			Field:   "spectral.period_sec",
			Message: "period must be positive",
		})
	}
	if c.Spectral.MaxNetworksForIsolation < 0 {
		errs = append(errs, ValidationError{
			Field:   "spectral.max_networks_for_isolation",
			Message: "bound must not be negative",
		})
	}

	if c.Alert.CooldownSec < 0 {
		errs = append(errs, ValidationError{
			Field:   "alert.cooldown_sec",
			Message: "cooldown must not be negative",
		})
	}
	switch c.Alert.Sink {
	case "dbus", "speaker", "none", "":
	default:
		errs = append(errs, ValidationError{
			Field:   "alert.sink",
			Message: fmt.Sprintf("unknown sink %q", c.Alert.Sink),
		})
	}

	if c.Storage.StateDir == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.state_dir",
			Message: "state directory is required",
		})
	}
	if c.Storage.DBPath == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.db_path",
			Message: "database path is required",
		})
	}
	if c.Storage.ImageRoot == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.image_root",
			Message: "image root is required",
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Package config handles configuration loading, validation, and
// management for borderd.
package config

import (
	"os"
	"strconv"
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Camera configuration for frame acquisition.
	Camera CameraConfig `toml:"camera" json:"camera" yaml:"camera"`

	// Vision configuration for the vision sensor loop.
	Vision VisionConfig `toml:"vision" json:"vision" yaml:"vision"`

	// Spectral configuration for the radio-spectrum sensor loop.
	Spectral SpectralConfig `toml:"spectral" json:"spectral" yaml:"spectral"`

	// Alert configuration for the local disruptive alert.
	Alert AlertConfig `toml:"alert" json:"alert" yaml:"alert"`

	// Storage configuration for shared state and the threat ledger.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// CameraConfig holds frame acquisition configuration.
type CameraConfig struct {
	// Device is the video device path, e.g. /dev/video0. Empty selects
	// the platform default camera.
	Device string `toml:"device" json:"device" yaml:"device"`

	// Width and Height of the requested capture format.
	Width  int `toml:"width" json:"width" yaml:"width"`
	Height int `toml:"height" json:"height" yaml:"height"`

	// FPS is the requested frame rate.
	FPS int `toml:"fps" json:"fps" yaml:"fps"`

	// FrameDir, when set, replays PNG frames from a directory instead
	// of opening a camera. Development and test aid.
	FrameDir string `toml:"frame_dir" json:"frame_dir" yaml:"frame_dir"`
}

// VisionConfig holds vision sensor loop configuration.
type VisionConfig struct {
	// ModelPath is the ONNX detection model file.
	ModelPath string `toml:"model_path" json:"model_path" yaml:"model_path"`

	// ConfidenceThreshold gates detections; only strictly greater
	// confidences qualify.
	ConfidenceThreshold float32 `toml:"confidence_threshold" json:"confidence_threshold" yaml:"confidence_threshold"`
}

// SpectralConfig holds spectral sensor loop configuration.
type SpectralConfig struct {
	// PeriodSec is the interval between scans in seconds.
	PeriodSec int `toml:"period_sec" json:"period_sec" yaml:"period_sec"`

	// MaxNetworksForIsolation is the largest total network count still
	// considered an isolated area.
	MaxNetworksForIsolation int `toml:"max_networks_for_isolation" json:"max_networks_for_isolation" yaml:"max_networks_for_isolation"`

	// StrongRSSIdBm is the signal strength above which an emitter
	// counts as strong. The percent-derived RSSI estimate never exceeds
	// -50 dBm, so the -50 default must be lowered (e.g. -76) for any
	// emitter to count as strong.
	StrongRSSIdBm float64 `toml:"strong_rssi_dbm" json:"strong_rssi_dbm" yaml:"strong_rssi_dbm"`

	// Interface restricts scans to one wireless interface. Empty scans
	// all.
	Interface string `toml:"interface" json:"interface" yaml:"interface"`
}

// AlertConfig holds local alert configuration.
type AlertConfig struct {
	// CooldownSec is the minimum interval between two effective
	// firings in seconds.
	CooldownSec int `toml:"cooldown_sec" json:"cooldown_sec" yaml:"cooldown_sec"`

	// Sink selects the alert mechanism: "dbus", "speaker", or "none".
	Sink string `toml:"sink" json:"sink" yaml:"sink"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// StateDir is the directory holding the shared status and live
	// frame artifacts.
	StateDir string `toml:"state_dir" json:"state_dir" yaml:"state_dir"`

	// DBPath is the SQLite threat log database file.
	DBPath string `toml:"db_path" json:"db_path" yaml:"db_path"`

	// ImageRoot is the directory the per-category evidence image
	// directories are created under.
	ImageRoot string `toml:"image_root" json:"image_root" yaml:"image_root"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the output format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the destination: stdout, stderr, file, or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file when Output includes "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// SpectralPeriod returns the scan period as a duration.
func (c *Config) SpectralPeriod() time.Duration {
	return time.Duration(c.Spectral.PeriodSec) * time.Second
}

// AlertCooldown returns the cooldown as a duration.
func (c *Config) AlertCooldown() time.Duration {
	return time.Duration(c.Alert.CooldownSec) * time.Second
}

// ApplyEnvOverrides applies BORDERD_* environment variables on top of
// the loaded file. Only the settings that commonly differ between field
// units are overridable this way.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("BORDERD_CAMERA_DEVICE"); v != "" {
		c.Camera.Device = v
	}
	if v := os.Getenv("BORDERD_MODEL_PATH"); v != "" {
		c.Vision.ModelPath = v
	}
	if v := os.Getenv("BORDERD_STATE_DIR"); v != "" {
		c.Storage.StateDir = v
	}
	if v := os.Getenv("BORDERD_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("BORDERD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BORDERD_ALERT_SINK"); v != "" {
		c.Alert.Sink = v
	}
	if v := os.Getenv("BORDERD_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			c.Vision.ConfidenceThreshold = float32(f)
		}
	}
}

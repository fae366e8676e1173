package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the platform-specific data directory for borderd.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/borderd/
//   - Linux:   $XDG_DATA_HOME/borderd/ or ~/.local/share/borderd/
//   - other:   ~/.borderd/
func DataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "borderd")
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "borderd")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "borderd")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".borderd")
	}
}

// ConfigDir returns the platform-specific config directory.
func ConfigDir() string {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "borderd")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "borderd")
	}
	return DataDir()
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultConfig returns a configuration with every setting at its
// default.
func DefaultConfig() *Config {
	dataDir := DataDir()
	return &Config{
		Version: Version,
		Camera: CameraConfig{
			Width:  640,
			Height: 480,
			FPS:    10,
		},
		Vision: VisionConfig{
			ModelPath:           filepath.Join(dataDir, "models", "detector.onnx"),
			ConfidenceThreshold: 0.5,
		},
		Spectral: SpectralConfig{
			PeriodSec:               5,
			MaxNetworksForIsolation: 5,
			StrongRSSIdBm:           -50,
		},
		Alert: AlertConfig{
			CooldownSec: 5,
			Sink:        "dbus",
		},
		Storage: StorageConfig{
			StateDir:  filepath.Join(dataDir, "state"),
			DBPath:    filepath.Join(dataDir, "surveillance_log.db"),
			ImageRoot: dataDir,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

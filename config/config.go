// Package config loads the assistant configuration from a YAML file
// with environment-variable fallbacks. Command-line flags in main
// override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes where the collaborators live and how capture runs.
type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Capture    CaptureConfig    `yaml:"capture"`
	Speech     SpeechConfig     `yaml:"speech"`
}

// BackendConfig points at the REST backend that owns transcription,
// tasks and voice notes.
type BackendConfig struct {
	BaseURL           string        `yaml:"base_url"`
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

// RecognizerConfig points at the optional streaming recognizer used as
// the fallback capture path.
type RecognizerConfig struct {
	WebsocketURL string `yaml:"websocket_url"`
}

type CaptureConfig struct {
	Device   string `yaml:"device"`   // device ID from -setup; empty = system default
	Format   string `yaml:"format"`   // upload format: wav (default) or flac
	Language string `yaml:"language"`
	// Silence auto-stop: stop listening after this much trailing
	// silence. Zero disables the monitor.
	SilenceStop time.Duration `yaml:"silence_stop"`
}

type SpeechConfig struct {
	Voice    string `yaml:"voice"`
	Disabled bool   `yaml:"disabled"`
}

func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:           "http://localhost:8000",
			TranscribeTimeout: 20 * time.Second,
			RequestTimeout:    10 * time.Second,
		},
		Capture: CaptureConfig{
			Format:      "wav",
			SilenceStop: 0,
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "voxdo", "config.yaml")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "voxdo", "config.yaml")
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VOXDO_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("VOXDO_RECOGNIZER_URL"); v != "" {
		c.Recognizer.WebsocketURL = v
	}
	if v := os.Getenv("VOXDO_LANGUAGE"); v != "" {
		c.Capture.Language = v
	}
	if v := os.Getenv("VOXDO_VOICE"); v != "" {
		c.Speech.Voice = v
	}
	if v := os.Getenv("VOXDO_TRANSCRIBE_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Backend.TranscribeTimeout = time.Duration(secs) * time.Second
		}
	}
}

func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url cannot be empty")
	}
	if c.Backend.TranscribeTimeout <= 0 {
		return fmt.Errorf("transcribe_timeout must be positive, got %v", c.Backend.TranscribeTimeout)
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.Backend.RequestTimeout)
	}
	switch c.Capture.Format {
	case "wav", "flac":
	default:
		return fmt.Errorf("capture format must be wav or flac, got %q", c.Capture.Format)
	}
	if c.Capture.SilenceStop < 0 {
		return fmt.Errorf("silence_stop cannot be negative, got %v", c.Capture.SilenceStop)
	}
	return nil
}

// Save writes the config back, creating the directory when needed.
// Used by -setup to persist the chosen capture device.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

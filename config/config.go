package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"fallingkeys/sequencer"
)

const (
	minSpeed = 0.1
	maxSpeed = 2.0
)

// Config is the main configuration structure
type Config struct {
	OutputPort    string             `json:"outputPort,omitempty"`
	InputPort     string             `json:"inputPort,omitempty"` // "" uses the first keyboard found
	KeyboardRange sequencer.KeyRange `json:"keyboardRange"`
	LeadInMs      int                `json:"leadInMs"`
	RewindStepMs  int                `json:"rewindStepMs"`
	Speed         float64            `json:"speed"`
	WaitMode      bool               `json:"waitMode,omitempty"`
	Echo          bool               `json:"echo,omitempty"`
	Palette       string             `json:"palette,omitempty"` // GIMP .gpl file
	Debug         bool               `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		KeyboardRange: sequencer.PianoRange,
		LeadInMs:      3000,
		RewindStepMs:  5000,
		Speed:         1.0,
	}
}

// LeadIn returns the lead-in as a duration.
func (c *Config) LeadIn() time.Duration {
	return time.Duration(c.LeadInMs) * time.Millisecond
}

// RewindStep returns the rewind/fast-forward step as a duration.
func (c *Config) RewindStep() time.Duration {
	return time.Duration(c.RewindStepMs) * time.Millisecond
}

// normalize repairs values a hand-edited file may get wrong.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.LeadInMs < 0 {
		c.LeadInMs = 0
	}
	if c.RewindStepMs <= 0 {
		c.RewindStepMs = def.RewindStepMs
	}
	if c.Speed == 0 {
		c.Speed = def.Speed
	}
	c.Speed = max(minSpeed, min(maxSpeed, c.Speed))
	if c.KeyboardRange.Low > c.KeyboardRange.High {
		c.KeyboardRange = def.KeyboardRange
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "fallingkeys"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path, or returns defaults if it does not exist.
// Fields missing from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ArrowLayout selects which arrow pair steps the octave and which steps the channel
type ArrowLayout string

const (
	ArrowsOctaveFirst  ArrowLayout = "octave-first"  // CC44/45 octave, CC46/47 channel
	ArrowsChannelFirst ArrowLayout = "channel-first" // CC44/45 channel, CC46/47 octave
)

// PortConfig names the MIDI ports to use. Names match by case-insensitive substring.
type PortConfig struct {
	Pads     string `json:"pads"`
	Keyboard string `json:"keyboard,omitempty"`
	Synth    string `json:"synth"`
}

// PadConfig tunes pad velocity handling
type PadConfig struct {
	Curve     string `json:"curve"`
	Threshold int    `json:"threshold"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette  string `json:"palette,omitempty"` // path to a .gpl file; empty uses the built-in one
	Headless bool   `json:"headless,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Ports      PortConfig  `json:"ports"`
	Pads       PadConfig   `json:"pads"`
	BPM        int         `json:"bpm"`
	Arrows     ArrowLayout `json:"arrows"`
	Metronome  int         `json:"metronome"` // note number, -1 disables
	DebounceMS int         `json:"debounceMs"`
	StateFile  string      `json:"stateFile,omitempty"`
	UI         UIConfig    `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Ports: PortConfig{
			Pads:     "Ableton Push",
			Keyboard: "Keystation",
			Synth:    "FLUID",
		},
		Pads: PadConfig{
			Curve:     "linear",
			Threshold: 0,
		},
		BPM:        120,
		Arrows:     ArrowsOctaveFirst,
		Metronome:  -1,
		DebounceMS: 100,
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midipush"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// StatePath returns where the timeline is persisted
func (c *Config) StatePath() (string, error) {
	if c.StateFile != "" {
		return c.StateFile, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.bin"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. Fields missing from the file keep their defaults.
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
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values the sequencer cannot use
func (c *Config) Validate() error {
	if c.BPM < 20 || c.BPM > 300 {
		return fmt.Errorf("bpm %d out of range 20-300", c.BPM)
	}
	if c.Pads.Threshold < 0 || c.Pads.Threshold > 127 {
		return fmt.Errorf("pad threshold %d out of range 0-127", c.Pads.Threshold)
	}
	switch c.Arrows {
	case ArrowsOctaveFirst, ArrowsChannelFirst:
	default:
		return fmt.Errorf("unknown arrow layout %q", c.Arrows)
	}
	if c.Metronome < -1 || c.Metronome > 127 {
		return fmt.Errorf("metronome note %d out of range", c.Metronome)
	}
	if c.DebounceMS < 0 {
		return fmt.Errorf("negative debounce window")
	}
	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path
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

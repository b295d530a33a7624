// Package settings loads the optional YAML settings file shared by the viewer and the export tool.
package settings

import (
	"bytes"
	"errors"
	"io/fs"
	"os"

	"github.com/Carmen-Shannon/oxy-fractal/engine/bucket"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings is the settings file.
type Settings struct {
	// Backend is "wgpu" or "software".
	Backend string `yaml:"backend"`
	// Width and Height are the canvas size in pixels.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Precision is "float" or "half".
	Precision string `yaml:"precision"`
	// SampleCap bounds viewport accumulation, 0 meaning unbounded.
	SampleCap uint `yaml:"sampleCap"`
	// Workers is the software backend worker count, 0 picks one per core.
	Workers int `yaml:"workers"`
	// FrameLimit caps the render loop in frames per second, 0 meaning uncapped.
	FrameLimit float64 `yaml:"frameLimit"`
	// VSync presents with the fifo present mode.
	VSync bool `yaml:"vsync"`
	// Preset is a preset file loaded on start.
	Preset string `yaml:"preset"`
	// WatchPreset reloads the preset when it changes.
	WatchPreset bool `yaml:"watchPreset"`
	// Exposure is the display exposure.
	Exposure float32 `yaml:"exposure"`
	// Profile logs frame and memory statistics every second.
	Profile bool `yaml:"profile"`

	Log    Log           `yaml:"log"`
	Bucket bucket.Config `yaml:"bucket"`
}

// Log configures the process logger.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Backend:    "wgpu",
		Width:      1280,
		Height:     720,
		Precision:  "float",
		FrameLimit: 0,
		VSync:      true,
		Exposure:   1,
		Log:        Log{Level: "info"},
		Bucket:     bucket.DefaultConfig(),
	}
}

// Parse decodes a settings document over the defaults. Unknown keys are rejected.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - Settings: the settings
//   - error: a decode failure
func Parse(data []byte) (Settings, error) {
	s := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Default(), pkgerrors.Wrap(err, "decode settings")
	}
	return s, nil
}

// Load reads the settings file at path. An empty path or a missing file yields the defaults.
//
// Parameters:
//   - path: the settings file
//
// Returns:
//   - Settings: the settings
//   - error: a read or decode failure
func Load(path string) (Settings, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), pkgerrors.Wrapf(err, "read settings %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return s, pkgerrors.Wrapf(err, "load settings %s", path)
	}
	return s, nil
}

// Marshal encodes s as YAML.
func (s Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Package config loads the signalwatch service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/detector"
	"github.com/ayusman/signalwatch/internal/tracker"
)

// DefaultDSN keeps the decision journal in a shared in-memory database.
const DefaultDSN = "file:signalwatch?mode=memory&cache=shared"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Tracker  tracker.Config  `yaml:"tracker"`
	Decision decision.Config `yaml:"decision"`
	Pipeline PipelineConfig  `yaml:"pipeline"`
	Detector detector.Config `yaml:"detector"`
	Camera   CameraConfig    `yaml:"camera"`
	Plugins  PluginsConfig   `yaml:"plugins"`
	Store    StoreConfig     `yaml:"store"`
	Tray     bool            `yaml:"tray"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string `yaml:"addr" validate:"required"`
	StaticDir string `yaml:"static_dir"`
}

// PipelineConfig configures the frame pipeline.
type PipelineConfig struct {
	// Validate drops malformed detections before tracking.
	Validate bool `yaml:"validate"`
}

// CameraConfig configures the optional capture loop.
type CameraConfig struct {
	Enabled bool `yaml:"enabled"`
	// Source is a device index ("0") or a file path / stream URL.
	Source string `yaml:"source" validate:"required_if=Enabled true"`
	Loop   bool   `yaml:"loop"`
	FPS    int    `yaml:"fps" validate:"gt=0"`
}

// PluginsConfig configures hook plugins.
type PluginsConfig struct {
	Dir       string `yaml:"dir"`
	TimeoutMs int    `yaml:"timeout_ms" validate:"gt=0"`
}

// StoreConfig configures the decision journal.
type StoreConfig struct {
	DSN string `yaml:"dsn" validate:"required"`
	// Keep bounds the journal size; 0 keeps everything.
	Keep int `yaml:"keep" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":5000"},
		Tracker: tracker.Config{
			MaxDistance: 80,
			MaxAge:      8,
		},
		Decision: decision.Config{
			Window:       5,
			RedThreshold: 0.6,
		},
		Pipeline: PipelineConfig{Validate: true},
		Detector: detector.DefaultConfig(),
		Camera: CameraConfig{
			Source: "0",
			FPS:    5,
		},
		Plugins: PluginsConfig{TimeoutMs: 5000},
		Store: StoreConfig{
			DSN:  DefaultDSN,
			Keep: 10000,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section against its struct tags.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

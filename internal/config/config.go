// Package config loads the application configuration for pdmeter
// commands from YAML, with environment overrides for deployment knobs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/optiscope/go-pdmeter/pkg/camera"
	"github.com/optiscope/go-pdmeter/pkg/engine"
	"github.com/optiscope/go-pdmeter/pkg/telemetry"
)

// EngineConfig carries the tunable engine parameters exposed through
// the config file. Zero values fall back to the engine defaults.
type EngineConfig struct {
	IrisDiameterMM    float64 `yaml:"iris_diameter_mm"`
	FocalLengthFactor float64 `yaml:"focal_length_factor"`

	IdealDistanceCM float64 `yaml:"ideal_distance_cm"`
	MinDistanceCM   float64 `yaml:"min_distance_cm"`
	MaxDistanceCM   float64 `yaml:"max_distance_cm"`
	LightingFloor   float64 `yaml:"lighting_floor"`

	RollThresholdDeg float64 `yaml:"roll_threshold_deg"`
	YawThreshold     float64 `yaml:"yaw_threshold"`
	PitchMin         float64 `yaml:"pitch_min"`
	PitchMax         float64 `yaml:"pitch_max"`
	CenterTolerance  float64 `yaml:"center_tolerance"`

	RequiredMinSamples int     `yaml:"required_min_samples"`
	MaxSamples         int     `yaml:"max_samples"`
	StrictStdDevMM     float64 `yaml:"strict_stddev_mm"`
	LooseStdDevMM      float64 `yaml:"loose_stddev_mm"`

	StabilityWindow    int     `yaml:"stability_window"`
	StabilitySteepness float64 `yaml:"stability_steepness"`
	EyeOpenRatioMin    float64 `yaml:"eye_open_ratio_min"`
}

// ProviderConfig points at the landmark detector service.
type ProviderConfig struct {
	URL      string   `yaml:"url"`
	Backends []string `yaml:"backends"`
}

// WebConfig holds dashboard settings.
type WebConfig struct {
	Port string `yaml:"port"`
}

// Config is the root application configuration.
type Config struct {
	LogLevel  string           `yaml:"log_level"`
	Web       WebConfig        `yaml:"web"`
	Provider  ProviderConfig   `yaml:"provider"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Camera    camera.Config    `yaml:"camera"`
	Engine    EngineConfig     `yaml:"engine"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel: "info",
		Web:      WebConfig{Port: "8080"},
		Provider: ProviderConfig{
			URL:      "ws://localhost:8765/landmarks",
			Backends: []string{"gpu", "cpu"},
		},
		Camera: camera.DefaultConfig(),
	}
}

// Load reads the YAML file at path, layered over Default. A missing
// file is not an error; environment overrides apply last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// Deployment overrides.
	if v := os.Getenv("PDMETER_WEB_PORT"); v != "" {
		cfg.Web.Port = v
	}
	if v := os.Getenv("PDMETER_PROVIDER_URL"); v != "" {
		cfg.Provider.URL = v
	}
	if v := os.Getenv("PDMETER_MQTT_BROKER"); v != "" {
		cfg.Telemetry.Broker = v
	}
	if v := os.Getenv("PDMETER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast on an unusable application configuration. Engine
// threshold consistency is checked by engine.New.
func (c Config) Validate() error {
	if c.Web.Port == "" {
		return fmt.Errorf("config: web port is required")
	}
	if c.Provider.URL == "" {
		return fmt.Errorf("config: provider URL is required")
	}
	return c.Camera.Validate()
}

// EngineConfig materializes the engine configuration, layering file
// values over the engine defaults. Validation happens in engine.New.
func (c Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	e := c.Engine

	if e.IrisDiameterMM > 0 {
		ec.Calculator.IrisDiameterMM = e.IrisDiameterMM
	}
	if e.FocalLengthFactor > 0 {
		ec.Calculator.FocalLengthFactor = e.FocalLengthFactor
	}

	if e.IdealDistanceCM > 0 {
		ec.Scorer.IdealDistanceCM = e.IdealDistanceCM
	}
	if e.MinDistanceCM > 0 {
		ec.Scorer.MinDistanceCM = e.MinDistanceCM
		ec.Guidance.MinDistanceCM = e.MinDistanceCM
	}
	if e.MaxDistanceCM > 0 {
		ec.Scorer.MaxDistanceCM = e.MaxDistanceCM
		ec.Guidance.MaxDistanceCM = e.MaxDistanceCM
	}
	if e.LightingFloor > 0 {
		ec.Scorer.LightingFloor = e.LightingFloor
		ec.Guidance.LightingFloor = e.LightingFloor
	}

	if e.RollThresholdDeg > 0 {
		ec.Guidance.RollDeg = e.RollThresholdDeg
	}
	if e.YawThreshold > 0 {
		ec.Guidance.Yaw = e.YawThreshold
	}
	if e.PitchMin != 0 {
		ec.Guidance.PitchMin = e.PitchMin
	}
	if e.PitchMax != 0 {
		ec.Guidance.PitchMax = e.PitchMax
	}
	if e.CenterTolerance > 0 {
		ec.Guidance.CenterTolerance = e.CenterTolerance
	}

	if e.RequiredMinSamples > 0 {
		ec.Session.RequiredMinSamples = e.RequiredMinSamples
	}
	if e.MaxSamples > 0 {
		ec.Session.MaxSamples = e.MaxSamples
	}
	if e.StrictStdDevMM > 0 {
		ec.Session.StrictStdDevMM = e.StrictStdDevMM
	}
	if e.LooseStdDevMM > 0 {
		ec.Session.LooseStdDevMM = e.LooseStdDevMM
	}

	if e.StabilityWindow > 0 {
		ec.StabilityWindow = e.StabilityWindow
	}
	if e.StabilitySteepness > 0 {
		ec.StabilitySteepness = e.StabilitySteepness
	}
	if e.EyeOpenRatioMin > 0 {
		ec.EyeOpenRatioMin = e.EyeOpenRatioMin
	}

	return ec
}

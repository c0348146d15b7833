package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/godigester/pkg/pipeline"
)

// Config represents the host-side application configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Control ControlConfig `yaml:"control"`
	Timing  TimingConfig  `yaml:"timing"`
	Storage StorageConfig `yaml:"storage"`
	Mock    MockConfig    `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// SensorConfig mirrors the current-transformer front end.
type SensorConfig struct {
	BiasVoltage float64 `yaml:"bias_voltage"` // ADC bias the CT signal is centered on (V)
	Gain        float64 `yaml:"gain"`         // CT transfer gain (A/V)
	NoiseFloor  float64 `yaml:"noise_floor"`  // RMS below this reports 0.0 (A)
}

// ControlConfig contains the hysteresis band.
type ControlConfig struct {
	LowThreshold  float64 `yaml:"low_threshold"`  // Heating engages below this (C)
	HighThreshold float64 `yaml:"high_threshold"` // Heating releases above this (C)
}

// TimingConfig contains the three pipeline periods.
type TimingConfig struct {
	SampleInterval time.Duration `yaml:"sample_interval"`
	Window         time.Duration `yaml:"window"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// StorageConfig contains the local record file configuration.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// MockConfig contains the simulated plant configuration.
type MockConfig struct {
	AmbientTemp   float64       `yaml:"ambient_temp"`   // Temperature the plant cools toward (C)
	MaxTemp       float64       `yaml:"max_temp"`       // Temperature the heater drives toward (C)
	TimeConstant  time.Duration `yaml:"time_constant"`  // First-order thermal time constant
	HeaterCurrent float64       `yaml:"heater_current"` // RMS current drawn while heating (A)
	NoiseLevel    float64       `yaml:"noise_level"`    // ADC noise amplitude (V)
	MainsHz       float64       `yaml:"mains_hz"`       // Simulated mains frequency
	LoopInterval  time.Duration `yaml:"loop_interval"`  // Simulated control loop period
	LogCapacity   int           `yaml:"log_capacity"`   // On-device record log size
}

// Default returns a default configuration matching the reference hardware.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 115200,
		},
		Sensor: SensorConfig{
			BiasVoltage: 1.65,
			Gain:        30.0,
			NoiseFloor:  0.1,
		},
		Control: ControlConfig{
			LowThreshold:  32.0,
			HighThreshold: 37.0,
		},
		Timing: TimingConfig{
			SampleInterval: time.Millisecond,
			Window:         20 * time.Millisecond,
			ReportInterval: 200 * time.Millisecond,
		},
		Storage: StorageConfig{
			Path: "experiment_data.csv",
		},
		Mock: MockConfig{
			AmbientTemp:   26.0,
			MaxTemp:       45.0,
			TimeConstant:  30 * time.Second,
			HeaterCurrent: 2.5,
			NoiseLevel:    0.002,
			MainsHz:       50.0,
			LoopInterval:  time.Millisecond,
			LogCapacity:   3000,
		},
	}
}

// Params converts the configuration into pipeline tuning.
func (c *Config) Params() pipeline.Params {
	return pipeline.Params{
		BiasVoltage:    c.Sensor.BiasVoltage,
		Gain:           c.Sensor.Gain,
		NoiseFloor:     c.Sensor.NoiseFloor,
		SampleInterval: uint64(c.Timing.SampleInterval.Microseconds()),
		Window:         uint64(c.Timing.Window.Microseconds()),
		ReportInterval: uint64(c.Timing.ReportInterval.Microseconds()),
		LowThreshold:   c.Control.LowThreshold,
		HighThreshold:  c.Control.HighThreshold,
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Sensor.BiasVoltage == 0 {
		c.Sensor.BiasVoltage = def.Sensor.BiasVoltage
	}
	if c.Sensor.Gain == 0 {
		c.Sensor.Gain = def.Sensor.Gain
	}
	if c.Sensor.NoiseFloor == 0 {
		c.Sensor.NoiseFloor = def.Sensor.NoiseFloor
	}

	if c.Control.LowThreshold == 0 {
		c.Control.LowThreshold = def.Control.LowThreshold
	}
	if c.Control.HighThreshold == 0 {
		c.Control.HighThreshold = def.Control.HighThreshold
	}

	if c.Timing.SampleInterval == 0 {
		c.Timing.SampleInterval = def.Timing.SampleInterval
	}
	if c.Timing.Window == 0 {
		c.Timing.Window = def.Timing.Window
	}
	if c.Timing.ReportInterval == 0 {
		c.Timing.ReportInterval = def.Timing.ReportInterval
	}

	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}

	if c.Mock.AmbientTemp == 0 {
		c.Mock.AmbientTemp = def.Mock.AmbientTemp
	}
	if c.Mock.MaxTemp == 0 {
		c.Mock.MaxTemp = def.Mock.MaxTemp
	}
	if c.Mock.TimeConstant == 0 {
		c.Mock.TimeConstant = def.Mock.TimeConstant
	}
	if c.Mock.HeaterCurrent == 0 {
		c.Mock.HeaterCurrent = def.Mock.HeaterCurrent
	}
	if c.Mock.NoiseLevel == 0 {
		c.Mock.NoiseLevel = def.Mock.NoiseLevel
	}
	if c.Mock.MainsHz == 0 {
		c.Mock.MainsHz = def.Mock.MainsHz
	}
	if c.Mock.LoopInterval == 0 {
		c.Mock.LoopInterval = def.Mock.LoopInterval
	}
	if c.Mock.LogCapacity == 0 {
		c.Mock.LogCapacity = def.Mock.LogCapacity
	}
}

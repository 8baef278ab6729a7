package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the deployment configuration. Profile keyframes and PID
// gain tables are compiled in and are not part of it.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Control ControlConfig `yaml:"control"`
	LED     LEDConfig     `yaml:"led"`
	Log     LogConfig     `yaml:"log"`
	Journal JournalConfig `yaml:"journal"`
	Mock    MockConfig    `yaml:"mock"`
}

// SerialConfig contains the I/O bridge serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// SensorConfig contains thermocouple polling parameters.
type SensorConfig struct {
	Interval    time.Duration `yaml:"interval"`
	ApplyOffset bool          `yaml:"apply_offset"` // Add the startup cold-junction offset to readings
}

// ControlConfig contains control loop parameters.
type ControlConfig struct {
	Interval            time.Duration `yaml:"interval"`
	FirstReadingTimeout time.Duration `yaml:"first_reading_timeout"` // Upper bound on waiting for the first reading
	MaxRampRate         float32       `yaml:"max_ramp_rate"`         // °C/s before a warning is logged
	RampWindow          time.Duration `yaml:"ramp_window"`
}

// LEDConfig contains status LED parameters.
type LEDConfig struct {
	WarmUp time.Duration `yaml:"warm_up"`
}

// LogConfig contains logging parameters.
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// JournalConfig contains run journal parameters.
type JournalConfig struct {
	Path string `yaml:"path"` // SQLite file; empty disables the journal
}

// MockConfig contains simulated oven parameters.
type MockConfig struct {
	Ambient      float32       `yaml:"ambient"`       // Ambient temperature (°C)
	HeatRate     float32       `yaml:"heat_rate"`     // Heating rate with the element on (°C/s)
	TimeConstant time.Duration `yaml:"time_constant"` // Loss time constant towards ambient
	NoiseLevel   float32       `yaml:"noise_level"`   // Peak measurement noise (°C)
	StepRate     time.Duration `yaml:"step_rate"`     // Simulation step
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Sensor: SensorConfig{
			Interval:    100 * time.Millisecond,
			ApplyOffset: false,
		},
		Control: ControlConfig{
			Interval:            50 * time.Millisecond,
			FirstReadingTimeout: 5 * time.Second,
			MaxRampRate:         3.0,
			RampWindow:          2 * time.Second,
		},
		LED: LEDConfig{
			WarmUp: 50 * time.Microsecond,
		},
		Log: LogConfig{
			Level:  "info",
			JSON:   false,
			Colors: true,
		},
		Mock: MockConfig{
			Ambient:      25,
			HeatRate:     3.5,
			TimeConstant: 120 * time.Second,
			NoiseLevel:   0.25,
			StepRate:     10 * time.Millisecond,
		},
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

	if c.Sensor.Interval <= 0 {
		c.Sensor.Interval = def.Sensor.Interval
	}

	if c.Control.Interval <= 0 {
		c.Control.Interval = def.Control.Interval
	}
	if c.Control.FirstReadingTimeout <= 0 {
		c.Control.FirstReadingTimeout = def.Control.FirstReadingTimeout
	}
	if c.Control.MaxRampRate <= 0 {
		c.Control.MaxRampRate = def.Control.MaxRampRate
	}
	if c.Control.RampWindow <= 0 {
		c.Control.RampWindow = def.Control.RampWindow
	}

	if c.LED.WarmUp <= 0 {
		c.LED.WarmUp = def.LED.WarmUp
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Mock.HeatRate == 0 {
		c.Mock.HeatRate = def.Mock.HeatRate
	}
	if c.Mock.TimeConstant == 0 {
		c.Mock.TimeConstant = def.Mock.TimeConstant
	}
	if c.Mock.StepRate == 0 {
		c.Mock.StepRate = def.Mock.StepRate
	}
}

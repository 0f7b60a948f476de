package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/report"
	"github.com/san-kum/wasmsim/internal/sim"
	"github.com/san-kum/wasmsim/internal/wasm"
)

const (
	DefaultModel       = "builtin:dpend"
	DefaultStopTime    = 10.0
	DefaultSteps       = 100
	DefaultMaxRetries  = 8
	DefaultMinStep     = 1e-9
	DefaultMemoryPages = 256
	DefaultOutputBuf   = 4096
	DefaultStoreDir    = "runs"
)

type Config struct {
	Model       string  `yaml:"model"`
	StartTime   float64 `yaml:"start_time"`
	StopTime    float64 `yaml:"stop_time"`
	Steps       int     `yaml:"steps"`
	Tolerance   float64 `yaml:"tolerance,omitempty"`
	LogLevel    string  `yaml:"log_level"`
	Interactive bool    `yaml:"interactive,omitempty"`
	StepMode    string  `yaml:"step_mode"`
	MaxRetries  int     `yaml:"max_retries"`
	MinStep     float64 `yaml:"min_step"`
	// WarningsProceed keeps the step loop running on Warning outcomes.
	WarningsProceed bool             `yaml:"warnings_proceed,omitempty"`
	Runtime         RuntimeConfig    `yaml:"runtime"`
	Output          OutputConfig     `yaml:"output"`
	MQTT            MQTTConfig       `yaml:"mqtt"`
	ClickHouse      ClickHouseConfig `yaml:"clickhouse"`
}

type RuntimeConfig struct {
	MemoryPages  uint32 `yaml:"memory_pages"`
	OutputBuffer uint32 `yaml:"output_buffer"`
}

type OutputConfig struct {
	// Format is csv, table or none.
	Format   string `yaml:"format"`
	Save     bool   `yaml:"save"`
	StoreDir string `yaml:"store_dir"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	Table    string `yaml:"table"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      DefaultModel,
		StopTime:   DefaultStopTime,
		Steps:      DefaultSteps,
		LogLevel:   "info",
		StepMode:   string(sim.StepFixed),
		MaxRetries: DefaultMaxRetries,
		MinStep:    DefaultMinStep,
		Runtime: RuntimeConfig{
			MemoryPages:  DefaultMemoryPages,
			OutputBuffer: DefaultOutputBuf,
		},
		Output: OutputConfig{
			Format:   "csv",
			StoreDir: DefaultStoreDir,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "wasmsim",
			Topic:    "wasmsim/rows",
			QoS:      1,
		},
		ClickHouse: ClickHouseConfig{
			Addr:     "localhost:9000",
			Database: "default",
			Username: "default",
			Table:    "wasmsim_samples",
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads path on top of base, so fields the file omits keep the
// values of base.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return base, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Sim converts the run settings into a driver configuration.
func (c *Config) Sim() (sim.Config, error) {
	level, ok := dynamo.ParseLogLevel(c.LogLevel)
	if !ok {
		return sim.Config{}, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	mode := sim.StepMode(c.StepMode)
	if mode != sim.StepFixed && mode != sim.StepVariable {
		return sim.Config{}, fmt.Errorf("unknown step mode %q", c.StepMode)
	}
	return sim.Config{
		StartTime:    c.StartTime,
		StopTime:     c.StopTime,
		HasStopTime:  true,
		Steps:        c.Steps,
		Tolerance:    c.Tolerance,
		HasTolerance: c.Tolerance > 0,
		LogLevel:     level,
		Interactive:  c.Interactive,
		StepMode:     mode,
		MaxRetries:   c.MaxRetries,
		MinStep:      c.MinStep,

		WarningsProceed: c.WarningsProceed,
	}, nil
}

func (c *Config) WasmOptions() wasm.Options {
	opts := wasm.DefaultOptions()
	if c.Runtime.MemoryPages > 0 {
		opts.MemoryLimitPages = c.Runtime.MemoryPages
	}
	if c.Runtime.OutputBuffer > 0 {
		opts.OutputBuffer = c.Runtime.OutputBuffer
	}
	return opts
}

func (c *Config) MQTTReporter() report.MQTTConfig {
	return report.MQTTConfig{
		Broker:   c.MQTT.Broker,
		ClientID: c.MQTT.ClientID,
		Username: c.MQTT.Username,
		Password: c.MQTT.Password,
		Topic:    c.MQTT.Topic,
		QoS:      c.MQTT.QoS,
	}
}

func (c *Config) ClickHouseReporter() report.ClickHouseConfig {
	return report.ClickHouseConfig{
		Addr:     c.ClickHouse.Addr,
		Database: c.ClickHouse.Database,
		Username: c.ClickHouse.Username,
		Password: c.ClickHouse.Password,
		Table:    c.ClickHouse.Table,
	}
}

// Package config centralises runtime configuration for the relay service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment where the relay operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// TelemetryConfig controls the OpenTelemetry exporter.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// VenueConfig names the venue connector and its replay capability.
type VenueConfig struct {
	Name    string `yaml:"name"`
	FullLog bool   `yaml:"full_log"`
}

// RelayConfig tunes the dispatch path.
type RelayConfig struct {
	FanoutWorkers int `yaml:"fanout_workers"`
	CommandBuffer int `yaml:"command_buffer"`
}

// SimConfig scripts the simulated venue used for local runs.
type SimConfig struct {
	Orders          int     `yaml:"orders"`
	TradesPerOrder  int     `yaml:"trades_per_order"`
	EventsPerSecond float64 `yaml:"events_per_second"`
	Shuffle         bool    `yaml:"shuffle"`
	Seed            uint64  `yaml:"seed"`
}

// Settings is the configuration tree loaded from defaults, file, and
// environment overrides, in that order.
type Settings struct {
	Environment Environment     `yaml:"environment"`
	LogLevel    string          `yaml:"log_level"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Venue       VenueConfig     `yaml:"venue"`
	Relay       RelayConfig     `yaml:"relay"`
	Sim         SimConfig       `yaml:"sim"`
}

// Default returns the baseline configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		LogLevel:    "info",
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "",
			ServiceName:  "execrelay",
		},
		Venue: VenueConfig{
			Name:    "sim",
			FullLog: true,
		},
		Relay: RelayConfig{
			FanoutWorkers: 0,
			CommandBuffer: 64,
		},
		Sim: SimConfig{
			Orders:          100,
			TradesPerOrder:  3,
			EventsPerSecond: 500,
			Shuffle:         true,
			Seed:            1,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file stage.
func Load(path string) (Settings, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Settings{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	return fromEnv(cfg), nil
}

// FromEnv applies environment variable overrides on top of the defaults.
func FromEnv() Settings {
	return fromEnv(Default())
}

func fromEnv(cfg Settings) Settings {
	if v := envString("EXECRELAY_ENV"); v != "" {
		cfg.Environment = Environment(strings.ToLower(v))
	}
	if v := envString("EXECRELAY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := envString("EXECRELAY_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := envString("EXECRELAY_SERVICE_NAME"); v != "" {
		cfg.Telemetry.ServiceName = v
	}
	if v := envString("EXECRELAY_VENUE"); v != "" {
		cfg.Venue.Name = v
	}
	if v, ok := envBool("EXECRELAY_FULL_LOG"); ok {
		cfg.Venue.FullLog = v
	}
	if v, ok := envInt("EXECRELAY_FANOUT_WORKERS"); ok {
		cfg.Relay.FanoutWorkers = v
	}
	if v, ok := envInt("EXECRELAY_COMMAND_BUFFER"); ok {
		cfg.Relay.CommandBuffer = v
	}
	if v, ok := envInt("EXECRELAY_SIM_ORDERS"); ok {
		cfg.Sim.Orders = v
	}
	if v, ok := envInt("EXECRELAY_SIM_TRADES"); ok {
		cfg.Sim.TradesPerOrder = v
	}
	if v, ok := envFloat("EXECRELAY_SIM_RATE"); ok {
		cfg.Sim.EventsPerSecond = v
	}
	return cfg
}

// Validate reports configuration values the service cannot run with.
func (s Settings) Validate() error {
	if s.Venue.Name == "" {
		return fmt.Errorf("venue name required")
	}
	if s.Relay.CommandBuffer < 0 {
		return fmt.Errorf("command buffer must not be negative")
	}
	if s.Sim.EventsPerSecond < 0 {
		return fmt.Errorf("sim event rate must not be negative")
	}
	return nil
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envBool(key string) (bool, bool) {
	raw := envString(key)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	raw := envString(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envFloat(key string) (float64, bool) {
	raw := envString(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

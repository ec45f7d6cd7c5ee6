// Package config loads the process-wide settings for the KNX host stack.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the KNX host stack.
// All configuration is loaded from YAML; a few fields (device address, bus
// multicast address, GAD map path, history InfluxDB token, monitor JWT
// secret) can also be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Bus       BusConfig       `yaml:"bus"`
	Bindings  BindingsConfig  `yaml:"bindings"`
	Logging   LoggingConfig   `yaml:"logging"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// DeviceConfig identifies this host on the bus.
type DeviceConfig struct {
	// IndividualAddress is this host's address, "area.line.device" (e.g. "1.1.250").
	IndividualAddress string `yaml:"individual_address"`
}

// BusConfig holds the KNXnet/IP routing and priority-queue settings of spec §6.
type BusConfig struct {
	// AddressLevel selects 2-level ("main/sub") or 3-level ("main/middle/sub")
	// group address formatting. Both parse to the same 16-bit key regardless.
	AddressLevel int `yaml:"address_level"`

	MulticastAddr string `yaml:"multicast_addr"`
	MulticastPort int    `yaml:"multicast_port"`
	TTL           int    `yaml:"ttl"`
	Loopback      bool   `yaml:"loopback"`

	// ConfirmTimeoutSec bounds how long dataReq waits for an L_Data.con.
	ConfirmTimeoutSec int `yaml:"confirm_timeout_sec"`

	// PriorityDistribution is the weighted round-robin credit per round,
	// ordered [system, urgent, normal, low].
	PriorityDistribution [4]int `yaml:"priority_distribution"`

	// QueueHighWaterMark bounds the total number of queued items across all
	// priority classes; beyond it, the oldest item of the lowest-priority
	// non-empty class is dropped to make room for the new one.
	QueueHighWaterMark int `yaml:"queue_high_water_mark"`

	// ReceiveTimeoutSec is the transceiver socket read timeout; on expiry
	// the receive loop simply checks the running flag and loops.
	ReceiveTimeoutSec int `yaml:"receive_timeout_sec"`
}

// BindingsConfig points at the GAD map file (name -> group address) that
// weave() resolves group-object declarations against.
type BindingsConfig struct {
	GADMapPath string `yaml:"gad_map_path"`

	// FunctionBlocksPath points at the declarative functional-block file
	// the CLI weaves at startup (see binding.LoadFunctionalBlocks). A
	// library embedder that registers blocks in Go code directly instead
	// may leave this unset.
	FunctionBlocksPath string `yaml:"function_blocks_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DiscoveryConfig enables the passive address-discovery recorder (§4.10).
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// HistoryConfig enables the InfluxDB datapoint history recorder (§4.11).
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	InfluxURL     string `yaml:"influx_url"`
	InfluxToken   string `yaml:"influx_token"`
	InfluxOrg     string `yaml:"influx_org"`
	InfluxBucket  string `yaml:"influx_bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TelemetryConfig enables the MQTT notifier telemetry sink (§4.8).
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTClientID string `yaml:"mqtt_client_id"`

	// QoS is the publish quality-of-service level (0, 1, or 2).
	QoS int `yaml:"qos"`

	// ReconnectInitialDelaySec and ReconnectMaxDelaySec bound the
	// exponential backoff used by the broker client's auto-reconnect.
	ReconnectInitialDelaySec int `yaml:"reconnect_initial_delay_sec"`
	ReconnectMaxDelaySec     int `yaml:"reconnect_max_delay_sec"`
}

// MonitorConfig enables the read-only HTTP/WebSocket introspection API (§4.12).
type MonitorConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ListenAddr   string `yaml:"listen_addr"`
	AuthRequired bool   `yaml:"auth_required"`
	JWTSecret    string `yaml:"jwt_secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KNXHOST_SECTION_KEY.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			AddressLevel:         3,
			MulticastAddr:        "224.0.23.12",
			MulticastPort:        3671,
			TTL:                  32,
			Loopback:             false,
			ConfirmTimeoutSec:    3,
			PriorityDistribution: [4]int{1, 1, 1, 1},
			QueueHighWaterMark:   1000,
			ReceiveTimeoutSec:    1,
		},
		Bindings: BindingsConfig{
			GADMapPath: "./gad-map.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Discovery: DiscoveryConfig{
			DBPath: "./knxhost-discovery.db",
		},
		Telemetry: TelemetryConfig{
			MQTTClientID:             "knxhost",
			QoS:                      1,
			ReconnectInitialDelaySec: 1,
			ReconnectMaxDelaySec:     60,
		},
		Monitor: MonitorConfig{
			ListenAddr: ":8787",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KNXHOST_DEVICE_INDIVIDUAL_ADDRESS"); v != "" {
		cfg.Device.IndividualAddress = v
	}
	if v := os.Getenv("KNXHOST_BUS_MULTICAST_ADDR"); v != "" {
		cfg.Bus.MulticastAddr = v
	}
	if v := os.Getenv("KNXHOST_BINDINGS_GAD_MAP_PATH"); v != "" {
		cfg.Bindings.GADMapPath = v
	}
	if v := os.Getenv("KNXHOST_HISTORY_INFLUX_TOKEN"); v != "" {
		cfg.History.InfluxToken = v
	}
	if v := os.Getenv("KNXHOST_MONITOR_JWT_SECRET"); v != "" {
		cfg.Monitor.JWTSecret = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.IndividualAddress == "" {
		errs = append(errs, "device.individual_address is required")
	}

	if c.Bus.AddressLevel != 2 && c.Bus.AddressLevel != 3 {
		errs = append(errs, "bus.address_level must be 2 or 3")
	}
	if c.Bus.MulticastPort < 1 || c.Bus.MulticastPort > 65535 {
		errs = append(errs, "bus.multicast_port must be between 1 and 65535")
	}
	for _, credit := range c.Bus.PriorityDistribution {
		if credit < 0 {
			errs = append(errs, "bus.priority_distribution entries must be non-negative")
			break
		}
	}
	if c.Bindings.GADMapPath == "" {
		errs = append(errs, "bindings.gad_map_path is required")
	}

	if c.Monitor.Enabled && c.Monitor.AuthRequired && c.Monitor.JWTSecret == "" {
		errs = append(errs, "monitor.jwt_secret is required when monitor.auth_required is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ConfirmTimeout returns the confirm timeout as a Duration.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Bus.ConfirmTimeoutSec) * time.Second
}

// ReceiveTimeout returns the transceiver receive timeout as a Duration.
func (c *Config) ReceiveTimeout() time.Duration {
	return time.Duration(c.Bus.ReceiveTimeoutSec) * time.Second
}

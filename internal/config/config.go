package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Source   string     `yaml:"source"` // "sim" or "ble"
	LogLevel string     `yaml:"log_level"`
	Scan     ScanConfig `yaml:"scan"`
	BLE      BLEConfig  `yaml:"ble"`
	Sim      SimConfig  `yaml:"sim"`
}

// ScanConfig holds discovery settings.
type ScanConfig struct {
	Window time.Duration `yaml:"window"`
}

// BLEConfig holds settings for the hardware source.
type BLEConfig struct {
	// BatteryServiceOnly limits scans to peripherals advertising the
	// standard Battery Service.
	BatteryServiceOnly bool `yaml:"battery_service_only"`
	// BatteryReads caps concurrent battery reads during a refresh.
	BatteryReads int `yaml:"battery_reads"`
}

// SimConfig holds settings for the simulated source.
type SimConfig struct {
	Seed        uint64        `yaml:"seed"` // 0 seeds from the clock
	Unavailable bool          `yaml:"unavailable"`
	Latency     LatencyConfig `yaml:"latency"`
}

// LatencyConfig holds the simulated per-operation delays.
type LatencyConfig struct {
	List      time.Duration `yaml:"list"`
	Toggle    time.Duration `yaml:"toggle"`
	Rename    time.Duration `yaml:"rename"`
	Battery   time.Duration `yaml:"battery"`
	Discovery time.Duration `yaml:"discovery"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "btdeck")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Source:   "sim",
		LogLevel: "info",
		Scan: ScanConfig{
			Window: 5 * time.Second,
		},
		BLE: BLEConfig{
			BatteryServiceOnly: true,
			BatteryReads:       4,
		},
		Sim: SimConfig{
			Latency: LatencyConfig{
				List:      time.Second,
				Toggle:    500 * time.Millisecond,
				Rename:    300 * time.Millisecond,
				Battery:   700 * time.Millisecond,
				Discovery: 400 * time.Millisecond,
			},
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

const defaultHeader = `# btdeck configuration
# source: "sim" for the built-in simulator, "ble" for the host Bluetooth adapter.
`

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there yet. It returns the path written, or "" if a config already
// existed.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Source {
	case "sim", "ble":
	default:
		return fmt.Errorf("source must be \"sim\" or \"ble\", got %q", c.Source)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Scan.Window <= 0 {
		return fmt.Errorf("scan.window must be > 0")
	}

	if c.BLE.BatteryReads <= 0 {
		return fmt.Errorf("ble.battery_reads must be > 0")
	}

	l := c.Sim.Latency
	for name, d := range map[string]time.Duration{
		"list": l.List, "toggle": l.Toggle, "rename": l.Rename,
		"battery": l.Battery, "discovery": l.Discovery,
	} {
		if d < 0 {
			return fmt.Errorf("sim.latency.%s must not be negative", name)
		}
	}

	return nil
}

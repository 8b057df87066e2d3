package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openlisa/openlisa-go/transport"
)

// Config holds lisactl settings. Connection flags override the file; the
// file overrides defaults.
type Config struct {
	Connection ConnectionConfig `yaml:"connection" json:"connection"`
	Format     string           `yaml:"format" json:"format"`      // "json" or "native"
	LogLevel   string           `yaml:"log_level" json:"logLevel"` // logrus level name
}

type ConnectionConfig struct {
	Mode       string `yaml:"mode" json:"mode"` // "tcp", "serial", "websocket"
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	SerialPort string `yaml:"serial_port" json:"serialPort"` // empty = autodiscover
	BaudRate   int    `yaml:"baud_rate" json:"baudRate"`
	URL        string `yaml:"url" json:"url"` // websocket endpoint
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Mode:     "tcp",
			Host:     "127.0.0.1",
			Port:     8080,
			BaudRate: transport.DefaultBaudRate,
		},
		Format:   "json",
		LogLevel: "warning",
	}
}

// DefaultConfigPath is where LoadConfig looks when --config is not given.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lisactl.yaml"
	}
	return filepath.Join(home, ".config", "lisactl", "config.yaml")
}

// LoadConfig reads config from a YAML file, then applies .env and
// environment variable overrides. Falls back to defaults if the file is
// missing or unreadable.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			cfg = DefaultConfig()
		}
	}

	for _, ep := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		loadEnvFile(ep)
	}
	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
// Real environment variables take precedence.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: LISA_MODE, LISA_HOST, LISA_PORT, LISA_SERIAL_PORT, LISA_BAUD,
// LISA_URL, LISA_FORMAT, LISA_LOG_LEVEL
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LISA_MODE"); v != "" {
		c.Connection.Mode = v
	}
	if v := os.Getenv("LISA_HOST"); v != "" {
		c.Connection.Host = v
	}
	if v := os.Getenv("LISA_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Connection.Port = n
		}
	}
	if v := os.Getenv("LISA_SERIAL_PORT"); v != "" {
		c.Connection.SerialPort = v
	}
	if v := os.Getenv("LISA_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Connection.BaudRate = n
		}
	}
	if v := os.Getenv("LISA_URL"); v != "" {
		c.Connection.URL = v
	}
	if v := os.Getenv("LISA_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("LISA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

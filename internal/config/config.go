// Package config loads service configuration from defaults, an optional
// YAML file and KDS_-prefixed environment variables, in that order of
// precedence (later sources win).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "KDS_"

// Config is the fully resolved service configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Web     WebConfig     `koanf:"web"`
	Backend BackendConfig `koanf:"backend"`
	NATS    NATSConfig    `koanf:"nats"`
	Poll    PollConfig    `koanf:"poll"`
	SLA     SLAConfig     `koanf:"sla"`
	Printer PrinterConfig `koanf:"printer"`
	Session SessionConfig `koanf:"session"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type WebConfig struct {
	Port int `koanf:"port"`
}

type BackendConfig struct {
	URL     string `koanf:"url"`
	Kitchen string `koanf:"kitchen"`
	Station string `koanf:"station"`
	Branch  string `koanf:"branch"`
}

type NATSConfig struct {
	URL string `koanf:"url"`
}

type PollConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type SLAConfig struct {
	Warning  time.Duration `koanf:"warning"`
	Critical time.Duration `koanf:"critical"`
	Interval time.Duration `koanf:"interval"`
}

// PrinterConfig selects and parameterizes the print transport. An empty
// Transport means auto-selection by capability.
type PrinterConfig struct {
	Transport    string `koanf:"transport"`
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	SerialPort   string `koanf:"serial_port"`
	BaudRate     int    `koanf:"baud_rate"`
	AgentURL     string `koanf:"agent_url"`
	PrinterName  string `koanf:"name"`
	PaperWidthMM int    `koanf:"paper_width_mm"`
	Codepage     string `koanf:"codepage"`
}

type SessionConfig struct {
	File string `koanf:"file"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log.level":     "info",
		"web.port":      8084,
		"backend.url":   "http://localhost:8080",
		"nats.url":      "nats://localhost:4222",
		"poll.interval": 30 * time.Second,
		"sla.warning":   5 * time.Minute,
		"sla.critical":  10 * time.Minute,
		"sla.interval":  15 * time.Second,
		"session.file":  "kds-session.json",
	}
}

// Load resolves the configuration. path names an optional YAML file; when
// empty only defaults and environment variables apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	// KDS_BACKEND_URL -> backend.url
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.SLA.Warning >= c.SLA.Critical {
		return fmt.Errorf("sla.warning (%s) must be below sla.critical (%s)", c.SLA.Warning, c.SLA.Critical)
	}
	return nil
}

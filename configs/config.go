package configs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// SeedTicket is a ticket preloaded at startup from the config file, useful
// for demos and fixtures.
type SeedTicket struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Priority    string   `yaml:"priority,omitempty"`
	Category    string   `yaml:"category,omitempty"`
	Assignee    string   `yaml:"assignee,omitempty"`
	Reporter    string   `yaml:"reporter"`
	Tags        []string `yaml:"tags,omitempty"`
}

// FileConfig defines the structure loaded from the YAML configuration file.
type FileConfig struct {
	ServerName        string       `yaml:"server_name"`
	ServerVersion     string       `yaml:"server_version"`
	ServerDescription string       `yaml:"server_description"`
	SeedTickets       []SeedTicket `yaml:"seed_tickets"`
}

// Config holds the final application configuration, merged from file and
// environment variables. Fields are loaded from environment variables with
// the prefix "TICKETBRIDGE_", overriding file settings.
type Config struct {
	// Config File Path (loaded first from env)
	ConfigFilePath string `envconfig:"CONFIG_FILE" default:""`

	// File-loaded fields
	ServerName        string
	ServerVersion     string
	ServerDescription string
	SeedTickets       []SeedTicket

	// Environment-overridable fields
	ListenAddr               string        `envconfig:"LISTEN_ADDR" default:":8080"`
	APIListenAddr            string        `envconfig:"API_LISTEN_ADDR" default:":8081"`
	DatabaseDSN              string        `envconfig:"DATABASE_DSN" default:"file:ticketbridge.db"`
	HTTPClientTimeout        time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`
	ShutdownTimeout          time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	ServerReadTimeout        time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	ServerWriteTimeout       time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	ServerIdleTimeout        time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	DiscoveryCacheTTL        time.Duration `envconfig:"DISCOVERY_CACHE_TTL" default:"5m"`
	InvokeTimeout            time.Duration `envconfig:"INVOKE_TIMEOUT" default:"30s"`
	InvokeConcurrency        int64         `envconfig:"INVOKE_CONCURRENCY" default:"8"`
	OtelExporterOtlpEndpoint string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool          `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	LogLevel                 string        `envconfig:"LOG_LEVEL" default:"info"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration first from environment variables (to get the
// file path), then from the YAML file if one is specified, and finally
// merges/overrides with environment variables again.
func Load() (*Config, error) {
	var initialCfg Config
	if err := envconfig.Process("ticketbridge", &initialCfg); err != nil {
		return nil, fmt.Errorf("failed to process initial environment variables: %w", err)
	}

	fileCfg := FileConfig{}
	if initialCfg.ConfigFilePath != "" {
		yamlFile, err := os.ReadFile(initialCfg.ConfigFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
		if err := yaml.Unmarshal(yamlFile, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
		slog.Info("Loaded configuration from file.", "path", initialCfg.ConfigFilePath)
	} else {
		slog.Info("No config file path specified (TICKETBRIDGE_CONFIG_FILE), using defaults/env vars only.")
	}

	finalCfg := initialCfg
	finalCfg.ServerName = fileCfg.ServerName
	finalCfg.ServerVersion = fileCfg.ServerVersion
	finalCfg.ServerDescription = fileCfg.ServerDescription
	finalCfg.SeedTickets = fileCfg.SeedTickets

	if finalCfg.ServerName == "" {
		finalCfg.ServerName = "ticketbridge"
	}
	if finalCfg.ServerVersion == "" {
		finalCfg.ServerVersion = "0.1.0"
	}
	if finalCfg.ServerDescription == "" {
		finalCfg.ServerDescription = "Ticketing system exposed as MCP tools"
	}

	// Process environment variables again to allow overrides over file settings.
	if err := envconfig.Process("ticketbridge", &finalCfg); err != nil {
		return nil, fmt.Errorf("failed to process overriding environment variables: %w", err)
	}

	return &finalCfg, nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models screenline.yml.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Submission struct {
		SourceTag string `yaml:"source_tag"`
	} `yaml:"submission"`
	Sinks struct {
		Sheets struct {
			URL string `yaml:"url"`
		} `yaml:"sheets"`
		Email struct {
			URL    string `yaml:"url"`
			APIKey string `yaml:"api_key"`
			To     string `yaml:"to"`
			From   string `yaml:"from"`
		} `yaml:"email"`
		Records struct {
			APIKey string `yaml:"api_key"`
			BaseID string `yaml:"base_id"`
			Table  string `yaml:"table"`
		} `yaml:"records"`
	} `yaml:"sinks"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with screenline config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist. Every
// command except serve works without a config.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config meets required structure. Sinks are each
// optional but must be complete when present.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.logging.format %q is not one of json, console", c.Logging.Format)
	}
	if c.Sinks.Email.URL != "" || c.Sinks.Email.APIKey != "" {
		if c.Sinks.Email.URL == "" {
			return fmt.Errorf("config.sinks.email.url is required when email is configured")
		}
		if c.Sinks.Email.APIKey == "" {
			return fmt.Errorf("config.sinks.email.api_key is required when email is configured")
		}
		if c.Sinks.Email.To == "" {
			return fmt.Errorf("config.sinks.email.to is required when email is configured")
		}
		if c.Sinks.Email.From == "" {
			return fmt.Errorf("config.sinks.email.from is required when email is configured")
		}
	}
	if c.Sinks.Records.APIKey != "" || c.Sinks.Records.BaseID != "" {
		if c.Sinks.Records.APIKey == "" {
			return fmt.Errorf("config.sinks.records.api_key is required when records is configured")
		}
		if c.Sinks.Records.BaseID == "" {
			return fmt.Errorf("config.sinks.records.base_id is required when records is configured")
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "screenline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	cfg, _ := FromYAML([]byte(defaultTemplate))
	if cfg == nil {
		cfg = &Config{}
	}
	return cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `server:
  addr: ":8080"

logging:
  level: info
  format: json

submission:
  source_tag: "STOP-BANG Assessment"

sinks:
  sheets:
    url: ""

  email:
    url: ""
    api_key: ""
    to: ""
    from: ""

  records:
    api_key: ""
    base_id: ""
    table: "Consultations"
`

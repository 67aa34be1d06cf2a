package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models agreeline.yml.
type Config struct {
	Node struct {
		// URL of the remote context node's REST API.
		URL string `yaml:"url"`
		// ApplicationID identifies the context application to install.
		// Required only by the REST fallback path for context creation.
		ApplicationID  string `yaml:"application_id"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"node"`
	Server struct {
		Listen                 string `yaml:"listen"`
		BasePath               string `yaml:"base_path"`
		JWTSecret              string `yaml:"jwt_secret"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header"`
	} `yaml:"server"`
	Defaults struct {
		VotingThreshold int `yaml:"voting_threshold"`
	} `yaml:"defaults"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with agl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Node.URL == "" {
		return fmt.Errorf("config.node.url is required")
	}
	if c.Node.TimeoutSeconds < 0 {
		return fmt.Errorf("config.node.timeout_seconds must not be negative")
	}
	if c.Defaults.VotingThreshold < 50 || c.Defaults.VotingThreshold > 100 {
		return fmt.Errorf("config.defaults.voting_threshold must be between 50 and 100")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "agreeline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `node:
  url: http://localhost:2428
  application_id: ""
  timeout_seconds: 30

server:
  listen: 127.0.0.1:8090
  base_path: /v0
  jwt_secret: ""
  allow_legacy_actor_header: false

defaults:
  voting_threshold: 75
`

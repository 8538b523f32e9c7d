package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.Prober.Endpoint == "" {
		return nil, fmt.Errorf("prober.endpoint is required")
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Prober.Kind == "" {
		cfg.Prober.Kind = "http"
	}
	if cfg.Prober.Name == "" {
		cfg.Prober.Name = "service"
	}
	if cfg.Auth.SnapshotTTL == 0 {
		cfg.Auth.SnapshotTTL = time.Hour
	}
}

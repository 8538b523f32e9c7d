package config

import (
	"time"

	"github.com/vietddude/shield/internal/connectivity"
	redisclient "github.com/vietddude/shield/internal/infra/redis"
	"github.com/vietddude/shield/internal/infra/storage/postgres"
	"github.com/vietddude/shield/internal/perf"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig        `yaml:"server"`
	Prober       ProberConfig        `yaml:"prober"`
	Connectivity connectivity.Config `yaml:"connectivity"`
	Performance  perf.Config         `yaml:"performance"`
	Auth         AuthConfig          `yaml:"auth"`
	Redis        redisclient.Config  `yaml:"redis"`
	Database     postgres.Config     `yaml:"database"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ProberConfig holds settings for the service-reachability probe.
type ProberConfig struct {
	Kind     string `yaml:"kind"` // "http" or "grpc"
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"` // grpc health service name, optional
}

// AuthConfig holds auth snapshot settings.
type AuthConfig struct {
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

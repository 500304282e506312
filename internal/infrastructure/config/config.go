package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config combines all daemon configuration sections
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	API      APIConfig      `mapstructure:"api"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
	Health   HealthConfig   `mapstructure:"health"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig controls the persistence gateway
type DatabaseConfig struct {
	Type         string        `mapstructure:"type" validate:"required,oneof=postgres sqlite"`
	URL          string        `mapstructure:"url"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Name         string        `mapstructure:"name"`
	SSLMode      string        `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	Path         string        `mapstructure:"path"` // sqlite only
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	Pool         PoolConfig    `mapstructure:"pool"`
}

// PoolConfig controls the connection pool
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// APIConfig controls the remote API client
type APIConfig struct {
	BaseURL          string        `mapstructure:"base_url" validate:"required,url"`
	RateLimit        float64       `mapstructure:"rate_limit" validate:"min=0"` // requests/s per player
	Burst            int           `mapstructure:"burst" validate:"min=1"`
	RetryMax         int           `mapstructure:"retry_max" validate:"min=0"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`
	CircuitThreshold int           `mapstructure:"circuit_threshold"`
	CircuitCooldown  time.Duration `mapstructure:"circuit_cooldown"`
}

// DaemonConfig controls the supervisor, locks, caches, and socket server
type DaemonConfig struct {
	SocketPath       string        `mapstructure:"socket_path" validate:"required"`
	StateDir         string        `mapstructure:"state_dir"`
	PidFile          string        `mapstructure:"pid_file"`
	ShutdownDeadline time.Duration `mapstructure:"shutdown_deadline"`
	MaxRestarts      int           `mapstructure:"max_restarts" validate:"min=0"`
	RestartBackoff   time.Duration `mapstructure:"restart_backoff"`
	LockStaleTimeout time.Duration `mapstructure:"lock_stale_timeout"`
	WaypointTTL      time.Duration `mapstructure:"waypoint_ttl"`
}

// HealthConfig controls the ship health monitor
type HealthConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	TransitGrace     time.Duration `mapstructure:"transit_grace"`
	IdleThreshold    time.Duration `mapstructure:"idle_threshold"`
	RecoveryCooldown time.Duration `mapstructure:"recovery_cooldown"`
	MaxRecoveries    int           `mapstructure:"max_recoveries" validate:"min=0"`
}

// LoggingConfig controls daemon logging
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"` // text or json
}

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest)
// 2. Config file
// 3. Defaults (lowest)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env if present; missing file is fine
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fleetd")
	}

	v.SetEnvPrefix("FLEETD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// DATABASE_URL works without the FLEETD_ prefix for deploy platforms
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("database.url", dbURL)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// MustLoadConfig loads configuration and panics on error
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

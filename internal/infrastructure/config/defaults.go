package config

import (
	"path/filepath"
	"time"
)

// SetDefaults fills in zero values with production defaults
func SetDefaults(cfg *Config) {
	// Database
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.QueryTimeout == 0 {
		cfg.Database.QueryTimeout = 30 * time.Second
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 5
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 2
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 30 * time.Minute
	}

	// API client
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.spacetraders.io/v2"
	}
	if cfg.API.RateLimit == 0 {
		cfg.API.RateLimit = 2
	}
	if cfg.API.Burst == 0 {
		cfg.API.Burst = 2
	}
	if cfg.API.RetryMax == 0 {
		cfg.API.RetryMax = 5
	}
	if cfg.API.BackoffBase == 0 {
		cfg.API.BackoffBase = time.Second
	}
	if cfg.API.BackoffCap == 0 {
		cfg.API.BackoffCap = 30 * time.Second
	}
	if cfg.API.CircuitThreshold == 0 {
		cfg.API.CircuitThreshold = 5
	}
	if cfg.API.CircuitCooldown == 0 {
		cfg.API.CircuitCooldown = 60 * time.Second
	}

	// Daemon
	if cfg.Daemon.StateDir == "" {
		cfg.Daemon.StateDir = "/var/lib/fleetd"
	}
	if cfg.Daemon.SocketPath == "" {
		cfg.Daemon.SocketPath = filepath.Join(cfg.Daemon.StateDir, "daemon.sock")
	}
	if cfg.Daemon.PidFile == "" {
		cfg.Daemon.PidFile = filepath.Join(cfg.Daemon.StateDir, "daemon.pid")
	}
	if cfg.Daemon.ShutdownDeadline == 0 {
		cfg.Daemon.ShutdownDeadline = 30 * time.Second
	}
	if cfg.Daemon.MaxRestarts == 0 {
		cfg.Daemon.MaxRestarts = 3
	}
	if cfg.Daemon.RestartBackoff == 0 {
		cfg.Daemon.RestartBackoff = 5 * time.Second
	}
	if cfg.Daemon.LockStaleTimeout == 0 {
		cfg.Daemon.LockStaleTimeout = 30 * time.Minute
	}
	if cfg.Daemon.WaypointTTL == 0 {
		cfg.Daemon.WaypointTTL = 2 * time.Hour
	}

	// Health monitor
	if cfg.Health.Interval == 0 {
		cfg.Health.Interval = 30 * time.Second
	}
	if cfg.Health.TransitGrace == 0 {
		cfg.Health.TransitGrace = 60 * time.Second
	}
	if cfg.Health.IdleThreshold == 0 {
		cfg.Health.IdleThreshold = 15 * time.Minute
	}
	if cfg.Health.RecoveryCooldown == 0 {
		cfg.Health.RecoveryCooldown = 60 * time.Second
	}
	if cfg.Health.MaxRecoveries == 0 {
		cfg.Health.MaxRecoveries = 3
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/adapters/cache"
	"github.com/andrescamacho/fleetd/internal/adapters/daemonrpc"
	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/application/factories"
	"github.com/andrescamacho/fleetd/internal/application/health"
	"github.com/andrescamacho/fleetd/internal/application/locks"
	"github.com/andrescamacho/fleetd/internal/application/player"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/internal/infrastructure/config"
	"github.com/andrescamacho/fleetd/internal/infrastructure/database"
	"github.com/andrescamacho/fleetd/internal/infrastructure/pidfile"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:     "fleetd",
		Short:   "Autonomous fleet management daemon",
		Version: version,
	}
	root.AddCommand(newServeCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	var configPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cfg, force)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")
	cmd.Flags().BoolVar(&force, "force", false, "take over the pid lock even if another daemon appears alive")
	return cmd
}

// serve assembles the daemon and blocks until a shutdown signal.
// Any error here is a fatal startup failure and exits non-zero.
func serve(cfg *config.Config, force bool) error {
	log.Printf("fleetd %s starting", version)

	if err := os.MkdirAll(cfg.Daemon.StateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pf := pidfile.New(cfg.Daemon.PidFile)
	if err := pf.Acquire(force); err != nil {
		return fmt.Errorf("failed to acquire pid lock: %w", err)
	}
	defer func() {
		if err := pf.Release(); err != nil {
			log.Printf("failed to release pid file: %v", err)
		}
	}()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := database.EnsureIndexes(db); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	clock := shared.NewRealClock()

	apiClient := api.NewHTTPClientWithConfig(api.ClientConfig{
		BaseURL:            cfg.API.BaseURL,
		MaxRetries:         cfg.API.RetryMax,
		BackoffBase:        cfg.API.BackoffBase,
		BackoffCap:         cfg.API.BackoffCap,
		RateLimit:          cfg.API.RateLimit,
		RateBurst:          cfg.API.Burst,
		BreakerMaxFailures: cfg.API.CircuitThreshold,
		BreakerTimeout:     cfg.API.CircuitCooldown,
		Clock:              clock,
	})

	playerRepo := persistence.NewGormPlayerRepository(db, clock)
	waypointRepo := persistence.NewGormWaypointRepository(db, clock)
	graphRepo := persistence.NewGormGraphRepository(db)
	containerRepo := persistence.NewGormContainerRepository(db, clock)
	logRepo := persistence.NewGormContainerLogRepository(db, clock)
	assignmentRepo := persistence.NewGormShipAssignmentRepository(db, clock)
	marketRepo := persistence.NewGormMarketRepository(db, clock)
	contractRepo := persistence.NewGormContractRepository(db, clock)
	operationsRepo := persistence.NewGormOperationsRepository(db, clock)

	waypointCache := cache.NewWaypointCache(waypointRepo, apiClient, playerRepo, cfg.Daemon.WaypointTTL, clock)
	graphCache := cache.NewGraphCache(graphRepo, waypointCache, clock)
	lockManager := locks.NewManager(assignmentRepo, cfg.Daemon.LockStaleTimeout)

	mediator := common.NewMediator()
	mediator.Use(common.LoggingMiddleware(clock))
	mediator.Use(common.ValidationMiddleware())

	sub := &supervisor.Substrate{
		Clock:      clock,
		API:        apiClient,
		Players:    playerRepo,
		Containers: containerRepo,
		Logs:       logRepo,
		Waypoints:  waypointCache,
		Graphs:     graphCache,
		Locks:      lockManager,
		Markets:    marketRepo,
		Contracts:  contractRepo,
		Operations: operationsRepo,
		Mediator:   mediator,
		Config:     cfg,
	}

	sup := supervisor.New(sub, supervisor.Options{
		ShutdownDeadline: cfg.Daemon.ShutdownDeadline,
		RestartBackoff:   cfg.Daemon.RestartBackoff,
	})
	// Coordinators spawn their workers through the supervisor itself
	sub.Spawner = sup
	factories.RegisterAll(sup)

	if err := factories.RegisterHandlers(mediator, sup, clock); err != nil {
		return fmt.Errorf("failed to register container handlers: %w", err)
	}
	if err := player.NewHandlers(apiClient, playerRepo).Register(mediator); err != nil {
		return fmt.Errorf("failed to register player handlers: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resume what survived the previous run and drop assignments whose
	// container did not
	if err := sup.RecoverStartup(ctx); err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	monitor := health.New(apiClient, playerRepo, containerRepo, logRepo,
		lockManager, sup.LiveContainerIDs, clock, health.Options{
			Interval:         cfg.Health.Interval,
			TransitGrace:     cfg.Health.TransitGrace,
			IdleThreshold:    cfg.Health.IdleThreshold,
			RecoveryCooldown: cfg.Health.RecoveryCooldown,
			MaxRecoveries:    cfg.Health.MaxRecoveries,
		})
	go monitor.Run(ctx)

	socketPath := cfg.Daemon.SocketPath
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	service := daemonrpc.NewService(sup, mediator, containerRepo, logRepo, version)
	server, err := daemonrpc.NewServer(service, socketPath)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve()
	}()
	log.Printf("daemon listening on %s", socketPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("received %s, shutting down", sig)
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	cancel()
	sup.StopAll(context.Background())
	server.Shutdown()
	log.Printf("daemon stopped")
	return nil
}

package supervisor

import (
	"context"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/adapters/cache"
	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/application/locks"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/internal/infrastructure/config"
)

// ContainerStore is the persistence surface the supervisor writes
// container state through
type ContainerStore interface {
	Save(ctx context.Context, c *container.Container) error
	FindByID(ctx context.Context, id string, playerID int) (*container.Container, error)
	FindNonTerminal(ctx context.Context) ([]*container.Container, error)
}

// LogStore persists container log entries
type LogStore interface {
	Log(ctx context.Context, containerID string, playerID int, level, message string, metadata map[string]interface{}) error
}

// Spawner starts child containers on behalf of coordinator runners.
// Satisfied by the supervisor; wired after construction because the
// supervisor itself is built around the substrate.
type Spawner interface {
	StartContainer(ctx context.Context, c *container.Container) error
}

// Substrate bundles the shared collaborators every runner receives:
// the clock, the API client, the repositories, the caches, and the
// lock manager. Handlers and factories never reach for globals.
type Substrate struct {
	Clock      shared.Clock
	API        api.Client
	Players    *persistence.GormPlayerRepository
	Containers ContainerStore
	Logs       LogStore
	Waypoints  *cache.WaypointCache
	Graphs     *cache.GraphCache
	Locks      *locks.Manager
	Markets    *persistence.GormMarketRepository
	Contracts  *persistence.GormContractRepository
	Operations *persistence.GormOperationsRepository
	Mediator   common.Mediator
	Config     *config.Config
	Spawner    Spawner
}

// containerLogger adapts the log store to the per-container logger
// runners write progress through
type containerLogger struct {
	logs        LogStore
	containerID string
	playerID    int
}

func (l *containerLogger) Log(level, message string, metadata map[string]interface{}) {
	if l.logs == nil {
		return
	}
	// Best effort: a failed log write never interrupts the runner
	_ = l.logs.Log(context.Background(), l.containerID, l.playerID, level, message, metadata)
}

// NewContainerLogger builds a logger scoped to one container
func NewContainerLogger(logs LogStore, containerID string, playerID int) common.ContainerLogger {
	return &containerLogger{logs: logs, containerID: containerID, playerID: playerID}
}

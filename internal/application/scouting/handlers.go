package scouting

import (
	"context"
	"fmt"

	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/application/ship"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/pkg/utils"
)

// StartScoutTourCommand requests a SCOUT_TOUR container for one ship.
// Markets is optional; absent, the tour covers every marketplace in
// the system. Iterations is the number of complete tours (-1 forever).
type StartScoutTourCommand struct {
	PlayerID     int    `validate:"required,gt=0"`
	ShipSymbol   string `validate:"required"`
	SystemSymbol string `validate:"required"`
	Markets      []string
	Iterations   int
}

// StartScoutMarketsCommand requests a SCOUT_MARKETS coordinator
// spreading a system's marketplaces across a fleet
type StartScoutMarketsCommand struct {
	PlayerID     int      `validate:"required,gt=0"`
	SystemSymbol string   `validate:"required"`
	ShipSymbols  []string `validate:"required,min=1"`
	Iterations   int
}

// Handlers registers the scouting containers
type Handlers struct {
	sup   *supervisor.Supervisor
	clock shared.Clock
}

// NewHandlers creates the scouting handlers
func NewHandlers(sup *supervisor.Supervisor, clock shared.Clock) *Handlers {
	return &Handlers{sup: sup, clock: clock}
}

// Register wires the scouting commands into the mediator
func (h *Handlers) Register(m common.Mediator) error {
	if err := common.RegisterHandler[*StartScoutTourCommand](m, common.HandlerFunc(h.handleTour)); err != nil {
		return err
	}
	return common.RegisterHandler[*StartScoutMarketsCommand](m, common.HandlerFunc(h.handleFleet))
}

func (h *Handlers) handleTour(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartScoutTourCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartScoutTourCommand")
	}

	iterations := cmd.Iterations
	if iterations == 0 {
		iterations = -1
	}
	id := utils.GenerateContainerID("scout-tour", cmd.ShipSymbol)
	c := container.New(id, container.TypeScoutTour, cmd.PlayerID, iterations,
		map[string]interface{}{
			"ship":    cmd.ShipSymbol,
			"system":  cmd.SystemSymbol,
			"markets": cmd.Markets,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

func (h *Handlers) handleFleet(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartScoutMarketsCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartScoutMarketsCommand")
	}

	iterations := cmd.Iterations
	if iterations == 0 {
		iterations = -1
	}
	id := utils.GenerateContainerID("scout-markets", cmd.SystemSymbol)
	c := container.New(id, container.TypeScoutMarkets, cmd.PlayerID, 1,
		map[string]interface{}{
			"ships":      cmd.ShipSymbols,
			"system":     cmd.SystemSymbol,
			"iterations": iterations,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

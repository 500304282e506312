package ship

import (
	"context"
	"fmt"

	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/pkg/utils"
)

// NavigateCommand requests a NAVIGATE container
type NavigateCommand struct {
	PlayerID    int    `validate:"required,gt=0"`
	ShipSymbol  string `validate:"required"`
	Destination string `validate:"required"`
}

// DockCommand requests a DOCK container
type DockCommand struct {
	PlayerID   int    `validate:"required,gt=0"`
	ShipSymbol string `validate:"required"`
}

// OrbitCommand requests an ORBIT container
type OrbitCommand struct {
	PlayerID   int    `validate:"required,gt=0"`
	ShipSymbol string `validate:"required"`
}

// RefuelCommand requests a REFUEL container
type RefuelCommand struct {
	PlayerID   int    `validate:"required,gt=0"`
	ShipSymbol string `validate:"required"`
}

// StartContainerResponse returns the handle for a registered container
type StartContainerResponse struct {
	ContainerID string
}

// Handlers registers a container per ship verb and returns its id;
// progress is observable through the container log.
type Handlers struct {
	sup   *supervisor.Supervisor
	clock shared.Clock
}

// NewHandlers creates the ship verb handlers
func NewHandlers(sup *supervisor.Supervisor, clock shared.Clock) *Handlers {
	return &Handlers{sup: sup, clock: clock}
}

// Register wires the ship commands into the mediator
func (h *Handlers) Register(m common.Mediator) error {
	if err := common.RegisterHandler[*NavigateCommand](m, common.HandlerFunc(h.handleNavigate)); err != nil {
		return err
	}
	if err := common.RegisterHandler[*DockCommand](m, common.HandlerFunc(h.handleDock)); err != nil {
		return err
	}
	if err := common.RegisterHandler[*OrbitCommand](m, common.HandlerFunc(h.handleOrbit)); err != nil {
		return err
	}
	return common.RegisterHandler[*RefuelCommand](m, common.HandlerFunc(h.handleRefuel))
}

func (h *Handlers) handleNavigate(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*NavigateCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *NavigateCommand")
	}
	return h.startVerb(ctx, container.TypeNavigate, "navigate", cmd.PlayerID, cmd.ShipSymbol,
		map[string]interface{}{"ship": cmd.ShipSymbol, "destination": cmd.Destination})
}

func (h *Handlers) handleDock(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*DockCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *DockCommand")
	}
	return h.startVerb(ctx, container.TypeDock, "dock", cmd.PlayerID, cmd.ShipSymbol,
		map[string]interface{}{"ship": cmd.ShipSymbol})
}

func (h *Handlers) handleOrbit(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*OrbitCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *OrbitCommand")
	}
	return h.startVerb(ctx, container.TypeOrbit, "orbit", cmd.PlayerID, cmd.ShipSymbol,
		map[string]interface{}{"ship": cmd.ShipSymbol})
}

func (h *Handlers) handleRefuel(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*RefuelCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *RefuelCommand")
	}
	return h.startVerb(ctx, container.TypeRefuel, "refuel", cmd.PlayerID, cmd.ShipSymbol,
		map[string]interface{}{"ship": cmd.ShipSymbol})
}

func (h *Handlers) startVerb(ctx context.Context, t container.Type, operation string, playerID int, shipSymbol string, metadata map[string]interface{}) (common.Response, error) {
	id := utils.GenerateContainerID(operation, shipSymbol)
	c := container.New(id, t, playerID, 1, metadata, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &StartContainerResponse{ContainerID: id}, nil
}

package goods

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

// StartManufacturingCommand requests a MANUFACTURING_COORDINATOR
// container running a supply chain into one factory waypoint. Hauler
// optionally names the ship that moves finished output.
type StartManufacturingCommand struct {
	PlayerID        int      `validate:"required,gt=0"`
	GoodSymbol      string   `validate:"required"`
	FactoryWaypoint string   `validate:"required"`
	ShipSymbols     []string `validate:"required,min=1"`
	Inputs          []string `validate:"required,min=1"`
	Hauler          string
}

// StartGoodsFactoryCommand requests a standalone GOODS_FACTORY
// container moving one factory's output to market
type StartGoodsFactoryCommand struct {
	PlayerID        int    `validate:"required,gt=0"`
	GoodSymbol      string `validate:"required"`
	FactoryWaypoint string `validate:"required"`
	ShipSymbol      string `validate:"required"`
}

// Handlers registers the manufacturing containers
type Handlers struct {
	sup   *supervisor.Supervisor
	clock shared.Clock
}

// NewHandlers creates the goods handlers
func NewHandlers(sup *supervisor.Supervisor, clock shared.Clock) *Handlers {
	return &Handlers{sup: sup, clock: clock}
}

// Register wires the goods commands into the mediator
func (h *Handlers) Register(m common.Mediator) error {
	if err := common.RegisterHandler[*StartManufacturingCommand](m, common.HandlerFunc(h.handleManufacturing)); err != nil {
		return err
	}
	return common.RegisterHandler[*StartGoodsFactoryCommand](m, common.HandlerFunc(h.handleFactory))
}

func (h *Handlers) handleManufacturing(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartManufacturingCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartManufacturingCommand")
	}

	id := utils.GenerateContainerID("manufacturing", cmd.GoodSymbol)
	c := container.New(id, container.TypeManufacturingCoordinator, cmd.PlayerID, -1,
		map[string]interface{}{
			"good":             cmd.GoodSymbol,
			"factory_waypoint": cmd.FactoryWaypoint,
			"ships":            cmd.ShipSymbols,
			"inputs":           cmd.Inputs,
			"hauler":           cmd.Hauler,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

func (h *Handlers) handleFactory(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartGoodsFactoryCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartGoodsFactoryCommand")
	}

	id := utils.GenerateContainerID("goods-factory", cmd.ShipSymbol)
	c := container.New(id, container.TypeGoodsFactory, cmd.PlayerID, -1,
		map[string]interface{}{
			"good":             cmd.GoodSymbol,
			"factory_waypoint": cmd.FactoryWaypoint,
			"ship":             cmd.ShipSymbol,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

package trading

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

// StartArbitrageCommand requests an ARBITRAGE_COORDINATOR container
// trading one good across a fleet
type StartArbitrageCommand struct {
	PlayerID    int      `validate:"required,gt=0"`
	GoodSymbol  string   `validate:"required"`
	ShipSymbols []string `validate:"required,min=1"`
}

// StartArbitrageWorkerCommand requests a standalone ARBITRAGE_WORKER
// container on a fixed route
type StartArbitrageWorkerCommand struct {
	PlayerID     int    `validate:"required,gt=0"`
	ShipSymbol   string `validate:"required"`
	GoodSymbol   string `validate:"required"`
	BuyWaypoint  string `validate:"required"`
	SellWaypoint string `validate:"required"`
}

// Handlers registers the trading containers
type Handlers struct {
	sup   *supervisor.Supervisor
	clock shared.Clock
}

// NewHandlers creates the trading handlers
func NewHandlers(sup *supervisor.Supervisor, clock shared.Clock) *Handlers {
	return &Handlers{sup: sup, clock: clock}
}

// Register wires the trading commands into the mediator
func (h *Handlers) Register(m common.Mediator) error {
	if err := common.RegisterHandler[*StartArbitrageCommand](m, common.HandlerFunc(h.handleCoordinator)); err != nil {
		return err
	}
	return common.RegisterHandler[*StartArbitrageWorkerCommand](m, common.HandlerFunc(h.handleWorker))
}

func (h *Handlers) handleCoordinator(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartArbitrageCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartArbitrageCommand")
	}

	id := utils.GenerateContainerID("arbitrage", cmd.GoodSymbol)
	c := container.New(id, container.TypeArbitrageCoordinator, cmd.PlayerID, -1,
		map[string]interface{}{
			"good":  cmd.GoodSymbol,
			"ships": cmd.ShipSymbols,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

func (h *Handlers) handleWorker(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartArbitrageWorkerCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartArbitrageWorkerCommand")
	}

	id := utils.GenerateContainerID("arbitrage-worker", cmd.ShipSymbol)
	c := container.New(id, container.TypeArbitrageWorker, cmd.PlayerID, -1,
		map[string]interface{}{
			"ship":          cmd.ShipSymbol,
			"good":          cmd.GoodSymbol,
			"buy_waypoint":  cmd.BuyWaypoint,
			"sell_waypoint": cmd.SellWaypoint,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

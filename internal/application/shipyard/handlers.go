package shipyard

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

// PurchaseShipCommand requests a PURCHASE_SHIP container buying one
// hull at a shipyard waypoint
type PurchaseShipCommand struct {
	PlayerID int    `validate:"required,gt=0"`
	ShipType string `validate:"required"`
	Waypoint string `validate:"required"`
}

// BatchPurchaseShipsCommand requests a BATCH_PURCHASE_SHIPS container
// buying Count hulls, one per iteration
type BatchPurchaseShipsCommand struct {
	PlayerID int    `validate:"required,gt=0"`
	ShipType string `validate:"required"`
	Waypoint string `validate:"required"`
	Count    int    `validate:"required,gt=0"`
}

// Handlers registers the shipyard containers
type Handlers struct {
	sup   *supervisor.Supervisor
	clock shared.Clock
}

// NewHandlers creates the shipyard handlers
func NewHandlers(sup *supervisor.Supervisor, clock shared.Clock) *Handlers {
	return &Handlers{sup: sup, clock: clock}
}

// Register wires the shipyard commands into the mediator
func (h *Handlers) Register(m common.Mediator) error {
	if err := common.RegisterHandler[*PurchaseShipCommand](m, common.HandlerFunc(h.handlePurchase)); err != nil {
		return err
	}
	return common.RegisterHandler[*BatchPurchaseShipsCommand](m, common.HandlerFunc(h.handleBatch))
}

func (h *Handlers) handlePurchase(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*PurchaseShipCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *PurchaseShipCommand")
	}

	id := utils.GenerateContainerID("purchase-ship", cmd.ShipType)
	c := container.New(id, container.TypePurchaseShip, cmd.PlayerID, 1,
		map[string]interface{}{
			"ship_type": cmd.ShipType,
			"waypoint":  cmd.Waypoint,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

func (h *Handlers) handleBatch(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*BatchPurchaseShipsCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *BatchPurchaseShipsCommand")
	}

	id := utils.GenerateContainerID("batch-purchase", cmd.ShipType)
	c := container.New(id, container.TypeBatchPurchaseShips, cmd.PlayerID, cmd.Count,
		map[string]interface{}{
			"ship_type": cmd.ShipType,
			"waypoint":  cmd.Waypoint,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

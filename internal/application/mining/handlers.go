package mining

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

// StartMiningCommand requests a MINING_COORDINATOR container running a
// mining operation at one site. Transports are optional; when present,
// Market names where they sell.
type StartMiningCommand struct {
	PlayerID     int      `validate:"required,gt=0"`
	SystemSymbol string   `validate:"required"`
	Waypoint     string   `validate:"required"`
	Miners       []string `validate:"required,min=1"`
	Transports   []string
	Market       string
}

// StartMiningWorkerCommand requests a standalone MINING_WORKER
// container for one ship
type StartMiningWorkerCommand struct {
	PlayerID   int    `validate:"required,gt=0"`
	ShipSymbol string `validate:"required"`
	Waypoint   string `validate:"required"`
	Keep       []string
	Transport  string
}

// StartTransportWorkerCommand requests a standalone TRANSPORT_WORKER
// container shuttling between a site and a market
type StartTransportWorkerCommand struct {
	PlayerID   int    `validate:"required,gt=0"`
	ShipSymbol string `validate:"required"`
	Waypoint   string `validate:"required"`
	Market     string `validate:"required"`
}

// Handlers registers the mining containers
type Handlers struct {
	sup   *supervisor.Supervisor
	clock shared.Clock
}

// NewHandlers creates the mining handlers
func NewHandlers(sup *supervisor.Supervisor, clock shared.Clock) *Handlers {
	return &Handlers{sup: sup, clock: clock}
}

// Register wires the mining commands into the mediator
func (h *Handlers) Register(m common.Mediator) error {
	if err := common.RegisterHandler[*StartMiningCommand](m, common.HandlerFunc(h.handleCoordinator)); err != nil {
		return err
	}
	if err := common.RegisterHandler[*StartMiningWorkerCommand](m, common.HandlerFunc(h.handleWorker)); err != nil {
		return err
	}
	return common.RegisterHandler[*StartTransportWorkerCommand](m, common.HandlerFunc(h.handleTransport))
}

func (h *Handlers) handleCoordinator(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartMiningCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartMiningCommand")
	}

	id := utils.GenerateContainerID("mining", cmd.Waypoint)
	c := container.New(id, container.TypeMiningCoordinator, cmd.PlayerID, -1,
		map[string]interface{}{
			"system":     cmd.SystemSymbol,
			"waypoint":   cmd.Waypoint,
			"miners":     cmd.Miners,
			"transports": cmd.Transports,
			"market":     cmd.Market,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

func (h *Handlers) handleWorker(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartMiningWorkerCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartMiningWorkerCommand")
	}

	id := utils.GenerateContainerID("mining-worker", cmd.ShipSymbol)
	c := container.New(id, container.TypeMiningWorker, cmd.PlayerID, -1,
		map[string]interface{}{
			"ship":      cmd.ShipSymbol,
			"waypoint":  cmd.Waypoint,
			"keep":      cmd.Keep,
			"transport": cmd.Transport,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

func (h *Handlers) handleTransport(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartTransportWorkerCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartTransportWorkerCommand")
	}

	id := utils.GenerateContainerID("transport-worker", cmd.ShipSymbol)
	c := container.New(id, container.TypeTransportWorker, cmd.PlayerID, -1,
		map[string]interface{}{
			"ship":     cmd.ShipSymbol,
			"waypoint": cmd.Waypoint,
			"market":   cmd.Market,
		}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

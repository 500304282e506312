package contract

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

// StartContractWorkflowCommand requests a CONTRACT_WORKFLOW container
// for one ship. ContractID is optional; absent, the workflow negotiates
// its own contract.
type StartContractWorkflowCommand struct {
	PlayerID   int    `validate:"required,gt=0"`
	ShipSymbol string `validate:"required"`
	ContractID string
}

// StartContractFleetCommand requests a CONTRACT_FLEET_COORDINATOR
// container driving a whole fleet
type StartContractFleetCommand struct {
	PlayerID    int      `validate:"required,gt=0"`
	ShipSymbols []string `validate:"required,min=1"`
}

// Handlers registers the contract containers
type Handlers struct {
	sup   *supervisor.Supervisor
	clock shared.Clock
}

// NewHandlers creates the contract handlers
func NewHandlers(sup *supervisor.Supervisor, clock shared.Clock) *Handlers {
	return &Handlers{sup: sup, clock: clock}
}

// Register wires the contract commands into the mediator
func (h *Handlers) Register(m common.Mediator) error {
	if err := common.RegisterHandler[*StartContractWorkflowCommand](m, common.HandlerFunc(h.handleWorkflow)); err != nil {
		return err
	}
	return common.RegisterHandler[*StartContractFleetCommand](m, common.HandlerFunc(h.handleFleet))
}

func (h *Handlers) handleWorkflow(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartContractWorkflowCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartContractWorkflowCommand")
	}

	metadata := map[string]interface{}{"ship": cmd.ShipSymbol}
	if cmd.ContractID != "" {
		metadata["contract_id"] = cmd.ContractID
	}
	id := utils.GenerateContainerID("contract-workflow", cmd.ShipSymbol)
	c := container.New(id, container.TypeContractWorkflow, cmd.PlayerID, 1, metadata, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

func (h *Handlers) handleFleet(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartContractFleetCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StartContractFleetCommand")
	}

	id := utils.GenerateContainerID("contract-fleet", "")
	c := container.New(id, container.TypeContractFleetCoordinator, cmd.PlayerID, 1,
		map[string]interface{}{"ships": cmd.ShipSymbols}, h.clock)
	if err := h.sup.StartContainer(ctx, c); err != nil {
		return nil, err
	}
	return &ship.StartContainerResponse{ContainerID: id}, nil
}

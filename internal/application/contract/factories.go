package contract

import (
	"context"
	"fmt"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/application/common"
	shipapp "github.com/andrescamacho/fleetd/internal/application/ship"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/pkg/utils"
)

// ContractWorkflowFactory builds the CONTRACT_WORKFLOW runner. One
// iteration advances a single contract as far as it can: negotiate if
// none is bound, accept, then procure and deliver each deliverable,
// and fulfill once everything is in. The contract id is written back
// to the container metadata after negotiation so a restarted workflow
// resumes the same contract.
func ContractWorkflowFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbol := c.MetadataString("ship")
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}

	svc := shipapp.NewService(sub.API, sub.Players, sub.Clock)
	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		token, err := svc.Token(ctx, c.PlayerID())
		if err != nil {
			return err
		}
		if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil {
			return err
		}

		contract, err := resolveContract(ctx, sub, svc, logger, c, shipSymbol, token)
		if err != nil {
			return err
		}

		if !contract.Accepted {
			contract, err = sub.API.AcceptContract(ctx, contract.ID, token)
			if err != nil {
				return err
			}
			if err := sub.Contracts.Save(ctx, c.PlayerID(), contract); err != nil {
				return err
			}
			logger.Log("INFO", fmt.Sprintf("accepted contract %s (%d on accept, %d on fulfill)",
				contract.ID, contract.PaymentOnAccepted, contract.PaymentOnFulfilled), nil)
		}

		for i := range contract.Deliverables {
			deliverable := &contract.Deliverables[i]
			for deliverable.UnitsRequired > deliverable.UnitsFulfilled {
				if err := ctx.Err(); err != nil {
					return err
				}
				contract, err = runDelivery(ctx, sub, svc, logger, c, contract, deliverable, shipSymbol, token)
				if err != nil {
					return err
				}
				deliverable = &contract.Deliverables[i]
			}
		}

		contract, err = sub.API.FulfillContract(ctx, contract.ID, token)
		if err != nil {
			return err
		}
		if err := sub.Contracts.Save(ctx, c.PlayerID(), contract); err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("fulfilled contract %s for %d credits",
			contract.ID, contract.PaymentOnFulfilled), nil)
		return nil
	}, nil
}

// ContractFleetCoordinatorFactory builds the CONTRACT_FLEET_COORDINATOR
// runner. It locks the fleet and hands each ship its own contract
// workflow; each workflow negotiates independently.
func ContractFleetCoordinatorFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbols := c.MetadataStringSlice("ships")
	if len(shipSymbols) == 0 {
		return nil, shared.NewValidationError("ships", "is required")
	}

	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		for _, shipSymbol := range shipSymbols {
			holder, err := sub.Locks.Holder(ctx, shipSymbol, c.PlayerID())
			if err != nil {
				return err
			}
			if holder != "" && holder != c.ID() {
				// Already driven by a workflow (or someone else)
				continue
			}
			if holder == "" {
				if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil {
					return err
				}
			}

			workflowID := utils.GenerateContainerID("contract-workflow", shipSymbol)
			workflow := container.New(workflowID, container.TypeContractWorkflow, c.PlayerID(), 1,
				map[string]interface{}{"ship": shipSymbol}, sub.Clock)

			if err := sub.Locks.Transfer(ctx, shipSymbol, c.ID(), workflowID); err != nil {
				return err
			}
			if err := sub.Spawner.StartContainer(ctx, workflow); err != nil {
				return err
			}
			logger.Log("INFO", fmt.Sprintf("started contract workflow %s for %s", workflowID, shipSymbol), nil)
		}
		return nil
	}, nil
}

// resolveContract binds the workflow to a contract: the one named in
// metadata if present, otherwise a freshly negotiated one
func resolveContract(ctx context.Context, sub *supervisor.Substrate, svc *shipapp.Service,
	logger common.ContainerLogger, c *container.Container, shipSymbol, token string) (*api.ContractData, error) {

	if contractID := c.MetadataString("contract_id"); contractID != "" {
		// Refresh from the API; storage may lag behind deliveries
		contracts, err := sub.API.ListContracts(ctx, token)
		if err != nil {
			return nil, err
		}
		for _, contract := range contracts {
			if contract.ID == contractID {
				return contract, nil
			}
		}
		return nil, shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("contract %s not found", contractID))
	}

	// Negotiation requires a docked ship
	if _, err := svc.EnsureDocked(ctx, shipSymbol, token); err != nil {
		return nil, err
	}
	contract, err := sub.API.NegotiateContract(ctx, shipSymbol, token)
	if err != nil {
		return nil, err
	}
	if err := sub.Contracts.Save(ctx, c.PlayerID(), contract); err != nil {
		return nil, err
	}
	c.UpdateMetadata(map[string]interface{}{"contract_id": contract.ID})
	logger.Log("INFO", fmt.Sprintf("negotiated contract %s (%s)", contract.ID, contract.Type), nil)
	return contract, nil
}

// runDelivery procures one shipload of the deliverable and delivers it,
// returning the refreshed contract
func runDelivery(ctx context.Context, sub *supervisor.Substrate, svc *shipapp.Service,
	logger common.ContainerLogger, c *container.Container, contract *api.ContractData,
	deliverable *api.ContractDeliverableData, shipSymbol, token string) (*api.ContractData, error) {

	ship, err := svc.AwaitArrival(ctx, shipSymbol, token)
	if err != nil {
		return nil, err
	}

	onboard := 0
	for _, item := range ship.Inventory {
		if item.Symbol == deliverable.TradeSymbol {
			onboard = item.Units
		}
	}

	if onboard == 0 {
		remaining := deliverable.UnitsRequired - deliverable.UnitsFulfilled
		units := ship.CargoCapacity - ship.CargoUnits
		if units > remaining {
			units = remaining
		}
		if units <= 0 {
			return nil, shared.NewDomainError(shared.KindBadRequest,
				fmt.Sprintf("ship %s has no cargo space for %s", shipSymbol, deliverable.TradeSymbol))
		}

		marketSymbol, err := findSupplier(ctx, sub, c.PlayerID(), deliverable.TradeSymbol)
		if err != nil {
			return nil, err
		}
		if _, err := svc.GoToAndDock(ctx, shipSymbol, marketSymbol, token); err != nil {
			return nil, err
		}
		purchase, err := sub.API.PurchaseCargo(ctx, shipSymbol, deliverable.TradeSymbol, units, token)
		if err != nil {
			return nil, err
		}
		logger.Log("INFO", fmt.Sprintf("bought %d %s at %s for %d credits",
			purchase.Units, purchase.TradeSymbol, marketSymbol, purchase.TotalPrice), nil)
		onboard = purchase.Units
	}

	if _, err := svc.GoToAndDock(ctx, shipSymbol, deliverable.DestinationSymbol, token); err != nil {
		return nil, err
	}
	updated, err := sub.API.DeliverContract(ctx, contract.ID, shipSymbol, deliverable.TradeSymbol, onboard, token)
	if err != nil {
		return nil, err
	}
	if err := sub.Contracts.Save(ctx, c.PlayerID(), updated); err != nil {
		return nil, err
	}
	logger.Log("INFO", fmt.Sprintf("delivered %d %s to %s",
		onboard, deliverable.TradeSymbol, deliverable.DestinationSymbol), nil)
	return updated, nil
}

// findSupplier picks the cheapest known market selling the good, from
// stored market observations
func findSupplier(ctx context.Context, sub *supervisor.Substrate, playerID int, goodSymbol string) (string, error) {
	records, err := sub.Markets.ListByGood(ctx, playerID, goodSymbol)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("no known market sells %s; scout first", goodSymbol))
	}
	best := records[0]
	for _, record := range records[1:] {
		if record.PurchasePrice < best.PurchasePrice {
			best = record
		}
	}
	return best.WaypointSymbol, nil
}


// Package factories binds the closed container-type set to its runner
// factories and command handlers. The daemon wires everything through
// here so the type table lives in one place.
package factories

import (
	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/application/contract"
	"github.com/andrescamacho/fleetd/internal/application/goods"
	"github.com/andrescamacho/fleetd/internal/application/mining"
	"github.com/andrescamacho/fleetd/internal/application/scouting"
	"github.com/andrescamacho/fleetd/internal/application/ship"
	"github.com/andrescamacho/fleetd/internal/application/shipyard"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/application/trading"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// RegisterAll binds every container type to its factory
func RegisterAll(sup *supervisor.Supervisor) {
	sup.RegisterFactory(container.TypeNavigate, ship.NavigateFactory)
	sup.RegisterFactory(container.TypeDock, ship.DockFactory)
	sup.RegisterFactory(container.TypeOrbit, ship.OrbitFactory)
	sup.RegisterFactory(container.TypeRefuel, ship.RefuelFactory)

	sup.RegisterFactory(container.TypeContractWorkflow, contract.ContractWorkflowFactory)
	sup.RegisterFactory(container.TypeContractFleetCoordinator, contract.ContractFleetCoordinatorFactory)

	sup.RegisterFactory(container.TypeMiningCoordinator, mining.MiningCoordinatorFactory)
	sup.RegisterFactory(container.TypeMiningWorker, mining.MiningWorkerFactory)
	sup.RegisterFactory(container.TypeTransportWorker, mining.TransportWorkerFactory)

	sup.RegisterFactory(container.TypeArbitrageCoordinator, trading.ArbitrageCoordinatorFactory)
	sup.RegisterFactory(container.TypeArbitrageWorker, trading.ArbitrageWorkerFactory)

	sup.RegisterFactory(container.TypeManufacturingCoordinator, goods.ManufacturingCoordinatorFactory)
	sup.RegisterFactory(container.TypeManufacturingWorker, goods.ManufacturingWorkerFactory)
	sup.RegisterFactory(container.TypeGoodsFactory, goods.GoodsFactoryFactory)

	sup.RegisterFactory(container.TypeScoutTour, scouting.ScoutTourFactory)
	sup.RegisterFactory(container.TypeScoutMarkets, scouting.ScoutMarketsFactory)

	sup.RegisterFactory(container.TypePurchaseShip, shipyard.PurchaseShipFactory)
	sup.RegisterFactory(container.TypeBatchPurchaseShips, shipyard.BatchPurchaseShipsFactory)
}

// RegisterHandlers wires every container-starting command into the
// mediator. Player handlers are registered separately because they
// talk to the API directly rather than through containers.
func RegisterHandlers(m common.Mediator, sup *supervisor.Supervisor, clock shared.Clock) error {
	registrars := []interface {
		Register(m common.Mediator) error
	}{
		ship.NewHandlers(sup, clock),
		contract.NewHandlers(sup, clock),
		mining.NewHandlers(sup, clock),
		trading.NewHandlers(sup, clock),
		goods.NewHandlers(sup, clock),
		scouting.NewHandlers(sup, clock),
		shipyard.NewHandlers(sup, clock),
	}
	for _, registrar := range registrars {
		if err := registrar.Register(m); err != nil {
			return err
		}
	}
	return nil
}

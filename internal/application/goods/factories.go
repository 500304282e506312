package goods

import (
	"context"
	"fmt"
	"time"

	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	shipapp "github.com/andrescamacho/fleetd/internal/application/ship"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/pkg/utils"
)

// waitForStock is how long runners sleep when the chain has nothing
// for them this cycle
const waitForStock = 60 * time.Second

// ManufacturingWorkerFactory builds the MANUFACTURING_WORKER runner.
// One iteration feeds the chain once: buy the input good at its source
// market, haul it to the factory waypoint, sell it there.
func ManufacturingWorkerFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbol := c.MetadataString("ship")
	inputGood := c.MetadataString("input")
	sourceSymbol := c.MetadataString("source_waypoint")
	factorySymbol := c.MetadataString("factory_waypoint")
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}
	if inputGood == "" {
		return nil, shared.NewValidationError("input", "is required")
	}
	if sourceSymbol == "" || factorySymbol == "" {
		return nil, shared.NewValidationError("route", "source_waypoint and factory_waypoint are required")
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

		ship, err := svc.AwaitArrival(ctx, shipSymbol, token)
		if err != nil {
			return err
		}

		onboard := 0
		for _, item := range ship.Inventory {
			if item.Symbol == inputGood {
				onboard = item.Units
			}
		}

		if onboard == 0 {
			units := ship.CargoCapacity - ship.CargoUnits
			if units <= 0 {
				return shared.NewDomainError(shared.KindBadRequest,
					fmt.Sprintf("ship %s has no free cargo space", shipSymbol))
			}
			if _, err := svc.GoToAndDock(ctx, shipSymbol, sourceSymbol, token); err != nil {
				return err
			}
			purchase, err := sub.API.PurchaseCargo(ctx, shipSymbol, inputGood, units, token)
			if err != nil {
				return err
			}
			onboard = purchase.Units
			logger.Log("INFO", fmt.Sprintf("bought %d %s at %s",
				purchase.Units, inputGood, sourceSymbol), nil)
		}

		if _, err := svc.GoToAndDock(ctx, shipSymbol, factorySymbol, token); err != nil {
			return err
		}
		sale, err := sub.API.SellCargo(ctx, shipSymbol, inputGood, onboard, token)
		if err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("fed %d %s to factory %s for %d credits",
			sale.Units, inputGood, factorySymbol, sale.TotalPrice), nil)
		return nil
	}, nil
}

// GoodsFactoryFactory builds the GOODS_FACTORY runner. It keeps the
// factory record current and, with its assigned ship, pulls finished
// output from the factory waypoint and sells it at the best known
// market. Production itself is the universe's business; this end only
// moves the result.
func GoodsFactoryFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	goodSymbol := c.MetadataString("good")
	factorySymbol := c.MetadataString("factory_waypoint")
	shipSymbol := c.MetadataString("ship")
	if goodSymbol == "" {
		return nil, shared.NewValidationError("good", "is required")
	}
	if factorySymbol == "" {
		return nil, shared.NewValidationError("factory_waypoint", "is required")
	}
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}

	svc := shipapp.NewService(sub.API, sub.Players, sub.Clock)
	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		if err := saveFactory(ctx, sub, c, goodSymbol, "active"); err != nil {
			return err
		}

		token, err := svc.Token(ctx, c.PlayerID())
		if err != nil {
			return err
		}
		if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil {
			return err
		}

		outlet, err := bestOutlet(ctx, sub, c.PlayerID(), goodSymbol, factorySymbol)
		if err != nil {
			if shared.IsNotFound(err) {
				logger.Log("WARN", fmt.Sprintf("no outlet market for %s yet", goodSymbol), nil)
				return shared.SleepContext(ctx, sub.Clock, waitForStock)
			}
			return err
		}

		ship, err := svc.AwaitArrival(ctx, shipSymbol, token)
		if err != nil {
			return err
		}
		units := ship.CargoCapacity - ship.CargoUnits
		if units <= 0 {
			return shared.NewDomainError(shared.KindBadRequest,
				fmt.Sprintf("ship %s has no free cargo space", shipSymbol))
		}

		if _, err := svc.GoToAndDock(ctx, shipSymbol, factorySymbol, token); err != nil {
			return err
		}
		purchase, err := sub.API.PurchaseCargo(ctx, shipSymbol, goodSymbol, units, token)
		if err != nil {
			// Factory has not produced yet; wait for the chain to feed it
			if shared.IsBadRequest(err) || shared.IsConflict(err) {
				logger.Log("INFO", fmt.Sprintf("factory %s has no %s in stock", factorySymbol, goodSymbol), nil)
				return shared.SleepContext(ctx, sub.Clock, waitForStock)
			}
			return err
		}

		if _, err := svc.GoToAndDock(ctx, shipSymbol, outlet, token); err != nil {
			return err
		}
		sale, err := sub.API.SellCargo(ctx, shipSymbol, goodSymbol, purchase.Units, token)
		if err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("moved %d %s from factory to %s, margin %d",
			sale.Units, goodSymbol, outlet, sale.TotalPrice-purchase.TotalPrice), nil)
		return nil
	}, nil
}

// ManufacturingCoordinatorFactory builds the MANUFACTURING_COORDINATOR
// runner. It records the chain, assigns each held ship an input good
// round-robin with the cheapest known source market, and gives the
// hauler (when configured) the factory's output run.
func ManufacturingCoordinatorFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	goodSymbol := c.MetadataString("good")
	factorySymbol := c.MetadataString("factory_waypoint")
	shipSymbols := c.MetadataStringSlice("ships")
	inputs := c.MetadataStringSlice("inputs")
	hauler := c.MetadataString("hauler")
	if goodSymbol == "" {
		return nil, shared.NewValidationError("good", "is required")
	}
	if factorySymbol == "" {
		return nil, shared.NewValidationError("factory_waypoint", "is required")
	}
	if len(shipSymbols) == 0 {
		return nil, shared.NewValidationError("ships", "is required")
	}
	if len(inputs) == 0 {
		return nil, shared.NewValidationError("inputs", "is required")
	}

	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		if err := saveFactory(ctx, sub, c, goodSymbol, "active"); err != nil {
			return err
		}

		for i, shipSymbol := range shipSymbols {
			holder, err := sub.Locks.Holder(ctx, shipSymbol, c.PlayerID())
			if err != nil {
				return err
			}
			if holder != "" && holder != c.ID() {
				continue
			}
			if holder == "" {
				if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil {
					return err
				}
			}

			var child *container.Container
			if shipSymbol == hauler {
				id := utils.GenerateContainerID("goods-factory", shipSymbol)
				child = container.New(id, container.TypeGoodsFactory, c.PlayerID(), -1,
					map[string]interface{}{
						"good":             goodSymbol,
						"factory_waypoint": factorySymbol,
						"ship":             shipSymbol,
					}, sub.Clock)
			} else {
				input := inputs[i%len(inputs)]
				source, err := cheapestSource(ctx, sub, c.PlayerID(), input)
				if err != nil {
					if shared.IsNotFound(err) {
						logger.Log("WARN", fmt.Sprintf("no source market for %s yet; ship %s held back",
							input, shipSymbol), nil)
						continue
					}
					return err
				}
				id := utils.GenerateContainerID("manufacturing-worker", shipSymbol)
				child = container.New(id, container.TypeManufacturingWorker, c.PlayerID(), -1,
					map[string]interface{}{
						"ship":             shipSymbol,
						"input":            input,
						"source_waypoint":  source,
						"factory_waypoint": factorySymbol,
					}, sub.Clock)
			}

			if err := sub.Locks.Transfer(ctx, shipSymbol, c.ID(), child.ID()); err != nil {
				return err
			}
			if err := sub.Spawner.StartContainer(ctx, child); err != nil {
				return err
			}
			logger.Log("INFO", fmt.Sprintf("started %s for %s", child.ID(), shipSymbol), nil)
		}

		return shared.SleepContext(ctx, sub.Clock, waitForStock)
	}, nil
}

func saveFactory(ctx context.Context, sub *supervisor.Substrate, c *container.Container, goodSymbol, status string) error {
	return sub.Operations.SaveGoodsFactory(ctx, &persistence.GoodsFactory{
		ID:         c.ID(),
		PlayerID:   c.PlayerID(),
		GoodSymbol: goodSymbol,
		Status:     status,
		Config:     c.Metadata(),
	})
}

// cheapestSource picks the cheapest known market selling the good
func cheapestSource(ctx context.Context, sub *supervisor.Substrate, playerID int, goodSymbol string) (string, error) {
	records, err := sub.Markets.ListByGood(ctx, playerID, goodSymbol)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("no market observations for %s", goodSymbol))
	}
	best := records[0]
	for _, record := range records[1:] {
		if record.PurchasePrice < best.PurchasePrice {
			best = record
		}
	}
	return best.WaypointSymbol, nil
}

// bestOutlet picks the highest-paying market for the good, excluding
// the factory itself
func bestOutlet(ctx context.Context, sub *supervisor.Substrate, playerID int, goodSymbol, factorySymbol string) (string, error) {
	records, err := sub.Markets.ListByGood(ctx, playerID, goodSymbol)
	if err != nil {
		return "", err
	}
	var best *persistence.MarketGoodRecord
	for _, record := range records {
		if record.WaypointSymbol == factorySymbol {
			continue
		}
		if best == nil || record.SellPrice > best.SellPrice {
			best = record
		}
	}
	if best == nil {
		return "", shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("no outlet market for %s", goodSymbol))
	}
	return best.WaypointSymbol, nil
}


package trading

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

// reevaluateInterval is how often the coordinator re-reads market data
const reevaluateInterval = 5 * time.Minute

// ArbitrageWorkerFactory builds the ARBITRAGE_WORKER runner. One
// iteration is one round trip on a fixed route: buy the good at the
// buy waypoint, haul it to the sell waypoint, sell everything.
func ArbitrageWorkerFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbol := c.MetadataString("ship")
	goodSymbol := c.MetadataString("good")
	buySymbol := c.MetadataString("buy_waypoint")
	sellSymbol := c.MetadataString("sell_waypoint")
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}
	if goodSymbol == "" {
		return nil, shared.NewValidationError("good", "is required")
	}
	if buySymbol == "" || sellSymbol == "" {
		return nil, shared.NewValidationError("route", "buy_waypoint and sell_waypoint are required")
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

		// Skip the buy leg when a previous interrupted run left cargo aboard
		onboard := 0
		for _, item := range ship.Inventory {
			if item.Symbol == goodSymbol {
				onboard = item.Units
			}
		}

		var cost int64
		if onboard == 0 {
			units := ship.CargoCapacity - ship.CargoUnits
			if units <= 0 {
				return shared.NewDomainError(shared.KindBadRequest,
					fmt.Sprintf("ship %s has no free cargo space", shipSymbol))
			}
			if _, err := svc.GoToAndDock(ctx, shipSymbol, buySymbol, token); err != nil {
				return err
			}
			purchase, err := sub.API.PurchaseCargo(ctx, shipSymbol, goodSymbol, units, token)
			if err != nil {
				return err
			}
			onboard = purchase.Units
			cost = purchase.TotalPrice
			logger.Log("INFO", fmt.Sprintf("bought %d %s at %s for %d",
				purchase.Units, goodSymbol, buySymbol, purchase.TotalPrice), nil)
		}

		if _, err := svc.GoToAndDock(ctx, shipSymbol, sellSymbol, token); err != nil {
			return err
		}
		sale, err := sub.API.SellCargo(ctx, shipSymbol, goodSymbol, onboard, token)
		if err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("sold %d %s at %s for %d (margin %d)",
			sale.Units, goodSymbol, sellSymbol, sale.TotalPrice, sale.TotalPrice-cost), nil)
		return nil
	}, nil
}

// ArbitrageCoordinatorFactory builds the ARBITRAGE_COORDINATOR runner.
// Each iteration it evaluates stored market observations for the good,
// assigns the best buy/sell route to any ship it still holds, and
// sleeps before re-evaluating. Routes are fixed per worker; a better
// spread only affects ships not yet deployed.
func ArbitrageCoordinatorFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbols := c.MetadataStringSlice("ships")
	goodSymbol := c.MetadataString("good")
	if len(shipSymbols) == 0 {
		return nil, shared.NewValidationError("ships", "is required")
	}
	if goodSymbol == "" {
		return nil, shared.NewValidationError("good", "is required")
	}

	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		route, err := bestRoute(ctx, sub, c.PlayerID(), goodSymbol)
		if err != nil {
			if shared.IsNotFound(err) {
				logger.Log("WARN", fmt.Sprintf("no profitable route for %s yet", goodSymbol), nil)
				return shared.SleepContext(ctx, sub.Clock, reevaluateInterval)
			}
			return err
		}
		logger.Log("INFO", fmt.Sprintf("best %s route: buy %s@%d sell %s@%d spread=%d",
			goodSymbol, route.buy, route.buyPrice, route.sell, route.sellPrice, route.spread()), nil)

		for _, shipSymbol := range shipSymbols {
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

			workerID := utils.GenerateContainerID("arbitrage-worker", shipSymbol)
			worker := container.New(workerID, container.TypeArbitrageWorker, c.PlayerID(), -1,
				map[string]interface{}{
					"ship":          shipSymbol,
					"good":          goodSymbol,
					"buy_waypoint":  route.buy,
					"sell_waypoint": route.sell,
				}, sub.Clock)

			if err := sub.Locks.Transfer(ctx, shipSymbol, c.ID(), workerID); err != nil {
				return err
			}
			if err := sub.Spawner.StartContainer(ctx, worker); err != nil {
				return err
			}
			logger.Log("INFO", fmt.Sprintf("deployed %s on route for %s", workerID, shipSymbol), nil)
		}

		return shared.SleepContext(ctx, sub.Clock, reevaluateInterval)
	}, nil
}

type tradeRoute struct {
	buy       string
	sell      string
	buyPrice  int64
	sellPrice int64
}

func (r *tradeRoute) spread() int64 { return r.sellPrice - r.buyPrice }

// bestRoute pairs the cheapest purchase with the dearest sale across
// stored observations. NotFound when no market knows the good or no
// pairing is profitable.
func bestRoute(ctx context.Context, sub *supervisor.Substrate, playerID int, goodSymbol string) (*tradeRoute, error) {
	records, err := sub.Markets.ListByGood(ctx, playerID, goodSymbol)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("no market observations for %s", goodSymbol))
	}

	var buy, sell *persistence.MarketGoodRecord
	for _, record := range records {
		if buy == nil || record.PurchasePrice < buy.PurchasePrice {
			buy = record
		}
		if sell == nil || record.SellPrice > sell.SellPrice {
			sell = record
		}
	}
	route := &tradeRoute{
		buy:       buy.WaypointSymbol,
		sell:      sell.WaypointSymbol,
		buyPrice:  buy.PurchasePrice,
		sellPrice: sell.SellPrice,
	}
	if route.buy == route.sell || route.spread() <= 0 {
		return nil, shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("no profitable spread for %s", goodSymbol))
	}
	return route, nil
}


package scouting

import (
	"context"
	"fmt"
	"strings"

	"github.com/andrescamacho/fleetd/internal/application/common"
	shipapp "github.com/andrescamacho/fleetd/internal/application/ship"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/pkg/utils"
)

// ScoutTourFactory builds the SCOUT_TOUR runner. One iteration is one
// complete tour of the assigned markets: navigate, dock, snapshot the
// market, move on. Tours can be long, so the lock is heartbeated at
// every stop.
func ScoutTourFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbol := c.MetadataString("ship")
	systemSymbol := c.MetadataString("system")
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}
	if systemSymbol == "" {
		return nil, shared.NewValidationError("system", "is required")
	}
	markets := c.MetadataStringSlice("markets")

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

		tour := markets
		if len(tour) == 0 {
			tour, err = marketplaceSymbols(ctx, sub, systemSymbol, c.PlayerID())
			if err != nil {
				return err
			}
		}
		if len(tour) == 0 {
			logger.Log("WARN", fmt.Sprintf("no marketplaces found in %s", systemSymbol), nil)
			return nil
		}

		ship, err := sub.API.GetShip(ctx, shipSymbol, token)
		if err != nil {
			return err
		}
		tour = rotateTour(tour, ship.Location)

		for _, waypointSymbol := range tour {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := visitMarket(ctx, sub, svc, logger, shipSymbol, systemSymbol, waypointSymbol, c.PlayerID(), token); err != nil {
				return err
			}
			if err := sub.Locks.Heartbeat(ctx, shipSymbol, c.PlayerID()); err != nil {
				return err
			}
		}

		logger.Log("INFO", fmt.Sprintf("tour complete: %d markets scanned", len(tour)), nil)
		return nil
	}, nil
}

// ScoutMarketsFactory builds the SCOUT_MARKETS coordinator. It locks
// the whole scouting fleet up front, partitions the system's markets
// across the ships, spawns one SCOUT_TOUR per ship, and transfers each
// lock to the tour that drives it.
func ScoutMarketsFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbols := c.MetadataStringSlice("ships")
	systemSymbol := c.MetadataString("system")
	if len(shipSymbols) == 0 {
		return nil, shared.NewValidationError("ships", "is required")
	}
	if systemSymbol == "" {
		return nil, shared.NewValidationError("system", "is required")
	}
	iterations := c.MetadataInt("iterations", -1)

	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		if _, err := sub.Locks.AcquireAll(ctx, shipSymbols, c.PlayerID(), c.ID()); err != nil {
			return err
		}

		markets, err := marketplaceSymbols(ctx, sub, systemSymbol, c.PlayerID())
		if err != nil {
			return err
		}
		if len(markets) == 0 {
			logger.Log("WARN", fmt.Sprintf("no marketplaces found in %s", systemSymbol), nil)
			return nil
		}

		assignments := partitionMarkets(markets, shipSymbols)
		for shipSymbol, assigned := range assignments {
			if len(assigned) == 0 {
				// More ships than markets; release the idle ship
				if err := sub.Locks.Release(ctx, shipSymbol, c.PlayerID(), "no-markets-assigned"); err != nil && !shared.IsNoOp(err) {
					return err
				}
				continue
			}

			tourID := utils.GenerateContainerID("scout-tour", shipSymbol)
			tour := container.New(tourID, container.TypeScoutTour, c.PlayerID(), iterations,
				map[string]interface{}{
					"ship":    shipSymbol,
					"system":  systemSymbol,
					"markets": assigned,
				}, sub.Clock)

			// Hand the lock to the tour before it starts so its first
			// acquire finds itself already the holder
			if err := sub.Locks.Transfer(ctx, shipSymbol, c.ID(), tourID); err != nil {
				return err
			}
			if err := sub.Spawner.StartContainer(ctx, tour); err != nil {
				return err
			}
			logger.Log("INFO", fmt.Sprintf("assigned %d markets to %s (container %s)",
				len(assigned), shipSymbol, tourID), nil)
		}

		return nil
	}, nil
}

func visitMarket(ctx context.Context, sub *supervisor.Substrate, svc *shipapp.Service,
	logger common.ContainerLogger,
	shipSymbol, systemSymbol, waypointSymbol string, playerID int, token string) error {

	if _, err := svc.GoToAndDock(ctx, shipSymbol, waypointSymbol, token); err != nil {
		return err
	}

	market, err := sub.API.GetMarket(ctx, systemSymbol, waypointSymbol, token)
	if err != nil {
		return err
	}
	if err := sub.Markets.SaveMarket(ctx, playerID, market); err != nil {
		return err
	}
	logger.Log("INFO", fmt.Sprintf("scanned market %s: %d goods", waypointSymbol, len(market.Goods)), nil)
	return nil
}

func marketplaceSymbols(ctx context.Context, sub *supervisor.Substrate, systemSymbol string, playerID int) ([]string, error) {
	waypoints, err := sub.Waypoints.FindWithTrait(ctx, systemSymbol, shared.TraitMarketplace, &playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list marketplaces in %s: %w", systemSymbol, err)
	}
	symbols := make([]string, 0, len(waypoints))
	for _, wp := range waypoints {
		symbols = append(symbols, wp.Symbol)
	}
	return symbols, nil
}

// rotateTour starts the tour at the ship's current position so a
// restarted tour resumes instead of backtracking
func rotateTour(markets []string, currentPosition string) []string {
	start := -1
	for i, waypoint := range markets {
		if strings.EqualFold(waypoint, currentPosition) {
			start = i
			break
		}
	}
	if start <= 0 {
		return markets
	}
	rotated := make([]string, len(markets))
	for i := range markets {
		rotated[i] = markets[(start+i)%len(markets)]
	}
	return rotated
}

// partitionMarkets deals markets round-robin across ships
func partitionMarkets(markets, ships []string) map[string][]string {
	assignments := make(map[string][]string, len(ships))
	for _, ship := range ships {
		assignments[ship] = nil
	}
	for i, market := range markets {
		ship := ships[i%len(ships)]
		assignments[ship] = append(assignments[ship], market)
	}
	return assignments
}

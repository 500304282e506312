package mining

import (
	"context"
	"fmt"
	"time"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/application/common"
	shipapp "github.com/andrescamacho/fleetd/internal/application/ship"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/pkg/utils"
)

const (
	// idleWait is how long a worker sleeps when it has nothing to do
	// this iteration (cargo full with nowhere to put it, hold empty)
	idleWait = 30 * time.Second

	monitorInterval = 60 * time.Second
)

// MiningWorkerFactory builds the MINING_WORKER runner. One iteration is
// one extraction cycle: be at the site, in orbit, extract, wait out the
// cooldown. Unwanted yields are jettisoned; when a transport ship is
// configured, full holds are transferred to it instead.
func MiningWorkerFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbol := c.MetadataString("ship")
	siteSymbol := c.MetadataString("waypoint")
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}
	if siteSymbol == "" {
		return nil, shared.NewValidationError("waypoint", "is required")
	}
	transport := c.MetadataString("transport")
	keep := map[string]bool{}
	for _, good := range c.MetadataStringSlice("keep") {
		keep[good] = true
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

		ship, err := svc.GoTo(ctx, shipSymbol, siteSymbol, token)
		if err != nil {
			return err
		}
		if ship, err = svc.EnsureOrbit(ctx, shipSymbol, token); err != nil {
			return err
		}

		if ship.CargoUnits >= ship.CargoCapacity {
			return offloadCargo(ctx, sub, logger, ship, transport, keep, token)
		}

		extraction, err := sub.API.ExtractResources(ctx, shipSymbol, token)
		if err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("extracted %d %s (%d/%d cargo)",
			extraction.YieldUnits, extraction.YieldSymbol,
			extraction.CargoUnits, extraction.CargoCapacity), nil)

		if len(keep) > 0 && !keep[extraction.YieldSymbol] {
			if err := sub.API.JettisonCargo(ctx, shipSymbol, extraction.YieldSymbol, extraction.YieldUnits, token); err != nil {
				return err
			}
			logger.Log("INFO", fmt.Sprintf("jettisoned %d %s", extraction.YieldUnits, extraction.YieldSymbol), nil)
		}

		if extraction.CooldownSeconds > 0 {
			cooldown := time.Duration(extraction.CooldownSeconds) * time.Second
			return shared.SleepContext(ctx, sub.Clock, cooldown)
		}
		return nil
	}, nil
}

// TransportWorkerFactory builds the TRANSPORT_WORKER runner. It shuttles
// between the mining site and a market: wait at the site until miners
// fill its hold, haul to the market, sell everything, return.
func TransportWorkerFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbol := c.MetadataString("ship")
	siteSymbol := c.MetadataString("waypoint")
	marketSymbol := c.MetadataString("market")
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}
	if siteSymbol == "" {
		return nil, shared.NewValidationError("waypoint", "is required")
	}
	if marketSymbol == "" {
		return nil, shared.NewValidationError("market", "is required")
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

		ship, err := svc.GoTo(ctx, shipSymbol, siteSymbol, token)
		if err != nil {
			return err
		}

		if ship.CargoUnits == 0 {
			// Nothing to haul yet; stay on station
			return shared.SleepContext(ctx, sub.Clock, idleWait)
		}

		if _, err := svc.GoTo(ctx, shipSymbol, marketSymbol, token); err != nil {
			return err
		}
		if _, err := svc.EnsureDocked(ctx, shipSymbol, token); err != nil {
			return err
		}

		ship, err = sub.API.GetShip(ctx, shipSymbol, token)
		if err != nil {
			return err
		}
		var proceeds int64
		for _, item := range ship.Inventory {
			sale, err := sub.API.SellCargo(ctx, shipSymbol, item.Symbol, item.Units, token)
			if err != nil {
				return err
			}
			proceeds += sale.TotalPrice
		}
		logger.Log("INFO", fmt.Sprintf("sold %d cargo lines at %s for %d credits",
			len(ship.Inventory), marketSymbol, proceeds), nil)
		return nil
	}, nil
}

// MiningCoordinatorFactory builds the MINING_COORDINATOR runner. It
// records the operation, locks the fleet, deploys one worker per miner
// and one transport worker per hauler, and then keeps watch: each
// iteration it surveys its children and updates the operation record.
// Deployment is idempotent across restarts because the lock holder is
// the source of truth for which ships still need a worker.
func MiningCoordinatorFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	systemSymbol := c.MetadataString("system")
	siteSymbol := c.MetadataString("waypoint")
	miners := c.MetadataStringSlice("miners")
	transports := c.MetadataStringSlice("transports")
	marketSymbol := c.MetadataString("market")
	if systemSymbol == "" {
		return nil, shared.NewValidationError("system", "is required")
	}
	if siteSymbol == "" {
		return nil, shared.NewValidationError("waypoint", "is required")
	}
	if len(miners) == 0 {
		return nil, shared.NewValidationError("miners", "is required")
	}
	if len(transports) > 0 && marketSymbol == "" {
		return nil, shared.NewValidationError("market", "is required when transports are configured")
	}

	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		if err := saveOperation(ctx, sub, c, systemSymbol, siteSymbol, "active"); err != nil {
			return err
		}

		deployed, err := deployFleet(ctx, sub, logger, c, miners, func(shipSymbol string) (*container.Container, error) {
			transport := ""
			if len(transports) > 0 {
				transport = transports[0]
			}
			id := utils.GenerateContainerID("mining-worker", shipSymbol)
			return container.New(id, container.TypeMiningWorker, c.PlayerID(), -1,
				map[string]interface{}{
					"ship":      shipSymbol,
					"waypoint":  siteSymbol,
					"transport": transport,
				}, sub.Clock), nil
		})
		if err != nil {
			return err
		}
		transportDeployed, err := deployFleet(ctx, sub, logger, c, transports, func(shipSymbol string) (*container.Container, error) {
			id := utils.GenerateContainerID("transport-worker", shipSymbol)
			return container.New(id, container.TypeTransportWorker, c.PlayerID(), -1,
				map[string]interface{}{
					"ship":     shipSymbol,
					"waypoint": siteSymbol,
					"market":   marketSymbol,
				}, sub.Clock), nil
		})
		if err != nil {
			return err
		}
		if deployed+transportDeployed > 0 {
			logger.Log("INFO", fmt.Sprintf("deployed %d miners and %d transports at %s",
				deployed, transportDeployed, siteSymbol), nil)
		}

		running, err := surveyChildren(ctx, sub, c, append(miners, transports...))
		if err != nil {
			return err
		}
		if running == 0 {
			if err := saveOperation(ctx, sub, c, systemSymbol, siteSymbol, "completed"); err != nil {
				return err
			}
			logger.Log("WARN", "all workers terminal; operation marked completed", nil)
		}

		return shared.SleepContext(ctx, sub.Clock, monitorInterval)
	}, nil
}

// offloadCargo empties a full miner: transfer to the transport when one
// is on station, otherwise jettison everything outside the keep list
func offloadCargo(ctx context.Context, sub *supervisor.Substrate, logger common.ContainerLogger,
	ship *api.ShipData, transport string, keep map[string]bool, token string) error {

	if transport != "" {
		for _, item := range ship.Inventory {
			if _, err := sub.API.TransferCargo(ctx, ship.Symbol, transport, item.Symbol, item.Units, token); err != nil {
				// Transport may be away hauling; try again next cycle
				if shared.IsConflict(err) || shared.IsBadRequest(err) {
					logger.Log("WARN", fmt.Sprintf("transfer to %s unavailable: %v", transport, err), nil)
					return shared.SleepContext(ctx, sub.Clock, idleWait)
				}
				return err
			}
		}
		logger.Log("INFO", fmt.Sprintf("transferred full hold to %s", transport), nil)
		return nil
	}

	for _, item := range ship.Inventory {
		if keep[item.Symbol] {
			continue
		}
		if err := sub.API.JettisonCargo(ctx, ship.Symbol, item.Symbol, item.Units, token); err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("jettisoned %d %s", item.Units, item.Symbol), nil)
	}
	return nil
}

// deployFleet spawns one child container per ship the coordinator still
// holds the lock for, transferring the lock as part of the handoff.
// Ships whose lock is already with another container are assumed to
// have a live worker and are skipped.
func deployFleet(ctx context.Context, sub *supervisor.Substrate, logger common.ContainerLogger,
	c *container.Container, ships []string, build func(shipSymbol string) (*container.Container, error)) (int, error) {

	deployed := 0
	for _, shipSymbol := range ships {
		holder, err := sub.Locks.Holder(ctx, shipSymbol, c.PlayerID())
		if err != nil {
			return deployed, err
		}
		if holder == "" {
			if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil {
				return deployed, err
			}
			holder = c.ID()
		}
		if holder != c.ID() {
			continue
		}

		child, err := build(shipSymbol)
		if err != nil {
			return deployed, err
		}
		if err := sub.Locks.Transfer(ctx, shipSymbol, c.ID(), child.ID()); err != nil {
			return deployed, err
		}
		if err := sub.Spawner.StartContainer(ctx, child); err != nil {
			return deployed, err
		}
		logger.Log("INFO", fmt.Sprintf("started %s for %s", child.ID(), shipSymbol), nil)
		deployed++
	}
	return deployed, nil
}

// surveyChildren counts how many of the fleet's ships still have a live
// worker, judged by an active lock held by a non-terminal container
func surveyChildren(ctx context.Context, sub *supervisor.Substrate, c *container.Container, ships []string) (int, error) {
	running := 0
	for _, shipSymbol := range ships {
		holder, err := sub.Locks.Holder(ctx, shipSymbol, c.PlayerID())
		if err != nil {
			return 0, err
		}
		if holder == "" || holder == c.ID() {
			continue
		}
		child, err := sub.Containers.FindByID(ctx, holder, c.PlayerID())
		if err != nil {
			if shared.IsNotFound(err) {
				continue
			}
			return 0, err
		}
		if !child.IsTerminal() {
			running++
		}
	}
	return running, nil
}

// saveOperation upserts the coordinator's operation record, keyed by
// the coordinator's container id
func saveOperation(ctx context.Context, sub *supervisor.Substrate, c *container.Container, systemSymbol, siteSymbol, status string) error {
	return sub.Operations.SaveMiningOperation(ctx, &persistence.MiningOperation{
		ID:             c.ID(),
		PlayerID:       c.PlayerID(),
		SystemSymbol:   systemSymbol,
		WaypointSymbol: siteSymbol,
		Status:         status,
		Config:         c.Metadata(),
	})
}

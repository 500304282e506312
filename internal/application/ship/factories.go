package ship

import (
	"context"
	"fmt"

	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// Factories for the one-shot ship verbs. Each produced closure locks
// the ship before the first mutating call, waits out any transit, and
// issues the verb. The runner releases the lock when the container
// reaches a terminal state.

// NavigateFactory builds the NAVIGATE runner
func NavigateFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbol := c.MetadataString("ship")
	destination := c.MetadataString("destination")
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}
	if destination == "" {
		return nil, shared.NewValidationError("destination", "is required")
	}

	svc := NewService(sub.API, sub.Players, sub.Clock)
	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		token, err := svc.Token(ctx, c.PlayerID())
		if err != nil {
			return err
		}
		if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil {
			return err
		}

		ship, err := svc.EnsureOrbit(ctx, shipSymbol, token)
		if err != nil {
			return err
		}
		if ship.Location == destination {
			// Zero-distance navigation: nothing to do
			logger.Log("INFO", fmt.Sprintf("ship %s already at %s", shipSymbol, destination), nil)
			return nil
		}

		nav, err := sub.API.NavigateShip(ctx, shipSymbol, destination, token)
		if err != nil {
			return err
		}
		if nav.ArrivalAt != nil {
			logger.Log("INFO", fmt.Sprintf("ship %s en route to %s, arrival %s",
				shipSymbol, destination, nav.ArrivalAt.Format("15:04:05")), nil)
		}

		arrived, err := svc.AwaitArrival(ctx, shipSymbol, token)
		if err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("ship %s arrived at %s", shipSymbol, arrived.Location), nil)
		return nil
	}, nil
}

// DockFactory builds the DOCK runner
func DockFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbol := c.MetadataString("ship")
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}

	svc := NewService(sub.API, sub.Players, sub.Clock)
	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		token, err := svc.Token(ctx, c.PlayerID())
		if err != nil {
			return err
		}
		if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil {
			return err
		}

		ship, err := svc.EnsureDocked(ctx, shipSymbol, token)
		if err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("ship %s docked at %s", shipSymbol, ship.Location), nil)
		return nil
	}, nil
}

// OrbitFactory builds the ORBIT runner
func OrbitFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbol := c.MetadataString("ship")
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}

	svc := NewService(sub.API, sub.Players, sub.Clock)
	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		token, err := svc.Token(ctx, c.PlayerID())
		if err != nil {
			return err
		}
		if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil {
			return err
		}

		ship, err := svc.EnsureOrbit(ctx, shipSymbol, token)
		if err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("ship %s in orbit at %s", shipSymbol, ship.Location), nil)
		return nil
	}, nil
}

// RefuelFactory builds the REFUEL runner. Refueling requires a dock,
// so the closure docks first and restores orbit afterward when the
// ship started there.
func RefuelFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipSymbol := c.MetadataString("ship")
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship", "is required")
	}

	svc := NewService(sub.API, sub.Players, sub.Clock)
	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		token, err := svc.Token(ctx, c.PlayerID())
		if err != nil {
			return err
		}
		if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil {
			return err
		}

		if _, err := svc.EnsureDocked(ctx, shipSymbol, token); err != nil {
			return err
		}
		refueled, err := sub.API.RefuelShip(ctx, shipSymbol, token)
		if err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("ship %s refueled to %d/%d",
			shipSymbol, refueled.FuelCurrent, refueled.FuelCapacity), nil)
		return nil
	}, nil
}

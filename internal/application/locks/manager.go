package locks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/andrescamacho/fleetd/internal/domain/fleet"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// DefaultStaleTimeout is how long an assignment may go without a
// heartbeat before the sweep reclaims it
const DefaultStaleTimeout = 30 * time.Minute

// AssignmentStore is the persistence surface the lock manager needs
type AssignmentStore interface {
	Acquire(ctx context.Context, shipSymbol string, playerID int, containerID string) (*fleet.ShipAssignment, error)
	FindActiveByShip(ctx context.Context, shipSymbol string, playerID int) (*fleet.ShipAssignment, error)
	FindActiveByContainer(ctx context.Context, containerID string, playerID int) ([]*fleet.ShipAssignment, error)
	FindAllActive(ctx context.Context) ([]*fleet.ShipAssignment, error)
	Release(ctx context.Context, shipSymbol string, playerID int, reason string, force bool) error
	ReleaseByContainer(ctx context.Context, containerID string, playerID int, reason string) (int, error)
	ReleaseAllActive(ctx context.Context, reason string) (int, error)
	CleanOrphans(ctx context.Context, existingContainerIDs []string, reason string) (int, error)
	CleanStale(ctx context.Context, timeout time.Duration, reason string) (int, error)
	Heartbeat(ctx context.Context, shipSymbol string, playerID int) error
	Transfer(ctx context.Context, shipSymbol, fromContainerID, toContainerID string) error
}

// Manager grants and reclaims exclusive ship locks. Every workflow that
// mutates a ship acquires through here before touching the ship and
// releases when done, so two containers never drive the same hull.
type Manager struct {
	store        AssignmentStore
	staleTimeout time.Duration
}

// NewManager creates a lock manager over the given assignment store.
// A non-positive staleTimeout falls back to DefaultStaleTimeout.
func NewManager(store AssignmentStore, staleTimeout time.Duration) *Manager {
	if staleTimeout <= 0 {
		staleTimeout = DefaultStaleTimeout
	}
	return &Manager{store: store, staleTimeout: staleTimeout}
}

// Acquire locks a ship for a container. Fails with
// ShipAlreadyAssignedError when another container holds the ship.
// Re-acquiring a ship the same container already holds is idempotent
// and counts as a heartbeat, so iterating runners keep their lock
// fresh without a separate call.
func (m *Manager) Acquire(ctx context.Context, shipSymbol string, playerID int, containerID string) (*fleet.ShipAssignment, error) {
	assignment, err := m.store.Acquire(ctx, shipSymbol, playerID, containerID)
	if err != nil {
		var assigned *shared.ShipAlreadyAssignedError
		if errors.As(err, &assigned) && assigned.ContainerID == containerID {
			if hbErr := m.store.Heartbeat(ctx, shipSymbol, playerID); hbErr != nil {
				return nil, hbErr
			}
			existing, findErr := m.store.FindActiveByShip(ctx, shipSymbol, playerID)
			if findErr != nil {
				return nil, findErr
			}
			return existing, nil
		}
		return nil, err
	}
	log.Printf("lock acquired ship=%s container=%s player=%d", shipSymbol, containerID, playerID)
	return assignment, nil
}

// AcquireAll locks every ship in the list for one container. On the
// first conflict it releases the locks it already took and returns the
// conflict, so a partial fleet is never left locked.
func (m *Manager) AcquireAll(ctx context.Context, shipSymbols []string, playerID int, containerID string) ([]*fleet.ShipAssignment, error) {
	acquired := make([]*fleet.ShipAssignment, 0, len(shipSymbols))
	for _, symbol := range shipSymbols {
		assignment, err := m.store.Acquire(ctx, symbol, playerID, containerID)
		if err != nil {
			for _, held := range acquired {
				if relErr := m.store.Release(ctx, held.ShipSymbol, playerID, "acquire-rollback", true); relErr != nil {
					log.Printf("lock rollback failed ship=%s: %v", held.ShipSymbol, relErr)
				}
			}
			return nil, err
		}
		acquired = append(acquired, assignment)
	}
	return acquired, nil
}

// Release unlocks a ship. Releasing a ship that is not locked returns a
// NoOpError; callers that only care about the end state may ignore it.
func (m *Manager) Release(ctx context.Context, shipSymbol string, playerID int, reason string) error {
	err := m.store.Release(ctx, shipSymbol, playerID, reason, false)
	if err != nil {
		if shared.IsNoOp(err) {
			return err
		}
		return fmt.Errorf("failed to release ship %s: %w", shipSymbol, err)
	}
	log.Printf("lock released ship=%s player=%d reason=%s", shipSymbol, playerID, reason)
	return nil
}

// ForceRelease unlocks a ship regardless of current state. Used by
// recovery paths that must leave the ship free.
func (m *Manager) ForceRelease(ctx context.Context, shipSymbol string, playerID int, reason string) error {
	return m.store.Release(ctx, shipSymbol, playerID, reason, true)
}

// ReleaseByContainer unlocks every ship a container holds. Called when
// a container stops, fails, or is reaped.
func (m *Manager) ReleaseByContainer(ctx context.Context, containerID string, playerID int, reason string) (int, error) {
	released, err := m.store.ReleaseByContainer(ctx, containerID, playerID, reason)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		log.Printf("released %d locks held by container=%s reason=%s", released, containerID, reason)
	}
	return released, nil
}

// ReleaseAll unlocks every active assignment across all players.
// Startup sweep for locks left behind by a previous daemon run.
func (m *Manager) ReleaseAll(ctx context.Context, reason string) (int, error) {
	released, err := m.store.ReleaseAllActive(ctx, reason)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		log.Printf("released %d leftover locks reason=%s", released, reason)
	}
	return released, nil
}

// CleanOrphans unlocks ships whose holding container no longer exists
func (m *Manager) CleanOrphans(ctx context.Context, existingContainerIDs []string) (int, error) {
	cleaned, err := m.store.CleanOrphans(ctx, existingContainerIDs, "orphaned-at-startup")
	if err != nil {
		return 0, err
	}
	if cleaned > 0 {
		log.Printf("cleaned %d orphaned locks", cleaned)
	}
	return cleaned, nil
}

// CleanStale unlocks ships whose assignment has not been heartbeated
// within the stale timeout
func (m *Manager) CleanStale(ctx context.Context) (int, error) {
	cleaned, err := m.store.CleanStale(ctx, m.staleTimeout, "stale-timeout")
	if err != nil {
		return 0, err
	}
	if cleaned > 0 {
		log.Printf("cleaned %d stale locks (timeout %s)", cleaned, m.staleTimeout)
	}
	return cleaned, nil
}

// Heartbeat re-stamps a held lock so the stale sweep leaves it alone.
// Long-running workflows call this between iterations.
func (m *Manager) Heartbeat(ctx context.Context, shipSymbol string, playerID int) error {
	return m.store.Heartbeat(ctx, shipSymbol, playerID)
}

// Transfer hands a held lock from one container to another without a
// release window in between. Coordinators use this to pass ships to
// their workers.
func (m *Manager) Transfer(ctx context.Context, shipSymbol, fromContainerID, toContainerID string) error {
	if err := m.store.Transfer(ctx, shipSymbol, fromContainerID, toContainerID); err != nil {
		return err
	}
	log.Printf("lock transferred ship=%s from=%s to=%s", shipSymbol, fromContainerID, toContainerID)
	return nil
}

// Holder returns the container currently holding a ship, or empty
// string when the ship is free
func (m *Manager) Holder(ctx context.Context, shipSymbol string, playerID int) (string, error) {
	assignment, err := m.store.FindActiveByShip(ctx, shipSymbol, playerID)
	if err != nil {
		return "", err
	}
	if assignment == nil {
		return "", nil
	}
	return assignment.ContainerID, nil
}

// HeldBy lists the ships a container currently holds
func (m *Manager) HeldBy(ctx context.Context, containerID string, playerID int) ([]*fleet.ShipAssignment, error) {
	return m.store.FindActiveByContainer(ctx, containerID, playerID)
}

// AllActive lists every held lock across all players
func (m *Manager) AllActive(ctx context.Context) ([]*fleet.ShipAssignment, error) {
	return m.store.FindAllActive(ctx)
}

// StaleTimeout reports the configured stale sweep horizon
func (m *Manager) StaleTimeout() time.Duration {
	return m.staleTimeout
}

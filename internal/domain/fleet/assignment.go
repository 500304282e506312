package fleet

import (
	"fmt"
	"time"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// ShipAssignment is the exclusive claim a container holds on a ship.
// While ReleasedAt is nil the assignment is active and the ship is locked;
// a released row is immutable history.
type ShipAssignment struct {
	ShipSymbol    string
	PlayerID      int
	ContainerID   string
	AssignedAt    time.Time
	ReleasedAt    *time.Time
	ReleaseReason string
}

// NewShipAssignment creates an active assignment stamped at the clock's now
func NewShipAssignment(shipSymbol string, playerID int, containerID string, clock shared.Clock) *ShipAssignment {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ShipAssignment{
		ShipSymbol:  shipSymbol,
		PlayerID:    playerID,
		ContainerID: containerID,
		AssignedAt:  clock.Now(),
	}
}

// IsActive reports whether the assignment still locks the ship
func (a *ShipAssignment) IsActive() bool {
	return a.ReleasedAt == nil
}

// Release marks the assignment released. Releasing twice is an error;
// released rows never change.
func (a *ShipAssignment) Release(reason string, clock shared.Clock) error {
	if a.ReleasedAt != nil {
		return shared.NewNoOpError(fmt.Sprintf("assignment for %s already released", a.ShipSymbol))
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	now := clock.Now()
	a.ReleasedAt = &now
	a.ReleaseReason = reason
	return nil
}

// IsStale reports whether an active assignment has outlived the lock timeout
func (a *ShipAssignment) IsStale(timeout time.Duration, now time.Time) bool {
	if !a.IsActive() {
		return false
	}
	return !a.AssignedAt.Add(timeout).After(now)
}

// Heartbeat re-stamps AssignedAt so a long-lived holder is not swept as stale
func (a *ShipAssignment) Heartbeat(clock shared.Clock) error {
	if !a.IsActive() {
		return shared.NewNoOpError(fmt.Sprintf("assignment for %s is released", a.ShipSymbol))
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	a.AssignedAt = clock.Now()
	return nil
}

func (a *ShipAssignment) String() string {
	state := "active"
	if !a.IsActive() {
		state = "released"
	}
	return fmt.Sprintf("ShipAssignment[%s -> %s, %s]", a.ShipSymbol, a.ContainerID, state)
}

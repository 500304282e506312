package shared

import (
	"fmt"
	"math"
	"time"
)

// TraitMarketplace marks waypoints where fuel can be purchased
const TraitMarketplace = "MARKETPLACE"

// TypeFuelStation is a waypoint type that always sells fuel
const TypeFuelStation = "FUEL_STATION"

// Waypoint represents a location in space.
// Records are owned by the waypoint cache and mutated only by refill.
type Waypoint struct {
	Symbol       string    `json:"symbol"`
	SystemSymbol string    `json:"systemSymbol"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Type         string    `json:"type"`
	Traits       []string  `json:"traits,omitempty"`
	HasFuel      bool      `json:"has_fuel"`
	SyncedAt     time.Time `json:"synced_at"`
}

// NewWaypoint creates a new waypoint with validation
func NewWaypoint(symbol string, x, y float64) (*Waypoint, error) {
	if symbol == "" {
		return nil, NewValidationError("symbol", "cannot be empty")
	}
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return nil, NewValidationError("coordinates", "must be finite")
	}

	return &Waypoint{
		Symbol:       symbol,
		X:            x,
		Y:            y,
		SystemSymbol: ExtractSystemSymbol(symbol),
		Traits:       []string{},
	}, nil
}

// DistanceTo calculates Euclidean distance to another waypoint
func (w *Waypoint) DistanceTo(other *Waypoint) float64 {
	dx := other.X - w.X
	dy := other.Y - w.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// HasTrait checks if the waypoint carries the given trait
func (w *Waypoint) HasTrait(trait string) bool {
	for _, t := range w.Traits {
		if t == trait {
			return true
		}
	}
	return false
}

func (w *Waypoint) String() string {
	return fmt.Sprintf("Waypoint(%s)", w.Symbol)
}

// DeriveHasFuel computes fuel availability from type and traits.
// The API does not flag fuel directly; marketplaces and fuel stations sell it.
func DeriveHasFuel(waypointType string, traits []string) bool {
	if waypointType == TypeFuelStation {
		return true
	}
	for _, t := range traits {
		if t == TraitMarketplace {
			return true
		}
	}
	return false
}

// ExtractSystemSymbol extracts the system symbol from a waypoint symbol
// by finding the last hyphen and returning everything before it.
// Example: "X1-AB12-C3D4" -> "X1-AB12"
func ExtractSystemSymbol(waypointSymbol string) string {
	systemSymbol := waypointSymbol
	for i := len(waypointSymbol) - 1; i >= 0; i-- {
		if waypointSymbol[i] == '-' {
			systemSymbol = waypointSymbol[:i]
			break
		}
	}
	return systemSymbol
}

// FindNearestWaypoint returns the nearest waypoint from a list and its distance.
// Returns nil and 0 if targets list is empty.
func FindNearestWaypoint(from *Waypoint, targets []*Waypoint) (*Waypoint, float64) {
	if len(targets) == 0 {
		return nil, 0
	}

	nearest := targets[0]
	minDistance := from.DistanceTo(targets[0])

	for _, target := range targets[1:] {
		distance := from.DistanceTo(target)
		if distance < minDistance {
			minDistance = distance
			nearest = target
		}
	}

	return nearest, minDistance
}

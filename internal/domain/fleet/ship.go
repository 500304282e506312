package fleet

import (
	"fmt"
	"time"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// NavStatus represents ship navigation status
type NavStatus string

const (
	NavStatusDocked    NavStatus = "DOCKED"
	NavStatusInOrbit   NavStatus = "IN_ORBIT"
	NavStatusInTransit NavStatus = "IN_TRANSIT"
)

var validNavStatuses = map[NavStatus]bool{
	NavStatusDocked:    true,
	NavStatusInOrbit:   true,
	NavStatusInTransit: true,
}

// Fuel is a ship's current/capacity fuel pair
type Fuel struct {
	Current  int `json:"current"`
	Capacity int `json:"capacity"`
}

// CargoItem is one good held in a ship's cargo hold
type CargoItem struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Units  int    `json:"units"`
}

// Cargo is a ship's hold snapshot
type Cargo struct {
	Capacity  int         `json:"capacity"`
	Units     int         `json:"units"`
	Inventory []CargoItem `json:"inventory"`
}

// Ship is a lightweight snapshot of a ship's state. The authoritative copy
// lives behind the remote API; snapshots flow through the health monitor and
// workflow handlers and are never persisted as rows.
//
// Invariants:
// - 0 <= Fuel.Current <= Fuel.Capacity
// - Cargo inventory units sum to Cargo.Units <= Cargo.Capacity
// - ArrivalAt set iff NavStatus == IN_TRANSIT
type Ship struct {
	Symbol      string     `json:"symbol"`
	PlayerID    int        `json:"playerId"`
	Location    string     `json:"location"`
	NavStatus   NavStatus  `json:"navStatus"`
	Fuel        Fuel       `json:"fuel"`
	Cargo       Cargo      `json:"cargo"`
	EngineSpeed int        `json:"engineSpeed"`
	ArrivalAt   *time.Time `json:"arrivalAt,omitempty"`
}

// NewShip creates a validated ship snapshot
func NewShip(
	symbol string,
	playerID int,
	location string,
	navStatus NavStatus,
	fuel Fuel,
	cargo Cargo,
	engineSpeed int,
	arrivalAt *time.Time,
) (*Ship, error) {
	s := &Ship{
		Symbol:      symbol,
		PlayerID:    playerID,
		Location:    location,
		NavStatus:   navStatus,
		Fuel:        fuel,
		Cargo:       cargo,
		EngineSpeed: engineSpeed,
		ArrivalAt:   arrivalAt,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the snapshot invariants
func (s *Ship) Validate() error {
	if s.Symbol == "" {
		return shared.NewValidationError("symbol", "cannot be empty")
	}
	if s.PlayerID <= 0 {
		return shared.NewValidationError("player_id", "must be positive")
	}
	if !validNavStatuses[s.NavStatus] {
		return shared.NewValidationError("nav_status",
			fmt.Sprintf("invalid value %q", s.NavStatus))
	}
	if s.Fuel.Current < 0 || s.Fuel.Current > s.Fuel.Capacity {
		return shared.NewValidationError("fuel",
			fmt.Sprintf("current %d outside [0, %d]", s.Fuel.Current, s.Fuel.Capacity))
	}

	sum := 0
	for _, item := range s.Cargo.Inventory {
		sum += item.Units
	}
	if sum != s.Cargo.Units {
		return shared.NewValidationError("cargo",
			fmt.Sprintf("inventory sums to %d, units reports %d", sum, s.Cargo.Units))
	}
	if s.Cargo.Units > s.Cargo.Capacity {
		return shared.NewValidationError("cargo",
			fmt.Sprintf("units %d exceeds capacity %d", s.Cargo.Units, s.Cargo.Capacity))
	}

	if s.NavStatus == NavStatusInTransit && s.ArrivalAt == nil {
		return shared.NewValidationError("arrival_at", "required while IN_TRANSIT")
	}
	if s.NavStatus != NavStatusInTransit && s.ArrivalAt != nil {
		return shared.NewValidationError("arrival_at", "only valid while IN_TRANSIT")
	}

	return nil
}

// State queries

func (s *Ship) IsDocked() bool    { return s.NavStatus == NavStatusDocked }
func (s *Ship) IsInOrbit() bool   { return s.NavStatus == NavStatusInOrbit }
func (s *Ship) IsInTransit() bool { return s.NavStatus == NavStatusInTransit }

// SystemSymbol derives the system from the ship's current location
func (s *Ship) SystemSymbol() string {
	return shared.ExtractSystemSymbol(s.Location)
}

// FuelPercent returns remaining fuel as a fraction, 1.0 for fuel-less frames
func (s *Ship) FuelPercent() float64 {
	if s.Fuel.Capacity == 0 {
		return 1.0
	}
	return float64(s.Fuel.Current) / float64(s.Fuel.Capacity)
}

// CargoSpace returns the free units in the hold
func (s *Ship) CargoSpace() int {
	return s.Cargo.Capacity - s.Cargo.Units
}

func (s *Ship) String() string {
	return fmt.Sprintf("Ship[%s @ %s, %s]", s.Symbol, s.Location, s.NavStatus)
}

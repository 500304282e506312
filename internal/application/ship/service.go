package ship

import (
	"context"
	"fmt"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/domain/fleet"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// PlayerFinder resolves player ids to tokens
type PlayerFinder interface {
	FindByID(ctx context.Context, id int) (*fleet.Player, error)
}

// Service bundles the wait-for-state helpers every ship verb shares.
// Dock, orbit, refuel, and navigate all reduce to: await arrival,
// adjust nav status, issue the verb.
type Service struct {
	api     api.Client
	players PlayerFinder
	clock   shared.Clock
	poll    shared.PollConfig
}

// NewService creates a ship service with the default polling cadence
func NewService(apiClient api.Client, players PlayerFinder, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Service{
		api:     apiClient,
		players: players,
		clock:   clock,
		poll:    shared.DefaultPollConfig(),
	}
}

// SetPollConfig overrides the polling cadence (tests tighten it)
func (s *Service) SetPollConfig(cfg shared.PollConfig) {
	s.poll = cfg
}

// Token resolves a player's API bearer token
func (s *Service) Token(ctx context.Context, playerID int) (string, error) {
	player, err := s.players.FindByID(ctx, playerID)
	if err != nil {
		return "", fmt.Errorf("cannot resolve player %d: %w", playerID, err)
	}
	return player.Token, nil
}

// AwaitArrival polls the ship snapshot until it is no longer in
// transit. Returns immediately for ships already at rest.
func (s *Service) AwaitArrival(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
	return shared.PollUntil(ctx, s.clock, s.poll,
		func(ctx context.Context) (*api.ShipData, error) {
			return s.api.GetShip(ctx, shipSymbol, token)
		},
		func(ship *api.ShipData) bool {
			return ship.NavStatus != string(fleet.NavStatusInTransit)
		})
}

// EnsureOrbit awaits arrival and moves a docked ship into orbit
func (s *Service) EnsureOrbit(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
	ship, err := s.AwaitArrival(ctx, shipSymbol, token)
	if err != nil {
		return nil, err
	}
	if ship.NavStatus == string(fleet.NavStatusInOrbit) {
		return ship, nil
	}
	orbited, err := s.api.OrbitShip(ctx, shipSymbol, token)
	if err != nil {
		return nil, fmt.Errorf("failed to orbit ship %s: %w", shipSymbol, err)
	}
	return orbited, nil
}

// GoTo moves the ship to the waypoint unless it is already there,
// waiting out the transit. Returns the post-arrival snapshot.
func (s *Service) GoTo(ctx context.Context, shipSymbol, waypointSymbol, token string) (*api.ShipData, error) {
	ship, err := s.AwaitArrival(ctx, shipSymbol, token)
	if err != nil {
		return nil, err
	}
	if ship.Location == waypointSymbol {
		return ship, nil
	}
	if _, err := s.EnsureOrbit(ctx, shipSymbol, token); err != nil {
		return nil, err
	}
	if _, err := s.api.NavigateShip(ctx, shipSymbol, waypointSymbol, token); err != nil {
		return nil, err
	}
	return s.AwaitArrival(ctx, shipSymbol, token)
}

// GoToAndDock moves the ship to the waypoint and docks it
func (s *Service) GoToAndDock(ctx context.Context, shipSymbol, waypointSymbol, token string) (*api.ShipData, error) {
	if _, err := s.GoTo(ctx, shipSymbol, waypointSymbol, token); err != nil {
		return nil, err
	}
	return s.EnsureDocked(ctx, shipSymbol, token)
}

// EnsureDocked awaits arrival and docks an orbiting ship
func (s *Service) EnsureDocked(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
	ship, err := s.AwaitArrival(ctx, shipSymbol, token)
	if err != nil {
		return nil, err
	}
	if ship.NavStatus == string(fleet.NavStatusDocked) {
		return ship, nil
	}
	docked, err := s.api.DockShip(ctx, shipSymbol, token)
	if err != nil {
		return nil, fmt.Errorf("failed to dock ship %s: %w", shipSymbol, err)
	}
	return docked, nil
}

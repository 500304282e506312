package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/domain/fleet"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// DefaultWaypointTTL is how long a system's waypoint set stays fresh
const DefaultWaypointTTL = 2 * time.Hour

// WaypointLister is the slice of the API client the cache needs
type WaypointLister interface {
	ListWaypoints(ctx context.Context, systemSymbol, token string) ([]*api.WaypointData, error)
}

// WaypointStore is the repository surface backing the cache
type WaypointStore interface {
	ListBySystem(ctx context.Context, systemSymbol string) ([]*shared.Waypoint, error)
	ListBySystemWithTrait(ctx context.Context, systemSymbol, trait string) ([]*shared.Waypoint, error)
	OldestSyncedAt(ctx context.Context, systemSymbol string) (*time.Time, error)
	SaveAll(ctx context.Context, waypoints []*shared.Waypoint) error
}

// PlayerFinder resolves a player id to its API token
type PlayerFinder interface {
	FindByID(ctx context.Context, id int) (*fleet.Player, error)
}

// Filters narrow a waypoint listing. They apply after the read and never
// influence what the API is asked for.
type Filters struct {
	Trait        string
	ExcludeTrait string
	Type         string
	HasFuel      *bool
}

func (f Filters) matches(wp *shared.Waypoint) bool {
	if f.Trait != "" && !wp.HasTrait(f.Trait) {
		return false
	}
	if f.ExcludeTrait != "" && wp.HasTrait(f.ExcludeTrait) {
		return false
	}
	if f.Type != "" && wp.Type != f.Type {
		return false
	}
	if f.HasFuel != nil && wp.HasFuel != *f.HasFuel {
		return false
	}
	return true
}

// WaypointCache maps systems to their waypoint records, backed by the
// database with TTL-based staleness and lazy refill through the API.
//
// Reads are lock-free: two concurrent refills of one system may both call
// the API, and the later upsert wins. Refills are idempotent so this only
// costs a duplicate request.
type WaypointCache struct {
	store   WaypointStore
	apiList WaypointLister
	players PlayerFinder
	ttl     time.Duration
	clock   shared.Clock
}

// NewWaypointCache creates a waypoint cache.
// Zero ttl uses the 2h default; nil clock uses RealClock.
func NewWaypointCache(store WaypointStore, apiList WaypointLister, players PlayerFinder, ttl time.Duration, clock shared.Clock) *WaypointCache {
	if ttl <= 0 {
		ttl = DefaultWaypointTTL
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &WaypointCache{
		store:   store,
		apiList: apiList,
		players: players,
		ttl:     ttl,
		clock:   clock,
	}
}

// ListWaypoints returns a system's waypoints, refilling from the API when
// the cache is stale or empty and a player token is available. With no
// refill possible it returns whatever is cached, possibly nothing.
func (c *WaypointCache) ListWaypoints(ctx context.Context, systemSymbol string, filters Filters, playerID *int) ([]*shared.Waypoint, error) {
	cached, err := c.store.ListBySystem(ctx, systemSymbol)
	if err != nil {
		return nil, err
	}

	if len(cached) > 0 {
		oldest, err := c.store.OldestSyncedAt(ctx, systemSymbol)
		if err != nil {
			return nil, err
		}
		if oldest != nil && c.clock.Now().Sub(*oldest) < c.ttl {
			return applyFilters(cached, filters), nil
		}
	}

	if playerID != nil {
		refilled, err := c.Refill(ctx, systemSymbol, *playerID)
		if err == nil {
			return applyFilters(refilled, filters), nil
		}
		// Refill failure falls back to stale data rather than erroring a
		// read that can still be served
		if len(cached) == 0 {
			return nil, err
		}
	}

	return applyFilters(cached, filters), nil
}

// Refill fetches the authoritative waypoint list and upserts it with
// synced_at = now. Returns the refreshed records.
func (c *WaypointCache) Refill(ctx context.Context, systemSymbol string, playerID int) ([]*shared.Waypoint, error) {
	player, err := c.players.FindByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("cannot refill waypoints for %s: %w", systemSymbol, err)
	}

	data, err := c.apiList.ListWaypoints(ctx, systemSymbol, player.Token)
	if err != nil {
		return nil, fmt.Errorf("waypoint refill for %s failed: %w", systemSymbol, err)
	}

	waypoints := make([]*shared.Waypoint, 0, len(data))
	for _, d := range data {
		wp, err := shared.NewWaypoint(d.Symbol, d.X, d.Y)
		if err != nil {
			return nil, fmt.Errorf("API returned invalid waypoint %s: %w", d.Symbol, err)
		}
		wp.SystemSymbol = d.SystemSymbol
		wp.Type = d.Type
		wp.Traits = d.Traits
		wp.HasFuel = shared.DeriveHasFuel(d.Type, d.Traits)
		waypoints = append(waypoints, wp)
	}

	if err := c.store.SaveAll(ctx, waypoints); err != nil {
		return nil, err
	}
	return waypoints, nil
}

// FindWithTrait is a convenience read for a single trait, served from the
// repository's indexed query when fresh
func (c *WaypointCache) FindWithTrait(ctx context.Context, systemSymbol, trait string, playerID *int) ([]*shared.Waypoint, error) {
	return c.ListWaypoints(ctx, systemSymbol, Filters{Trait: trait}, playerID)
}

func applyFilters(waypoints []*shared.Waypoint, filters Filters) []*shared.Waypoint {
	filtered := make([]*shared.Waypoint, 0, len(waypoints))
	for _, wp := range waypoints {
		if filters.matches(wp) {
			filtered = append(filtered, wp)
		}
	}
	return filtered
}

package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// GraphStore is the repository surface backing the graph cache
type GraphStore interface {
	Find(ctx context.Context, systemSymbol string) (*shared.NavigationGraph, error)
	Save(ctx context.Context, graph *shared.NavigationGraph) error
}

// GraphCache maps systems to navigation graphs. Graphs have no TTL:
// invalidation is explicit via forceRefresh or implicit through the next
// waypoint refill a stale waypoint cache triggers downstream.
//
// Graph builds load waypoints through the waypoint cache, so a build always
// upserts the underlying waypoint records through the same write path the
// waypoint cache uses. The two caches cannot diverge.
type GraphCache struct {
	store     GraphStore
	waypoints *WaypointCache
	clock     shared.Clock

	mu     sync.RWMutex
	graphs map[string]*shared.NavigationGraph
}

// NewGraphCache creates a graph cache over a store and the waypoint cache
func NewGraphCache(store GraphStore, waypoints *WaypointCache, clock shared.Clock) *GraphCache {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &GraphCache{
		store:     store,
		waypoints: waypoints,
		clock:     clock,
		graphs:    make(map[string]*shared.NavigationGraph),
	}
}

// GetGraph returns the system's navigation graph, building it from the
// waypoint cache when absent or when forceRefresh is set.
func (c *GraphCache) GetGraph(ctx context.Context, systemSymbol string, playerID *int, forceRefresh bool) (*shared.NavigationGraph, error) {
	if !forceRefresh {
		c.mu.RLock()
		cached, ok := c.graphs[systemSymbol]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		persisted, err := c.store.Find(ctx, systemSymbol)
		if err != nil {
			return nil, err
		}
		if persisted != nil {
			c.remember(persisted)
			return persisted, nil
		}
	}

	return c.build(ctx, systemSymbol, playerID)
}

// build constructs the complete graph over the system's waypoints and
// persists exactly one row per system
func (c *GraphCache) build(ctx context.Context, systemSymbol string, playerID *int) (*shared.NavigationGraph, error) {
	waypoints, err := c.waypoints.ListWaypoints(ctx, systemSymbol, Filters{}, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load waypoints for graph of %s: %w", systemSymbol, err)
	}
	if len(waypoints) == 0 {
		return nil, shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("no waypoints known for system %s", systemSymbol))
	}

	graph := shared.BuildCompleteGraph(systemSymbol, waypoints, c.clock.Now())
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	if err := c.store.Save(ctx, graph); err != nil {
		return nil, err
	}

	c.remember(graph)
	return graph, nil
}

// Invalidate drops the in-memory copy so the next read hits the store
func (c *GraphCache) Invalidate(systemSymbol string) {
	c.mu.Lock()
	delete(c.graphs, systemSymbol)
	c.mu.Unlock()
}

func (c *GraphCache) remember(graph *shared.NavigationGraph) {
	c.mu.Lock()
	c.graphs[graph.System] = graph
	c.mu.Unlock()
}

package cache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/adapters/cache"
	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/test/helpers"
)

func TestGraphCache_BuildsCompleteGraphAndUpsertsWaypoints(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	waypointRepo := persistence.NewGormWaypointRepository(db, clock)
	graphRepo := persistence.NewGormGraphRepository(db)
	apiClient := &fakeWaypointAPI{waypoints: testWaypointData()}
	wc := cache.NewWaypointCache(waypointRepo, apiClient, &fakePlayerFinder{}, 2*time.Hour, clock)
	gc := cache.NewGraphCache(graphRepo, wc, clock)
	ctx := context.Background()
	playerID := 1

	graph, err := gc.GetGraph(ctx, "X1-AB12", &playerID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, graph.NodeCount())

	// Complete graph: all pairs connected with Euclidean weights
	w, ok := graph.EdgeWeight("X1-AB12-C1", "X1-AB12-C2")
	require.True(t, ok)
	assert.InDelta(t, 50.0, w, 0.001)
	w, ok = graph.EdgeWeight("X1-AB12-C3", "X1-AB12-C1")
	require.True(t, ok)
	assert.InDelta(t, 5.0, w, 0.001)

	// Fuel flags carried onto nodes
	assert.ElementsMatch(t, []string{"X1-AB12-C1", "X1-AB12-C3"}, graph.FuelNodes())

	// The build went through the waypoint cache, so waypoint rows exist too
	stored, err := waypointRepo.ListBySystem(ctx, "X1-AB12")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestGraphCache_NoTTLServesCachedGraph(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	waypointRepo := persistence.NewGormWaypointRepository(db, clock)
	graphRepo := persistence.NewGormGraphRepository(db)
	apiClient := &fakeWaypointAPI{waypoints: testWaypointData()}
	wc := cache.NewWaypointCache(waypointRepo, apiClient, &fakePlayerFinder{}, 2*time.Hour, clock)
	gc := cache.NewGraphCache(graphRepo, wc, clock)
	ctx := context.Background()
	playerID := 1

	first, err := gc.GetGraph(ctx, "X1-AB12", &playerID, false)
	require.NoError(t, err)
	callsAfterBuild := atomic.LoadInt32(&apiClient.calls)

	// Days later the graph is still served without a rebuild
	clock.Advance(72 * time.Hour)
	second, err := gc.GetGraph(ctx, "X1-AB12", &playerID, false)
	require.NoError(t, err)
	assert.Equal(t, first.BuiltAt, second.BuiltAt)
	assert.Equal(t, callsAfterBuild, atomic.LoadInt32(&apiClient.calls))
}

func TestGraphCache_ForceRefreshRebuilds(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	waypointRepo := persistence.NewGormWaypointRepository(db, clock)
	graphRepo := persistence.NewGormGraphRepository(db)
	apiClient := &fakeWaypointAPI{waypoints: testWaypointData()}
	wc := cache.NewWaypointCache(waypointRepo, apiClient, &fakePlayerFinder{}, 2*time.Hour, clock)
	gc := cache.NewGraphCache(graphRepo, wc, clock)
	ctx := context.Background()
	playerID := 1

	first, err := gc.GetGraph(ctx, "X1-AB12", &playerID, false)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	rebuilt, err := gc.GetGraph(ctx, "X1-AB12", &playerID, true)
	require.NoError(t, err)
	assert.True(t, rebuilt.BuiltAt.After(first.BuiltAt))

	// The store holds exactly one row per system: the rebuilt graph
	persisted, err := graphRepo.Find(ctx, "X1-AB12")
	require.NoError(t, err)
	assert.Equal(t, rebuilt.BuiltAt.UTC(), persisted.BuiltAt.UTC())
}

func TestGraphCache_UnknownSystemFails(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	waypointRepo := persistence.NewGormWaypointRepository(db, clock)
	graphRepo := persistence.NewGormGraphRepository(db)
	apiClient := &fakeWaypointAPI{waypoints: nil}
	wc := cache.NewWaypointCache(waypointRepo, apiClient, &fakePlayerFinder{}, 2*time.Hour, clock)
	gc := cache.NewGraphCache(graphRepo, wc, clock)
	ctx := context.Background()

	_, err := gc.GetGraph(ctx, "X1-EMPTY", nil, false)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/test/helpers"
)

func makeWaypoint(t *testing.T, symbol string, x, y float64, wpType string, traits ...string) *shared.Waypoint {
	t.Helper()
	wp, err := shared.NewWaypoint(symbol, x, y)
	require.NoError(t, err)
	wp.Type = wpType
	wp.Traits = traits
	wp.HasFuel = shared.DeriveHasFuel(wpType, traits)
	return wp
}

func TestWaypointRepository_UpsertIsIdempotent(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormWaypointRepository(db, clock)
	ctx := context.Background()

	wp := makeWaypoint(t, "X1-AB12-C1", 10, 20, "PLANET", "MARKETPLACE")
	require.NoError(t, repo.SaveAll(ctx, []*shared.Waypoint{wp}))

	// Saving the same symbol again overwrites instead of duplicating
	clock.Advance(time.Minute)
	updated := makeWaypoint(t, "X1-AB12-C1", 11, 21, "PLANET", "SHIPYARD")
	require.NoError(t, repo.SaveAll(ctx, []*shared.Waypoint{updated}))

	waypoints, err := repo.ListBySystem(ctx, "X1-AB12")
	require.NoError(t, err)
	require.Len(t, waypoints, 1)
	assert.Equal(t, 11.0, waypoints[0].X)
	// Traits are replaced, not merged: the new record is authoritative
	assert.Equal(t, []string{"SHIPYARD"}, waypoints[0].Traits)
	assert.False(t, waypoints[0].HasFuel)
}

func TestWaypointRepository_SyncedAtAdvancesOnRefill(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormWaypointRepository(db, clock)
	ctx := context.Background()

	wp := makeWaypoint(t, "X1-AB12-C1", 10, 20, "PLANET")
	require.NoError(t, repo.SaveAll(ctx, []*shared.Waypoint{wp}))

	first, err := repo.OldestSyncedAt(ctx, "X1-AB12")
	require.NoError(t, err)
	require.NotNil(t, first)

	clock.Advance(time.Hour)
	require.NoError(t, repo.SaveAll(ctx, []*shared.Waypoint{wp}))

	second, err := repo.OldestSyncedAt(ctx, "X1-AB12")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.True(t, second.After(*first))
}

func TestWaypointRepository_FilteredLists(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormWaypointRepository(db, clock)
	ctx := context.Background()

	require.NoError(t, repo.SaveAll(ctx, []*shared.Waypoint{
		makeWaypoint(t, "X1-AB12-C1", 0, 0, "PLANET", "MARKETPLACE"),
		makeWaypoint(t, "X1-AB12-C2", 5, 5, "ASTEROID"),
		makeWaypoint(t, "X1-AB12-C3", 9, 9, "FUEL_STATION"),
		makeWaypoint(t, "X1-CD34-D1", 1, 1, "PLANET", "MARKETPLACE"),
	}))

	byTrait, err := repo.ListBySystemWithTrait(ctx, "X1-AB12", "MARKETPLACE")
	require.NoError(t, err)
	require.Len(t, byTrait, 1)
	assert.Equal(t, "X1-AB12-C1", byTrait[0].Symbol)

	byType, err := repo.ListBySystemWithType(ctx, "X1-AB12", "ASTEROID")
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "X1-AB12-C2", byType[0].Symbol)

	withFuel, err := repo.ListBySystemWithFuel(ctx, "X1-AB12")
	require.NoError(t, err)
	assert.Len(t, withFuel, 2) // marketplace + fuel station

	missing, err := repo.OldestSyncedAt(ctx, "X1-ZZ99")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

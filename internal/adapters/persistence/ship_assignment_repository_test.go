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

func TestShipAssignmentRepository_AcquireConflict(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormShipAssignmentRepository(db, clock)
	ctx := context.Background()

	// First acquire succeeds
	first, err := repo.Acquire(ctx, "SHIP-1", 1, "container-a")
	require.NoError(t, err)
	assert.True(t, first.IsActive())

	// Second acquire for the same ship fails with the holder's id
	_, err = repo.Acquire(ctx, "SHIP-1", 1, "container-b")
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	var assignedErr *shared.ShipAlreadyAssignedError
	require.ErrorAs(t, err, &assignedErr)
	assert.Equal(t, "container-a", assignedErr.ContainerID)

	// After release, the ship can be acquired again
	require.NoError(t, repo.Release(ctx, "SHIP-1", 1, "done", false))
	second, err := repo.Acquire(ctx, "SHIP-1", 1, "container-b")
	require.NoError(t, err)
	assert.Equal(t, "container-b", second.ContainerID)
}

func TestShipAssignmentRepository_ReleaseIsNoOpWhenAlreadyReleased(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormShipAssignmentRepository(db, clock)
	ctx := context.Background()

	_, err := repo.Acquire(ctx, "SHIP-1", 1, "container-a")
	require.NoError(t, err)

	require.NoError(t, repo.Release(ctx, "SHIP-1", 1, "done", false))

	// Second release is a NoOp error
	err = repo.Release(ctx, "SHIP-1", 1, "done-again", false)
	require.Error(t, err)
	assert.True(t, shared.IsNoOp(err))

	// Force release bypasses the check
	assert.NoError(t, repo.Release(ctx, "SHIP-1", 1, "forced", true))

	// The released row is immutable: reason stays from the first release
	released, err := repo.FindActiveByShip(ctx, "SHIP-1", 1)
	require.NoError(t, err)
	assert.Nil(t, released)
}

func TestShipAssignmentRepository_ReleaseByContainer(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormShipAssignmentRepository(db, clock)
	ctx := context.Background()

	for _, ship := range []string{"SHIP-1", "SHIP-2", "SHIP-3"} {
		_, err := repo.Acquire(ctx, ship, 1, "container-a")
		require.NoError(t, err)
	}
	_, err := repo.Acquire(ctx, "SHIP-4", 1, "container-b")
	require.NoError(t, err)

	released, err := repo.ReleaseByContainer(ctx, "container-a", 1, "container stopped")
	require.NoError(t, err)
	assert.Equal(t, 3, released)

	remaining, err := repo.FindAllActive(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "SHIP-4", remaining[0].ShipSymbol)
}

func TestShipAssignmentRepository_CleanStale(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormShipAssignmentRepository(db, clock)
	ctx := context.Background()

	_, err := repo.Acquire(ctx, "SHIP-OLD", 1, "container-a")
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	_, err = repo.Acquire(ctx, "SHIP-NEW", 1, "container-b")
	require.NoError(t, err)

	released, err := repo.CleanStale(ctx, 30*time.Minute, "stale-lock")
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	active, err := repo.FindAllActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "SHIP-NEW", active[0].ShipSymbol)
}

func TestShipAssignmentRepository_HeartbeatDefersStaleSweep(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormShipAssignmentRepository(db, clock)
	ctx := context.Background()

	_, err := repo.Acquire(ctx, "SHIP-1", 1, "container-a")
	require.NoError(t, err)

	clock.Advance(25 * time.Minute)
	require.NoError(t, repo.Heartbeat(ctx, "SHIP-1", 1))

	clock.Advance(10 * time.Minute)
	released, err := repo.CleanStale(ctx, 30*time.Minute, "stale-lock")
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestShipAssignmentRepository_CleanOrphans(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormShipAssignmentRepository(db, clock)
	ctx := context.Background()

	_, err := repo.Acquire(ctx, "SHIP-1", 1, "live-container")
	require.NoError(t, err)
	_, err = repo.Acquire(ctx, "SHIP-2", 1, "dead-container")
	require.NoError(t, err)

	released, err := repo.CleanOrphans(ctx, []string{"live-container"}, "orphaned")
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	active, err := repo.FindAllActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "SHIP-1", active[0].ShipSymbol)
}

func TestShipAssignmentRepository_Transfer(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormShipAssignmentRepository(db, clock)
	ctx := context.Background()

	_, err := repo.Acquire(ctx, "SHIP-1", 1, "coordinator")
	require.NoError(t, err)

	require.NoError(t, repo.Transfer(ctx, "SHIP-1", "coordinator", "worker-1"))

	active, err := repo.FindActiveByShip(ctx, "SHIP-1", 1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "worker-1", active.ContainerID)

	// Transfer from a container that no longer holds the ship fails
	err = repo.Transfer(ctx, "SHIP-1", "coordinator", "worker-2")
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestShipAssignmentRepository_ReleaseAllActive(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormShipAssignmentRepository(db, clock)
	ctx := context.Background()

	for _, ship := range []string{"SHIP-1", "SHIP-2"} {
		_, err := repo.Acquire(ctx, ship, 1, "container-a")
		require.NoError(t, err)
	}

	released, err := repo.ReleaseAllActive(ctx, "daemon-startup")
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	active, err := repo.FindAllActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

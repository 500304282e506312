package locks_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/application/locks"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/test/helpers"
)

func newManagerFixture(t *testing.T) (*locks.Manager, *shared.MockClock) {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormShipAssignmentRepository(db, clock)
	return locks.NewManager(repo, 30*time.Minute), clock
}

func TestManager_SecondAcquireConflictsUntilRelease(t *testing.T) {
	mgr, _ := newManagerFixture(t)
	ctx := context.Background()

	_, err := mgr.Acquire(ctx, "SHIP-1", 1, "miner-1")
	require.NoError(t, err)

	_, err = mgr.Acquire(ctx, "SHIP-1", 1, "trader-1")
	require.Error(t, err)
	var assigned *shared.ShipAlreadyAssignedError
	require.ErrorAs(t, err, &assigned)
	assert.Equal(t, "miner-1", assigned.ContainerID)

	require.NoError(t, mgr.Release(ctx, "SHIP-1", 1, "done"))

	_, err = mgr.Acquire(ctx, "SHIP-1", 1, "trader-1")
	require.NoError(t, err)

	holder, err := mgr.Holder(ctx, "SHIP-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "trader-1", holder)
}

func TestManager_DoubleReleaseIsNoOp(t *testing.T) {
	mgr, _ := newManagerFixture(t)
	ctx := context.Background()

	_, err := mgr.Acquire(ctx, "SHIP-2", 1, "miner-1")
	require.NoError(t, err)

	require.NoError(t, mgr.Release(ctx, "SHIP-2", 1, "done"))

	err = mgr.Release(ctx, "SHIP-2", 1, "done")
	require.Error(t, err)
	assert.True(t, shared.IsNoOp(err))

	// ForceRelease swallows the no-op
	require.NoError(t, mgr.ForceRelease(ctx, "SHIP-2", 1, "cleanup"))
}

func TestManager_AcquireAllRollsBackOnConflict(t *testing.T) {
	mgr, _ := newManagerFixture(t)
	ctx := context.Background()

	// SHIP-B is already held by another container
	_, err := mgr.Acquire(ctx, "SHIP-B", 1, "other-1")
	require.NoError(t, err)

	_, err = mgr.AcquireAll(ctx, []string{"SHIP-A", "SHIP-B", "SHIP-C"}, 1, "squad-1")
	require.Error(t, err)
	var assigned *shared.ShipAlreadyAssignedError
	require.ErrorAs(t, err, &assigned)

	// SHIP-A was rolled back, not left locked by squad-1
	holder, err := mgr.Holder(ctx, "SHIP-A", 1)
	require.NoError(t, err)
	assert.Empty(t, holder)
}

func TestManager_CleanStaleRespectsHeartbeat(t *testing.T) {
	mgr, clock := newManagerFixture(t)
	ctx := context.Background()

	_, err := mgr.Acquire(ctx, "SHIP-3", 1, "miner-1")
	require.NoError(t, err)
	_, err = mgr.Acquire(ctx, "SHIP-4", 1, "miner-2")
	require.NoError(t, err)

	// Only SHIP-4 keeps heartbeating
	clock.Advance(20 * time.Minute)
	require.NoError(t, mgr.Heartbeat(ctx, "SHIP-4", 1))

	clock.Advance(15 * time.Minute)
	cleaned, err := mgr.CleanStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)

	holder, err := mgr.Holder(ctx, "SHIP-3", 1)
	require.NoError(t, err)
	assert.Empty(t, holder)
	holder, err = mgr.Holder(ctx, "SHIP-4", 1)
	require.NoError(t, err)
	assert.Equal(t, "miner-2", holder)
}

func TestManager_TransferMovesLockBetweenContainers(t *testing.T) {
	mgr, _ := newManagerFixture(t)
	ctx := context.Background()

	_, err := mgr.Acquire(ctx, "SHIP-5", 1, "coordinator-1")
	require.NoError(t, err)

	require.NoError(t, mgr.Transfer(ctx, "SHIP-5", "coordinator-1", "worker-1"))

	holder, err := mgr.Holder(ctx, "SHIP-5", 1)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", holder)

	// The old holder cannot transfer again
	err = mgr.Transfer(ctx, "SHIP-5", "coordinator-1", "worker-2")
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestManager_CleanOrphansAndReleaseByContainer(t *testing.T) {
	mgr, _ := newManagerFixture(t)
	ctx := context.Background()

	_, err := mgr.Acquire(ctx, "SHIP-6", 1, "alive-1")
	require.NoError(t, err)
	_, err = mgr.Acquire(ctx, "SHIP-7", 1, "dead-1")
	require.NoError(t, err)
	_, err = mgr.Acquire(ctx, "SHIP-8", 1, "dead-1")
	require.NoError(t, err)

	cleaned, err := mgr.CleanOrphans(ctx, []string{"alive-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, cleaned)

	held, err := mgr.HeldBy(ctx, "alive-1", 1)
	require.NoError(t, err)
	require.Len(t, held, 1)

	released, err := mgr.ReleaseByContainer(ctx, "alive-1", 1, "container-stopped")
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	active, err := mgr.AllActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestManager_ReacquireBySameContainerIsIdempotent(t *testing.T) {
	mgr, clock := newManagerFixture(t)
	ctx := context.Background()

	first, err := mgr.Acquire(ctx, "SHIP-9", 1, "worker-1")
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)

	// Same holder: succeeds and refreshes the heartbeat
	again, err := mgr.Acquire(ctx, "SHIP-9", 1, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, "worker-1", again.ContainerID)
	assert.True(t, again.AssignedAt.After(first.AssignedAt))

	// The refreshed stamp keeps the sweep away
	clock.Advance(15 * time.Minute)
	cleaned, err := mgr.CleanStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cleaned)

	holder, err := mgr.Holder(ctx, "SHIP-9", 1)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", holder)
}

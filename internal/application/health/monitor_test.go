package health_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/application/health"
	"github.com/andrescamacho/fleetd/internal/application/locks"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/fleet"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/test/helpers"
)

// fakeShipAPI serves a mutable ship snapshot; after arriveAfter fetches
// an in-transit ship arrives in orbit
type fakeShipAPI struct {
	mu          sync.Mutex
	ship        api.ShipData
	arriveAfter int
	getCalls    int
	dockCalls   int
}

func (f *fakeShipAPI) GetShip(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	snapshot := f.ship
	if snapshot.NavStatus == "IN_TRANSIT" && f.arriveAfter > 0 && f.getCalls >= f.arriveAfter {
		snapshot.NavStatus = "IN_ORBIT"
		snapshot.ArrivalAt = nil
		f.ship = snapshot
	}
	return &snapshot, nil
}

func (f *fakeShipAPI) DockShip(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dockCalls++
	f.ship.NavStatus = "DOCKED"
	snapshot := f.ship
	return &snapshot, nil
}

type fakePlayerFinder struct{}

func (f *fakePlayerFinder) FindByID(ctx context.Context, id int) (*fleet.Player, error) {
	return &fleet.Player{ID: id, AgentSymbol: "AGENT-1", Token: "token-1"}, nil
}

type monitorFixture struct {
	monitor    *health.Monitor
	shipAPI    *fakeShipAPI
	clock      *shared.MockClock
	containers *persistence.GormContainerRepository
	logs       *persistence.GormContainerLogRepository
	locks      *locks.Manager
}

func newMonitorFixture(t *testing.T, shipAPI *fakeShipAPI, opts health.Options) *monitorFixture {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	containerRepo := persistence.NewGormContainerRepository(db, clock)
	logRepo := persistence.NewGormContainerLogRepository(db, clock)
	assignmentRepo := persistence.NewGormShipAssignmentRepository(db, clock)
	lockMgr := locks.NewManager(assignmentRepo, 30*time.Minute)

	monitor := health.New(shipAPI, &fakePlayerFinder{}, containerRepo, logRepo, lockMgr,
		func() []string { return []string{"C1"} }, clock, opts)

	return &monitorFixture{
		monitor:    monitor,
		shipAPI:    shipAPI,
		clock:      clock,
		containers: containerRepo,
		logs:       logRepo,
		locks:      lockMgr,
	}
}

func (f *monitorFixture) startRunningContainer(t *testing.T, ctx context.Context) {
	t.Helper()
	c := container.New("C1", container.TypeScoutTour, 1, container.InfiniteIterations, nil, nil)
	require.NoError(t, c.Start())
	require.NoError(t, f.containers.Save(ctx, c))
	_, err := f.locks.Acquire(ctx, "SHIP-1", 1, "C1")
	require.NoError(t, err)
}

func containerLogText(t *testing.T, f *monitorFixture, ctx context.Context) string {
	t.Helper()
	entries, err := f.logs.GetLogs(ctx, "C1", 1, 100, 0, nil, nil)
	require.NoError(t, err)
	var sb strings.Builder
	for _, entry := range entries {
		sb.WriteString(entry.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestMonitor_RecoversShipStuckInTransit(t *testing.T) {
	now := time.Now().UTC()
	arrival := now.Add(-120 * time.Second)
	shipAPI := &fakeShipAPI{
		ship: api.ShipData{
			Symbol:    "SHIP-1",
			Location:  "X1-A-1",
			NavStatus: "IN_TRANSIT",
			ArrivalAt: &arrival,
		},
		arriveAfter: 2,
	}
	f := newMonitorFixture(t, shipAPI, health.Options{})
	f.clock.SetTime(now)
	ctx := context.Background()
	f.startRunningContainer(t, ctx)

	require.NoError(t, f.monitor.RunOnce(ctx))

	assert.Equal(t, 1, f.monitor.RecoveryAttempts("SHIP-1"))
	assert.Equal(t, 1, shipAPI.dockCalls)
	assert.Contains(t, containerLogText(t, f, ctx), "recovered")

	// Next pass sees the docked ship and clears the counter
	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.monitor.RunOnce(ctx))
	assert.Equal(t, 0, f.monitor.RecoveryAttempts("SHIP-1"))
	assert.Equal(t, 1, shipAPI.dockCalls)

	// The assignment survived recovery
	holder, err := f.locks.Holder(ctx, "SHIP-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "C1", holder)
}

func TestMonitor_TransitWithinGraceIsHealthy(t *testing.T) {
	now := time.Now().UTC()
	arrival := now.Add(5 * time.Minute)
	shipAPI := &fakeShipAPI{
		ship: api.ShipData{
			Symbol:    "SHIP-1",
			Location:  "X1-A-1",
			NavStatus: "IN_TRANSIT",
			ArrivalAt: &arrival,
		},
	}
	f := newMonitorFixture(t, shipAPI, health.Options{})
	f.clock.SetTime(now)
	ctx := context.Background()
	f.startRunningContainer(t, ctx)

	require.NoError(t, f.monitor.RunOnce(ctx))

	assert.Equal(t, 0, f.monitor.RecoveryAttempts("SHIP-1"))
	assert.Equal(t, 0, shipAPI.dockCalls)
}

func TestMonitor_IdleShipAbandonedAfterBudget(t *testing.T) {
	now := time.Now().UTC()
	// Docked and unmoving: recovery has nothing to do, so the pair
	// never changes and the attempt budget drains
	shipAPI := &fakeShipAPI{
		ship: api.ShipData{
			Symbol:    "SHIP-1",
			Location:  "X1-A-1",
			NavStatus: "DOCKED",
		},
	}
	f := newMonitorFixture(t, shipAPI, health.Options{
		IdleThreshold:    15 * time.Minute,
		RecoveryCooldown: 60 * time.Second,
		MaxRecoveries:    2,
	})
	f.clock.SetTime(now)
	ctx := context.Background()
	f.startRunningContainer(t, ctx)

	// First pass records the baseline observation
	require.NoError(t, f.monitor.RunOnce(ctx))
	assert.Equal(t, 0, f.monitor.RecoveryAttempts("SHIP-1"))

	// Past the idle threshold with no progress: two recovery attempts
	f.clock.Advance(16 * time.Minute)
	require.NoError(t, f.monitor.RunOnce(ctx))
	assert.Equal(t, 1, f.monitor.RecoveryAttempts("SHIP-1"))

	f.clock.Advance(61 * time.Second)
	require.NoError(t, f.monitor.RunOnce(ctx))
	assert.Equal(t, 2, f.monitor.RecoveryAttempts("SHIP-1"))

	// Budget exhausted: the owning container is failed and the ship freed
	f.clock.Advance(61 * time.Second)
	require.NoError(t, f.monitor.RunOnce(ctx))

	owner, err := f.containers.FindByID(ctx, "C1", 1)
	require.NoError(t, err)
	assert.Equal(t, container.StatusFailed, owner.Status())
	require.Error(t, owner.LastError())
	assert.Contains(t, owner.LastError().Error(), "health-abandoned")

	holder, err := f.locks.Holder(ctx, "SHIP-1", 1)
	require.NoError(t, err)
	assert.Empty(t, holder)
	assert.Equal(t, 0, f.monitor.RecoveryAttempts("SHIP-1"))
}

func TestMonitor_CooldownThrottlesRecoveryAttempts(t *testing.T) {
	now := time.Now().UTC()
	arrival := now.Add(-5 * time.Minute)
	shipAPI := &fakeShipAPI{
		ship: api.ShipData{
			Symbol:    "SHIP-1",
			Location:  "X1-A-1",
			NavStatus: "IN_TRANSIT",
			ArrivalAt: &arrival,
		},
		arriveAfter: 2,
	}
	f := newMonitorFixture(t, shipAPI, health.Options{RecoveryCooldown: 60 * time.Second})
	f.clock.SetTime(now)
	ctx := context.Background()
	f.startRunningContainer(t, ctx)

	require.NoError(t, f.monitor.RunOnce(ctx))
	require.Equal(t, 1, f.monitor.RecoveryAttempts("SHIP-1"))

	// The dock moved the ship to DOCKED; drag it back into a stuck
	// transit to exercise the cooldown on the very next pass
	shipAPI.mu.Lock()
	stuckArrival := f.clock.Now().Add(-5 * time.Minute)
	shipAPI.ship.NavStatus = "IN_TRANSIT"
	shipAPI.ship.ArrivalAt = &stuckArrival
	shipAPI.arriveAfter = 0
	shipAPI.getCalls = 0
	shipAPI.mu.Unlock()

	// Within the cooldown no second attempt fires
	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.monitor.RunOnce(ctx))
	assert.Equal(t, 1, f.monitor.RecoveryAttempts("SHIP-1"))
}

func TestMonitor_SweepsOrphanedAndStaleLocks(t *testing.T) {
	shipAPI := &fakeShipAPI{
		ship: api.ShipData{Symbol: "SHIP-1", Location: "X1-A-1", NavStatus: "DOCKED"},
	}
	f := newMonitorFixture(t, shipAPI, health.Options{})
	ctx := context.Background()

	// An assignment held by a container the supervisor no longer knows
	_, err := f.locks.Acquire(ctx, "SHIP-9", 1, "gone-1")
	require.NoError(t, err)

	require.NoError(t, f.monitor.RunOnce(ctx))

	holder, err := f.locks.Holder(ctx, "SHIP-9", 1)
	require.NoError(t, err)
	assert.Empty(t, holder)
}

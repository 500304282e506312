package supervisor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/application/locks"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/test/helpers"
)

type fixture struct {
	sup        *supervisor.Supervisor
	containers *persistence.GormContainerRepository
	logs       *persistence.GormContainerLogRepository
	locks      *locks.Manager
}

func newFixture(t *testing.T, opts supervisor.Options) *fixture {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewRealClock()
	containerRepo := persistence.NewGormContainerRepository(db, clock)
	logRepo := persistence.NewGormContainerLogRepository(db, clock)
	assignmentRepo := persistence.NewGormShipAssignmentRepository(db, clock)
	lockMgr := locks.NewManager(assignmentRepo, 30*time.Minute)

	sub := &supervisor.Substrate{
		Clock:      clock,
		Containers: containerRepo,
		Logs:       logRepo,
		Locks:      lockMgr,
	}
	return &fixture{
		sup:        supervisor.New(sub, opts),
		containers: containerRepo,
		logs:       logRepo,
		locks:      lockMgr,
	}
}

func TestSupervisor_RunsContainerToCompletion(t *testing.T) {
	f := newFixture(t, supervisor.Options{})
	ctx := context.Background()

	var iterations int32
	f.sup.RegisterFactory(container.TypeScoutTour,
		func(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
			return func(ctx context.Context) error {
				atomic.AddInt32(&iterations, 1)
				return nil
			}, nil
		})

	c := container.New("scout-1", container.TypeScoutTour, 1, 3, nil, nil)
	require.NoError(t, f.sup.StartContainer(ctx, c))
	f.sup.Wait("scout-1")

	assert.Equal(t, int32(3), atomic.LoadInt32(&iterations))

	persisted, err := f.containers.FindByID(ctx, "scout-1", 1)
	require.NoError(t, err)
	assert.Equal(t, container.StatusCompleted, persisted.Status())
	assert.Equal(t, 3, persisted.CurrentIteration())
	require.NotNil(t, persisted.StoppedAt())

	entries, err := f.logs.GetLogs(ctx, "scout-1", 1, 50, 0, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestSupervisor_TerminalRunnersLeaveTheRegistry(t *testing.T) {
	f := newFixture(t, supervisor.Options{})
	ctx := context.Background()

	f.sup.RegisterFactory(container.TypeScoutTour,
		func(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
			return func(ctx context.Context) error { return nil }, nil
		})
	f.sup.RegisterFactory(container.TypeNavigate,
		func(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
			return func(ctx context.Context) error {
				return errors.New("destination unreachable")
			}, nil
		})

	completed := container.New("tour-done", container.TypeScoutTour, 1, 1, nil, nil)
	failed := container.New("nav-dead", container.TypeNavigate, 1, 1, nil, nil)
	require.NoError(t, f.sup.StartContainer(ctx, completed))
	require.NoError(t, f.sup.StartContainer(ctx, failed))
	f.sup.Wait("tour-done")
	f.sup.Wait("nav-dead")

	// Finished containers must not linger in the live set
	assert.Equal(t, 0, f.sup.ActiveCount())
	_, ok := f.sup.Get("tour-done")
	assert.False(t, ok)
	_, ok = f.sup.Get("nav-dead")
	assert.False(t, ok)

	// Their final state is still readable from the store
	persisted, err := f.containers.FindByID(ctx, "tour-done", 1)
	require.NoError(t, err)
	assert.Equal(t, container.StatusCompleted, persisted.Status())
	persisted, err = f.containers.FindByID(ctx, "nav-dead", 1)
	require.NoError(t, err)
	assert.Equal(t, container.StatusFailed, persisted.Status())

	// The id is reusable once the old runner is gone
	again := container.New("tour-done", container.TypeScoutTour, 1, 1, nil, nil)
	require.NoError(t, f.sup.StartContainer(ctx, again))
	f.sup.Wait("tour-done")
	assert.Equal(t, 0, f.sup.ActiveCount())
}

func TestSupervisor_AutoRestartRecoversFromTransientFailures(t *testing.T) {
	f := newFixture(t, supervisor.Options{RestartBackoff: time.Millisecond})
	ctx := context.Background()

	var attempts int32
	f.sup.RegisterFactory(container.TypeMiningCoordinator,
		func(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
			return func(ctx context.Context) error {
				if atomic.AddInt32(&attempts, 1) <= 2 {
					return errors.New("extractor jammed")
				}
				return nil
			}, nil
		})

	c := container.New("mine-1", container.TypeMiningCoordinator, 1, 1, nil, nil)
	require.NoError(t, f.sup.StartContainer(ctx, c))
	f.sup.Wait("mine-1")

	persisted, err := f.containers.FindByID(ctx, "mine-1", 1)
	require.NoError(t, err)
	assert.Equal(t, container.StatusCompleted, persisted.Status())
	assert.Equal(t, 2, persisted.RestartCount())
}

func TestSupervisor_OneShotTypesStayFailed(t *testing.T) {
	f := newFixture(t, supervisor.Options{RestartBackoff: time.Millisecond})
	ctx := context.Background()

	f.sup.RegisterFactory(container.TypeNavigate,
		func(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
			return func(ctx context.Context) error {
				return errors.New("destination unreachable")
			}, nil
		})

	c := container.New("nav-1", container.TypeNavigate, 1, 1, nil, nil)
	require.NoError(t, f.sup.StartContainer(ctx, c))
	f.sup.Wait("nav-1")

	persisted, err := f.containers.FindByID(ctx, "nav-1", 1)
	require.NoError(t, err)
	assert.Equal(t, container.StatusFailed, persisted.Status())
	assert.Equal(t, 0, persisted.RestartCount())
	require.Error(t, persisted.LastError())
	assert.Contains(t, persisted.LastError().Error(), "destination unreachable")
}

func TestSupervisor_PanicBecomesFailure(t *testing.T) {
	f := newFixture(t, supervisor.Options{})
	ctx := context.Background()

	f.sup.RegisterFactory(container.TypeDock,
		func(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
			return func(ctx context.Context) error {
				panic("nil dereference in handler")
			}, nil
		})

	c := container.New("dock-1", container.TypeDock, 1, 1, nil, nil)
	require.NoError(t, f.sup.StartContainer(ctx, c))
	f.sup.Wait("dock-1")

	persisted, err := f.containers.FindByID(ctx, "dock-1", 1)
	require.NoError(t, err)
	assert.Equal(t, container.StatusFailed, persisted.Status())
	require.Error(t, persisted.LastError())
	assert.Contains(t, persisted.LastError().Error(), "panic")
}

func TestSupervisor_GracefulShutdownDrainsFleet(t *testing.T) {
	f := newFixture(t, supervisor.Options{ShutdownDeadline: 200 * time.Millisecond})
	ctx := context.Background()

	// Two cooperative runners and one that ignores cancellation
	cooperative := func(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
		shipSymbol := c.MetadataString("ship")
		return func(ctx context.Context) error {
			if shipSymbol != "" {
				if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil && !shared.IsConflict(err) {
					return err
				}
				shipSymbol = ""
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
				return nil
			}
		}, nil
	}
	stubborn := func(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
		shipSymbol := c.MetadataString("ship")
		return func(ctx context.Context) error {
			if shipSymbol != "" {
				if _, err := sub.Locks.Acquire(ctx, shipSymbol, c.PlayerID(), c.ID()); err != nil && !shared.IsConflict(err) {
					return err
				}
				shipSymbol = ""
			}
			time.Sleep(600 * time.Millisecond)
			return nil
		}, nil
	}

	f.sup.RegisterFactory(container.TypeScoutMarkets, cooperative)
	f.sup.RegisterFactory(container.TypeGoodsFactory, stubborn)

	c1 := container.New("scout-a", container.TypeScoutMarkets, 1, container.InfiniteIterations,
		map[string]interface{}{"ship": "SHIP-1"}, nil)
	c2 := container.New("scout-b", container.TypeScoutMarkets, 1, container.InfiniteIterations,
		map[string]interface{}{"ship": "SHIP-2"}, nil)
	c3 := container.New("factory-a", container.TypeGoodsFactory, 1, container.InfiniteIterations,
		map[string]interface{}{"ship": "SHIP-3"}, nil)

	require.NoError(t, f.sup.StartContainer(ctx, c1))
	require.NoError(t, f.sup.StartContainer(ctx, c2))
	require.NoError(t, f.sup.StartContainer(ctx, c3))

	// Let every runner take its ship lock
	require.Eventually(t, func() bool {
		active, err := f.locks.AllActive(ctx)
		return err == nil && len(active) == 3
	}, 2*time.Second, 5*time.Millisecond)

	f.sup.StopAll(ctx)

	for _, tc := range []struct {
		id     string
		status container.Status
	}{
		{"scout-a", container.StatusStopped},
		{"scout-b", container.StatusStopped},
		{"factory-a", container.StatusFailed},
	} {
		persisted, err := f.containers.FindByID(ctx, tc.id, 1)
		require.NoError(t, err)
		assert.Equal(t, tc.status, persisted.Status(), "container %s", tc.id)
	}

	failed, err := f.containers.FindByID(ctx, "factory-a", 1)
	require.NoError(t, err)
	require.Error(t, failed.LastError())
	assert.Contains(t, failed.LastError().Error(), "shutdown-timeout")

	// Every ship lock was released on the way down
	active, err := f.locks.AllActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, 0, f.sup.ActiveCount())
}

func TestSupervisor_RecoverStartupResumesAndFailsOrphans(t *testing.T) {
	f := newFixture(t, supervisor.Options{})
	ctx := context.Background()

	// A previous daemon run left three non-terminal containers behind
	resumable := container.New("tour-1", container.TypeScoutTour, 1, 1, nil, nil)
	require.NoError(t, resumable.Start())
	require.NoError(t, f.containers.Save(ctx, resumable))

	worker := container.New("worker-1", container.TypeMiningWorker, 1, container.InfiniteIterations, nil, nil)
	require.NoError(t, worker.Start())
	require.NoError(t, f.containers.Save(ctx, worker))

	pending := container.New("pend-1", container.TypeNavigate, 1, 1, nil, nil)
	require.NoError(t, f.containers.Save(ctx, pending))

	// The orphans still hold ship locks
	_, err := f.locks.Acquire(ctx, "SHIP-1", 1, "worker-1")
	require.NoError(t, err)
	_, err = f.locks.Acquire(ctx, "SHIP-2", 1, "pend-1")
	require.NoError(t, err)

	f.sup.RegisterFactory(container.TypeScoutTour,
		func(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
			return func(ctx context.Context) error { return nil }, nil
		})

	require.NoError(t, f.sup.RecoverStartup(ctx))
	f.sup.Wait("tour-1")

	resumed, err := f.containers.FindByID(ctx, "tour-1", 1)
	require.NoError(t, err)
	assert.Equal(t, container.StatusCompleted, resumed.Status())

	for _, id := range []string{"worker-1", "pend-1"} {
		orphan, err := f.containers.FindByID(ctx, id, 1)
		require.NoError(t, err)
		assert.Equal(t, container.StatusFailed, orphan.Status(), "container %s", id)
		require.Error(t, orphan.LastError())
		assert.Contains(t, orphan.LastError().Error(), "orphaned-at-startup")
	}

	// The orphans' ships are free again
	_, err = f.locks.Acquire(ctx, "SHIP-1", 1, "fresh-1")
	require.NoError(t, err)
	_, err = f.locks.Acquire(ctx, "SHIP-2", 1, "fresh-2")
	require.NoError(t, err)
}

func TestSupervisor_StartWithoutFactoryFails(t *testing.T) {
	f := newFixture(t, supervisor.Options{})

	c := container.New("x-1", container.TypeArbitrageWorker, 1, 1, nil, nil)
	err := f.sup.StartContainer(context.Background(), c)
	require.Error(t, err)
	assert.True(t, shared.IsBadRequest(err))
}

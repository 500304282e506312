package container_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

func newTestContainer(maxIterations int) *container.Container {
	clock := shared.NewMockClock(time.Now())
	return container.New("c-1", container.TypeMiningWorker, 1, maxIterations, nil, clock)
}

func TestLifecycle_HappyPath(t *testing.T) {
	c := newTestContainer(2)
	assert.Equal(t, container.StatusPending, c.Status())

	require.NoError(t, c.Start())
	assert.Equal(t, container.StatusRunning, c.Status())
	require.NotNil(t, c.StartedAt())

	require.NoError(t, c.IncrementIteration())
	assert.True(t, c.ShouldContinue())
	require.NoError(t, c.IncrementIteration())
	assert.False(t, c.ShouldContinue())

	require.NoError(t, c.Complete())
	assert.Equal(t, container.StatusCompleted, c.Status())
	assert.True(t, c.IsTerminal())
	require.NotNil(t, c.StoppedAt())
}

func TestLifecycle_IllegalTransitions(t *testing.T) {
	c := newTestContainer(1)

	// Not yet running
	assert.Error(t, c.Complete())
	assert.Error(t, c.IncrementIteration())
	assert.Error(t, c.MarkStopped())

	require.NoError(t, c.Start())
	assert.Error(t, c.Start())

	require.NoError(t, c.Complete())
	assert.Error(t, c.Fail(errors.New("too late")))
	assert.Error(t, c.Stop())
}

func TestStop_RunningEntersStoppingWindow(t *testing.T) {
	c := newTestContainer(container.InfiniteIterations)
	require.NoError(t, c.Start())

	require.NoError(t, c.Stop())
	assert.Equal(t, container.StatusStopping, c.Status())
	assert.True(t, c.IsStopping())
	assert.False(t, c.IsTerminal())

	require.NoError(t, c.MarkStopped())
	assert.Equal(t, container.StatusStopped, c.Status())
	assert.True(t, c.IsTerminal())
}

func TestStop_PendingStopsDirectly(t *testing.T) {
	c := newTestContainer(1)
	require.NoError(t, c.Stop())
	assert.Equal(t, container.StatusStopped, c.Status())
}

func TestFail_FromStoppingWindow(t *testing.T) {
	c := newTestContainer(container.InfiniteIterations)
	require.NoError(t, c.Start())
	require.NoError(t, c.Stop())

	cause := errors.New("iteration blew up during drain")
	require.NoError(t, c.Fail(cause))
	assert.Equal(t, container.StatusFailed, c.Status())
	assert.Equal(t, cause, c.LastError())
}

func TestRestart_BudgetAndReset(t *testing.T) {
	c := newTestContainer(container.InfiniteIterations)
	c.SetMaxRestarts(2)

	for attempt := 0; attempt < 2; attempt++ {
		require.NoError(t, c.Start())
		require.NoError(t, c.IncrementIteration())
		require.NoError(t, c.Fail(errors.New("transient")))

		require.True(t, c.CanRestart())
		require.NoError(t, c.ResetForRestart())
		assert.Equal(t, container.StatusPending, c.Status())
		assert.Nil(t, c.LastError())
		assert.Equal(t, attempt+1, c.RestartCount())
	}

	// Iteration progress survives restarts; only lifecycle resets
	assert.Equal(t, 2, c.CurrentIteration())

	require.NoError(t, c.Start())
	require.NoError(t, c.Fail(errors.New("fatal")))
	assert.False(t, c.CanRestart())
	assert.Error(t, c.ResetForRestart())
	assert.Equal(t, container.StatusFailed, c.Status())
}

func TestInfiniteIterationsAlwaysContinue(t *testing.T) {
	c := newTestContainer(container.InfiniteIterations)
	require.NoError(t, c.Start())
	for i := 0; i < 100; i++ {
		require.NoError(t, c.IncrementIteration())
	}
	assert.True(t, c.ShouldContinue())
}

func TestRecover_RoundTripsStoppingAsRunningWithFlag(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	now := clock.Now()
	started := now.Add(-time.Hour)

	c := container.Recover("c-2", container.TypeScoutTour, 3, container.StatusStopping,
		5, container.InfiniteIterations, 1, 3, map[string]interface{}{"ship": "AGENT-PROBE-1"},
		started, now, &started, nil, nil, clock)

	assert.Equal(t, container.StatusStopping, c.Status())
	assert.True(t, c.IsStopping())
	assert.Equal(t, 5, c.CurrentIteration())
	assert.Equal(t, 1, c.RestartCount())
	assert.Equal(t, "AGENT-PROBE-1", c.MetadataString("ship"))
}

func TestMetadataAccessorsHandleJSONShapes(t *testing.T) {
	c := container.New("c-3", container.TypeScoutTour, 1, 1, map[string]interface{}{
		"markets_native":  []string{"X1-A", "X1-B"},
		"markets_decoded": []interface{}{"X1-A", "X1-B"},
		"count_native":    4,
		"count_decoded":   float64(4),
	}, shared.NewMockClock(time.Now()))

	assert.Equal(t, []string{"X1-A", "X1-B"}, c.MetadataStringSlice("markets_native"))
	assert.Equal(t, []string{"X1-A", "X1-B"}, c.MetadataStringSlice("markets_decoded"))
	assert.Nil(t, c.MetadataStringSlice("missing"))
	assert.Equal(t, 4, c.MetadataInt("count_native", 0))
	assert.Equal(t, 4, c.MetadataInt("count_decoded", 0))
	assert.Equal(t, 9, c.MetadataInt("missing", 9))
}

func TestUpdateMetadataMergesAndTouchesTimestamp(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	c := container.New("c-4", container.TypeContractWorkflow, 1, 1,
		map[string]interface{}{"ship": "AGENT-1"}, clock)

	before := c.UpdatedAt()
	clock.Advance(time.Minute)
	c.UpdateMetadata(map[string]interface{}{"contract_id": "ct-77"})

	assert.Equal(t, "AGENT-1", c.MetadataString("ship"))
	assert.Equal(t, "ct-77", c.MetadataString("contract_id"))
	assert.True(t, c.UpdatedAt().After(before))
}

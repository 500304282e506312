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

func TestContainerLogRepository_DedupWindow(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormContainerLogRepository(db, clock)
	ctx := context.Background()

	// Identical entries inside the 60s window collapse to one row
	require.NoError(t, repo.Log(ctx, "c-1", 1, "INFO", "navigating", nil))
	clock.Advance(10 * time.Second)
	require.NoError(t, repo.Log(ctx, "c-1", 1, "INFO", "navigating", nil))

	logs, err := repo.GetLogs(ctx, "c-1", 1, 100, 0, nil, nil)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	// Past the window the same message writes again
	clock.Advance(60 * time.Second)
	require.NoError(t, repo.Log(ctx, "c-1", 1, "INFO", "navigating", nil))

	logs, err = repo.GetLogs(ctx, "c-1", 1, 100, 0, nil, nil)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestContainerLogRepository_DedupIsLevelScoped(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormContainerLogRepository(db, clock)
	ctx := context.Background()

	// Same message at different levels is not a duplicate
	require.NoError(t, repo.Log(ctx, "c-1", 1, "INFO", "low fuel", nil))
	require.NoError(t, repo.Log(ctx, "c-1", 1, "WARN", "low fuel", nil))

	logs, err := repo.GetLogs(ctx, "c-1", 1, 100, 0, nil, nil)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestContainerLogRepository_Filters(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormContainerLogRepository(db, clock)
	ctx := context.Background()

	require.NoError(t, repo.Log(ctx, "c-1", 1, "INFO", "started", nil))
	clock.Advance(2 * time.Minute)
	cutoff := clock.Now()
	clock.Advance(2 * time.Minute)
	require.NoError(t, repo.Log(ctx, "c-1", 1, "ERROR", "dock failed", map[string]interface{}{
		"ship": "SHIP-1",
	}))
	clock.Advance(2 * time.Minute)
	require.NoError(t, repo.Log(ctx, "c-1", 1, "INFO", "retrying", nil))

	// Level filter
	level := "ERROR"
	logs, err := repo.GetLogs(ctx, "c-1", 1, 100, 0, &level, nil)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "dock failed", logs[0].Message)
	assert.Equal(t, "SHIP-1", logs[0].Metadata["ship"])

	// Since filter
	logs, err = repo.GetLogs(ctx, "c-1", 1, 100, 0, nil, &cutoff)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	// Pagination, newest first
	logs, err = repo.GetLogs(ctx, "c-1", 1, 1, 1, nil, nil)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "dock failed", logs[0].Message)
}

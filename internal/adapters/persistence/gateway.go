package persistence

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

const (
	gatewayMaxRetries   = 3
	defaultQueryTimeout = 30 * time.Second
)

// backoffSchedule is the delay before each gateway retry
var backoffSchedule = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Gateway wraps the shared connection with retry and transaction discipline.
// Repositories go through it for anything that must survive a connection blip.
type Gateway struct {
	db           *gorm.DB
	clock        shared.Clock
	queryTimeout time.Duration
}

// NewGateway creates a gateway over an open connection.
// If clock is nil, uses RealClock.
func NewGateway(db *gorm.DB, queryTimeout time.Duration, clock shared.Clock) *Gateway {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &Gateway{db: db, clock: clock, queryTimeout: queryTimeout}
}

// DB exposes the underlying connection for repository construction
func (g *Gateway) DB() *gorm.DB {
	return g.db
}

// isTransientDBError classifies errors worth retrying: dropped connections
// and serialization conflicts, not constraint violations or bad SQL.
func isTransientDBError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"bad connection",
		"serialization failure",
		"deadlock detected",
		"database is locked",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Execute runs fn with a query deadline, retrying transient failures
// up to 3 times with 1s/2s/4s backoff.
func (g *Gateway) Execute(ctx context.Context, fn func(ctx context.Context, db *gorm.DB) error) error {
	var lastErr error

	for attempt := 0; attempt <= gatewayMaxRetries; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				return shared.WrapError(shared.KindCancelled, "query cancelled", ctx.Err())
			}
			g.clock.Sleep(backoffSchedule[attempt-1])
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.queryTimeout)
		err := fn(attemptCtx, g.db)
		cancel()

		if err == nil {
			return nil
		}
		if !isTransientDBError(err) {
			return err
		}
		lastErr = err
	}

	return shared.WrapError(shared.KindTransient, "database unavailable after retries", lastErr)
}

// WithTransaction runs fn inside a transaction: commit on nil return,
// rollback on error or panic. Transient failures retry the whole transaction.
func (g *Gateway) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.Execute(ctx, func(ctx context.Context, db *gorm.DB) error {
		return db.WithContext(ctx).Transaction(fn)
	})
}

// Close drains the pool and closes the connection
func (g *Gateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

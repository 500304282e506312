package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// IterateFunc executes one iteration of a container's workflow.
// It must honor ctx cancellation at every suspension point.
type IterateFunc func(ctx context.Context) error

// Factory builds the iteration closure for a container from its
// metadata and the shared substrate. Bound per container type at
// daemon assembly time.
type Factory func(sub *Substrate, c *container.Container) (IterateFunc, error)

// containerRunner drives one container in its own goroutine: the
// iteration loop, write-through persistence, panic conversion, and
// the per-type restart policy.
type containerRunner struct {
	entity  *container.Container
	iterate IterateFunc
	logger  common.ContainerLogger

	containers ContainerStore
	locks      lockReleaser
	clock      shared.Clock

	restartBackoff time.Duration

	// onExit runs after the goroutine settles its final state and
	// before done closes; the supervisor uses it to drop the runner
	// from its registry
	onExit func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.RWMutex
}

// lockReleaser is the slice of the lock manager the runner needs
type lockReleaser interface {
	ReleaseByContainer(ctx context.Context, containerID string, playerID int, reason string) (int, error)
}

func newContainerRunner(
	entity *container.Container,
	iterate IterateFunc,
	logger common.ContainerLogger,
	containers ContainerStore,
	locks lockReleaser,
	clock shared.Clock,
	restartBackoff time.Duration,
) *containerRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &containerRunner{
		entity:         entity,
		iterate:        iterate,
		logger:         logger,
		containers:     containers,
		locks:          locks,
		clock:          clock,
		restartBackoff: restartBackoff,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Container returns the supervised entity
func (r *containerRunner) Container() *container.Container {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entity
}

// start transitions the container to RUNNING, persists it, and spawns
// the execution goroutine
func (r *containerRunner) start() error {
	r.mu.Lock()
	if err := r.entity.Start(); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.persist()
	r.logger.Log("INFO", "container started", nil)

	go r.execute()
	return nil
}

// resume spawns the execution goroutine for a container recovered in
// RUNNING state; the lifecycle transition already happened in a
// previous daemon run
func (r *containerRunner) resume() {
	r.logger.Log("INFO", "container resumed after daemon restart", nil)
	go r.execute()
}

// signalStop marks the container STOPPING and cancels its context.
// The caller waits on done and finalizes the state.
func (r *containerRunner) signalStop() error {
	r.mu.Lock()
	err := r.entity.Stop()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.persist()
	r.logger.Log("INFO", "container stopping", nil)
	r.cancel()
	return nil
}

// finalizeStopped completes the STOPPING→STOPPED transition once the
// runner goroutine has returned
func (r *containerRunner) finalizeStopped() {
	r.mu.Lock()
	if r.entity.Status() == container.StatusStopping {
		_ = r.entity.MarkStopped()
	}
	r.mu.Unlock()

	r.persist()
	r.releaseLocks("container-stopped")
	r.logger.Log("INFO", "container stopped", nil)
}

// forceFail fails a container that ignored its shutdown deadline
func (r *containerRunner) forceFail(reason string) {
	r.mu.Lock()
	_ = r.entity.Fail(fmt.Errorf("%s", reason))
	r.mu.Unlock()

	r.persist()
	r.releaseLocks(reason)
	r.logger.Log("ERROR", "container force-failed: "+reason, nil)
}

// execute runs the iteration loop until completion, stop, or an
// unrecoverable failure
func (r *containerRunner) execute() {
	defer close(r.done)
	defer func() {
		if r.onExit != nil {
			r.onExit()
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(fmt.Errorf("runner panic: %v", rec))
		}
	}()

	for {
		r.mu.RLock()
		shouldContinue := r.entity.ShouldContinue()
		stopping := r.entity.IsStopping()
		r.mu.RUnlock()

		if !shouldContinue || stopping {
			break
		}

		if err := r.iterate(r.ctx); err != nil {
			// Cancellation is the stop path, not a failure
			if r.ctx.Err() != nil {
				r.logger.Log("INFO", "cancellation received, exiting", nil)
				return
			}

			r.fail(err)

			if !r.tryRestart() {
				return
			}
			continue
		}

		r.mu.Lock()
		_ = r.entity.IncrementIteration()
		r.mu.Unlock()
		r.persist()

		r.logger.Log("INFO",
			fmt.Sprintf("iteration %d completed", r.entity.CurrentIteration()), nil)

		select {
		case <-r.ctx.Done():
			r.logger.Log("INFO", "stop signal received", nil)
			return
		default:
		}
	}

	r.mu.RLock()
	stopping := r.entity.IsStopping()
	r.mu.RUnlock()
	if stopping {
		// The stop caller finalizes STOPPING→STOPPED
		return
	}

	r.mu.Lock()
	_ = r.entity.Complete()
	r.mu.Unlock()
	r.persist()
	r.releaseLocks("completed")
	r.logger.Log("INFO", "container completed", map[string]interface{}{
		"iterations": r.entity.CurrentIteration(),
	})
}

// fail records the error, persists FAILED, and frees the ships
func (r *containerRunner) fail(err error) {
	r.logger.Log("ERROR", err.Error(), nil)

	r.mu.Lock()
	_ = r.entity.Fail(err)
	r.mu.Unlock()

	r.persist()
	r.releaseLocks("failed")
}

// tryRestart applies the per-type restart policy to a FAILED
// container: reset, backoff delay·2^restartCount, start again.
// Returns false when the container stays terminal.
func (r *containerRunner) tryRestart() bool {
	r.mu.RLock()
	policy := container.PolicyFor(r.entity.Type())
	canRestart := r.entity.CanRestart()
	restartCount := r.entity.RestartCount()
	r.mu.RUnlock()

	if !policy.AutoRestart || !canRestart {
		return false
	}

	delay := r.restartBackoff * (1 << uint(restartCount))
	r.logger.Log("INFO",
		fmt.Sprintf("restarting after %s (attempt %d)", delay, restartCount+1), nil)

	select {
	case <-r.clock.After(delay):
	case <-r.ctx.Done():
		return false
	}

	r.mu.Lock()
	if err := r.entity.ResetForRestart(); err != nil {
		r.mu.Unlock()
		return false
	}
	err := r.entity.Start()
	r.mu.Unlock()
	if err != nil {
		return false
	}

	r.persist()
	return true
}

func (r *containerRunner) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.containers.Save(ctx, r.entity); err != nil {
		r.logger.Log("ERROR", "failed to persist container state: "+err.Error(), nil)
	}
}

func (r *containerRunner) releaseLocks(reason string) {
	if r.locks == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.locks.ReleaseByContainer(ctx, r.entity.ID(), r.entity.PlayerID(), reason); err != nil {
		r.logger.Log("ERROR", "failed to release ship assignments: "+err.Error(), nil)
	}
}

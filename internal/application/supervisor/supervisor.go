package supervisor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/andrescamacho/fleetd/internal/application/locks"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

const (
	// DefaultShutdownDeadline bounds graceful stop of the whole fleet
	DefaultShutdownDeadline = 30 * time.Second

	// DefaultRestartBackoff is the base delay before an auto-restart;
	// doubled per restart attempt
	DefaultRestartBackoff = 5 * time.Second
)

// Options tunes the supervisor
type Options struct {
	ShutdownDeadline time.Duration
	RestartBackoff   time.Duration
}

// Supervisor owns the set of live containers: it builds runners from
// the per-type factory registry, starts and stops them, recovers
// non-terminal containers at daemon startup, and enforces the
// graceful-shutdown deadline.
type Supervisor struct {
	substrate *Substrate
	locks     *locks.Manager
	clock     shared.Clock

	shutdownDeadline time.Duration
	restartBackoff   time.Duration

	factories map[container.Type]Factory
	runners   map[string]*containerRunner
	startedAt time.Time
	mu        sync.RWMutex
}

// New creates a supervisor over the given substrate
func New(sub *Substrate, opts Options) *Supervisor {
	if opts.ShutdownDeadline <= 0 {
		opts.ShutdownDeadline = DefaultShutdownDeadline
	}
	if opts.RestartBackoff <= 0 {
		opts.RestartBackoff = DefaultRestartBackoff
	}
	clock := sub.Clock
	if clock == nil {
		clock = shared.NewRealClock()
	}

	return &Supervisor{
		substrate:        sub,
		locks:            sub.Locks,
		clock:            clock,
		shutdownDeadline: opts.ShutdownDeadline,
		restartBackoff:   opts.RestartBackoff,
		factories:        make(map[container.Type]Factory),
		runners:          make(map[string]*containerRunner),
		startedAt:        clock.Now(),
	}
}

// RegisterFactory binds a container type to its runner factory.
// Assembly-time wiring; not safe for concurrent use with Start.
func (s *Supervisor) RegisterFactory(t container.Type, f Factory) {
	s.factories[t] = f
}

// StartContainer builds the runner for a PENDING container and starts
// it in its own goroutine
func (s *Supervisor) StartContainer(ctx context.Context, c *container.Container) error {
	factory, ok := s.factories[c.Type()]
	if !ok {
		return shared.NewDomainError(shared.KindBadRequest,
			fmt.Sprintf("no factory registered for container type %s", c.Type()))
	}

	iterate, err := factory(s.substrate, c)
	if err != nil {
		return fmt.Errorf("factory for %s failed: %w", c.Type(), err)
	}

	runner := newContainerRunner(c, iterate,
		NewContainerLogger(s.substrate.Logs, c.ID(), c.PlayerID()),
		s.substrate.Containers, s.locks, s.clock, s.restartBackoff)
	runner.onExit = func() { s.evict(runner) }

	s.mu.Lock()
	if _, exists := s.runners[c.ID()]; exists {
		s.mu.Unlock()
		return shared.NewDomainError(shared.KindConflict,
			fmt.Sprintf("container %s is already supervised", c.ID()))
	}
	s.runners[c.ID()] = runner
	s.mu.Unlock()

	if err := runner.start(); err != nil {
		s.mu.Lock()
		delete(s.runners, c.ID())
		s.mu.Unlock()
		return err
	}
	return nil
}

// StopContainer gracefully stops one container, waiting up to the
// shutdown deadline before force-failing it
func (s *Supervisor) StopContainer(ctx context.Context, containerID string) error {
	s.mu.RLock()
	runner, ok := s.runners[containerID]
	s.mu.RUnlock()
	if !ok {
		return shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("container %s is not supervised", containerID))
	}

	if err := s.stopRunner(runner); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.runners, containerID)
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) stopRunner(runner *containerRunner) error {
	c := runner.Container()

	switch c.Status() {
	case container.StatusRunning:
		if err := runner.signalStop(); err != nil {
			return err
		}
	case container.StatusPending, container.StatusFailed:
		if err := c.Stop(); err != nil {
			return err
		}
		runner.cancel()
		runner.persist()
		runner.releaseLocks("container-stopped")
		return nil
	default:
		return shared.NewDomainError(shared.KindInvalidTransition,
			fmt.Sprintf("cannot stop container in %s state", c.Status()))
	}

	select {
	case <-runner.done:
		runner.finalizeStopped()
	case <-s.clock.After(s.shutdownDeadline):
		runner.forceFail("shutdown-timeout")
	}
	return nil
}

// StopAll gracefully stops every supervised container: all RUNNING
// containers enter STOPPING together, then the supervisor waits up to
// the shutdown deadline for the fleet to drain. Stragglers are
// force-failed with reason "shutdown-timeout".
func (s *Supervisor) StopAll(ctx context.Context) {
	s.mu.Lock()
	active := make([]*containerRunner, 0, len(s.runners))
	for _, runner := range s.runners {
		active = append(active, runner)
	}
	s.runners = make(map[string]*containerRunner)
	s.mu.Unlock()

	stopping := make([]*containerRunner, 0, len(active))
	for _, runner := range active {
		c := runner.Container()
		switch c.Status() {
		case container.StatusRunning:
			if err := runner.signalStop(); err != nil {
				log.Printf("failed to signal stop for %s: %v", c.ID(), err)
				continue
			}
			stopping = append(stopping, runner)
		case container.StatusPending, container.StatusFailed:
			_ = c.Stop()
			runner.cancel()
			runner.persist()
			runner.releaseLocks("container-stopped")
		}
	}

	if len(stopping) == 0 {
		return
	}

	deadline := s.clock.After(s.shutdownDeadline)
	for _, runner := range stopping {
		select {
		case <-runner.done:
			runner.finalizeStopped()
		case <-deadline:
			runner.forceFail("shutdown-timeout")
		}
	}
	log.Printf("supervisor drained %d containers", len(active))
}

// RecoverStartup handles containers left non-terminal by a previous
// daemon run: resumable types are rebuilt through their factory and
// resumed; everything else is failed as orphaned and its ships freed.
// It then sweeps assignments whose container no longer exists.
func (s *Supervisor) RecoverStartup(ctx context.Context) error {
	leftover, err := s.substrate.Containers.FindNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("failed to load non-terminal containers: %w", err)
	}

	liveIDs := make([]string, 0, len(leftover))
	for _, c := range leftover {
		policy := container.PolicyFor(c.Type())
		factory, registered := s.factories[c.Type()]

		if policy.Resumable && registered && c.Status() == container.StatusRunning {
			if err := s.resumeContainer(c, factory); err != nil {
				log.Printf("failed to resume container %s: %v", c.ID(), err)
				s.failOrphan(ctx, c)
				continue
			}
			liveIDs = append(liveIDs, c.ID())
			continue
		}

		s.failOrphan(ctx, c)
	}

	if _, err := s.locks.CleanOrphans(ctx, liveIDs); err != nil {
		return fmt.Errorf("orphan sweep failed: %w", err)
	}
	return nil
}

func (s *Supervisor) resumeContainer(c *container.Container, factory Factory) error {
	iterate, err := factory(s.substrate, c)
	if err != nil {
		return err
	}

	runner := newContainerRunner(c, iterate,
		NewContainerLogger(s.substrate.Logs, c.ID(), c.PlayerID()),
		s.substrate.Containers, s.locks, s.clock, s.restartBackoff)
	runner.onExit = func() { s.evict(runner) }

	s.mu.Lock()
	s.runners[c.ID()] = runner
	s.mu.Unlock()

	runner.resume()
	return nil
}

// evict drops a runner whose goroutine finished in a terminal state,
// so the registry only ever holds live containers. Runners draining
// through STOPPING are finalized and removed by their stop caller
// instead.
func (s *Supervisor) evict(runner *containerRunner) {
	c := runner.Container()
	if !c.IsTerminal() {
		return
	}
	s.mu.Lock()
	if current, ok := s.runners[c.ID()]; ok && current == runner {
		delete(s.runners, c.ID())
	}
	s.mu.Unlock()
}

func (s *Supervisor) failOrphan(ctx context.Context, c *container.Container) {
	if err := c.Fail(fmt.Errorf("orphaned-at-startup")); err != nil {
		log.Printf("cannot fail orphaned container %s: %v", c.ID(), err)
		return
	}
	if err := s.substrate.Containers.Save(ctx, c); err != nil {
		log.Printf("failed to persist orphaned container %s: %v", c.ID(), err)
	}
	if _, err := s.locks.ReleaseByContainer(ctx, c.ID(), c.PlayerID(), "orphaned-at-startup"); err != nil {
		log.Printf("failed to release assignments of %s: %v", c.ID(), err)
	}
	log.Printf("container %s failed as orphaned-at-startup", c.ID())
}

// Get returns the live container with the given id, if supervised
func (s *Supervisor) Get(containerID string) (*container.Container, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runner, ok := s.runners[containerID]
	if !ok {
		return nil, false
	}
	return runner.Container(), true
}

// Wait blocks until the given container's runner goroutine returns.
// Test and shutdown helper.
func (s *Supervisor) Wait(containerID string) {
	s.mu.RLock()
	runner, ok := s.runners[containerID]
	s.mu.RUnlock()
	if ok {
		<-runner.done
	}
}

// ActiveCount reports how many containers are currently supervised
func (s *Supervisor) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runners)
}

// LiveContainerIDs snapshots the ids of every supervised container
func (s *Supervisor) LiveContainerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.runners))
	for id := range s.runners {
		ids = append(ids, id)
	}
	return ids
}

// Uptime reports how long this supervisor has been running
func (s *Supervisor) Uptime() time.Duration {
	return s.clock.Now().Sub(s.startedAt)
}

// Substrate exposes the shared collaborators for handler wiring
func (s *Supervisor) Substrate() *Substrate {
	return s.substrate
}

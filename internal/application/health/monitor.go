package health

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/application/locks"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/fleet"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

const (
	DefaultInterval         = 30 * time.Second
	DefaultTransitGrace     = 60 * time.Second
	DefaultIdleThreshold    = 15 * time.Minute
	DefaultRecoveryCooldown = 60 * time.Second
	DefaultMaxRecoveries    = 3
)

// ShipAPI is the slice of the remote client the monitor drives
type ShipAPI interface {
	GetShip(ctx context.Context, shipSymbol, token string) (*api.ShipData, error)
	DockShip(ctx context.Context, shipSymbol, token string) (*api.ShipData, error)
}

// PlayerFinder resolves player ids to tokens
type PlayerFinder interface {
	FindByID(ctx context.Context, id int) (*fleet.Player, error)
}

// ContainerStore reads and fails the containers that own stuck ships
type ContainerStore interface {
	FindByID(ctx context.Context, id string, playerID int) (*container.Container, error)
	Save(ctx context.Context, c *container.Container) error
}

// LogStore writes recovery narratives into the container log
type LogStore interface {
	Log(ctx context.Context, containerID string, playerID int, level, message string, metadata map[string]interface{}) error
}

// Options tunes the monitor's detection and recovery thresholds
type Options struct {
	Interval         time.Duration
	TransitGrace     time.Duration
	IdleThreshold    time.Duration
	RecoveryCooldown time.Duration
	MaxRecoveries    int
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.TransitGrace <= 0 {
		o.TransitGrace = DefaultTransitGrace
	}
	if o.IdleThreshold <= 0 {
		o.IdleThreshold = DefaultIdleThreshold
	}
	if o.RecoveryCooldown <= 0 {
		o.RecoveryCooldown = DefaultRecoveryCooldown
	}
	if o.MaxRecoveries <= 0 {
		o.MaxRecoveries = DefaultMaxRecoveries
	}
}

// observation remembers the last (location, nav status) seen for a ship
// so the idle detector can tell progress from stagnation
type observation struct {
	location  string
	navStatus string
	since     time.Time
}

type recoveryState struct {
	attempts    int
	lastAttempt time.Time
}

// Monitor periodically scans every active ship assignment, flags ships
// whose expected nav transition has not happened, and runs the recovery
// procedure: await arrival, dock, log. Ships that stay stuck past the
// attempt budget take their owning container down with them.
type Monitor struct {
	api        ShipAPI
	players    PlayerFinder
	containers ContainerStore
	logs       LogStore
	locks      *locks.Manager
	clock      shared.Clock

	// liveContainerIDs reports the supervisor's current registry for
	// the orphan sweep
	liveContainerIDs func() []string

	opts Options

	mu         sync.Mutex
	observed   map[string]observation
	recoveries map[string]recoveryState
}

// New creates a health monitor over the given collaborators
func New(
	shipAPI ShipAPI,
	players PlayerFinder,
	containers ContainerStore,
	logs LogStore,
	lockMgr *locks.Manager,
	liveContainerIDs func() []string,
	clock shared.Clock,
	opts Options,
) *Monitor {
	opts.applyDefaults()
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Monitor{
		api:              shipAPI,
		players:          players,
		containers:       containers,
		logs:             logs,
		locks:            lockMgr,
		liveContainerIDs: liveContainerIDs,
		clock:            clock,
		opts:             opts,
		observed:         make(map[string]observation),
		recoveries:       make(map[string]recoveryState),
	}
}

// Run executes scan passes on the configured interval until ctx ends
func (m *Monitor) Run(ctx context.Context) {
	log.Printf("health monitor started (interval %s)", m.opts.Interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("health monitor stopped")
			return
		case <-m.clock.After(m.opts.Interval):
			if err := m.RunOnce(ctx); err != nil {
				log.Printf("health pass failed: %v", err)
			}
		}
	}
}

// RunOnce performs a single scan pass: sweep orphaned and stale locks,
// then evaluate every actively assigned ship
func (m *Monitor) RunOnce(ctx context.Context) error {
	if m.liveContainerIDs != nil {
		if _, err := m.locks.CleanOrphans(ctx, m.liveContainerIDs()); err != nil {
			return fmt.Errorf("orphan sweep failed: %w", err)
		}
	}
	if _, err := m.locks.CleanStale(ctx); err != nil {
		return fmt.Errorf("stale sweep failed: %w", err)
	}

	assignments, err := m.locks.AllActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active assignments: %w", err)
	}

	for _, assignment := range assignments {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.checkShip(ctx, assignment); err != nil {
			log.Printf("health check for ship %s failed: %v", assignment.ShipSymbol, err)
		}
	}
	return nil
}

// RecoveryAttempts reports the current attempt counter for a ship
func (m *Monitor) RecoveryAttempts(shipSymbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recoveries[shipSymbol].attempts
}

func (m *Monitor) checkShip(ctx context.Context, assignment *fleet.ShipAssignment) error {
	player, err := m.players.FindByID(ctx, assignment.PlayerID)
	if err != nil {
		return fmt.Errorf("cannot resolve player %d: %w", assignment.PlayerID, err)
	}

	ship, err := m.api.GetShip(ctx, assignment.ShipSymbol, player.Token)
	if err != nil {
		return fmt.Errorf("cannot fetch ship snapshot: %w", err)
	}

	now := m.clock.Now()
	progressed, idleFor := m.noteObservation(ship, now)
	if progressed {
		// Status change or location progress clears the counter
		m.mu.Lock()
		delete(m.recoveries, ship.Symbol)
		m.mu.Unlock()
	}

	if !m.isStuck(ctx, assignment, ship, now, progressed, idleFor) {
		return nil
	}
	return m.recover(ctx, assignment, ship, player, now)
}

// noteObservation records the ship's (location, nav status) pair.
// Returns whether the pair changed since the last pass and how long
// the current pair has been observed.
func (m *Monitor) noteObservation(ship *api.ShipData, now time.Time) (bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obs, seen := m.observed[ship.Symbol]
	if !seen || obs.location != ship.Location || obs.navStatus != ship.NavStatus {
		m.observed[ship.Symbol] = observation{
			location:  ship.Location,
			navStatus: ship.NavStatus,
			since:     now,
		}
		return true, 0
	}
	return false, now.Sub(obs.since)
}

// isStuck applies the two detectors: transit past arrival plus grace,
// and an unchanged (location, nav status) past the idle threshold
// while the owning container claims RUNNING
func (m *Monitor) isStuck(ctx context.Context, assignment *fleet.ShipAssignment, ship *api.ShipData, now time.Time, progressed bool, idleFor time.Duration) bool {
	if ship.NavStatus == string(fleet.NavStatusInTransit) &&
		ship.ArrivalAt != nil &&
		!now.Before(ship.ArrivalAt.Add(m.opts.TransitGrace)) {
		return true
	}

	if progressed || idleFor < m.opts.IdleThreshold {
		return false
	}

	owner, err := m.containers.FindByID(ctx, assignment.ContainerID, assignment.PlayerID)
	if err != nil {
		return false
	}
	return owner.Status() == container.StatusRunning
}

// recover runs one recovery attempt under the cooldown and attempt
// budget, abandoning the owning container once the budget is spent
func (m *Monitor) recover(ctx context.Context, assignment *fleet.ShipAssignment, ship *api.ShipData, player *fleet.Player, now time.Time) error {
	m.mu.Lock()
	state := m.recoveries[assignment.ShipSymbol]
	if state.attempts > 0 && now.Sub(state.lastAttempt) < m.opts.RecoveryCooldown {
		m.mu.Unlock()
		return nil
	}
	if state.attempts >= m.opts.MaxRecoveries {
		m.mu.Unlock()
		return m.abandon(ctx, assignment)
	}
	state.attempts++
	state.lastAttempt = now
	m.recoveries[assignment.ShipSymbol] = state
	m.mu.Unlock()

	m.logToContainer(ctx, assignment, "WARN",
		fmt.Sprintf("ship %s flagged as stuck (%s at %s), recovery attempt %d/%d",
			ship.Symbol, ship.NavStatus, ship.Location, state.attempts, m.opts.MaxRecoveries))

	// Await arrival if the ship is still in transit
	if ship.NavStatus == string(fleet.NavStatusInTransit) {
		arrived, err := shared.PollUntil(ctx, m.clock, shared.PollConfig{
			Timeout:    2 * time.Minute,
			Initial:    2 * time.Second,
			Max:        15 * time.Second,
			Multiplier: 1.5,
		}, func(ctx context.Context) (*api.ShipData, error) {
			return m.api.GetShip(ctx, assignment.ShipSymbol, player.Token)
		}, func(s *api.ShipData) bool {
			return s.NavStatus != string(fleet.NavStatusInTransit)
		})
		if err != nil {
			m.logToContainer(ctx, assignment, "ERROR",
				fmt.Sprintf("ship %s did not arrive during recovery: %v", ship.Symbol, err))
			return nil
		}
		ship = arrived
	}

	// Dock to reach a known-good resting state. Already docked is fine.
	if ship.NavStatus != string(fleet.NavStatusDocked) {
		if _, err := m.api.DockShip(ctx, assignment.ShipSymbol, player.Token); err != nil {
			if !shared.IsConflict(err) {
				m.logToContainer(ctx, assignment, "ERROR",
					fmt.Sprintf("dock during recovery failed: %v", err))
				return nil
			}
		}
	}

	m.logToContainer(ctx, assignment, "INFO",
		fmt.Sprintf("ship %s recovered", assignment.ShipSymbol))
	return nil
}

// abandon fails the owning container and frees the ship after the
// recovery budget is exhausted
func (m *Monitor) abandon(ctx context.Context, assignment *fleet.ShipAssignment) error {
	m.logToContainer(ctx, assignment, "ERROR",
		fmt.Sprintf("ship %s exceeded %d recovery attempts, abandoning",
			assignment.ShipSymbol, m.opts.MaxRecoveries))

	owner, err := m.containers.FindByID(ctx, assignment.ContainerID, assignment.PlayerID)
	if err == nil && !owner.IsTerminal() {
		if failErr := owner.Fail(fmt.Errorf("health-abandoned")); failErr == nil {
			if saveErr := m.containers.Save(ctx, owner); saveErr != nil {
				log.Printf("failed to persist abandoned container %s: %v", owner.ID(), saveErr)
			}
		}
	}

	if err := m.locks.ForceRelease(ctx, assignment.ShipSymbol, assignment.PlayerID, "health-abandoned"); err != nil {
		return fmt.Errorf("failed to release abandoned ship %s: %w", assignment.ShipSymbol, err)
	}

	m.mu.Lock()
	delete(m.recoveries, assignment.ShipSymbol)
	delete(m.observed, assignment.ShipSymbol)
	m.mu.Unlock()
	return nil
}

func (m *Monitor) logToContainer(ctx context.Context, assignment *fleet.ShipAssignment, level, message string) {
	if m.logs == nil {
		return
	}
	if err := m.logs.Log(ctx, assignment.ContainerID, assignment.PlayerID, level, message, nil); err != nil {
		log.Printf("failed to write container log: %v", err)
	}
}

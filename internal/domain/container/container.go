package container

import (
	"fmt"
	"time"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// Status represents the lifecycle state of a container
type Status string

const (
	// StatusPending indicates container is queued but not started
	StatusPending Status = "PENDING"

	// StatusRunning indicates container is actively executing
	StatusRunning Status = "RUNNING"

	// StatusStopping indicates container is gracefully shutting down
	StatusStopping Status = "STOPPING"

	// StatusStopped indicates container was stopped by user
	StatusStopped Status = "STOPPED"

	// StatusCompleted indicates container finished successfully
	StatusCompleted Status = "COMPLETED"

	// StatusFailed indicates container encountered an error
	StatusFailed Status = "FAILED"
)

const (
	// MaxRestartAttempts is the default maximum number of automatic restart
	// attempts for a failed container before it stays terminal.
	MaxRestartAttempts = 3

	// InfiniteIterations marks a container that loops until stopped
	InfiniteIterations = -1
)

// Container represents a background operation running in the daemon.
// Containers are the unit of work orchestration: each runs in its own
// goroutine and can be started, stopped, monitored, and restarted
// independently. The supervisor owns live containers; the database owns
// them afterward.
type Container struct {
	id            string
	containerType Type
	playerID      int

	// Core lifecycle managed by state machine
	lifecycle *shared.LifecycleStateMachine

	// STOPPING is container-specific (graceful shutdown window)
	stopping bool

	// Iteration tracking for looping operations
	currentIteration int
	maxIterations    int // InfiniteIterations for unbounded

	// Restart tracking
	restartCount int
	maxRestarts  int

	// Operation-specific metadata (JSON-serializable)
	metadata map[string]interface{}

	clock shared.Clock
}

// New creates a new container in PENDING state.
// If clock is nil, uses RealClock (production behavior).
func New(
	id string,
	containerType Type,
	playerID int,
	maxIterations int,
	metadata map[string]interface{},
	clock shared.Clock,
) *Container {
	if clock == nil {
		clock = shared.NewRealClock()
	}

	return &Container{
		id:               id,
		containerType:    containerType,
		playerID:         playerID,
		lifecycle:        shared.NewLifecycleStateMachine(clock),
		currentIteration: 0,
		maxIterations:    maxIterations,
		restartCount:     0,
		maxRestarts:      MaxRestartAttempts,
		metadata:         metadata,
		clock:            clock,
	}
}

// Recover rebuilds a container from persisted state.
// Only the container repository should call this.
func Recover(
	id string,
	containerType Type,
	playerID int,
	status Status,
	currentIteration, maxIterations int,
	restartCount, maxRestarts int,
	metadata map[string]interface{},
	createdAt, updatedAt time.Time,
	startedAt, stoppedAt *time.Time,
	lastError error,
	clock shared.Clock,
) *Container {
	c := New(id, containerType, playerID, maxIterations, metadata, clock)
	c.currentIteration = currentIteration
	c.restartCount = restartCount
	if maxRestarts > 0 {
		c.maxRestarts = maxRestarts
	}

	lifecycleStatus := shared.LifecycleStatus(status)
	if status == StatusStopping {
		c.stopping = true
		lifecycleStatus = shared.LifecycleStatusRunning
	}
	c.lifecycle.RecoverFromPersistence(lifecycleStatus, createdAt, updatedAt, startedAt, stoppedAt, lastError)
	return c
}

// Getters

func (c *Container) ID() string                       { return c.id }
func (c *Container) Type() Type                       { return c.containerType }
func (c *Container) PlayerID() int                    { return c.playerID }
func (c *Container) CurrentIteration() int            { return c.currentIteration }
func (c *Container) MaxIterations() int               { return c.maxIterations }
func (c *Container) RestartCount() int                { return c.restartCount }
func (c *Container) MaxRestarts() int                 { return c.maxRestarts }
func (c *Container) Metadata() map[string]interface{} { return c.metadata }
func (c *Container) CreatedAt() time.Time             { return c.lifecycle.CreatedAt() }
func (c *Container) UpdatedAt() time.Time             { return c.lifecycle.UpdatedAt() }
func (c *Container) StartedAt() *time.Time            { return c.lifecycle.StartedAt() }
func (c *Container) StoppedAt() *time.Time            { return c.lifecycle.StoppedAt() }
func (c *Container) LastError() error                 { return c.lifecycle.LastError() }

// SetMaxRestarts overrides the default restart budget
func (c *Container) SetMaxRestarts(max int) {
	c.maxRestarts = max
}

// Status returns the current container status
func (c *Container) Status() Status {
	if c.stopping {
		return StatusStopping
	}

	switch c.lifecycle.Status() {
	case shared.LifecycleStatusPending:
		return StatusPending
	case shared.LifecycleStatusRunning:
		return StatusRunning
	case shared.LifecycleStatusCompleted:
		return StatusCompleted
	case shared.LifecycleStatusFailed:
		return StatusFailed
	case shared.LifecycleStatusStopped:
		return StatusStopped
	default:
		return StatusPending
	}
}

// State transitions

// Start transitions the container to RUNNING.
// Legal from PENDING and STOPPED.
func (c *Container) Start() error {
	status := c.Status()
	if status != StatusPending && status != StatusStopped {
		return shared.NewDomainError(shared.KindInvalidTransition,
			fmt.Sprintf("cannot start container in %s state", status))
	}

	c.stopping = false
	return c.lifecycle.Start()
}

// Complete transitions the container to COMPLETED.
// Legal only from RUNNING.
func (c *Container) Complete() error {
	if status := c.Status(); status != StatusRunning {
		return shared.NewDomainError(shared.KindInvalidTransition,
			fmt.Sprintf("cannot complete container in %s state", status))
	}

	return c.lifecycle.Complete()
}

// Fail transitions the container to FAILED with the given error.
// Legal from PENDING, RUNNING, and STOPPING.
func (c *Container) Fail(err error) error {
	status := c.Status()
	if status == StatusCompleted || status == StatusStopped || status == StatusFailed {
		return shared.NewDomainError(shared.KindInvalidTransition,
			fmt.Sprintf("cannot fail container in %s state", status))
	}

	c.stopping = false
	return c.lifecycle.Fail(err)
}

// Stop begins or finalizes a stop.
// RUNNING enters the STOPPING window; PENDING and FAILED stop directly.
func (c *Container) Stop() error {
	switch status := c.Status(); status {
	case StatusRunning:
		c.stopping = true
		c.lifecycle.UpdateTimestamp()
		return nil
	case StatusPending, StatusFailed:
		return c.lifecycle.Stop()
	default:
		return shared.NewDomainError(shared.KindInvalidTransition,
			fmt.Sprintf("cannot stop container in %s state", status))
	}
}

// MarkStopped finalizes STOPPING to STOPPED once the runner has returned
func (c *Container) MarkStopped() error {
	if c.Status() != StatusStopping {
		return shared.NewDomainError(shared.KindInvalidTransition,
			"cannot mark stopped when not in stopping state")
	}

	c.stopping = false
	return c.lifecycle.Stop()
}

// Iteration management

// IncrementIteration advances the iteration counter.
// Legal only while RUNNING; the counter is monotonic.
func (c *Container) IncrementIteration() error {
	if status := c.Status(); status != StatusRunning {
		return shared.NewDomainError(shared.KindInvalidTransition,
			fmt.Sprintf("cannot increment iteration in %s state", status))
	}

	c.currentIteration++
	c.lifecycle.UpdateTimestamp()
	return nil
}

// ShouldContinue checks if the container should keep iterating
func (c *Container) ShouldContinue() bool {
	if c.maxIterations == InfiniteIterations {
		return true
	}
	return c.currentIteration < c.maxIterations
}

// Restart management

// CanRestart checks if the container is eligible for a restart attempt
func (c *Container) CanRestart() bool {
	if c.Status() != StatusFailed {
		return false
	}
	return c.restartCount < c.maxRestarts
}

// ResetForRestart prepares a FAILED container for a fresh start.
// Preserves the id, increments restart_count, clears last_error and
// stopped_at.
func (c *Container) ResetForRestart() error {
	if !c.CanRestart() {
		return shared.NewDomainError(shared.KindInvalidTransition,
			fmt.Sprintf("container cannot be restarted (restarts: %d/%d)",
				c.restartCount, c.maxRestarts))
	}

	c.stopping = false
	c.lifecycle.ResetForRestart()
	c.restartCount++
	return nil
}

// Metadata management

// UpdateMetadata merges new metadata into existing metadata
func (c *Container) UpdateMetadata(updates map[string]interface{}) {
	if c.metadata == nil {
		c.metadata = make(map[string]interface{})
	}
	for key, value := range updates {
		c.metadata[key] = value
	}
	c.lifecycle.UpdateTimestamp()
}

// GetMetadataValue retrieves a specific metadata value
func (c *Container) GetMetadataValue(key string) (interface{}, bool) {
	if c.metadata == nil {
		return nil, false
	}
	value, exists := c.metadata[key]
	return value, exists
}

// MetadataString retrieves a metadata value as a string, or "" if absent
func (c *Container) MetadataString(key string) string {
	if v, ok := c.GetMetadataValue(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// MetadataStringSlice retrieves a metadata value as a string slice.
// Metadata round-trips through JSON, so stored slices come back as
// []interface{}; both shapes are accepted.
func (c *Container) MetadataStringSlice(key string) []string {
	v, ok := c.GetMetadataValue(key)
	if !ok {
		return nil
	}
	switch values := v.(type) {
	case []string:
		return values
	case []interface{}:
		out := make([]string, 0, len(values))
		for _, item := range values {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// MetadataInt retrieves a metadata value as an int, or def if absent.
// JSON decodes numbers as float64.
func (c *Container) MetadataInt(key string, def int) int {
	v, ok := c.GetMetadataValue(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return def
}

// State queries

// IsRunning returns true if the container is currently executing
func (c *Container) IsRunning() bool {
	return c.Status() == StatusRunning
}

// IsStopping returns true if the container is gracefully shutting down
func (c *Container) IsStopping() bool {
	return c.stopping
}

// IsTerminal returns true if the container has completed, failed, or stopped
func (c *Container) IsTerminal() bool {
	status := c.Status()
	return status == StatusCompleted || status == StatusFailed || status == StatusStopped
}

// RuntimeDuration calculates how long the container has been running
func (c *Container) RuntimeDuration() time.Duration {
	return c.lifecycle.RuntimeDuration()
}

func (c *Container) String() string {
	return fmt.Sprintf("Container[%s, type=%s, status=%s, iteration=%d/%d, restarts=%d]",
		c.id, c.containerType, c.Status(), c.currentIteration, c.maxIterations, c.restartCount)
}

package shared

import (
	"fmt"
	"time"
)

// LifecycleStatus represents the state of an entity in its lifecycle
type LifecycleStatus string

const (
	// LifecycleStatusPending indicates the entity is queued but not started
	LifecycleStatusPending LifecycleStatus = "PENDING"

	// LifecycleStatusRunning indicates the entity is actively executing
	LifecycleStatusRunning LifecycleStatus = "RUNNING"

	// LifecycleStatusCompleted indicates the entity finished successfully
	LifecycleStatusCompleted LifecycleStatus = "COMPLETED"

	// LifecycleStatusFailed indicates the entity encountered an error
	LifecycleStatusFailed LifecycleStatus = "FAILED"

	// LifecycleStatusStopped indicates the entity was stopped by user
	LifecycleStatusStopped LifecycleStatus = "STOPPED"
)

// LifecycleStateMachine manages the common lifecycle state transitions
// for entities that follow the PENDING → RUNNING → COMPLETED/FAILED/STOPPED
// pattern. Timestamps are managed on transition and never move backward.
type LifecycleStateMachine struct {
	status    LifecycleStatus
	createdAt time.Time
	updatedAt time.Time
	startedAt *time.Time
	stoppedAt *time.Time
	lastError error
	clock     Clock
}

// NewLifecycleStateMachine creates a new lifecycle state machine in PENDING state
func NewLifecycleStateMachine(clock Clock) *LifecycleStateMachine {
	if clock == nil {
		clock = NewRealClock()
	}

	now := clock.Now()
	return &LifecycleStateMachine{
		status:    LifecycleStatusPending,
		createdAt: now,
		updatedAt: now,
		clock:     clock,
	}
}

// Getters

func (sm *LifecycleStateMachine) Status() LifecycleStatus { return sm.status }
func (sm *LifecycleStateMachine) CreatedAt() time.Time    { return sm.createdAt }
func (sm *LifecycleStateMachine) UpdatedAt() time.Time    { return sm.updatedAt }
func (sm *LifecycleStateMachine) StartedAt() *time.Time   { return sm.startedAt }
func (sm *LifecycleStateMachine) StoppedAt() *time.Time   { return sm.stoppedAt }
func (sm *LifecycleStateMachine) LastError() error        { return sm.lastError }

// Start transitions from PENDING or STOPPED to RUNNING state
func (sm *LifecycleStateMachine) Start() error {
	if sm.status != LifecycleStatusPending && sm.status != LifecycleStatusStopped {
		return NewDomainError(KindInvalidTransition,
			fmt.Sprintf("cannot start from %s state", sm.status))
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusRunning
	if sm.startedAt == nil {
		sm.startedAt = &now
	}
	sm.updatedAt = now
	return nil
}

// Complete transitions from RUNNING to COMPLETED state
func (sm *LifecycleStateMachine) Complete() error {
	if sm.status != LifecycleStatusRunning {
		return NewDomainError(KindInvalidTransition,
			fmt.Sprintf("cannot complete from %s state", sm.status))
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusCompleted
	sm.stoppedAt = &now
	sm.updatedAt = now
	return nil
}

// Fail transitions to FAILED state with an error.
// Legal from any non-terminal state.
func (sm *LifecycleStateMachine) Fail(err error) error {
	if sm.status == LifecycleStatusCompleted || sm.status == LifecycleStatusStopped {
		return NewDomainError(KindInvalidTransition,
			fmt.Sprintf("cannot fail from %s state", sm.status))
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusFailed
	sm.lastError = err
	sm.stoppedAt = &now
	sm.updatedAt = now
	return nil
}

// Stop transitions to STOPPED state.
// Legal from any non-terminal state.
func (sm *LifecycleStateMachine) Stop() error {
	if sm.status == LifecycleStatusCompleted || sm.status == LifecycleStatusStopped {
		return NewDomainError(KindInvalidTransition,
			fmt.Sprintf("cannot stop from %s state", sm.status))
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusStopped
	sm.stoppedAt = &now
	sm.updatedAt = now
	return nil
}

// State queries

func (sm *LifecycleStateMachine) IsRunning() bool { return sm.status == LifecycleStatusRunning }
func (sm *LifecycleStateMachine) IsPending() bool { return sm.status == LifecycleStatusPending }

// IsFinished returns true if the entity has completed, failed, or stopped
func (sm *LifecycleStateMachine) IsFinished() bool {
	return sm.status == LifecycleStatusCompleted ||
		sm.status == LifecycleStatusFailed ||
		sm.status == LifecycleStatusStopped
}

// RuntimeDuration calculates how long the entity has been/was running.
// Returns 0 if not started yet.
func (sm *LifecycleStateMachine) RuntimeDuration() time.Duration {
	if sm.startedAt == nil {
		return 0
	}

	endTime := sm.clock.Now()
	if sm.stoppedAt != nil {
		endTime = *sm.stoppedAt
	}

	return endTime.Sub(*sm.startedAt)
}

// UpdateTimestamp updates the updatedAt timestamp without a state change
func (sm *LifecycleStateMachine) UpdateTimestamp() {
	sm.updatedAt = sm.clock.Now()
}

// ResetForRestart clears error state and timestamps for a restart attempt
func (sm *LifecycleStateMachine) ResetForRestart() {
	sm.status = LifecycleStatusPending
	sm.lastError = nil
	sm.startedAt = nil
	sm.stoppedAt = nil
	sm.updatedAt = sm.clock.Now()
}

// RecoverFromPersistence restores the complete lifecycle state from persisted
// data. Only entity constructors rebuilding from storage should call this.
func (sm *LifecycleStateMachine) RecoverFromPersistence(
	status LifecycleStatus,
	createdAt, updatedAt time.Time,
	startedAt, stoppedAt *time.Time,
	lastError error,
) {
	sm.status = status
	sm.createdAt = createdAt
	sm.updatedAt = updatedAt
	sm.startedAt = startedAt
	sm.stoppedAt = stoppedAt
	sm.lastError = lastError
}

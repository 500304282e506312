package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetd/internal/domain/fleet"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// GormShipAssignmentRepository implements assignment persistence using GORM.
// Active means released_at IS NULL; the partial unique index on postgres
// backstops the transactional check-then-insert in Acquire.
type GormShipAssignmentRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewGormShipAssignmentRepository creates a new GORM assignment repository
func NewGormShipAssignmentRepository(db *gorm.DB, clock shared.Clock) *GormShipAssignmentRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &GormShipAssignmentRepository{db: db, clock: clock}
}

// Acquire inserts an active assignment unless one already exists for the ship.
// Returns ShipAlreadyAssignedError naming the holding container on conflict.
func (r *GormShipAssignmentRepository) Acquire(ctx context.Context, shipSymbol string, playerID int, containerID string) (*fleet.ShipAssignment, error) {
	assignment := fleet.NewShipAssignment(shipSymbol, playerID, containerID, r.clock)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ShipAssignmentModel
		err := tx.Where("ship_symbol = ? AND released_at IS NULL", shipSymbol).
			First(&existing).Error
		if err == nil {
			return shared.NewShipAlreadyAssignedError(shipSymbol, existing.ContainerID)
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to check existing assignment: %w", err)
		}

		model := &ShipAssignmentModel{
			ShipSymbol:  shipSymbol,
			PlayerID:    playerID,
			ContainerID: containerID,
			AssignedAt:  assignment.AssignedAt,
		}
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to insert assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return assignment, nil
}

// FindActiveByShip retrieves the active assignment for a ship, or nil
func (r *GormShipAssignmentRepository) FindActiveByShip(ctx context.Context, shipSymbol string, playerID int) (*fleet.ShipAssignment, error) {
	var model ShipAssignmentModel
	err := r.db.WithContext(ctx).
		Where("ship_symbol = ? AND player_id = ? AND released_at IS NULL", shipSymbol, playerID).
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find assignment: %w", err)
	}
	return modelToAssignment(&model), nil
}

// FindActiveByContainer retrieves all active assignments held by a container
func (r *GormShipAssignmentRepository) FindActiveByContainer(ctx context.Context, containerID string, playerID int) ([]*fleet.ShipAssignment, error) {
	var models []ShipAssignmentModel
	err := r.db.WithContext(ctx).
		Where("container_id = ? AND player_id = ? AND released_at IS NULL", containerID, playerID).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find container assignments: %w", err)
	}
	return modelsToAssignments(models), nil
}

// FindAllActive retrieves every active assignment across all players.
// The health monitor scans this set on each pass.
func (r *GormShipAssignmentRepository) FindAllActive(ctx context.Context) ([]*fleet.ShipAssignment, error) {
	var models []ShipAssignmentModel
	err := r.db.WithContext(ctx).
		Where("released_at IS NULL").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active assignments: %w", err)
	}
	return modelsToAssignments(models), nil
}

// Release marks the ship's active assignment released.
// A second release of the same ship is a NoOp error unless force is set.
func (r *GormShipAssignmentRepository) Release(ctx context.Context, shipSymbol string, playerID int, reason string, force bool) error {
	now := r.clock.Now()

	result := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("ship_symbol = ? AND player_id = ? AND released_at IS NULL", shipSymbol, playerID).
		Updates(map[string]interface{}{
			"released_at":    now,
			"release_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release assignment: %w", result.Error)
	}
	if result.RowsAffected == 0 && !force {
		return shared.NewNoOpError(fmt.Sprintf("no active assignment for ship %s", shipSymbol))
	}
	return nil
}

// ReleaseByContainer releases all active assignments held by a container.
// Returns the number of assignments released.
func (r *GormShipAssignmentRepository) ReleaseByContainer(ctx context.Context, containerID string, playerID int, reason string) (int, error) {
	now := r.clock.Now()

	result := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("container_id = ? AND player_id = ? AND released_at IS NULL", containerID, playerID).
		Updates(map[string]interface{}{
			"released_at":    now,
			"release_reason": reason,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to release container assignments: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// ReleaseAllActive releases every active assignment. Startup sweep for
// locks left over from a previous daemon run.
func (r *GormShipAssignmentRepository) ReleaseAllActive(ctx context.Context, reason string) (int, error) {
	now := r.clock.Now()

	result := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("released_at IS NULL").
		Updates(map[string]interface{}{
			"released_at":    now,
			"release_reason": reason,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to release all active assignments: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// CleanOrphans releases active assignments whose container is not in the
// given set of live container ids.
func (r *GormShipAssignmentRepository) CleanOrphans(ctx context.Context, existingContainerIDs []string, reason string) (int, error) {
	now := r.clock.Now()

	query := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("released_at IS NULL")
	if len(existingContainerIDs) > 0 {
		query = query.Where("container_id NOT IN ?", existingContainerIDs)
	}

	result := query.Updates(map[string]interface{}{
		"released_at":    now,
		"release_reason": reason,
	})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean orphaned assignments: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// CleanStale releases active assignments older than the timeout
func (r *GormShipAssignmentRepository) CleanStale(ctx context.Context, timeout time.Duration, reason string) (int, error) {
	now := r.clock.Now()
	cutoff := now.Add(-timeout)

	result := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("released_at IS NULL AND assigned_at <= ?", cutoff).
		Updates(map[string]interface{}{
			"released_at":    now,
			"release_reason": reason,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean stale assignments: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// Heartbeat re-stamps assigned_at on the ship's active assignment so the
// stale sweep does not reap a lock its holder is still working under
func (r *GormShipAssignmentRepository) Heartbeat(ctx context.Context, shipSymbol string, playerID int) error {
	now := r.clock.Now()

	result := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("ship_symbol = ? AND player_id = ? AND released_at IS NULL", shipSymbol, playerID).
		Update("assigned_at", now)
	if result.Error != nil {
		return fmt.Errorf("failed to heartbeat assignment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNoOpError(fmt.Sprintf("no active assignment for ship %s", shipSymbol))
	}
	return nil
}

// Transfer moves an active assignment between containers, re-stamping
// assigned_at. Coordinators use this to hand ships to workers.
func (r *GormShipAssignmentRepository) Transfer(ctx context.Context, shipSymbol, fromContainerID, toContainerID string) error {
	now := r.clock.Now()

	result := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("ship_symbol = ? AND container_id = ? AND released_at IS NULL", shipSymbol, fromContainerID).
		Updates(map[string]interface{}{
			"container_id": toContainerID,
			"assigned_at":  now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to transfer assignment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("no active assignment for ship %s held by %s", shipSymbol, fromContainerID))
	}
	return nil
}

func modelToAssignment(model *ShipAssignmentModel) *fleet.ShipAssignment {
	return &fleet.ShipAssignment{
		ShipSymbol:    model.ShipSymbol,
		PlayerID:      model.PlayerID,
		ContainerID:   model.ContainerID,
		AssignedAt:    model.AssignedAt,
		ReleasedAt:    model.ReleasedAt,
		ReleaseReason: model.ReleaseReason,
	}
}

func modelsToAssignments(models []ShipAssignmentModel) []*fleet.ShipAssignment {
	assignments := make([]*fleet.ShipAssignment, 0, len(models))
	for i := range models {
		assignments = append(assignments, modelToAssignment(&models[i]))
	}
	return assignments
}

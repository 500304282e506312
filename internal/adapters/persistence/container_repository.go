package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// GormContainerRepository implements container persistence using GORM.
// Every supervisor status change writes through here.
type GormContainerRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewGormContainerRepository creates a new GORM container repository
func NewGormContainerRepository(db *gorm.DB, clock shared.Clock) *GormContainerRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &GormContainerRepository{db: db, clock: clock}
}

// Save upserts the container keyed by (id, player_id)
func (r *GormContainerRepository) Save(ctx context.Context, c *container.Container) error {
	model, err := r.containerToModel(c)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "current_iteration", "restart_count", "max_restarts",
			"last_error", "metadata", "updated_at", "started_at", "stopped_at",
		}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save container: %w", err)
	}
	return nil
}

// FindByID retrieves a container by id and player
func (r *GormContainerRepository) FindByID(ctx context.Context, id string, playerID int) (*container.Container, error) {
	var model ContainerModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND player_id = ?", id, playerID).
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("container %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find container: %w", err)
	}
	return r.modelToContainer(&model)
}

// FindByIDAnyPlayer retrieves a container by id regardless of player.
// The socket server uses it for StopContainer and GetContainer, which
// identify containers by id alone.
func (r *GormContainerRepository) FindByIDAnyPlayer(ctx context.Context, id string) (*container.Container, error) {
	var model ContainerModel
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("container %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find container: %w", err)
	}
	return r.modelToContainer(&model)
}

// ContainerFilter narrows List results. Nil fields match everything.
type ContainerFilter struct {
	PlayerID *int
	Type     *container.Type
	Status   *container.Status
}

// List retrieves containers matching the filter, newest first
func (r *GormContainerRepository) List(ctx context.Context, filter ContainerFilter) ([]*container.Container, error) {
	query := r.db.WithContext(ctx).Model(&ContainerModel{})
	if filter.PlayerID != nil {
		query = query.Where("player_id = ?", *filter.PlayerID)
	}
	if filter.Type != nil {
		query = query.Where("container_type = ?", string(*filter.Type))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}

	var models []ContainerModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return r.modelsToContainers(models)
}

// FindNonTerminal retrieves containers the previous daemon run left in
// PENDING, RUNNING, or STOPPING. Startup recovery scans these.
func (r *GormContainerRepository) FindNonTerminal(ctx context.Context) ([]*container.Container, error) {
	var models []ContainerModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			string(container.StatusPending),
			string(container.StatusRunning),
			string(container.StatusStopping),
		}).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find non-terminal containers: %w", err)
	}
	return r.modelsToContainers(models)
}

// FindRunningByType retrieves a player's RUNNING containers of a type
func (r *GormContainerRepository) FindRunningByType(ctx context.Context, containerType container.Type, playerID int) ([]*container.Container, error) {
	var models []ContainerModel
	err := r.db.WithContext(ctx).
		Where("container_type = ? AND player_id = ? AND status = ?",
			string(containerType), playerID, string(container.StatusRunning)).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find running containers: %w", err)
	}
	return r.modelsToContainers(models)
}

func (r *GormContainerRepository) modelsToContainers(models []ContainerModel) ([]*container.Container, error) {
	containers := make([]*container.Container, 0, len(models))
	for i := range models {
		c, err := r.modelToContainer(&models[i])
		if err != nil {
			return nil, err
		}
		containers = append(containers, c)
	}
	return containers, nil
}

func (r *GormContainerRepository) modelToContainer(model *ContainerModel) (*container.Container, error) {
	var metadata map[string]interface{}
	if model.Metadata != "" {
		if err := json.Unmarshal([]byte(model.Metadata), &metadata); err != nil {
			metadata = nil
		}
	}

	var lastError error
	if model.LastError != "" {
		lastError = errors.New(model.LastError)
	}

	return container.Recover(
		model.ID,
		container.Type(model.ContainerType),
		model.PlayerID,
		container.Status(model.Status),
		model.CurrentIteration,
		model.MaxIterations,
		model.RestartCount,
		model.MaxRestarts,
		metadata,
		model.CreatedAt,
		model.UpdatedAt,
		model.StartedAt,
		model.StoppedAt,
		lastError,
		r.clock,
	), nil
}

func (r *GormContainerRepository) containerToModel(c *container.Container) (*ContainerModel, error) {
	var metadataJSON string
	if len(c.Metadata()) > 0 {
		bytes, err := json.Marshal(c.Metadata())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal container metadata: %w", err)
		}
		metadataJSON = string(bytes)
	}

	var lastError string
	if c.LastError() != nil {
		lastError = c.LastError().Error()
	}

	return &ContainerModel{
		ID:               c.ID(),
		PlayerID:         c.PlayerID(),
		ContainerType:    string(c.Type()),
		Status:           string(c.Status()),
		CurrentIteration: c.CurrentIteration(),
		MaxIterations:    c.MaxIterations(),
		RestartCount:     c.RestartCount(),
		MaxRestarts:      c.MaxRestarts(),
		LastError:        lastError,
		Metadata:         metadataJSON,
		CreatedAt:        c.CreatedAt(),
		UpdatedAt:        c.UpdatedAt(),
		StartedAt:        c.StartedAt(),
		StoppedAt:        c.StoppedAt(),
	}, nil
}

package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// GormWaypointRepository implements waypoint persistence using GORM
type GormWaypointRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewGormWaypointRepository creates a new GORM waypoint repository
func NewGormWaypointRepository(db *gorm.DB, clock shared.Clock) *GormWaypointRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &GormWaypointRepository{db: db, clock: clock}
}

// FindBySymbol retrieves a waypoint by symbol
func (r *GormWaypointRepository) FindBySymbol(ctx context.Context, symbol string) (*shared.Waypoint, error) {
	var model WaypointModel
	err := r.db.WithContext(ctx).Where("waypoint_symbol = ?", symbol).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("waypoint %s not found", symbol))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find waypoint: %w", err)
	}
	return r.modelToWaypoint(&model)
}

// ListBySystem retrieves all waypoints in a system
func (r *GormWaypointRepository) ListBySystem(ctx context.Context, systemSymbol string) ([]*shared.Waypoint, error) {
	var models []WaypointModel
	if err := r.db.WithContext(ctx).Where("system_symbol = ?", systemSymbol).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list waypoints: %w", err)
	}
	return r.modelsToWaypoints(models)
}

// ListBySystemWithTrait retrieves waypoints in a system carrying a trait
func (r *GormWaypointRepository) ListBySystemWithTrait(ctx context.Context, systemSymbol, trait string) ([]*shared.Waypoint, error) {
	var models []WaypointModel
	// Traits are stored as a JSON array string; match the quoted symbol
	pattern := fmt.Sprintf("%%\"%s\"%%", trait)
	err := r.db.WithContext(ctx).
		Where("system_symbol = ? AND traits LIKE ?", systemSymbol, pattern).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waypoints by trait: %w", err)
	}
	return r.modelsToWaypoints(models)
}

// ListBySystemWithType retrieves waypoints in a system of a given type
func (r *GormWaypointRepository) ListBySystemWithType(ctx context.Context, systemSymbol, waypointType string) ([]*shared.Waypoint, error) {
	var models []WaypointModel
	err := r.db.WithContext(ctx).
		Where("system_symbol = ? AND type = ?", systemSymbol, waypointType).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waypoints by type: %w", err)
	}
	return r.modelsToWaypoints(models)
}

// ListBySystemWithFuel retrieves waypoints in a system where fuel is sold
func (r *GormWaypointRepository) ListBySystemWithFuel(ctx context.Context, systemSymbol string) ([]*shared.Waypoint, error) {
	var models []WaypointModel
	err := r.db.WithContext(ctx).
		Where("system_symbol = ? AND has_fuel = 1", systemSymbol).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waypoints with fuel: %w", err)
	}
	return r.modelsToWaypoints(models)
}

// OldestSyncedAt returns the oldest synced_at in a system, or nil if the
// system has no cached waypoints. The cache uses it for TTL checks.
func (r *GormWaypointRepository) OldestSyncedAt(ctx context.Context, systemSymbol string) (*time.Time, error) {
	var model WaypointModel
	err := r.db.WithContext(ctx).
		Where("system_symbol = ?", systemSymbol).
		Order("synced_at ASC").
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read oldest synced_at: %w", err)
	}
	t := model.SyncedAt
	return &t, nil
}

// SaveAll upserts waypoints keyed by symbol, stamping synced_at = now.
// The incoming records are authoritative: traits and coordinates are
// overwritten, never merged.
func (r *GormWaypointRepository) SaveAll(ctx context.Context, waypoints []*shared.Waypoint) error {
	if len(waypoints) == 0 {
		return nil
	}

	now := r.clock.Now()
	models := make([]WaypointModel, 0, len(waypoints))
	for _, wp := range waypoints {
		model, err := r.waypointToModel(wp)
		if err != nil {
			return err
		}
		model.SyncedAt = now
		wp.SyncedAt = now
		models = append(models, *model)
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "waypoint_symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"system_symbol", "type", "x", "y", "traits", "has_fuel", "synced_at",
		}),
	}).Create(&models).Error
	if err != nil {
		return fmt.Errorf("failed to save waypoints: %w", err)
	}
	return nil
}

// Save upserts a single waypoint
func (r *GormWaypointRepository) Save(ctx context.Context, waypoint *shared.Waypoint) error {
	return r.SaveAll(ctx, []*shared.Waypoint{waypoint})
}

func (r *GormWaypointRepository) modelsToWaypoints(models []WaypointModel) ([]*shared.Waypoint, error) {
	waypoints := make([]*shared.Waypoint, 0, len(models))
	for i := range models {
		waypoint, err := r.modelToWaypoint(&models[i])
		if err != nil {
			return nil, fmt.Errorf("failed to convert waypoint %s: %w", models[i].WaypointSymbol, err)
		}
		waypoints = append(waypoints, waypoint)
	}
	return waypoints, nil
}

func (r *GormWaypointRepository) modelToWaypoint(model *WaypointModel) (*shared.Waypoint, error) {
	waypoint, err := shared.NewWaypoint(model.WaypointSymbol, model.X, model.Y)
	if err != nil {
		return nil, err
	}

	waypoint.SystemSymbol = model.SystemSymbol
	waypoint.Type = model.Type
	waypoint.HasFuel = model.HasFuel == 1
	waypoint.SyncedAt = model.SyncedAt

	if model.Traits != "" {
		var traits []string
		if err := json.Unmarshal([]byte(model.Traits), &traits); err != nil {
			traits = []string{}
		}
		waypoint.Traits = traits
	}

	return waypoint, nil
}

func (r *GormWaypointRepository) waypointToModel(waypoint *shared.Waypoint) (*WaypointModel, error) {
	hasFuel := 0
	if waypoint.HasFuel {
		hasFuel = 1
	}

	var traitsJSON string
	if len(waypoint.Traits) > 0 {
		bytes, err := json.Marshal(waypoint.Traits)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal traits: %w", err)
		}
		traitsJSON = string(bytes)
	}

	return &WaypointModel{
		WaypointSymbol: waypoint.Symbol,
		SystemSymbol:   waypoint.SystemSymbol,
		Type:           waypoint.Type,
		X:              waypoint.X,
		Y:              waypoint.Y,
		Traits:         traitsJSON,
		HasFuel:        hasFuel,
		SyncedAt:       waypoint.SyncedAt,
	}, nil
}

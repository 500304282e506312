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

// MiningOperation is a coordinator-owned mining site record.
// Opaque to the core beyond per-player isolation.
type MiningOperation struct {
	ID             string
	PlayerID       int
	SystemSymbol   string
	WaypointSymbol string
	Status         string
	Config         map[string]interface{}
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GoodsFactory is a manufacturing-chain record, likewise opaque to the core
type GoodsFactory struct {
	ID         string
	PlayerID   int
	GoodSymbol string
	Status     string
	Config     map[string]interface{}
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GormOperationsRepository stores mining operations and goods factories
type GormOperationsRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewGormOperationsRepository creates a new operations repository
func NewGormOperationsRepository(db *gorm.DB, clock shared.Clock) *GormOperationsRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &GormOperationsRepository{db: db, clock: clock}
}

// SaveMiningOperation upserts a mining operation keyed by (id, player_id)
func (r *GormOperationsRepository) SaveMiningOperation(ctx context.Context, op *MiningOperation) error {
	configJSON, err := marshalConfig(op.Config)
	if err != nil {
		return err
	}

	now := r.clock.Now()
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	op.UpdatedAt = now

	model := &MiningOperationModel{
		ID:             op.ID,
		PlayerID:       op.PlayerID,
		SystemSymbol:   op.SystemSymbol,
		WaypointSymbol: op.WaypointSymbol,
		Status:         op.Status,
		ConfigJSON:     configJSON,
		CreatedAt:      op.CreatedAt,
		UpdatedAt:      op.UpdatedAt,
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "config_json", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save mining operation: %w", err)
	}
	return nil
}

// ListMiningOperations retrieves a player's mining operations
func (r *GormOperationsRepository) ListMiningOperations(ctx context.Context, playerID int) ([]*MiningOperation, error) {
	var models []MiningOperationModel
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list mining operations: %w", err)
	}

	ops := make([]*MiningOperation, 0, len(models))
	for _, m := range models {
		ops = append(ops, &MiningOperation{
			ID:             m.ID,
			PlayerID:       m.PlayerID,
			SystemSymbol:   m.SystemSymbol,
			WaypointSymbol: m.WaypointSymbol,
			Status:         m.Status,
			Config:         unmarshalConfig(m.ConfigJSON),
			CreatedAt:      m.CreatedAt,
			UpdatedAt:      m.UpdatedAt,
		})
	}
	return ops, nil
}

// SaveGoodsFactory upserts a goods factory keyed by (id, player_id)
func (r *GormOperationsRepository) SaveGoodsFactory(ctx context.Context, factory *GoodsFactory) error {
	configJSON, err := marshalConfig(factory.Config)
	if err != nil {
		return err
	}

	now := r.clock.Now()
	if factory.CreatedAt.IsZero() {
		factory.CreatedAt = now
	}
	factory.UpdatedAt = now

	model := &GoodsFactoryModel{
		ID:         factory.ID,
		PlayerID:   factory.PlayerID,
		GoodSymbol: factory.GoodSymbol,
		Status:     factory.Status,
		ConfigJSON: configJSON,
		CreatedAt:  factory.CreatedAt,
		UpdatedAt:  factory.UpdatedAt,
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "config_json", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save goods factory: %w", err)
	}
	return nil
}

// ListGoodsFactories retrieves a player's goods factories
func (r *GormOperationsRepository) ListGoodsFactories(ctx context.Context, playerID int) ([]*GoodsFactory, error) {
	var models []GoodsFactoryModel
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list goods factories: %w", err)
	}

	factories := make([]*GoodsFactory, 0, len(models))
	for _, m := range models {
		factories = append(factories, &GoodsFactory{
			ID:         m.ID,
			PlayerID:   m.PlayerID,
			GoodSymbol: m.GoodSymbol,
			Status:     m.Status,
			Config:     unmarshalConfig(m.ConfigJSON),
			CreatedAt:  m.CreatedAt,
			UpdatedAt:  m.UpdatedAt,
		})
	}
	return factories, nil
}

func marshalConfig(config map[string]interface{}) (string, error) {
	if len(config) == 0 {
		return "", nil
	}
	bytes, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(bytes), nil
}

func unmarshalConfig(raw string) map[string]interface{} {
	if raw == "" {
		return nil
	}
	var config map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return nil
	}
	return config
}

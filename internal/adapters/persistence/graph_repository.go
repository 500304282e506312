package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// GormGraphRepository persists system navigation graphs, one row per system
type GormGraphRepository struct {
	db *gorm.DB
}

// NewGormGraphRepository creates a new GORM graph repository
func NewGormGraphRepository(db *gorm.DB) *GormGraphRepository {
	return &GormGraphRepository{db: db}
}

// Find retrieves a system's graph, or nil if none has been built
func (r *GormGraphRepository) Find(ctx context.Context, systemSymbol string) (*shared.NavigationGraph, error) {
	var model SystemGraphModel
	err := r.db.WithContext(ctx).
		Where("system_symbol = ?", systemSymbol).
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find system graph: %w", err)
	}

	var graph shared.NavigationGraph
	if err := json.Unmarshal([]byte(model.GraphData), &graph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph for %s: %w", systemSymbol, err)
	}
	return &graph, nil
}

// Save upserts a system's graph keyed by system symbol
func (r *GormGraphRepository) Save(ctx context.Context, graph *shared.NavigationGraph) error {
	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	model := &SystemGraphModel{
		SystemSymbol: graph.System,
		GraphData:    string(data),
		BuiltAt:      graph.BuiltAt,
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "system_symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"graph_data", "built_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save system graph: %w", err)
	}
	return nil
}

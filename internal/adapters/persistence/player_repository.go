package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetd/internal/domain/fleet"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// GormPlayerRepository implements player persistence using GORM
type GormPlayerRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewGormPlayerRepository creates a new GORM player repository
func NewGormPlayerRepository(db *gorm.DB, clock shared.Clock) *GormPlayerRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &GormPlayerRepository{db: db, clock: clock}
}

// Save persists a player, assigning an id on first insert
func (r *GormPlayerRepository) Save(ctx context.Context, player *fleet.Player) error {
	model, err := r.playerToModel(player)
	if err != nil {
		return err
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = r.clock.Now()
	}

	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("failed to save player: %w", err)
	}

	player.ID = model.ID
	player.CreatedAt = model.CreatedAt
	return nil
}

// FindByID retrieves a player by id
func (r *GormPlayerRepository) FindByID(ctx context.Context, id int) (*fleet.Player, error) {
	var model PlayerModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("player %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}
	return r.modelToPlayer(&model)
}

// FindByAgentSymbol retrieves a player by agent symbol
func (r *GormPlayerRepository) FindByAgentSymbol(ctx context.Context, agentSymbol string) (*fleet.Player, error) {
	var model PlayerModel
	err := r.db.WithContext(ctx).Where("agent_symbol = ?", agentSymbol).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("player %s not found", agentSymbol))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}
	return r.modelToPlayer(&model)
}

// List retrieves all registered players
func (r *GormPlayerRepository) List(ctx context.Context) ([]*fleet.Player, error) {
	var models []PlayerModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	players := make([]*fleet.Player, 0, len(models))
	for i := range models {
		player, err := r.modelToPlayer(&models[i])
		if err != nil {
			return nil, err
		}
		players = append(players, player)
	}
	return players, nil
}

// TouchLastActive stamps the player's last_active
func (r *GormPlayerRepository) TouchLastActive(ctx context.Context, id int) error {
	now := r.clock.Now()
	result := r.db.WithContext(ctx).
		Model(&PlayerModel{}).
		Where("id = ?", id).
		Update("last_active", now)
	if result.Error != nil {
		return fmt.Errorf("failed to touch player: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("player %d not found", id))
	}
	return nil
}

func (r *GormPlayerRepository) modelToPlayer(model *PlayerModel) (*fleet.Player, error) {
	var metadata map[string]interface{}
	if model.Metadata != "" {
		if err := json.Unmarshal([]byte(model.Metadata), &metadata); err != nil {
			metadata = nil
		}
	}

	return &fleet.Player{
		ID:          model.ID,
		AgentSymbol: model.AgentSymbol,
		Token:       model.Token,
		Metadata:    metadata,
		CreatedAt:   model.CreatedAt,
		LastActive:  model.LastActive,
	}, nil
}

func (r *GormPlayerRepository) playerToModel(player *fleet.Player) (*PlayerModel, error) {
	var metadataJSON string
	if len(player.Metadata) > 0 {
		bytes, err := json.Marshal(player.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal player metadata: %w", err)
		}
		metadataJSON = string(bytes)
	}

	var lastActive *time.Time
	if player.LastActive != nil {
		t := player.LastActive.UTC()
		lastActive = &t
	}

	return &PlayerModel{
		ID:          player.ID,
		AgentSymbol: player.AgentSymbol,
		Token:       player.Token,
		CreatedAt:   player.CreatedAt,
		LastActive:  lastActive,
		Metadata:    metadataJSON,
	}, nil
}

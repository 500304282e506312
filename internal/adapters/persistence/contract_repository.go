package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// GormContractRepository stores contract snapshots per player
type GormContractRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewGormContractRepository creates a new GORM contract repository
func NewGormContractRepository(db *gorm.DB, clock shared.Clock) *GormContractRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &GormContractRepository{db: db, clock: clock}
}

// Save upserts a contract snapshot keyed by (id, player_id)
func (r *GormContractRepository) Save(ctx context.Context, playerID int, contract *api.ContractData) error {
	deliverables, err := json.Marshal(contract.Deliverables)
	if err != nil {
		return fmt.Errorf("failed to marshal deliverables: %w", err)
	}

	model := &ContractModel{
		ID:                 contract.ID,
		PlayerID:           playerID,
		FactionSymbol:      contract.FactionSymbol,
		Type:               contract.Type,
		Accepted:           contract.Accepted,
		Fulfilled:          contract.Fulfilled,
		Deadline:           contract.DeadlineAt,
		PaymentOnAccepted:  contract.PaymentOnAccepted,
		PaymentOnFulfilled: contract.PaymentOnFulfilled,
		DeliverablesJSON:   string(deliverables),
		LastUpdated:        r.clock.Now(),
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"accepted", "fulfilled", "deadline", "deliverables_json", "last_updated",
		}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save contract: %w", err)
	}
	return nil
}

// FindByID retrieves a player's contract snapshot
func (r *GormContractRepository) FindByID(ctx context.Context, playerID int, contractID string) (*api.ContractData, error) {
	var model ContractModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND player_id = ?", contractID, playerID).
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewDomainError(shared.KindNotFound,
			fmt.Sprintf("contract %s not found", contractID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contract: %w", err)
	}
	return modelToContract(&model)
}

// ListUnfulfilled retrieves a player's accepted but unfulfilled contracts
func (r *GormContractRepository) ListUnfulfilled(ctx context.Context, playerID int) ([]*api.ContractData, error) {
	var models []ContractModel
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND accepted = ? AND fulfilled = ?", playerID, true, false).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}

	contracts := make([]*api.ContractData, 0, len(models))
	for i := range models {
		contract, err := modelToContract(&models[i])
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

func modelToContract(model *ContractModel) (*api.ContractData, error) {
	var deliverables []api.ContractDeliverableData
	if model.DeliverablesJSON != "" {
		if err := json.Unmarshal([]byte(model.DeliverablesJSON), &deliverables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal deliverables for %s: %w", model.ID, err)
		}
	}

	return &api.ContractData{
		ID:                 model.ID,
		FactionSymbol:      model.FactionSymbol,
		Type:               model.Type,
		Accepted:           model.Accepted,
		Fulfilled:          model.Fulfilled,
		DeadlineAt:         model.Deadline,
		PaymentOnAccepted:  model.PaymentOnAccepted,
		PaymentOnFulfilled: model.PaymentOnFulfilled,
		Deliverables:       deliverables,
	}, nil
}

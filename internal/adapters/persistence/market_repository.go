package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// MarketGoodRecord is a stored market observation for one good
type MarketGoodRecord struct {
	WaypointSymbol string
	GoodSymbol     string
	Supply         string
	Activity       string
	PurchasePrice  int64
	SellPrice      int64
	TradeVolume    int
	LastUpdated    time.Time
}

// GormMarketRepository stores market snapshots, one row per
// (waypoint, good, player). The core imposes no trading semantics.
type GormMarketRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewGormMarketRepository creates a new GORM market repository
func NewGormMarketRepository(db *gorm.DB, clock shared.Clock) *GormMarketRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &GormMarketRepository{db: db, clock: clock}
}

// SaveMarket upserts all goods of a market snapshot for a player
func (r *GormMarketRepository) SaveMarket(ctx context.Context, playerID int, market *api.MarketData) error {
	if len(market.Goods) == 0 {
		return nil
	}

	now := r.clock.Now()
	models := make([]MarketDataModel, 0, len(market.Goods))
	for _, good := range market.Goods {
		supply := good.Supply
		activity := good.Activity
		models = append(models, MarketDataModel{
			WaypointSymbol: market.Symbol,
			GoodSymbol:     good.Symbol,
			PlayerID:       playerID,
			Supply:         &supply,
			Activity:       &activity,
			PurchasePrice:  good.PurchasePrice,
			SellPrice:      good.SellPrice,
			TradeVolume:    good.TradeVolume,
			LastUpdated:    now,
		})
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "waypoint_symbol"}, {Name: "good_symbol"}, {Name: "player_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"supply", "activity", "purchase_price", "sell_price", "trade_volume", "last_updated",
		}),
	}).Create(&models).Error
	if err != nil {
		return fmt.Errorf("failed to save market data: %w", err)
	}
	return nil
}

// ListByWaypoint retrieves a player's stored goods for one market
func (r *GormMarketRepository) ListByWaypoint(ctx context.Context, playerID int, waypointSymbol string) ([]*MarketGoodRecord, error) {
	var models []MarketDataModel
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND waypoint_symbol = ?", playerID, waypointSymbol).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list market data: %w", err)
	}
	return modelsToMarketRecords(models), nil
}

// ListByGood retrieves a player's observations of one good across markets,
// freshest first. Arbitrage coordinators compare these.
func (r *GormMarketRepository) ListByGood(ctx context.Context, playerID int, goodSymbol string) ([]*MarketGoodRecord, error) {
	var models []MarketDataModel
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND good_symbol = ?", playerID, goodSymbol).
		Order("last_updated DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list market data by good: %w", err)
	}
	return modelsToMarketRecords(models), nil
}

func modelsToMarketRecords(models []MarketDataModel) []*MarketGoodRecord {
	records := make([]*MarketGoodRecord, 0, len(models))
	for _, m := range models {
		record := &MarketGoodRecord{
			WaypointSymbol: m.WaypointSymbol,
			GoodSymbol:     m.GoodSymbol,
			PurchasePrice:  m.PurchasePrice,
			SellPrice:      m.SellPrice,
			TradeVolume:    m.TradeVolume,
			LastUpdated:    m.LastUpdated,
		}
		if m.Supply != nil {
			record.Supply = *m.Supply
		}
		if m.Activity != nil {
			record.Activity = *m.Activity
		}
		records = append(records, record)
	}
	return records
}

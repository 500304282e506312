package persistence

import (
	"time"
)

// PlayerModel represents the players table.
// Credits are not persisted; they are always fetched fresh from the API.
type PlayerModel struct {
	ID          int        `gorm:"column:id;primaryKey;autoIncrement"`
	AgentSymbol string     `gorm:"column:agent_symbol;unique;not null"`
	Token       string     `gorm:"column:token;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	LastActive  *time.Time `gorm:"column:last_active"`
	Metadata    string     `gorm:"column:metadata;type:text"` // JSON as text
}

func (PlayerModel) TableName() string {
	return "players"
}

// WaypointModel represents the waypoints table
type WaypointModel struct {
	WaypointSymbol string    `gorm:"column:waypoint_symbol;primaryKey"`
	SystemSymbol   string    `gorm:"column:system_symbol;not null;index"`
	Type           string    `gorm:"column:type;not null"`
	X              float64   `gorm:"column:x;not null"`
	Y              float64   `gorm:"column:y;not null"`
	Traits         string    `gorm:"column:traits;type:text"`            // JSON array as text
	HasFuel        int       `gorm:"column:has_fuel;not null;default:0"` // 0 or 1 (SQLite compatible)
	SyncedAt       time.Time `gorm:"column:synced_at;not null"`
}

func (WaypointModel) TableName() string {
	return "waypoints"
}

// SystemGraphModel represents the system_graphs table, one row per system
type SystemGraphModel struct {
	SystemSymbol string    `gorm:"column:system_symbol;primaryKey"`
	GraphData    string    `gorm:"column:graph_data;type:text;not null"` // JSON as text
	BuiltAt      time.Time `gorm:"column:built_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (SystemGraphModel) TableName() string {
	return "system_graphs"
}

// ContainerModel represents the containers table
type ContainerModel struct {
	ID               string       `gorm:"column:id;primaryKey;not null"`
	PlayerID         int          `gorm:"column:player_id;primaryKey;not null"`
	Player           *PlayerModel `gorm:"foreignKey:PlayerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	ContainerType    string       `gorm:"column:container_type;not null;index"`
	Status           string       `gorm:"column:status;not null;index"`
	CurrentIteration int          `gorm:"column:current_iteration;default:0"`
	MaxIterations    int          `gorm:"column:max_iterations;default:-1"`
	RestartCount     int          `gorm:"column:restart_count;default:0"`
	MaxRestarts      int          `gorm:"column:max_restarts;default:3"`
	LastError        string       `gorm:"column:last_error;type:text"`
	Metadata         string       `gorm:"column:metadata;type:text"` // JSON as text
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time    `gorm:"column:updated_at;not null"`
	StartedAt        *time.Time   `gorm:"column:started_at"`
	StoppedAt        *time.Time   `gorm:"column:stopped_at"`
}

func (ContainerModel) TableName() string {
	return "containers"
}

// ContainerLogModel represents the container_logs table
type ContainerLogModel struct {
	ID          int       `gorm:"column:id;primaryKey;autoIncrement"`
	ContainerID string    `gorm:"column:container_id;not null;index"`
	PlayerID    int       `gorm:"column:player_id;not null"`
	Timestamp   time.Time `gorm:"column:timestamp;not null"`
	Level       string    `gorm:"column:level;not null;default:'INFO'"`
	Message     string    `gorm:"column:message;type:text;not null"`
	Metadata    string    `gorm:"column:metadata;type:text"` // JSON as text
}

func (ContainerLogModel) TableName() string {
	return "container_logs"
}

// ShipAssignmentModel represents the ship_assignments table.
// A row with NULL released_at is the ship's active lock; postgres enforces
// at most one per ship via a partial unique index (see EnsureIndexes).
type ShipAssignmentModel struct {
	ID            int        `gorm:"column:id;primaryKey;autoIncrement"`
	ShipSymbol    string     `gorm:"column:ship_symbol;not null;index"`
	PlayerID      int        `gorm:"column:player_id;not null;index"`
	ContainerID   string     `gorm:"column:container_id;not null;index"`
	AssignedAt    time.Time  `gorm:"column:assigned_at;not null"`
	ReleasedAt    *time.Time `gorm:"column:released_at"`
	ReleaseReason string     `gorm:"column:release_reason"`
}

func (ShipAssignmentModel) TableName() string {
	return "ship_assignments"
}

// MarketDataModel represents the market_data table,
// one row per (waypoint, good, player)
type MarketDataModel struct {
	WaypointSymbol string    `gorm:"column:waypoint_symbol;primaryKey;size:255;not null"`
	GoodSymbol     string    `gorm:"column:good_symbol;primaryKey;size:100;not null"`
	PlayerID       int       `gorm:"column:player_id;primaryKey;not null"`
	Supply         *string   `gorm:"column:supply;size:50"`
	Activity       *string   `gorm:"column:activity;size:50"`
	PurchasePrice  int64     `gorm:"column:purchase_price;not null"`
	SellPrice      int64     `gorm:"column:sell_price;not null"`
	TradeVolume    int       `gorm:"column:trade_volume;not null"`
	LastUpdated    time.Time `gorm:"column:last_updated;index;not null"`
}

func (MarketDataModel) TableName() string {
	return "market_data"
}

// ContractModel represents the contracts table
type ContractModel struct {
	ID                 string     `gorm:"column:id;primaryKey;not null"`
	PlayerID           int        `gorm:"column:player_id;primaryKey;not null"`
	FactionSymbol      string     `gorm:"column:faction_symbol;not null"`
	Type               string     `gorm:"column:type;not null"`
	Accepted           bool       `gorm:"column:accepted;not null"`
	Fulfilled          bool       `gorm:"column:fulfilled;not null"`
	Deadline           *time.Time `gorm:"column:deadline"`
	PaymentOnAccepted  int64      `gorm:"column:payment_on_accepted;not null"`
	PaymentOnFulfilled int64      `gorm:"column:payment_on_fulfilled;not null"`
	DeliverablesJSON   string     `gorm:"column:deliverables_json;type:text;not null"`
	LastUpdated        time.Time  `gorm:"column:last_updated;not null"`
}

func (ContractModel) TableName() string {
	return "contracts"
}

// MiningOperationModel represents the mining_operations table.
// The core stores these rows for coordinators but imposes no semantics.
type MiningOperationModel struct {
	ID             string    `gorm:"column:id;primaryKey;not null"`
	PlayerID       int       `gorm:"column:player_id;primaryKey;not null"`
	SystemSymbol   string    `gorm:"column:system_symbol;not null"`
	WaypointSymbol string    `gorm:"column:waypoint_symbol;not null"`
	Status         string    `gorm:"column:status;not null"`
	ConfigJSON     string    `gorm:"column:config_json;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (MiningOperationModel) TableName() string {
	return "mining_operations"
}

// GoodsFactoryModel represents the goods_factories table
type GoodsFactoryModel struct {
	ID         string    `gorm:"column:id;primaryKey;not null"`
	PlayerID   int       `gorm:"column:player_id;primaryKey;not null"`
	GoodSymbol string    `gorm:"column:good_symbol;not null"`
	Status     string    `gorm:"column:status;not null"`
	ConfigJSON string    `gorm:"column:config_json;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (GoodsFactoryModel) TableName() string {
	return "goods_factories"
}

package api

import "time"

// Data transfer types for the remote API. These stay decoupled from the
// domain entities; callers convert at the boundary.

// AgentData describes a player agent
type AgentData struct {
	Symbol          string `json:"symbol"`
	Headquarters    string `json:"headquarters"`
	Credits         int64  `json:"credits"`
	StartingFaction string `json:"startingFaction"`
	ShipCount       int    `json:"shipCount"`
}

// RegisterResult carries the outcome of agent registration
type RegisterResult struct {
	Token string
	Agent AgentData
}

// WaypointData describes a waypoint as reported by the API
type WaypointData struct {
	Symbol       string
	SystemSymbol string
	Type         string
	X            float64
	Y            float64
	Traits       []string
}

// CargoItemData is one inventory line in a ship's hold
type CargoItemData struct {
	Symbol string
	Name   string
	Units  int
}

// ShipData is the API's view of a ship
type ShipData struct {
	Symbol        string
	Location      string
	NavStatus     string
	ArrivalAt     *time.Time
	FuelCurrent   int
	FuelCapacity  int
	CargoCapacity int
	CargoUnits    int
	Inventory     []CargoItemData
	EngineSpeed   int
	FrameSymbol   string
}

// NavigationResult is returned by navigate and flight-mode calls
type NavigationResult struct {
	NavStatus    string
	ArrivalAt    *time.Time
	FuelCurrent  int
	FuelCapacity int
}

// ExtractionResult is returned by resource extraction
type ExtractionResult struct {
	YieldSymbol     string
	YieldUnits      int
	CooldownSeconds int
	CargoUnits      int
	CargoCapacity   int
}

// TransactionData records a market trade
type TransactionData struct {
	WaypointSymbol string
	TradeSymbol    string
	Type           string
	Units          int
	PricePerUnit   int64
	TotalPrice     int64
	AgentCredits   int64
}

// MarketGoodData is one tradeable good at a market
type MarketGoodData struct {
	Symbol        string
	Type          string
	TradeVolume   int
	Supply        string
	Activity      string
	PurchasePrice int64
	SellPrice     int64
}

// MarketData is a market snapshot
type MarketData struct {
	Symbol string
	Goods  []MarketGoodData
}

// ShipyardShipData is one hull for sale at a shipyard
type ShipyardShipData struct {
	Type          string
	Name          string
	PurchasePrice int64
}

// ShipyardData is a shipyard snapshot
type ShipyardData struct {
	Symbol    string
	ShipTypes []string
	Ships     []ShipyardShipData
}

// PurchaseShipResult is returned when buying a ship
type PurchaseShipResult struct {
	ShipSymbol   string
	FrameSymbol  string
	AgentCredits int64
}

// ContractDeliverableData is one delivery requirement of a contract
type ContractDeliverableData struct {
	TradeSymbol       string
	DestinationSymbol string
	UnitsRequired     int
	UnitsFulfilled    int
}

// ContractData describes a contract
type ContractData struct {
	ID                 string
	FactionSymbol      string
	Type               string
	Accepted           bool
	Fulfilled          bool
	DeadlineAt         *time.Time
	PaymentOnAccepted  int64
	PaymentOnFulfilled int64
	Deliverables       []ContractDeliverableData
}

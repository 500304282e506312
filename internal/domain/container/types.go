package container

// Type categorizes the operation a container executes.
// The set is closed: each type is bound at build time to a runner factory
// in the supervisor registry. New types require a code change.
type Type string

const (
	TypeNavigate                 Type = "NAVIGATE"
	TypeDock                     Type = "DOCK"
	TypeOrbit                    Type = "ORBIT"
	TypeRefuel                   Type = "REFUEL"
	TypeContractWorkflow         Type = "CONTRACT_WORKFLOW"
	TypeContractFleetCoordinator Type = "CONTRACT_FLEET_COORDINATOR"
	TypeArbitrageCoordinator     Type = "ARBITRAGE_COORDINATOR"
	TypeArbitrageWorker          Type = "ARBITRAGE_WORKER"
	TypeMiningCoordinator        Type = "MINING_COORDINATOR"
	TypeMiningWorker             Type = "MINING_WORKER"
	TypeTransportWorker          Type = "TRANSPORT_WORKER"
	TypeManufacturingCoordinator Type = "MANUFACTURING_COORDINATOR"
	TypeManufacturingWorker      Type = "MANUFACTURING_WORKER"
	TypeGoodsFactory             Type = "GOODS_FACTORY"
	TypeScoutTour                Type = "SCOUT_TOUR"
	TypeScoutMarkets             Type = "SCOUT_MARKETS"
	TypePurchaseShip             Type = "PURCHASE_SHIP"
	TypeBatchPurchaseShips       Type = "BATCH_PURCHASE_SHIPS"
)

// TypePolicy captures the per-type behavior the supervisor consults:
// whether a FAILED container restarts automatically, and whether a
// non-terminal container found at daemon startup is resumed instead of
// being failed as orphaned.
type TypePolicy struct {
	AutoRestart bool
	Resumable   bool
}

// policies is the closed type→policy table. One-shot ship verbs neither
// restart nor resume; long-running coordinators and workers do both.
var policies = map[Type]TypePolicy{
	TypeNavigate:                 {AutoRestart: false, Resumable: false},
	TypeDock:                     {AutoRestart: false, Resumable: false},
	TypeOrbit:                    {AutoRestart: false, Resumable: false},
	TypeRefuel:                   {AutoRestart: false, Resumable: false},
	TypeContractWorkflow:         {AutoRestart: true, Resumable: true},
	TypeContractFleetCoordinator: {AutoRestart: true, Resumable: true},
	TypeArbitrageCoordinator:     {AutoRestart: true, Resumable: true},
	TypeArbitrageWorker:          {AutoRestart: true, Resumable: false},
	TypeMiningCoordinator:        {AutoRestart: true, Resumable: true},
	TypeMiningWorker:             {AutoRestart: true, Resumable: false},
	TypeTransportWorker:          {AutoRestart: true, Resumable: false},
	TypeManufacturingCoordinator: {AutoRestart: true, Resumable: true},
	TypeManufacturingWorker:      {AutoRestart: true, Resumable: false},
	TypeGoodsFactory:             {AutoRestart: true, Resumable: true},
	TypeScoutTour:                {AutoRestart: true, Resumable: true},
	TypeScoutMarkets:             {AutoRestart: true, Resumable: true},
	TypePurchaseShip:             {AutoRestart: false, Resumable: false},
	TypeBatchPurchaseShips:       {AutoRestart: false, Resumable: false},
}

// PolicyFor returns the policy for a container type.
// Unknown types get the conservative policy (no restart, no resume).
func PolicyFor(t Type) TypePolicy {
	if p, ok := policies[t]; ok {
		return p
	}
	return TypePolicy{}
}

// IsKnownType reports whether t is part of the closed set
func IsKnownType(t Type) bool {
	_, ok := policies[t]
	return ok
}

// AllTypes returns the closed set of container types
func AllTypes() []Type {
	types := make([]Type, 0, len(policies))
	for t := range policies {
		types = append(types, t)
	}
	return types
}

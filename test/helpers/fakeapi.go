package helpers

import (
	"context"
	"fmt"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
)

// FakeAPI implements api.Client with overridable function fields.
// Unset operations fail loudly so a test cannot silently depend on
// behavior it never scripted.
type FakeAPI struct {
	RegisterAgentFunc     func(ctx context.Context, accountToken, symbol, faction string) (*api.RegisterResult, error)
	GetAgentFunc          func(ctx context.Context, token string) (*api.AgentData, error)
	ListAgentsFunc        func(ctx context.Context, token string) ([]*api.AgentData, error)
	ListWaypointsFunc     func(ctx context.Context, systemSymbol, token string) ([]*api.WaypointData, error)
	GetShipFunc           func(ctx context.Context, shipSymbol, token string) (*api.ShipData, error)
	ListShipsFunc         func(ctx context.Context, token string) ([]*api.ShipData, error)
	NavigateShipFunc      func(ctx context.Context, shipSymbol, waypointSymbol, token string) (*api.NavigationResult, error)
	DockShipFunc          func(ctx context.Context, shipSymbol, token string) (*api.ShipData, error)
	OrbitShipFunc         func(ctx context.Context, shipSymbol, token string) (*api.ShipData, error)
	RefuelShipFunc        func(ctx context.Context, shipSymbol, token string) (*api.ShipData, error)
	SetFlightModeFunc     func(ctx context.Context, shipSymbol, mode, token string) (*api.NavigationResult, error)
	ExtractResourcesFunc  func(ctx context.Context, shipSymbol, token string) (*api.ExtractionResult, error)
	TransferCargoFunc     func(ctx context.Context, fromShip, toShip, tradeSymbol string, units int, token string) (*api.ShipData, error)
	GetMarketFunc         func(ctx context.Context, systemSymbol, waypointSymbol, token string) (*api.MarketData, error)
	GetShipyardFunc       func(ctx context.Context, systemSymbol, waypointSymbol, token string) (*api.ShipyardData, error)
	PurchaseShipFunc      func(ctx context.Context, shipType, waypointSymbol, token string) (*api.PurchaseShipResult, error)
	PurchaseCargoFunc     func(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*api.TransactionData, error)
	SellCargoFunc         func(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*api.TransactionData, error)
	JettisonCargoFunc     func(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) error
	ListContractsFunc     func(ctx context.Context, token string) ([]*api.ContractData, error)
	NegotiateContractFunc func(ctx context.Context, shipSymbol, token string) (*api.ContractData, error)
	AcceptContractFunc    func(ctx context.Context, contractID, token string) (*api.ContractData, error)
	DeliverContractFunc   func(ctx context.Context, contractID, shipSymbol, tradeSymbol string, units int, token string) (*api.ContractData, error)
	FulfillContractFunc   func(ctx context.Context, contractID, token string) (*api.ContractData, error)
}

var _ api.Client = (*FakeAPI)(nil)

func notScripted(op string) error {
	return fmt.Errorf("fake api: %s not scripted", op)
}

func (f *FakeAPI) RegisterAgent(ctx context.Context, accountToken, symbol, faction string) (*api.RegisterResult, error) {
	if f.RegisterAgentFunc == nil {
		return nil, notScripted("RegisterAgent")
	}
	return f.RegisterAgentFunc(ctx, accountToken, symbol, faction)
}

func (f *FakeAPI) GetAgent(ctx context.Context, token string) (*api.AgentData, error) {
	if f.GetAgentFunc == nil {
		return nil, notScripted("GetAgent")
	}
	return f.GetAgentFunc(ctx, token)
}

func (f *FakeAPI) ListAgents(ctx context.Context, token string) ([]*api.AgentData, error) {
	if f.ListAgentsFunc == nil {
		return nil, notScripted("ListAgents")
	}
	return f.ListAgentsFunc(ctx, token)
}

func (f *FakeAPI) ListWaypoints(ctx context.Context, systemSymbol, token string) ([]*api.WaypointData, error) {
	if f.ListWaypointsFunc == nil {
		return nil, notScripted("ListWaypoints")
	}
	return f.ListWaypointsFunc(ctx, systemSymbol, token)
}

func (f *FakeAPI) GetShip(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
	if f.GetShipFunc == nil {
		return nil, notScripted("GetShip")
	}
	return f.GetShipFunc(ctx, shipSymbol, token)
}

func (f *FakeAPI) ListShips(ctx context.Context, token string) ([]*api.ShipData, error) {
	if f.ListShipsFunc == nil {
		return nil, notScripted("ListShips")
	}
	return f.ListShipsFunc(ctx, token)
}

func (f *FakeAPI) NavigateShip(ctx context.Context, shipSymbol, waypointSymbol, token string) (*api.NavigationResult, error) {
	if f.NavigateShipFunc == nil {
		return nil, notScripted("NavigateShip")
	}
	return f.NavigateShipFunc(ctx, shipSymbol, waypointSymbol, token)
}

func (f *FakeAPI) DockShip(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
	if f.DockShipFunc == nil {
		return nil, notScripted("DockShip")
	}
	return f.DockShipFunc(ctx, shipSymbol, token)
}

func (f *FakeAPI) OrbitShip(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
	if f.OrbitShipFunc == nil {
		return nil, notScripted("OrbitShip")
	}
	return f.OrbitShipFunc(ctx, shipSymbol, token)
}

func (f *FakeAPI) RefuelShip(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
	if f.RefuelShipFunc == nil {
		return nil, notScripted("RefuelShip")
	}
	return f.RefuelShipFunc(ctx, shipSymbol, token)
}

func (f *FakeAPI) SetFlightMode(ctx context.Context, shipSymbol, mode, token string) (*api.NavigationResult, error) {
	if f.SetFlightModeFunc == nil {
		return nil, notScripted("SetFlightMode")
	}
	return f.SetFlightModeFunc(ctx, shipSymbol, mode, token)
}

func (f *FakeAPI) ExtractResources(ctx context.Context, shipSymbol, token string) (*api.ExtractionResult, error) {
	if f.ExtractResourcesFunc == nil {
		return nil, notScripted("ExtractResources")
	}
	return f.ExtractResourcesFunc(ctx, shipSymbol, token)
}

func (f *FakeAPI) TransferCargo(ctx context.Context, fromShip, toShip, tradeSymbol string, units int, token string) (*api.ShipData, error) {
	if f.TransferCargoFunc == nil {
		return nil, notScripted("TransferCargo")
	}
	return f.TransferCargoFunc(ctx, fromShip, toShip, tradeSymbol, units, token)
}

func (f *FakeAPI) GetMarket(ctx context.Context, systemSymbol, waypointSymbol, token string) (*api.MarketData, error) {
	if f.GetMarketFunc == nil {
		return nil, notScripted("GetMarket")
	}
	return f.GetMarketFunc(ctx, systemSymbol, waypointSymbol, token)
}

func (f *FakeAPI) GetShipyard(ctx context.Context, systemSymbol, waypointSymbol, token string) (*api.ShipyardData, error) {
	if f.GetShipyardFunc == nil {
		return nil, notScripted("GetShipyard")
	}
	return f.GetShipyardFunc(ctx, systemSymbol, waypointSymbol, token)
}

func (f *FakeAPI) PurchaseShip(ctx context.Context, shipType, waypointSymbol, token string) (*api.PurchaseShipResult, error) {
	if f.PurchaseShipFunc == nil {
		return nil, notScripted("PurchaseShip")
	}
	return f.PurchaseShipFunc(ctx, shipType, waypointSymbol, token)
}

func (f *FakeAPI) PurchaseCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*api.TransactionData, error) {
	if f.PurchaseCargoFunc == nil {
		return nil, notScripted("PurchaseCargo")
	}
	return f.PurchaseCargoFunc(ctx, shipSymbol, tradeSymbol, units, token)
}

func (f *FakeAPI) SellCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*api.TransactionData, error) {
	if f.SellCargoFunc == nil {
		return nil, notScripted("SellCargo")
	}
	return f.SellCargoFunc(ctx, shipSymbol, tradeSymbol, units, token)
}

func (f *FakeAPI) JettisonCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) error {
	if f.JettisonCargoFunc == nil {
		return notScripted("JettisonCargo")
	}
	return f.JettisonCargoFunc(ctx, shipSymbol, tradeSymbol, units, token)
}

func (f *FakeAPI) ListContracts(ctx context.Context, token string) ([]*api.ContractData, error) {
	if f.ListContractsFunc == nil {
		return nil, notScripted("ListContracts")
	}
	return f.ListContractsFunc(ctx, token)
}

func (f *FakeAPI) NegotiateContract(ctx context.Context, shipSymbol, token string) (*api.ContractData, error) {
	if f.NegotiateContractFunc == nil {
		return nil, notScripted("NegotiateContract")
	}
	return f.NegotiateContractFunc(ctx, shipSymbol, token)
}

func (f *FakeAPI) AcceptContract(ctx context.Context, contractID, token string) (*api.ContractData, error) {
	if f.AcceptContractFunc == nil {
		return nil, notScripted("AcceptContract")
	}
	return f.AcceptContractFunc(ctx, contractID, token)
}

func (f *FakeAPI) DeliverContract(ctx context.Context, contractID, shipSymbol, tradeSymbol string, units int, token string) (*api.ContractData, error) {
	if f.DeliverContractFunc == nil {
		return nil, notScripted("DeliverContract")
	}
	return f.DeliverContractFunc(ctx, contractID, shipSymbol, tradeSymbol, units, token)
}

func (f *FakeAPI) FulfillContract(ctx context.Context, contractID, token string) (*api.ContractData, error) {
	if f.FulfillContractFunc == nil {
		return nil, notScripted("FulfillContract")
	}
	return f.FulfillContractFunc(ctx, contractID, token)
}

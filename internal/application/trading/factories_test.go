package trading_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/application/locks"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/application/trading"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/fleet"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/test/helpers"
)

type tradeWorld struct {
	mu        sync.Mutex
	ship      api.ShipData
	purchases []api.TransactionData
	sales     []api.TransactionData
}

func newTradeFixture(t *testing.T, world *tradeWorld) *supervisor.Substrate {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	playerRepo := persistence.NewGormPlayerRepository(db, clock)
	marketRepo := persistence.NewGormMarketRepository(db, clock)
	assignmentRepo := persistence.NewGormShipAssignmentRepository(db, clock)

	player, err := fleet.NewPlayer("AGENT-1", "token-1")
	require.NoError(t, err)
	require.NoError(t, playerRepo.Save(context.Background(), player))

	fakeAPI := &helpers.FakeAPI{
		GetShipFunc: func(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
			world.mu.Lock()
			defer world.mu.Unlock()
			snapshot := world.ship
			return &snapshot, nil
		},
		OrbitShipFunc: func(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
			world.mu.Lock()
			defer world.mu.Unlock()
			world.ship.NavStatus = "IN_ORBIT"
			snapshot := world.ship
			return &snapshot, nil
		},
		DockShipFunc: func(ctx context.Context, shipSymbol, token string) (*api.ShipData, error) {
			world.mu.Lock()
			defer world.mu.Unlock()
			world.ship.NavStatus = "DOCKED"
			snapshot := world.ship
			return &snapshot, nil
		},
		NavigateShipFunc: func(ctx context.Context, shipSymbol, waypointSymbol, token string) (*api.NavigationResult, error) {
			world.mu.Lock()
			defer world.mu.Unlock()
			world.ship.Location = waypointSymbol
			world.ship.NavStatus = "IN_ORBIT"
			return &api.NavigationResult{NavStatus: "IN_TRANSIT"}, nil
		},
		PurchaseCargoFunc: func(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*api.TransactionData, error) {
			world.mu.Lock()
			defer world.mu.Unlock()
			tx := api.TransactionData{
				WaypointSymbol: world.ship.Location,
				TradeSymbol:    tradeSymbol,
				Type:           "PURCHASE",
				Units:          units,
				PricePerUnit:   10,
				TotalPrice:     int64(units) * 10,
			}
			world.purchases = append(world.purchases, tx)
			world.ship.CargoUnits += units
			world.ship.Inventory = append(world.ship.Inventory, api.CargoItemData{Symbol: tradeSymbol, Units: units})
			return &tx, nil
		},
		SellCargoFunc: func(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*api.TransactionData, error) {
			world.mu.Lock()
			defer world.mu.Unlock()
			tx := api.TransactionData{
				WaypointSymbol: world.ship.Location,
				TradeSymbol:    tradeSymbol,
				Type:           "SELL",
				Units:          units,
				PricePerUnit:   25,
				TotalPrice:     int64(units) * 25,
			}
			world.sales = append(world.sales, tx)
			world.ship.CargoUnits -= units
			world.ship.Inventory = nil
			return &tx, nil
		},
	}

	return &supervisor.Substrate{
		Clock:   clock,
		API:     fakeAPI,
		Players: playerRepo,
		Markets: marketRepo,
		Locks:   locks.NewManager(assignmentRepo, 30*time.Minute),
	}
}

func seedMarkets(t *testing.T, sub *supervisor.Substrate, good string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, sub.Markets.SaveMarket(ctx, 1, &api.MarketData{
		Symbol: "X1-T-BUY",
		Goods:  []api.MarketGoodData{{Symbol: good, PurchasePrice: 10, SellPrice: 8}},
	}))
	require.NoError(t, sub.Markets.SaveMarket(ctx, 1, &api.MarketData{
		Symbol: "X1-T-SELL",
		Goods:  []api.MarketGoodData{{Symbol: good, PurchasePrice: 30, SellPrice: 25}},
	}))
}

func TestArbitrageWorker_RunsOneRoundTrip(t *testing.T) {
	world := &tradeWorld{ship: api.ShipData{
		Symbol: "AGENT-HAULER-1", Location: "X1-T-HOME", NavStatus: "IN_ORBIT",
		CargoCapacity: 40,
	}}
	sub := newTradeFixture(t, world)
	ctx := context.Background()

	c := container.New("arb-w-1", container.TypeArbitrageWorker, 1, -1,
		map[string]interface{}{
			"ship":          "AGENT-HAULER-1",
			"good":          "FUEL",
			"buy_waypoint":  "X1-T-BUY",
			"sell_waypoint": "X1-T-SELL",
		}, sub.Clock)
	iterate, err := trading.ArbitrageWorkerFactory(sub, c)
	require.NoError(t, err)

	require.NoError(t, iterate(ctx))

	require.Len(t, world.purchases, 1)
	assert.Equal(t, "X1-T-BUY", world.purchases[0].WaypointSymbol)
	assert.Equal(t, 40, world.purchases[0].Units)
	require.Len(t, world.sales, 1)
	assert.Equal(t, "X1-T-SELL", world.sales[0].WaypointSymbol)
	assert.Equal(t, 40, world.sales[0].Units)
}

func TestArbitrageWorker_SellsLeftoverCargoWithoutBuying(t *testing.T) {
	world := &tradeWorld{ship: api.ShipData{
		Symbol: "AGENT-HAULER-1", Location: "X1-T-BUY", NavStatus: "DOCKED",
		CargoCapacity: 40, CargoUnits: 15,
		Inventory: []api.CargoItemData{{Symbol: "FUEL", Units: 15}},
	}}
	sub := newTradeFixture(t, world)

	c := container.New("arb-w-2", container.TypeArbitrageWorker, 1, -1,
		map[string]interface{}{
			"ship":          "AGENT-HAULER-1",
			"good":          "FUEL",
			"buy_waypoint":  "X1-T-BUY",
			"sell_waypoint": "X1-T-SELL",
		}, sub.Clock)
	iterate, err := trading.ArbitrageWorkerFactory(sub, c)
	require.NoError(t, err)

	require.NoError(t, iterate(context.Background()))
	assert.Empty(t, world.purchases)
	require.Len(t, world.sales, 1)
	assert.Equal(t, 15, world.sales[0].Units)
}

func TestArbitrageCoordinator_DeploysWorkersOnBestRoute(t *testing.T) {
	world := &tradeWorld{ship: api.ShipData{Symbol: "AGENT-HAULER-1"}}
	sub := newTradeFixture(t, world)
	seedMarkets(t, sub, "FUEL")
	spawner := &helpers.FakeSpawner{}
	sub.Spawner = spawner
	ctx := context.Background()

	c := container.New("arb-1", container.TypeArbitrageCoordinator, 1, -1,
		map[string]interface{}{
			"good":  "FUEL",
			"ships": []string{"AGENT-HAULER-1", "AGENT-HAULER-2"},
		}, sub.Clock)
	iterate, err := trading.ArbitrageCoordinatorFactory(sub, c)
	require.NoError(t, err)

	require.NoError(t, iterate(ctx))

	require.Len(t, spawner.Started, 2)
	for _, worker := range spawner.Started {
		assert.Equal(t, container.TypeArbitrageWorker, worker.Type())
		assert.Equal(t, "X1-T-BUY", worker.MetadataString("buy_waypoint"))
		assert.Equal(t, "X1-T-SELL", worker.MetadataString("sell_waypoint"))

		holder, err := sub.Locks.Holder(ctx, worker.MetadataString("ship"), 1)
		require.NoError(t, err)
		assert.Equal(t, worker.ID(), holder)
	}
}

func TestArbitrageCoordinator_WaitsWhenNoProfitableSpread(t *testing.T) {
	world := &tradeWorld{}
	sub := newTradeFixture(t, world)
	spawner := &helpers.FakeSpawner{}
	sub.Spawner = spawner

	c := container.New("arb-2", container.TypeArbitrageCoordinator, 1, -1,
		map[string]interface{}{
			"good":  "GOLD",
			"ships": []string{"AGENT-HAULER-1"},
		}, sub.Clock)
	iterate, err := trading.ArbitrageCoordinatorFactory(sub, c)
	require.NoError(t, err)

	require.NoError(t, iterate(context.Background()))
	assert.Empty(t, spawner.Started)
}

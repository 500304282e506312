package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

func newTestClient(t *testing.T, handler http.Handler, clock shared.Clock) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewHTTPClientWithConfig(ClientConfig{
		BaseURL:     server.URL,
		MaxRetries:  5,
		BackoffBase: time.Second,
		RateLimit:   1000, // keep tests from blocking on the bucket
		RateBurst:   1000,
		Clock:       clock,
	})
	return client, server
}

func TestClient_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":{"symbol":"AGENT-1","credits":100000}}`))
	})

	clock := shared.NewMockClock(time.Now())
	start := clock.Now()
	client, _ := newTestClient(t, handler, clock)

	agent, err := client.GetAgent(context.Background(), "token-1")
	require.NoError(t, err)
	assert.Equal(t, "AGENT-1", agent.Symbol)
	assert.Equal(t, int64(100000), agent.Credits)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	// Both backoffs must honor the 3s Retry-After floor
	assert.GreaterOrEqual(t, clock.Now().Sub(start), 6*time.Second)
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"ship not found","code":404}}`))
	})

	client, _ := newTestClient(t, handler, shared.NewMockClock(time.Now()))

	_, err := client.GetShip(context.Background(), "GHOST-1", "token-1")
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_ExhaustsRetriesOnServerErrors(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, _ := newTestClient(t, handler, shared.NewMockClock(time.Now()))

	_, err := client.GetAgent(context.Background(), "token-1")
	require.Error(t, err)
	assert.Equal(t, shared.KindTransient, shared.KindOf(err))
	// initial attempt + 5 retries
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestClient_Exhausted429sSurfaceAsRateLimited(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client, _ := newTestClient(t, handler, shared.NewMockClock(time.Now()))

	_, err := client.GetAgent(context.Background(), "token-1")
	require.Error(t, err)
	assert.Equal(t, shared.KindRateLimited, shared.KindOf(err))
}

func TestClient_NetworkErrorsStayTransientDespite429InMessage(t *testing.T) {
	// Nothing listens on port 1; the dial error message carries the full
	// URL, so the requested symbol ends up inside it
	client := NewHTTPClientWithConfig(ClientConfig{
		BaseURL:    "http://127.0.0.1:1",
		MaxRetries: 1,
		RateLimit:  1000,
		RateBurst:  1000,
		Clock:      shared.NewMockClock(time.Now()),
	})

	_, err := client.GetShip(context.Background(), "SHIP-429", "token-1")
	require.Error(t, err)
	assert.Equal(t, shared.KindTransient, shared.KindOf(err))
}

func TestClient_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	clock := shared.NewMockClock(time.Now())
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewHTTPClientWithConfig(ClientConfig{
		BaseURL:    server.URL,
		MaxRetries: 1,
		RateLimit:  1000,
		RateBurst:  1000,
		Clock:      clock,
	})

	for i := 0; i < 5; i++ {
		_, err := client.GetAgent(context.Background(), "token-1")
		require.Error(t, err)
		require.Equal(t, shared.KindTransient, shared.KindOf(err))
	}
	before := atomic.LoadInt32(&calls)

	// Breaker now short-circuits without touching the wire
	_, err := client.GetAgent(context.Background(), "token-1")
	require.Error(t, err)
	assert.Equal(t, shared.KindOpenCircuit, shared.KindOf(err))
	assert.Equal(t, before, atomic.LoadInt32(&calls))

	// A different endpoint family for the same player is unaffected
	_, err = client.GetShip(context.Background(), "SHIP-1", "token-1")
	require.Error(t, err)
	assert.Equal(t, shared.KindTransient, shared.KindOf(err))

	// As is the same family for a different player
	_, err = client.GetAgent(context.Background(), "token-2")
	require.Error(t, err)
	assert.Equal(t, shared.KindTransient, shared.KindOf(err))
}

func TestClient_ListWaypointsFollowsPagination(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			w.Write([]byte(`{"data":[
				{"symbol":"X1-AB12-C1","systemSymbol":"X1-AB12","type":"PLANET","x":10,"y":20,
				 "traits":[{"symbol":"MARKETPLACE"}]},
				{"symbol":"X1-AB12-C2","systemSymbol":"X1-AB12","type":"ASTEROID","x":-5,"y":8,"traits":[]}
			]}`))
		case "2":
			w.Write([]byte(`{"data":[
				{"symbol":"X1-AB12-C3","systemSymbol":"X1-AB12","type":"FUEL_STATION","x":0,"y":0,"traits":[]}
			]}`))
		default:
			w.Write([]byte(`{"data":[]}`))
		}
	})

	client, _ := newTestClient(t, handler, shared.NewMockClock(time.Now()))

	waypoints, err := client.ListWaypoints(context.Background(), "X1-AB12", "token-1")
	require.NoError(t, err)
	require.Len(t, waypoints, 3)
	assert.Equal(t, "X1-AB12-C1", waypoints[0].Symbol)
	assert.Equal(t, []string{"MARKETPLACE"}, waypoints[0].Traits)
	assert.Equal(t, "FUEL_STATION", waypoints[2].Type)
}

func TestClient_GetShipParsesTransitArrival(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{
			"symbol":"SHIP-1",
			"nav":{"systemSymbol":"X1-AB12","waypointSymbol":"X1-AB12-C1","status":"IN_TRANSIT",
			       "route":{"arrival":"2026-08-24T12:30:00Z"}},
			"fuel":{"current":80,"capacity":100},
			"cargo":{"capacity":40,"units":10,"inventory":[{"symbol":"IRON_ORE","name":"Iron Ore","units":10}]},
			"engine":{"speed":30},
			"frame":{"symbol":"FRAME_FRIGATE"}
		}}`))
	})

	client, _ := newTestClient(t, handler, shared.NewMockClock(time.Now()))

	ship, err := client.GetShip(context.Background(), "SHIP-1", "token-1")
	require.NoError(t, err)
	assert.Equal(t, "IN_TRANSIT", ship.NavStatus)
	require.NotNil(t, ship.ArrivalAt)
	assert.Equal(t, 2026, ship.ArrivalAt.Year())
	assert.Equal(t, 80, ship.FuelCurrent)
	require.Len(t, ship.Inventory, 1)
	assert.Equal(t, "IRON_ORE", ship.Inventory[0].Symbol)
}

func TestEndpointFamily(t *testing.T) {
	assert.Equal(t, "ships", endpointFamily("/my/ships/SHIP-1/navigate"))
	assert.Equal(t, "ships", endpointFamily("/my/ships?page=1&limit=20"))
	assert.Equal(t, "systems", endpointFamily("/systems/X1-AB12/waypoints?page=1"))
	assert.Equal(t, "contracts", endpointFamily("/my/contracts/abc/deliver"))
	assert.Equal(t, "agents", endpointFamily("/agents?page=1"))
	assert.Equal(t, "register", endpointFamily("/register"))
}

func TestLimiterRegistry_PerTokenBuckets(t *testing.T) {
	reg := newLimiterRegistry(2, 2)
	a := reg.get("token-a")
	b := reg.get("token-b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, reg.get("token-a"))
}

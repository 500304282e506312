package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

const (
	defaultBaseURL     = "https://api.spacetraders.io/v2"
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxRetries  = 5
	defaultBackoffBase = time.Second
	defaultBackoffCap  = 30 * time.Second
	defaultRateLimit   = 2
	defaultRateBurst   = 2
)

// Client is the remote-universe API surface the rest of the daemon talks to.
// Implementations must rate-limit, retry, and circuit-break internally; callers
// see only structured results and tagged errors.
type Client interface {
	RegisterAgent(ctx context.Context, accountToken, symbol, faction string) (*RegisterResult, error)
	GetAgent(ctx context.Context, token string) (*AgentData, error)
	ListAgents(ctx context.Context, token string) ([]*AgentData, error)

	ListWaypoints(ctx context.Context, systemSymbol, token string) ([]*WaypointData, error)

	GetShip(ctx context.Context, shipSymbol, token string) (*ShipData, error)
	ListShips(ctx context.Context, token string) ([]*ShipData, error)

	NavigateShip(ctx context.Context, shipSymbol, waypointSymbol, token string) (*NavigationResult, error)
	DockShip(ctx context.Context, shipSymbol, token string) (*ShipData, error)
	OrbitShip(ctx context.Context, shipSymbol, token string) (*ShipData, error)
	RefuelShip(ctx context.Context, shipSymbol, token string) (*ShipData, error)
	SetFlightMode(ctx context.Context, shipSymbol, mode, token string) (*NavigationResult, error)

	ExtractResources(ctx context.Context, shipSymbol, token string) (*ExtractionResult, error)
	TransferCargo(ctx context.Context, fromShip, toShip, tradeSymbol string, units int, token string) (*ShipData, error)

	GetMarket(ctx context.Context, systemSymbol, waypointSymbol, token string) (*MarketData, error)
	GetShipyard(ctx context.Context, systemSymbol, waypointSymbol, token string) (*ShipyardData, error)
	PurchaseShip(ctx context.Context, shipType, waypointSymbol, token string) (*PurchaseShipResult, error)

	PurchaseCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*TransactionData, error)
	SellCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*TransactionData, error)
	JettisonCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) error

	ListContracts(ctx context.Context, token string) ([]*ContractData, error)
	NegotiateContract(ctx context.Context, shipSymbol, token string) (*ContractData, error)
	AcceptContract(ctx context.Context, contractID, token string) (*ContractData, error)
	DeliverContract(ctx context.Context, contractID, shipSymbol, tradeSymbol string, units int, token string) (*ContractData, error)
	FulfillContract(ctx context.Context, contractID, token string) (*ContractData, error)
}

// HTTPClient implements Client against the real HTTP API.
// Token buckets are per player (keyed by bearer token) so one busy agent
// cannot starve another; circuit breakers are per player and endpoint family.
type HTTPClient struct {
	httpClient  *http.Client
	baseURL     string
	maxRetries  int
	backoffBase time.Duration
	backoffCap  time.Duration
	clock       shared.Clock

	limiters *limiterRegistry
	breakers *breakerRegistry
}

// ClientConfig tunes the HTTP client. Zero values fall back to defaults.
type ClientConfig struct {
	BaseURL            string
	MaxRetries         int
	BackoffBase        time.Duration
	BackoffCap         time.Duration
	RateLimit          float64
	RateBurst          int
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
	Clock              shared.Clock
}

// NewHTTPClient creates a client with default settings:
// 2 req/s per player with burst 2, up to 5 retries with jittered exponential
// backoff capped at 30s, breakers opening after 5 consecutive failures for 60s.
func NewHTTPClient() *HTTPClient {
	return NewHTTPClientWithConfig(ClientConfig{})
}

// NewHTTPClientWithConfig creates a client with custom configuration
func NewHTTPClientWithConfig(cfg ClientConfig) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = defaultBackoffCap
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Clock == nil {
		cfg.Clock = shared.NewRealClock()
	}

	return &HTTPClient{
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:     cfg.BaseURL,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		clock:       cfg.Clock,
		limiters:    newLimiterRegistry(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breakers:    newBreakerRegistry(cfg.BreakerMaxFailures, cfg.BreakerTimeout, cfg.Clock),
	}
}

// endpointFamily buckets a request path for circuit breaking. Paths under
// /my/ships share one breaker per player, /systems another, and so on.
func endpointFamily(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		return "root"
	}
	if parts[0] == "my" && len(parts) > 1 {
		return parts[1]
	}
	return parts[0]
}

// addJitter spreads a backoff delay by +/-20% to avoid synchronized retries
func addJitter(d time.Duration) time.Duration {
	factor := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * factor)
}

// request issues one logical API call: waits on the player's token bucket,
// routes through the (player, family) circuit breaker, and retries transient
// failures with capped jittered exponential backoff.
func (c *HTTPClient) request(ctx context.Context, method, path, token string, body interface{}, result interface{}) error {
	breaker := c.breakers.get(token + "|" + endpointFamily(path))

	err := breaker.Call(func() error {
		return c.doWithRetries(ctx, method, path, token, body, result)
	})
	if err == ErrCircuitOpen {
		return shared.NewDomainError(shared.KindOpenCircuit,
			fmt.Sprintf("circuit open for %s", endpointFamily(path)))
	}
	return err
}

func (c *HTTPClient) doWithRetries(ctx context.Context, method, path, token string, body interface{}, result interface{}) error {
	url := c.baseURL + path
	limiter := c.limiters.get(token)

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return shared.WrapError(shared.KindRateLimited, "rate limiter wait failed", err)
		}

		var reqBody io.Reader
		if body != nil {
			jsonData, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			reqBody = bytes.NewBuffer(jsonData)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &retryableError{message: fmt.Sprintf("network error: %v", err)}
			if attempt >= c.maxRetries {
				break
			}
			if ctx.Err() != nil {
				return shared.WrapError(shared.KindCancelled, "request cancelled", ctx.Err())
			}
			c.clock.Sleep(c.backoffDelay(attempt, 0))
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("failed to read response: %w", readErr)
		}

		// 429 and 5xx are retryable; everything else 4xx surfaces immediately
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			var retryAfter time.Duration
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if seconds, err := strconv.Atoi(ra); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			}
			lastErr = &retryableError{
				message:    fmt.Sprintf("retryable status %d", resp.StatusCode),
				statusCode: resp.StatusCode,
				retryAfter: retryAfter,
			}
			if attempt >= c.maxRetries {
				break
			}
			if ctx.Err() != nil {
				return shared.WrapError(shared.KindCancelled, "request cancelled", ctx.Err())
			}
			c.clock.Sleep(c.backoffDelay(attempt, retryAfter))
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return parseAPIError(resp.StatusCode, respBody)
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
		}
		return nil
	}

	exhausted := &RetriesExhaustedError{Attempts: c.maxRetries + 1, LastErr: lastErr}
	if re, ok := lastErr.(*retryableError); ok && re.statusCode == http.StatusTooManyRequests {
		return shared.WrapError(shared.KindRateLimited, "rate limited by API", exhausted)
	}
	return shared.WrapError(shared.KindTransient, "transient API failure", exhausted)
}

// backoffDelay computes base*2^attempt capped and jittered. A server-provided
// Retry-After hint is a floor, never shortened by jitter.
func (c *HTTPClient) backoffDelay(attempt int, retryAfter time.Duration) time.Duration {
	delay := c.backoffBase * time.Duration(1<<uint(attempt))
	if delay > c.backoffCap {
		delay = c.backoffCap
	}
	delay = addJitter(delay)
	if retryAfter > delay {
		delay = retryAfter
	}
	return delay
}

// parseAPIError extracts the API's error envelope from a 4xx body
func parseAPIError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	message := string(body)
	var code int
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
		code = envelope.Error.Code
	}
	apiErr := &APIError{StatusCode: status, Code: code, Message: message}
	return shared.WrapError(apiErr.Kind(), "API request rejected", apiErr)
}

func parseTimePtr(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

// shipPayload is the wire shape of a ship shared by several endpoints
type shipPayload struct {
	Symbol string `json:"symbol"`
	Nav    struct {
		SystemSymbol   string `json:"systemSymbol"`
		WaypointSymbol string `json:"waypointSymbol"`
		Status         string `json:"status"`
		Route          *struct {
			Arrival string `json:"arrival"`
		} `json:"route,omitempty"`
	} `json:"nav"`
	Fuel struct {
		Current  int `json:"current"`
		Capacity int `json:"capacity"`
	} `json:"fuel"`
	Cargo struct {
		Capacity  int `json:"capacity"`
		Units     int `json:"units"`
		Inventory []struct {
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
			Units  int    `json:"units"`
		} `json:"inventory"`
	} `json:"cargo"`
	Engine struct {
		Speed int `json:"speed"`
	} `json:"engine"`
	Frame struct {
		Symbol string `json:"symbol"`
	} `json:"frame"`
}

func (p *shipPayload) toShipData() *ShipData {
	inventory := make([]CargoItemData, len(p.Cargo.Inventory))
	for i, item := range p.Cargo.Inventory {
		inventory[i] = CargoItemData{Symbol: item.Symbol, Name: item.Name, Units: item.Units}
	}

	var arrival *time.Time
	if p.Nav.Status == "IN_TRANSIT" && p.Nav.Route != nil {
		arrival = parseTimePtr(p.Nav.Route.Arrival)
	}

	return &ShipData{
		Symbol:        p.Symbol,
		Location:      p.Nav.WaypointSymbol,
		NavStatus:     p.Nav.Status,
		ArrivalAt:     arrival,
		FuelCurrent:   p.Fuel.Current,
		FuelCapacity:  p.Fuel.Capacity,
		CargoCapacity: p.Cargo.Capacity,
		CargoUnits:    p.Cargo.Units,
		Inventory:     inventory,
		EngineSpeed:   p.Engine.Speed,
		FrameSymbol:   p.Frame.Symbol,
	}
}

type agentPayload struct {
	Symbol          string `json:"symbol"`
	Headquarters    string `json:"headquarters"`
	Credits         int64  `json:"credits"`
	StartingFaction string `json:"startingFaction"`
	ShipCount       int    `json:"shipCount"`
}

func (p *agentPayload) toAgentData() *AgentData {
	return &AgentData{
		Symbol:          p.Symbol,
		Headquarters:    p.Headquarters,
		Credits:         p.Credits,
		StartingFaction: p.StartingFaction,
		ShipCount:       p.ShipCount,
	}
}

type contractPayload struct {
	ID            string `json:"id"`
	FactionSymbol string `json:"factionSymbol"`
	Type          string `json:"type"`
	Accepted      bool   `json:"accepted"`
	Fulfilled     bool   `json:"fulfilled"`
	Terms         struct {
		Deadline string `json:"deadline"`
		Payment  struct {
			OnAccepted  int64 `json:"onAccepted"`
			OnFulfilled int64 `json:"onFulfilled"`
		} `json:"payment"`
		Deliver []struct {
			TradeSymbol       string `json:"tradeSymbol"`
			DestinationSymbol string `json:"destinationSymbol"`
			UnitsRequired     int    `json:"unitsRequired"`
			UnitsFulfilled    int    `json:"unitsFulfilled"`
		} `json:"deliver"`
	} `json:"terms"`
}

func (p *contractPayload) toContractData() *ContractData {
	deliverables := make([]ContractDeliverableData, len(p.Terms.Deliver))
	for i, d := range p.Terms.Deliver {
		deliverables[i] = ContractDeliverableData{
			TradeSymbol:       d.TradeSymbol,
			DestinationSymbol: d.DestinationSymbol,
			UnitsRequired:     d.UnitsRequired,
			UnitsFulfilled:    d.UnitsFulfilled,
		}
	}
	return &ContractData{
		ID:                 p.ID,
		FactionSymbol:      p.FactionSymbol,
		Type:               p.Type,
		Accepted:           p.Accepted,
		Fulfilled:          p.Fulfilled,
		DeadlineAt:         parseTimePtr(p.Terms.Deadline),
		PaymentOnAccepted:  p.Terms.Payment.OnAccepted,
		PaymentOnFulfilled: p.Terms.Payment.OnFulfilled,
		Deliverables:       deliverables,
	}
}

// Agent operations

// RegisterAgent creates a new agent and returns its bearer token
func (c *HTTPClient) RegisterAgent(ctx context.Context, accountToken, symbol, faction string) (*RegisterResult, error) {
	body := map[string]string{
		"symbol":  symbol,
		"faction": faction,
	}

	var response struct {
		Data struct {
			Token string       `json:"token"`
			Agent agentPayload `json:"agent"`
		} `json:"data"`
	}

	if err := c.request(ctx, "POST", "/register", accountToken, body, &response); err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}

	return &RegisterResult{
		Token: response.Data.Token,
		Agent: *response.Data.Agent.toAgentData(),
	}, nil
}

// GetAgent retrieves the authenticated agent
func (c *HTTPClient) GetAgent(ctx context.Context, token string) (*AgentData, error) {
	var response struct {
		Data agentPayload `json:"data"`
	}

	if err := c.request(ctx, "GET", "/my/agent", token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return response.Data.toAgentData(), nil
}

// ListAgents retrieves public agent listings, paginated 20 at a time
func (c *HTTPClient) ListAgents(ctx context.Context, token string) ([]*AgentData, error) {
	var all []*AgentData
	page := 1

	for {
		path := fmt.Sprintf("/agents?page=%d&limit=20", page)

		var response struct {
			Data []agentPayload `json:"data"`
		}

		if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
			return nil, fmt.Errorf("failed to list agents (page %d): %w", page, err)
		}
		if len(response.Data) == 0 {
			break
		}

		for i := range response.Data {
			all = append(all, response.Data[i].toAgentData())
		}
		page++
	}

	return all, nil
}

// Waypoint operations

// ListWaypoints retrieves all waypoints in a system, following pagination
func (c *HTTPClient) ListWaypoints(ctx context.Context, systemSymbol, token string) ([]*WaypointData, error) {
	var all []*WaypointData
	page := 1

	for {
		path := fmt.Sprintf("/systems/%s/waypoints?page=%d&limit=20", systemSymbol, page)

		var response struct {
			Data []struct {
				Symbol       string  `json:"symbol"`
				SystemSymbol string  `json:"systemSymbol"`
				Type         string  `json:"type"`
				X            float64 `json:"x"`
				Y            float64 `json:"y"`
				Traits       []struct {
					Symbol string `json:"symbol"`
				} `json:"traits"`
			} `json:"data"`
		}

		if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
			return nil, fmt.Errorf("failed to list waypoints for %s (page %d): %w", systemSymbol, page, err)
		}
		if len(response.Data) == 0 {
			break
		}

		for _, wp := range response.Data {
			traits := make([]string, len(wp.Traits))
			for i, t := range wp.Traits {
				traits[i] = t.Symbol
			}
			all = append(all, &WaypointData{
				Symbol:       wp.Symbol,
				SystemSymbol: wp.SystemSymbol,
				Type:         wp.Type,
				X:            wp.X,
				Y:            wp.Y,
				Traits:       traits,
			})
		}
		page++
	}

	return all, nil
}

// Ship operations

// GetShip retrieves ship details
func (c *HTTPClient) GetShip(ctx context.Context, shipSymbol, token string) (*ShipData, error) {
	var response struct {
		Data shipPayload `json:"data"`
	}

	path := fmt.Sprintf("/my/ships/%s", shipSymbol)
	if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get ship %s: %w", shipSymbol, err)
	}

	return response.Data.toShipData(), nil
}

// ListShips retrieves all ships for the authenticated agent
func (c *HTTPClient) ListShips(ctx context.Context, token string) ([]*ShipData, error) {
	var all []*ShipData
	page := 1

	for {
		path := fmt.Sprintf("/my/ships?page=%d&limit=20", page)

		var response struct {
			Data []shipPayload `json:"data"`
		}

		if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
			return nil, fmt.Errorf("failed to list ships (page %d): %w", page, err)
		}
		if len(response.Data) == 0 {
			break
		}

		for i := range response.Data {
			all = append(all, response.Data[i].toShipData())
		}
		page++
	}

	return all, nil
}

// NavigateShip sends a ship toward a waypoint. The ship must be in orbit.
func (c *HTTPClient) NavigateShip(ctx context.Context, shipSymbol, waypointSymbol, token string) (*NavigationResult, error) {
	body := map[string]string{"waypointSymbol": waypointSymbol}

	var response struct {
		Data struct {
			Nav struct {
				Status string `json:"status"`
				Route  *struct {
					Arrival string `json:"arrival"`
				} `json:"route,omitempty"`
			} `json:"nav"`
			Fuel struct {
				Current  int `json:"current"`
				Capacity int `json:"capacity"`
			} `json:"fuel"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/ships/%s/navigate", shipSymbol)
	if err := c.request(ctx, "POST", path, token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to navigate %s to %s: %w", shipSymbol, waypointSymbol, err)
	}

	var arrival *time.Time
	if response.Data.Nav.Route != nil {
		arrival = parseTimePtr(response.Data.Nav.Route.Arrival)
	}

	return &NavigationResult{
		NavStatus:    response.Data.Nav.Status,
		ArrivalAt:    arrival,
		FuelCurrent:  response.Data.Fuel.Current,
		FuelCapacity: response.Data.Fuel.Capacity,
	}, nil
}

// DockShip docks a ship at its current waypoint
func (c *HTTPClient) DockShip(ctx context.Context, shipSymbol, token string) (*ShipData, error) {
	return c.shipAction(ctx, shipSymbol, "dock", token)
}

// OrbitShip moves a ship into orbit at its current waypoint
func (c *HTTPClient) OrbitShip(ctx context.Context, shipSymbol, token string) (*ShipData, error) {
	return c.shipAction(ctx, shipSymbol, "orbit", token)
}

// shipAction handles dock/orbit, which share a wire shape
func (c *HTTPClient) shipAction(ctx context.Context, shipSymbol, action, token string) (*ShipData, error) {
	var response struct {
		Data struct {
			Nav struct {
				WaypointSymbol string `json:"waypointSymbol"`
				Status         string `json:"status"`
			} `json:"nav"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/ships/%s/%s", shipSymbol, action)
	if err := c.request(ctx, "POST", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to %s ship %s: %w", action, shipSymbol, err)
	}

	return &ShipData{
		Symbol:    shipSymbol,
		Location:  response.Data.Nav.WaypointSymbol,
		NavStatus: response.Data.Nav.Status,
	}, nil
}

// RefuelShip refuels a docked ship to capacity
func (c *HTTPClient) RefuelShip(ctx context.Context, shipSymbol, token string) (*ShipData, error) {
	var response struct {
		Data struct {
			Fuel struct {
				Current  int `json:"current"`
				Capacity int `json:"capacity"`
			} `json:"fuel"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/ships/%s/refuel", shipSymbol)
	if err := c.request(ctx, "POST", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to refuel ship %s: %w", shipSymbol, err)
	}

	return &ShipData{
		Symbol:       shipSymbol,
		FuelCurrent:  response.Data.Fuel.Current,
		FuelCapacity: response.Data.Fuel.Capacity,
	}, nil
}

// SetFlightMode changes a ship's flight mode (CRUISE, BURN, DRIFT, STEALTH)
func (c *HTTPClient) SetFlightMode(ctx context.Context, shipSymbol, mode, token string) (*NavigationResult, error) {
	body := map[string]string{"flightMode": mode}

	var response struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/ships/%s/nav", shipSymbol)
	if err := c.request(ctx, "PATCH", path, token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to set flight mode for %s: %w", shipSymbol, err)
	}

	return &NavigationResult{NavStatus: response.Data.Status}, nil
}

// Cargo and extraction operations

// ExtractResources mines resources at the ship's current location
func (c *HTTPClient) ExtractResources(ctx context.Context, shipSymbol, token string) (*ExtractionResult, error) {
	var response struct {
		Data struct {
			Extraction struct {
				Yield struct {
					Symbol string `json:"symbol"`
					Units  int    `json:"units"`
				} `json:"yield"`
			} `json:"extraction"`
			Cooldown struct {
				RemainingSeconds int `json:"remainingSeconds"`
			} `json:"cooldown"`
			Cargo struct {
				Units    int `json:"units"`
				Capacity int `json:"capacity"`
			} `json:"cargo"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/ships/%s/extract", shipSymbol)
	if err := c.request(ctx, "POST", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to extract with ship %s: %w", shipSymbol, err)
	}

	return &ExtractionResult{
		YieldSymbol:     response.Data.Extraction.Yield.Symbol,
		YieldUnits:      response.Data.Extraction.Yield.Units,
		CooldownSeconds: response.Data.Cooldown.RemainingSeconds,
		CargoUnits:      response.Data.Cargo.Units,
		CargoCapacity:   response.Data.Cargo.Capacity,
	}, nil
}

// TransferCargo moves goods between two of the player's ships.
// Both ships must share a waypoint.
func (c *HTTPClient) TransferCargo(ctx context.Context, fromShip, toShip, tradeSymbol string, units int, token string) (*ShipData, error) {
	body := map[string]interface{}{
		"shipSymbol":  toShip,
		"tradeSymbol": tradeSymbol,
		"units":       units,
	}

	var response struct {
		Data struct {
			Cargo struct {
				Units    int `json:"units"`
				Capacity int `json:"capacity"`
			} `json:"cargo"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/ships/%s/transfer", fromShip)
	if err := c.request(ctx, "POST", path, token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to transfer %d %s from %s to %s: %w", units, tradeSymbol, fromShip, toShip, err)
	}

	return &ShipData{
		Symbol:        fromShip,
		CargoUnits:    response.Data.Cargo.Units,
		CargoCapacity: response.Data.Cargo.Capacity,
	}, nil
}

// Market and shipyard operations

// GetMarket retrieves market data for a waypoint.
// Trade goods with prices are only present when the player has a ship there.
func (c *HTTPClient) GetMarket(ctx context.Context, systemSymbol, waypointSymbol, token string) (*MarketData, error) {
	var response struct {
		Data struct {
			Symbol     string `json:"symbol"`
			TradeGoods []struct {
				Symbol        string `json:"symbol"`
				Type          string `json:"type"`
				TradeVolume   int    `json:"tradeVolume"`
				Supply        string `json:"supply"`
				Activity      string `json:"activity"`
				PurchasePrice int64  `json:"purchasePrice"`
				SellPrice     int64  `json:"sellPrice"`
			} `json:"tradeGoods"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/systems/%s/waypoints/%s/market", systemSymbol, waypointSymbol)
	if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get market at %s: %w", waypointSymbol, err)
	}

	goods := make([]MarketGoodData, len(response.Data.TradeGoods))
	for i, g := range response.Data.TradeGoods {
		goods[i] = MarketGoodData{
			Symbol:        g.Symbol,
			Type:          g.Type,
			TradeVolume:   g.TradeVolume,
			Supply:        g.Supply,
			Activity:      g.Activity,
			PurchasePrice: g.PurchasePrice,
			SellPrice:     g.SellPrice,
		}
	}

	return &MarketData{Symbol: response.Data.Symbol, Goods: goods}, nil
}

// GetShipyard retrieves shipyard data for a waypoint
func (c *HTTPClient) GetShipyard(ctx context.Context, systemSymbol, waypointSymbol, token string) (*ShipyardData, error) {
	var response struct {
		Data struct {
			Symbol    string `json:"symbol"`
			ShipTypes []struct {
				Type string `json:"type"`
			} `json:"shipTypes"`
			Ships []struct {
				Type          string `json:"type"`
				Name          string `json:"name"`
				PurchasePrice int64  `json:"purchasePrice"`
			} `json:"ships"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/systems/%s/waypoints/%s/shipyard", systemSymbol, waypointSymbol)
	if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get shipyard at %s: %w", waypointSymbol, err)
	}

	shipTypes := make([]string, len(response.Data.ShipTypes))
	for i, st := range response.Data.ShipTypes {
		shipTypes[i] = st.Type
	}
	ships := make([]ShipyardShipData, len(response.Data.Ships))
	for i, s := range response.Data.Ships {
		ships[i] = ShipyardShipData{Type: s.Type, Name: s.Name, PurchasePrice: s.PurchasePrice}
	}

	return &ShipyardData{
		Symbol:    response.Data.Symbol,
		ShipTypes: shipTypes,
		Ships:     ships,
	}, nil
}

// PurchaseShip buys a ship from a shipyard
func (c *HTTPClient) PurchaseShip(ctx context.Context, shipType, waypointSymbol, token string) (*PurchaseShipResult, error) {
	body := map[string]string{
		"shipType":       shipType,
		"waypointSymbol": waypointSymbol,
	}

	var response struct {
		Data struct {
			Ship  shipPayload  `json:"ship"`
			Agent agentPayload `json:"agent"`
		} `json:"data"`
	}

	if err := c.request(ctx, "POST", "/my/ships", token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to purchase %s at %s: %w", shipType, waypointSymbol, err)
	}

	return &PurchaseShipResult{
		ShipSymbol:   response.Data.Ship.Symbol,
		FrameSymbol:  response.Data.Ship.Frame.Symbol,
		AgentCredits: response.Data.Agent.Credits,
	}, nil
}

// PurchaseCargo buys goods at the ship's docked market
func (c *HTTPClient) PurchaseCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*TransactionData, error) {
	return c.cargoTrade(ctx, shipSymbol, "purchase", tradeSymbol, units, token)
}

// SellCargo sells goods at the ship's docked market
func (c *HTTPClient) SellCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*TransactionData, error) {
	return c.cargoTrade(ctx, shipSymbol, "sell", tradeSymbol, units, token)
}

func (c *HTTPClient) cargoTrade(ctx context.Context, shipSymbol, action, tradeSymbol string, units int, token string) (*TransactionData, error) {
	body := map[string]interface{}{
		"symbol": tradeSymbol,
		"units":  units,
	}

	var response struct {
		Data struct {
			Transaction struct {
				WaypointSymbol string `json:"waypointSymbol"`
				TradeSymbol    string `json:"tradeSymbol"`
				Type           string `json:"type"`
				Units          int    `json:"units"`
				PricePerUnit   int64  `json:"pricePerUnit"`
				TotalPrice     int64  `json:"totalPrice"`
			} `json:"transaction"`
			Agent agentPayload `json:"agent"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/ships/%s/%s", shipSymbol, action)
	if err := c.request(ctx, "POST", path, token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to %s %d %s with ship %s: %w", action, units, tradeSymbol, shipSymbol, err)
	}

	tx := response.Data.Transaction
	return &TransactionData{
		WaypointSymbol: tx.WaypointSymbol,
		TradeSymbol:    tx.TradeSymbol,
		Type:           tx.Type,
		Units:          tx.Units,
		PricePerUnit:   tx.PricePerUnit,
		TotalPrice:     tx.TotalPrice,
		AgentCredits:   response.Data.Agent.Credits,
	}, nil
}

// JettisonCargo dumps goods overboard
func (c *HTTPClient) JettisonCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) error {
	body := map[string]interface{}{
		"symbol": tradeSymbol,
		"units":  units,
	}

	path := fmt.Sprintf("/my/ships/%s/jettison", shipSymbol)
	if err := c.request(ctx, "POST", path, token, body, nil); err != nil {
		return fmt.Errorf("failed to jettison %d %s from %s: %w", units, tradeSymbol, shipSymbol, err)
	}
	return nil
}

// Contract operations

// ListContracts retrieves the agent's contracts
func (c *HTTPClient) ListContracts(ctx context.Context, token string) ([]*ContractData, error) {
	var all []*ContractData
	page := 1

	for {
		path := fmt.Sprintf("/my/contracts?page=%d&limit=20", page)

		var response struct {
			Data []contractPayload `json:"data"`
		}

		if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
			return nil, fmt.Errorf("failed to list contracts (page %d): %w", page, err)
		}
		if len(response.Data) == 0 {
			break
		}

		for i := range response.Data {
			all = append(all, response.Data[i].toContractData())
		}
		page++
	}

	return all, nil
}

// NegotiateContract negotiates a new contract with a docked ship
func (c *HTTPClient) NegotiateContract(ctx context.Context, shipSymbol, token string) (*ContractData, error) {
	var response struct {
		Data struct {
			Contract contractPayload `json:"contract"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/ships/%s/negotiate/contract", shipSymbol)
	if err := c.request(ctx, "POST", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to negotiate contract with ship %s: %w", shipSymbol, err)
	}

	return response.Data.Contract.toContractData(), nil
}

// AcceptContract accepts a negotiated contract
func (c *HTTPClient) AcceptContract(ctx context.Context, contractID, token string) (*ContractData, error) {
	var response struct {
		Data struct {
			Contract contractPayload `json:"contract"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/contracts/%s/accept", contractID)
	if err := c.request(ctx, "POST", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to accept contract %s: %w", contractID, err)
	}

	return response.Data.Contract.toContractData(), nil
}

// DeliverContract delivers goods toward a contract deliverable
func (c *HTTPClient) DeliverContract(ctx context.Context, contractID, shipSymbol, tradeSymbol string, units int, token string) (*ContractData, error) {
	body := map[string]interface{}{
		"shipSymbol":  shipSymbol,
		"tradeSymbol": tradeSymbol,
		"units":       units,
	}

	var response struct {
		Data struct {
			Contract contractPayload `json:"contract"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/contracts/%s/deliver", contractID)
	if err := c.request(ctx, "POST", path, token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to deliver %d %s for contract %s: %w", units, tradeSymbol, contractID, err)
	}

	return response.Data.Contract.toContractData(), nil
}

// FulfillContract fulfills a fully delivered contract
func (c *HTTPClient) FulfillContract(ctx context.Context, contractID, token string) (*ContractData, error) {
	var response struct {
		Data struct {
			Contract contractPayload `json:"contract"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/my/contracts/%s/fulfill", contractID)
	if err := c.request(ctx, "POST", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fulfill contract %s: %w", contractID, err)
	}

	return response.Data.Contract.toContractData(), nil
}

package player

import (
	"context"
	"fmt"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/domain/fleet"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// RegisterPlayerCommand registers a new agent with the game and stores
// its bearer token locally
type RegisterPlayerCommand struct {
	AccountToken string `validate:"required"`
	Symbol       string `validate:"required,min=3,max=14"`
	Faction      string `validate:"required"`
}

// RegisterPlayerResponse returns the stored player
type RegisterPlayerResponse struct {
	PlayerID    int
	AgentSymbol string
	Token       string
	Credits     int64
}

// GetAgentCommand fetches the live agent snapshot for a player.
// Credits always come from the API, never from storage.
type GetAgentCommand struct {
	PlayerID int `validate:"required,gt=0"`
}

// GetAgentResponse carries the live agent snapshot
type GetAgentResponse struct {
	PlayerID     int
	AgentSymbol  string
	Credits      int64
	Headquarters string
	ShipCount    int
}

// ListPlayersCommand lists all registered players
type ListPlayersCommand struct{}

// PlayerSummary is one row of a player listing
type PlayerSummary struct {
	PlayerID    int
	AgentSymbol string
}

// ListPlayersResponse carries the player listing
type ListPlayersResponse struct {
	Players []PlayerSummary
}

// PlayerStore is the slice of the player repository the handlers need
type PlayerStore interface {
	Save(ctx context.Context, player *fleet.Player) error
	FindByID(ctx context.Context, id int) (*fleet.Player, error)
	FindByAgentSymbol(ctx context.Context, agentSymbol string) (*fleet.Player, error)
	List(ctx context.Context) ([]*fleet.Player, error)
	TouchLastActive(ctx context.Context, id int) error
}

// Handlers serves the player commands
type Handlers struct {
	api     api.Client
	players PlayerStore
}

// NewHandlers creates the player handlers
func NewHandlers(apiClient api.Client, players PlayerStore) *Handlers {
	return &Handlers{api: apiClient, players: players}
}

// Register wires the player commands into the mediator
func (h *Handlers) Register(m common.Mediator) error {
	if err := common.RegisterHandler[*RegisterPlayerCommand](m, common.HandlerFunc(h.handleRegister)); err != nil {
		return err
	}
	if err := common.RegisterHandler[*GetAgentCommand](m, common.HandlerFunc(h.handleGetAgent)); err != nil {
		return err
	}
	return common.RegisterHandler[*ListPlayersCommand](m, common.HandlerFunc(h.handleList))
}

func (h *Handlers) handleRegister(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*RegisterPlayerCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *RegisterPlayerCommand")
	}

	if existing, err := h.players.FindByAgentSymbol(ctx, cmd.Symbol); err == nil {
		return nil, shared.NewDomainError(shared.KindConflict,
			fmt.Sprintf("agent %s is already registered as player %d", existing.AgentSymbol, existing.ID))
	} else if !shared.IsNotFound(err) {
		return nil, err
	}

	result, err := h.api.RegisterAgent(ctx, cmd.AccountToken, cmd.Symbol, cmd.Faction)
	if err != nil {
		return nil, fmt.Errorf("failed to register agent %s: %w", cmd.Symbol, err)
	}

	player, err := fleet.NewPlayer(result.Agent.Symbol, result.Token)
	if err != nil {
		return nil, err
	}
	if err := h.players.Save(ctx, player); err != nil {
		return nil, err
	}

	return &RegisterPlayerResponse{
		PlayerID:    player.ID,
		AgentSymbol: player.AgentSymbol,
		Token:       player.Token,
		Credits:     result.Agent.Credits,
	}, nil
}

func (h *Handlers) handleGetAgent(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*GetAgentCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *GetAgentCommand")
	}

	player, err := h.players.FindByID(ctx, cmd.PlayerID)
	if err != nil {
		return nil, err
	}
	agent, err := h.api.GetAgent(ctx, player.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent for player %d: %w", cmd.PlayerID, err)
	}
	if err := h.players.TouchLastActive(ctx, player.ID); err != nil {
		return nil, err
	}

	return &GetAgentResponse{
		PlayerID:     player.ID,
		AgentSymbol:  agent.Symbol,
		Credits:      agent.Credits,
		Headquarters: agent.Headquarters,
		ShipCount:    agent.ShipCount,
	}, nil
}

func (h *Handlers) handleList(ctx context.Context, request common.Request) (common.Response, error) {
	if _, ok := request.(*ListPlayersCommand); !ok {
		return nil, fmt.Errorf("invalid request type: expected *ListPlayersCommand")
	}

	players, err := h.players.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]PlayerSummary, 0, len(players))
	for _, p := range players {
		summaries = append(summaries, PlayerSummary{PlayerID: p.ID, AgentSymbol: p.AgentSymbol})
	}
	return &ListPlayersResponse{Players: summaries}, nil
}

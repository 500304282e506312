package fleet

import (
	"time"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// Player is a registered agent. The token is immutable after registration;
// credits are never trusted from storage and always refreshed from the API.
type Player struct {
	ID          int
	AgentSymbol string
	Token       string
	Credits     int64
	Metadata    map[string]interface{}
	CreatedAt   time.Time
	LastActive  *time.Time
}

// NewPlayer creates a validated player
func NewPlayer(agentSymbol, token string) (*Player, error) {
	if agentSymbol == "" {
		return nil, shared.NewValidationError("agent_symbol", "cannot be empty")
	}
	if token == "" {
		return nil, shared.NewValidationError("token", "cannot be empty")
	}
	return &Player{
		AgentSymbol: agentSymbol,
		Token:       token,
		Metadata:    map[string]interface{}{},
	}, nil
}

// Touch stamps the player as active now
func (p *Player) Touch(clock shared.Clock) {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	now := clock.Now()
	p.LastActive = &now
}

package player_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetd/internal/adapters/api"
	"github.com/andrescamacho/fleetd/internal/adapters/persistence"
	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/application/player"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
	"github.com/andrescamacho/fleetd/test/helpers"
)

func newPlayerFixture(t *testing.T, fakeAPI *helpers.FakeAPI) (common.Mediator, *persistence.GormPlayerRepository) {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Now())
	repo := persistence.NewGormPlayerRepository(db, clock)

	mediator := common.NewMediator()
	mediator.Use(common.ValidationMiddleware())
	require.NoError(t, player.NewHandlers(fakeAPI, repo).Register(mediator))
	return mediator, repo
}

func TestRegisterPlayer_StoresTokenAndCredits(t *testing.T) {
	fakeAPI := &helpers.FakeAPI{
		RegisterAgentFunc: func(ctx context.Context, accountToken, symbol, faction string) (*api.RegisterResult, error) {
			return &api.RegisterResult{
				Token: "bearer-xyz",
				Agent: api.AgentData{Symbol: symbol, Credits: 175000, Headquarters: "X1-A-1"},
			}, nil
		},
	}
	mediator, repo := newPlayerFixture(t, fakeAPI)
	ctx := context.Background()

	response, err := mediator.Send(ctx, &player.RegisterPlayerCommand{
		AccountToken: "acct-token",
		Symbol:       "NOVA",
		Faction:      "COSMIC",
	})
	require.NoError(t, err)

	registered := response.(*player.RegisterPlayerResponse)
	assert.Equal(t, "NOVA", registered.AgentSymbol)
	assert.Equal(t, "bearer-xyz", registered.Token)
	assert.Equal(t, int64(175000), registered.Credits)
	assert.Greater(t, registered.PlayerID, 0)

	stored, err := repo.FindByID(ctx, registered.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, "bearer-xyz", stored.Token)
}

func TestRegisterPlayer_ConflictOnDuplicateSymbol(t *testing.T) {
	fakeAPI := &helpers.FakeAPI{
		RegisterAgentFunc: func(ctx context.Context, accountToken, symbol, faction string) (*api.RegisterResult, error) {
			return &api.RegisterResult{Token: "t", Agent: api.AgentData{Symbol: symbol}}, nil
		},
	}
	mediator, _ := newPlayerFixture(t, fakeAPI)
	ctx := context.Background()

	cmd := &player.RegisterPlayerCommand{AccountToken: "acct", Symbol: "NOVA", Faction: "COSMIC"}
	_, err := mediator.Send(ctx, cmd)
	require.NoError(t, err)

	_, err = mediator.Send(ctx, cmd)
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))
}

func TestRegisterPlayer_ValidatesSymbolLength(t *testing.T) {
	mediator, _ := newPlayerFixture(t, &helpers.FakeAPI{})

	_, err := mediator.Send(context.Background(), &player.RegisterPlayerCommand{
		AccountToken: "acct",
		Symbol:       "AB",
		Faction:      "COSMIC",
	})
	require.Error(t, err)
	assert.True(t, shared.IsBadRequest(err))
}

func TestGetAgent_RefreshesCreditsFromAPI(t *testing.T) {
	credits := int64(100)
	fakeAPI := &helpers.FakeAPI{
		RegisterAgentFunc: func(ctx context.Context, accountToken, symbol, faction string) (*api.RegisterResult, error) {
			return &api.RegisterResult{Token: "tok", Agent: api.AgentData{Symbol: symbol, Credits: credits}}, nil
		},
		GetAgentFunc: func(ctx context.Context, token string) (*api.AgentData, error) {
			return &api.AgentData{Symbol: "NOVA", Credits: credits, Headquarters: "X1-A-1", ShipCount: 2}, nil
		},
	}
	mediator, repo := newPlayerFixture(t, fakeAPI)
	ctx := context.Background()

	response, err := mediator.Send(ctx, &player.RegisterPlayerCommand{
		AccountToken: "acct", Symbol: "NOVA", Faction: "COSMIC",
	})
	require.NoError(t, err)
	playerID := response.(*player.RegisterPlayerResponse).PlayerID

	credits = 99500
	response, err = mediator.Send(ctx, &player.GetAgentCommand{PlayerID: playerID})
	require.NoError(t, err)

	agent := response.(*player.GetAgentResponse)
	assert.Equal(t, int64(99500), agent.Credits)
	assert.Equal(t, 2, agent.ShipCount)

	stored, err := repo.FindByID(ctx, playerID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastActive)
}

func TestGetAgent_UnknownPlayerFails(t *testing.T) {
	mediator, _ := newPlayerFixture(t, &helpers.FakeAPI{})

	_, err := mediator.Send(context.Background(), &player.GetAgentCommand{PlayerID: 42})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestListPlayers_ReturnsAllRegistered(t *testing.T) {
	fakeAPI := &helpers.FakeAPI{
		RegisterAgentFunc: func(ctx context.Context, accountToken, symbol, faction string) (*api.RegisterResult, error) {
			return &api.RegisterResult{Token: "tok-" + symbol, Agent: api.AgentData{Symbol: symbol}}, nil
		},
	}
	mediator, _ := newPlayerFixture(t, fakeAPI)
	ctx := context.Background()

	for _, symbol := range []string{"NOVA", "VEGA"} {
		_, err := mediator.Send(ctx, &player.RegisterPlayerCommand{
			AccountToken: "acct", Symbol: symbol, Faction: "COSMIC",
		})
		require.NoError(t, err)
	}

	response, err := mediator.Send(ctx, &player.ListPlayersCommand{})
	require.NoError(t, err)

	listing := response.(*player.ListPlayersResponse)
	require.Len(t, listing.Players, 2)
	assert.Equal(t, "NOVA", listing.Players[0].AgentSymbol)
	assert.Equal(t, "VEGA", listing.Players[1].AgentSymbol)
}

package daemonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/andrescamacho/fleetd/internal/application/common"
	"github.com/andrescamacho/fleetd/internal/application/contract"
	"github.com/andrescamacho/fleetd/internal/application/goods"
	"github.com/andrescamacho/fleetd/internal/application/mining"
	"github.com/andrescamacho/fleetd/internal/application/player"
	"github.com/andrescamacho/fleetd/internal/application/scouting"
	"github.com/andrescamacho/fleetd/internal/application/ship"
	"github.com/andrescamacho/fleetd/internal/application/shipyard"
	"github.com/andrescamacho/fleetd/internal/application/trading"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// commandDecoder turns a raw JSON payload into the mediator command
// for one operation
type commandDecoder func(payload json.RawMessage) (common.Request, error)

func decodeInto[T any](payload json.RawMessage) (common.Request, error) {
	cmd := new(T)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, cmd); err != nil {
			return nil, shared.NewDomainError(shared.KindBadRequest,
				fmt.Sprintf("malformed payload: %v", err))
		}
	}
	return cmd, nil
}

// commandRegistry maps operation names on the wire to their command
// types. Adding a new container operation only requires a new entry
// here; dispatch and validation stay untouched.
func commandRegistry() map[string]commandDecoder {
	return map[string]commandDecoder{
		"navigate": decodeInto[ship.NavigateCommand],
		"dock":     decodeInto[ship.DockCommand],
		"orbit":    decodeInto[ship.OrbitCommand],
		"refuel":   decodeInto[ship.RefuelCommand],

		"contract_workflow": decodeInto[contract.StartContractWorkflowCommand],
		"contract_fleet":    decodeInto[contract.StartContractFleetCommand],

		"mining_operation": decodeInto[mining.StartMiningCommand],
		"mining_worker":    decodeInto[mining.StartMiningWorkerCommand],
		"transport_worker": decodeInto[mining.StartTransportWorkerCommand],

		"arbitrage":        decodeInto[trading.StartArbitrageCommand],
		"arbitrage_worker": decodeInto[trading.StartArbitrageWorkerCommand],

		"manufacturing": decodeInto[goods.StartManufacturingCommand],
		"goods_factory": decodeInto[goods.StartGoodsFactoryCommand],

		"scout_tour":    decodeInto[scouting.StartScoutTourCommand],
		"scout_markets": decodeInto[scouting.StartScoutMarketsCommand],

		"purchase_ship":        decodeInto[shipyard.PurchaseShipCommand],
		"batch_purchase_ships": decodeInto[shipyard.BatchPurchaseShipsCommand],

		"register_player": decodeInto[player.RegisterPlayerCommand],
		"get_agent":       decodeInto[player.GetAgentCommand],
		"list_players":    decodeInto[player.ListPlayersCommand],
	}
}

package shipyard

import (
	"context"
	"fmt"

	shipapp "github.com/andrescamacho/fleetd/internal/application/ship"
	"github.com/andrescamacho/fleetd/internal/application/supervisor"
	"github.com/andrescamacho/fleetd/internal/domain/container"
	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// PurchaseShipFactory builds the PURCHASE_SHIP runner: verify the
// shipyard sells the requested hull, then buy one. Purchases drive no
// existing ship, so no lock is taken.
func PurchaseShipFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	return purchaseRunner(sub, c)
}

// BatchPurchaseShipsFactory builds the BATCH_PURCHASE_SHIPS runner.
// The batch size is the container's iteration budget: one hull per
// iteration, so a failure mid-batch keeps the ships already bought.
func BatchPurchaseShipsFactory(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	return purchaseRunner(sub, c)
}

func purchaseRunner(sub *supervisor.Substrate, c *container.Container) (supervisor.IterateFunc, error) {
	shipType := c.MetadataString("ship_type")
	waypointSymbol := c.MetadataString("waypoint")
	if shipType == "" {
		return nil, shared.NewValidationError("ship_type", "is required")
	}
	if waypointSymbol == "" {
		return nil, shared.NewValidationError("waypoint", "is required")
	}
	systemSymbol := shared.ExtractSystemSymbol(waypointSymbol)

	svc := shipapp.NewService(sub.API, sub.Players, sub.Clock)
	logger := supervisor.NewContainerLogger(sub.Logs, c.ID(), c.PlayerID())

	return func(ctx context.Context) error {
		token, err := svc.Token(ctx, c.PlayerID())
		if err != nil {
			return err
		}

		shipyard, err := sub.API.GetShipyard(ctx, systemSymbol, waypointSymbol, token)
		if err != nil {
			return err
		}
		offered := false
		var price int64
		for _, hull := range shipyard.Ships {
			if hull.Type == shipType {
				offered = true
				price = hull.PurchasePrice
				break
			}
		}
		if !offered {
			return shared.NewDomainError(shared.KindBadRequest,
				fmt.Sprintf("shipyard %s does not sell %s", waypointSymbol, shipType))
		}

		result, err := sub.API.PurchaseShip(ctx, shipType, waypointSymbol, token)
		if err != nil {
			return err
		}
		logger.Log("INFO", fmt.Sprintf("purchased %s %s for %d credits (%d remaining)",
			shipType, result.ShipSymbol, price, result.AgentCredits), nil)
		return nil
	}, nil
}

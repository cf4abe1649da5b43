package kafka

import (
	"context"

	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
	"github.com/EsmailKhaleel/storefront-api/internal/logging"
	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
)

// ShipmentStatusChangedHandler moves an order through its fulfillment
// lifecycle. Transitions are guarded so out-of-order or replayed
// shipment events cannot regress a status.
type ShipmentStatusChangedHandler struct {
	Repo  usecase.OrderRepo
	Cache usecase.OrderCache // optional
}

func NewShipmentStatusChangedHandler(repo usecase.OrderRepo, cache usecase.OrderCache) *ShipmentStatusChangedHandler {
	return &ShipmentStatusChangedHandler{Repo: repo, Cache: cache}
}

func (h *ShipmentStatusChangedHandler) Handle(ctx context.Context, ev usecase.ShipmentStatusChangedMsg) error {
	var from, to domain.Status
	switch ev.Status {
	case "SHIPPED":
		from, to = domain.StatusProcessing, domain.StatusShipped
	case "DELIVERED":
		from, to = domain.StatusShipped, domain.StatusDelivered
	case "CANCELLED":
		from, to = domain.StatusProcessing, domain.StatusCancelled
	default:
		logging.FromCtx(ctx).Warn("unknown shipment status, dropping", "order_id", ev.OrderID, "status", ev.Status)
		return nil
	}

	moved, err := h.Repo.UpdateStatusIf(ctx, ev.OrderID, from, to)
	if err != nil {
		return err
	}
	if !moved {
		// Already past this state (replay) or unknown order.
		logging.FromCtx(ctx).Warn("shipment transition skipped", "order_id", ev.OrderID, "from", from, "to", to)
		return nil
	}

	if h.Cache != nil {
		_ = h.Cache.SetStatus(ctx, ev.OrderID, string(to))
	}
	return nil
}

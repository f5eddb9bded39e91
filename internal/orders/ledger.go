package orders

import (
	"time"

	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	"github.com/angelmondragon/craftcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
)

var progression = map[enums.OrderStatus]int{
	enums.OrderStatusPending:   0,
	enums.OrderStatusConfirmed: 1,
	enums.OrderStatusShipped:   2,
	enums.OrderStatusDelivered: 3,
}

// CanTransition reports whether an order in from may move to to. Fulfilment
// advances one step at a time. Moving to the current status is allowed and is
// a no-op.
func CanTransition(from, to enums.OrderStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to == enums.OrderStatusCancelled {
		return true
	}
	fromRank, okFrom := progression[from]
	toRank, okTo := progression[to]
	return okFrom && okTo && toRank == fromRank+1
}

// applyTransition moves the order to status and appends a history entry. It
// returns false when nothing changed. Orders created without a history get
// their current status backfilled first.
func applyTransition(order *models.Order, to enums.OrderStatus, now time.Time) (bool, error) {
	if !to.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": string(to)})
	}
	from := order.Status
	if !CanTransition(from, to) {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
			WithDetails(map[string]any{"from": string(from), "to": string(to)})
	}
	if from == to {
		return false, nil
	}

	if len(order.StatusHistory) == 0 {
		at := order.CreatedAt
		if at.IsZero() {
			at = now
		}
		order.StatusHistory = models.StatusHistory{{Status: from, At: at.UTC()}}
	}
	order.StatusHistory = append(order.StatusHistory, models.StatusEntry{Status: to, At: now.UTC()})
	order.Status = to
	return true, nil
}

package orders

import (
	"testing"
	"time"

	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	"github.com/angelmondragon/craftcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to enums.OrderStatus
		want     bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusConfirmed, true},
		{enums.OrderStatusConfirmed, enums.OrderStatusShipped, true},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered, true},
		{enums.OrderStatusPending, enums.OrderStatusShipped, false},
		{enums.OrderStatusPending, enums.OrderStatusDelivered, false},
		{enums.OrderStatusConfirmed, enums.OrderStatusDelivered, false},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled, true},
		{enums.OrderStatusPending, enums.OrderStatusPending, true},
		{enums.OrderStatusShipped, enums.OrderStatusConfirmed, false},
		{enums.OrderStatusConfirmed, enums.OrderStatusPending, false},
		{enums.OrderStatusDelivered, enums.OrderStatusCancelled, false},
		{enums.OrderStatusCancelled, enums.OrderStatusPending, false},
		{enums.OrderStatusCancelled, enums.OrderStatusCancelled, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestApplyTransitionBackfillsHistory(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	order := &models.Order{Status: enums.OrderStatusPending, CreatedAt: created}

	changed, err := applyTransition(order, enums.OrderStatusConfirmed, now)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !changed {
		t.Fatalf("expected change")
	}
	if len(order.StatusHistory) != 2 {
		t.Fatalf("expected backfilled entry plus new entry, got %+v", order.StatusHistory)
	}
	if order.StatusHistory[0].Status != enums.OrderStatusPending || !order.StatusHistory[0].At.Equal(created) {
		t.Fatalf("unexpected backfill %+v", order.StatusHistory[0])
	}
	if order.StatusHistory[1].Status != enums.OrderStatusConfirmed || !order.StatusHistory[1].At.Equal(now) {
		t.Fatalf("unexpected entry %+v", order.StatusHistory[1])
	}
}

func TestApplyTransitionSameStatusIsNoop(t *testing.T) {
	order := &models.Order{
		Status:        enums.OrderStatusShipped,
		StatusHistory: models.StatusHistory{{Status: enums.OrderStatusShipped, At: time.Now()}},
	}
	changed, err := applyTransition(order, enums.OrderStatusShipped, time.Now())
	if err != nil || changed {
		t.Fatalf("expected silent no-op, got changed=%v err=%v", changed, err)
	}
	if len(order.StatusHistory) != 1 {
		t.Fatalf("history must not grow: %+v", order.StatusHistory)
	}
}

func TestApplyTransitionRejects(t *testing.T) {
	order := &models.Order{Status: enums.OrderStatusDelivered}
	if _, err := applyTransition(order, enums.OrderStatusCancelled, time.Now()); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if _, err := applyTransition(order, enums.OrderStatus("lost"), time.Now()); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if order.Status != enums.OrderStatusDelivered || len(order.StatusHistory) != 0 {
		t.Fatalf("rejected transition must not touch the order: %+v", order)
	}
}

package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/craftcart-backend/pkg/redis"
)

const (
	guardScope = "stripe_event"
	// Stripe retries failed deliveries for up to three days.
	defaultClaimTTL = 72 * time.Hour
)

var errMissingEventID = errors.New("stripe event id is required")

// EventGuard claims event ids so a delivery is reconciled once. The claim
// holds the event type for inspection and expires after ttl.
type EventGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewEventGuard builds a guard over store. A non-positive ttl uses the
// Stripe retry window.
func NewEventGuard(store redis.IdempotencyStore, ttl time.Duration) (*EventGuard, error) {
	if store == nil {
		return nil, errors.New("event guard needs a store")
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &EventGuard{store: store, ttl: ttl}, nil
}

// Claim reports whether this delivery owns the event. False means an earlier
// delivery already claimed it.
func (g *EventGuard) Claim(ctx context.Context, event *stripe.Event) (bool, error) {
	if event == nil {
		return false, errMissingEventID
	}
	key, err := g.key(event.ID)
	if err != nil {
		return false, err
	}
	claimed, err := g.store.SetNX(ctx, key, string(event.Type), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event %s: %w", event.ID, err)
	}
	return claimed, nil
}

// Release drops the claim so Stripe's next retry is reconciled.
func (g *EventGuard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *EventGuard) key(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errMissingEventID
	}
	return g.store.IdempotencyKey(guardScope, eventID), nil
}

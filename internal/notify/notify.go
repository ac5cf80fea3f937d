// Package notify carries cart and catalog change events from the services to
// realtime subscribers and downstream brokers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/internal/metrics"
	"github.com/fjod/cartsync/pkg/logger"
	"github.com/google/uuid"
)

const (
	EventProductsUpdated = "updateProducts"
	EventCartCreated     = "cartCreated"
	EventCartUpdated     = "cartUpdated"
	EventCartFinalized   = "cartFinalized"
)

// Event is one notification. Room is the cart id the event is scoped to; an
// empty Room addresses every subscriber.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data"`
	At   time.Time       `json:"at"`
}

func NewEvent(eventType, room string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Room: room,
		Data: raw,
		At:   time.Now().UTC(),
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FinalizedPayload is the data of a cartFinalized event.
type FinalizedPayload struct {
	CartID      string    `json:"cartId"`
	FinalizedAt time.Time `json:"finalizedAt"`
}

// Notifier turns service results into events. Delivery is best effort: a
// failed publish is logged and counted, never returned to the caller.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) CartUpdated(ctx context.Context, cart *domain.ResolvedCart) {
	n.send(ctx, EventCartUpdated, cart.ID.Hex(), cart)
}

// CartFinalized sends cartUpdated followed by cartFinalized to the cart's room.
func (n *Notifier) CartFinalized(ctx context.Context, cart *domain.ResolvedCart) {
	n.CartUpdated(ctx, cart)
	n.send(ctx, EventCartFinalized, cart.ID.Hex(), FinalizedPayload{
		CartID:      cart.ID.Hex(),
		FinalizedAt: cart.UpdatedAt,
	})
}

func (n *Notifier) ProductsUpdated(ctx context.Context, products []domain.Product) {
	if products == nil {
		products = []domain.Product{}
	}
	n.send(ctx, EventProductsUpdated, "", products)
}

func (n *Notifier) send(ctx context.Context, eventType, room string, data any) {
	ev, err := NewEvent(eventType, room, data)
	if err == nil {
		err = n.pub.Publish(ctx, ev)
	}
	metrics.NotificationResult("notifier", eventType, err)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event", eventType).Str("room", room).Msg("failed to publish notification")
	}
}

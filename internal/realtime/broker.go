// Package realtime fans row changes out to subscribers over Server-Sent
// Events and WebSockets. Changes travel through a Broker, backed by Redis
// pub/sub when several instances run and by memory otherwise.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"textile-store/internal/domain"

	"go.uber.org/zap"
)

// Table names that can be subscribed to.
const (
	TableFabrics    = "fabrics"
	TableCategories = "categories"
	TableOrders     = "orders"
	TableReviews    = "reviews"
	TableDiscounts  = "discount_codes"
)

var tables = map[string]bool{
	TableFabrics:    true,
	TableCategories: true,
	TableOrders:     false,
	TableReviews:    false,
	TableDiscounts:  false,
}

// Known reports whether table can be subscribed to at all.
func Known(table string) bool {
	_, ok := tables[table]
	return ok
}

// Public reports whether anonymous shoppers may subscribe to table.
func Public(table string) bool {
	return tables[table]
}

// ParseEvent validates an event filter; empty means every event.
func ParseEvent(s string) (domain.ChangeEvent, error) {
	switch e := domain.ChangeEvent(s); e {
	case "", domain.ChangeAny:
		return domain.ChangeAny, nil
	case domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete:
		return e, nil
	}
	return "", fmt.Errorf("unknown event %q", s)
}

// Broker delivers changes to subscribers of a table
type Broker interface {
	Publish(ctx context.Context, change domain.Change) error
	// Subscribe streams changes on table matching event until ctx is done,
	// then closes the channel.
	Subscribe(ctx context.Context, table string, event domain.ChangeEvent) (<-chan domain.Change, error)
	Close() error
}

// NewChange encodes record as the payload of a change on table.
func NewChange(table string, event domain.ChangeEvent, record any) (domain.Change, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return domain.Change{}, fmt.Errorf("failed to encode change record: %w", err)
	}
	return domain.Change{Table: table, Event: event, Record: data, OccurredAt: time.Now().UTC()}, nil
}

// Notifier publishes changes after writes have committed. Failures are
// logged and never surface to the caller whose write already succeeded.
type Notifier struct {
	broker Broker
	logger *zap.Logger
}

func NewNotifier(broker Broker, logger *zap.Logger) *Notifier {
	return &Notifier{broker: broker, logger: logger}
}

// Notify publishes record as an event on table. A nil Notifier is a no-op.
func (n *Notifier) Notify(ctx context.Context, table string, event domain.ChangeEvent, record any) {
	if n == nil || n.broker == nil {
		return
	}
	change, err := NewChange(table, event, record)
	if err == nil {
		err = n.broker.Publish(ctx, change)
	}
	if err != nil {
		n.logger.Warn("Failed to publish change",
			zap.String("table", table),
			zap.String("event", string(event)),
			zap.Error(err),
		)
	}
}

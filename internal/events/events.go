// Package events publishes quotation lifecycle events once a change has been
// committed.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Type names a lifecycle event.
type Type string

const (
	QuotationCreated      Type = "quotation.created"
	QuotationItemsChanged Type = "quotation.items_changed"
	QuotationUpdated      Type = "quotation.updated"
	QuotationSent         Type = "quotation.sent"
	QuotationAccepted     Type = "quotation.accepted"
	QuotationRejected     Type = "quotation.rejected"
	QuotationDeleted      Type = "quotation.deleted"
	QuotationRestored     Type = "quotation.restored"
)

// Event is the payload describing one committed change.
type Event struct {
	Type        Type            `json:"type"`
	QuotationID uint            `json:"quotation_id"`
	Number      string          `json:"number"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Actor       uint            `json:"actor,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	Logger *logrus.Logger
}

// Publish logs e at info level.
func (p LogPublisher) Publish(_ context.Context, e Event) error {
	if p.Logger == nil {
		return nil
	}
	p.Logger.WithFields(logrus.Fields{
		"event":        string(e.Type),
		"quotation_id": e.QuotationID,
		"number":       e.Number,
		"status":       e.Status,
		"total_amount": e.TotalAmount.StringFixed(2),
		"actor":        e.Actor,
	}).Info("quotation event")
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends e.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	events := r.Events()
	out := make([]Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

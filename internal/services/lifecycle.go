package services

import (
	"time"

	"github.com/diewo77/go-quotations/internal/apperr"
	"github.com/diewo77/go-quotations/internal/events"
	"github.com/diewo77/go-quotations/internal/models"
)

// Event is a status transition request.
type Event string

const (
	EventSend   Event = "send"
	EventAccept Event = "accept"
	EventReject Event = "reject"
)

type transition struct {
	from   []models.QuotationStatus
	to     models.QuotationStatus
	notify events.Type
}

var transitions = map[Event]transition{
	EventSend: {
		from:   []models.QuotationStatus{models.QuotationStatusDraft},
		to:     models.QuotationStatusSent,
		notify: events.QuotationSent,
	},
	EventAccept: {
		from:   []models.QuotationStatus{models.QuotationStatusDraft, models.QuotationStatusSent},
		to:     models.QuotationStatusAccepted,
		notify: events.QuotationAccepted,
	},
	EventReject: {
		from:   []models.QuotationStatus{models.QuotationStatusDraft, models.QuotationStatusSent},
		to:     models.QuotationStatusRejected,
		notify: events.QuotationRejected,
	},
}

// ParseEvent maps a path or payload value to an Event.
func ParseEvent(s string) (Event, bool) {
	e := Event(s)
	_, ok := transitions[e]
	return e, ok
}

// nextStatus applies the state machine. noop is true for a repeated send,
// which is accepted without any write unless strict is set.
func nextStatus(from models.QuotationStatus, event Event, strict bool) (to models.QuotationStatus, noop bool, err error) {
	t, ok := transitions[event]
	if !ok {
		return "", false, apperr.Invalid("event", "unknown_event")
	}
	for _, s := range t.from {
		if s == from {
			return t.to, false, nil
		}
	}
	if event == EventSend && from == models.QuotationStatusSent && !strict {
		return from, true, nil
	}
	return "", false, &apperr.InvalidTransitionError{From: string(from), Event: string(event)}
}

// sourceStatuses returns the statuses event may leave from, as strings for
// the compare-and-set query.
func sourceStatuses(event Event) []string {
	t := transitions[event]
	out := make([]string, len(t.from))
	for i, s := range t.from {
		out[i] = string(s)
	}
	return out
}

// transitionUpdates returns the columns written by event: the new status and
// the audit stamps that belong to it. Stamps of other events are never touched.
func transitionUpdates(event Event, actor uint, notes string, at time.Time) map[string]any {
	updates := map[string]any{
		"status":     string(transitions[event].to),
		"updated_at": at,
	}
	switch event {
	case EventSend:
		updates["sent_at"] = at
		updates["sent_by"] = actor
	case EventAccept:
		updates["accepted_at"] = at
		updates["accepted_by"] = actor
		updates["acceptance_notes"] = notes
	case EventReject:
		updates["rejected_at"] = at
		updates["rejected_by"] = actor
		updates["rejection_reason"] = notes
	}
	return updates
}

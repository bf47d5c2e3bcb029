// Package notify fans decision events out to interested parties.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"procurement/internal/model"
)

const EventApprovalDecided = "approval.decided"

// Event describes a request leaving pending.
type Event struct {
	Type        string               `json:"type"`
	RequestID   string               `json:"request_id"`
	RequestType model.RequestType    `json:"request_type"`
	Status      model.ApprovalStatus `json:"status"`
	Requestor   string               `json:"requestor_name"`
	Actor       string               `json:"actor"`
	Comment     string               `json:"comment,omitempty"`
	DecidedAt   time.Time            `json:"decided_at"`
}

// DecisionEvent builds the event for a decided request.
func DecisionEvent(req model.ApprovalRequest) Event {
	e := Event{
		Type:        EventApprovalDecided,
		RequestID:   req.ID,
		RequestType: req.Type,
		Status:      req.Status,
		Requestor:   req.RequestorName,
		Actor:       req.DecisionActor,
		Comment:     req.DecisionComment,
	}
	if req.DecisionAt != nil {
		e.DecidedAt = *req.DecisionAt
	}
	return e
}

// Notifier delivers an event. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

func (f NotifierFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

type nop struct{}

func (nop) Notify(context.Context, Event) error { return nil }

// Nop discards every event.
func Nop() Notifier { return nop{} }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Broadcaster is satisfied by the websocket hub.
type Broadcaster interface {
	Publish(msg []byte) bool
}

type broadcast struct {
	b Broadcaster
}

// Broadcast pushes events to live websocket subscribers.
func Broadcast(b Broadcaster) Notifier {
	return &broadcast{b: b}
}

var ErrDropped = errors.New("notify: event dropped, broadcast queue full")

func (n *broadcast) Notify(_ context.Context, e Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if !n.b.Publish(msg) {
		return ErrDropped
	}
	return nil
}

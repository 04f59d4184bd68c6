// Package events carries change notifications from the services to whoever
// is listening: connected browsers, a message broker, or nobody.
//
// Publishing is best effort. A failed publish is logged by the caller and
// never fails the write that produced the event.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Entity names.
const (
	EntityTransaction = "transaction"
	EntityFamily      = "family"
	EntityProfile     = "profile"
)

// Action names.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionJoined  = "joined"
	ActionLeft    = "left"
)

// Event describes one change. Audience lists the user IDs allowed to see
// it: the actor plus everyone who shares a family with them.
type Event struct {
	Type     string    `json:"type"`
	Entity   string    `json:"entity"`
	Action   string    `json:"action"`
	ID       string    `json:"id"`
	ActorID  string    `json:"actorId"`
	Audience []string  `json:"-"`
	At       time.Time `json:"at"`
}

// New builds an Event whose Type is "<entity>.<action>".
func New(entity, action, id, actorID string, audience []string) Event {
	return Event{
		Type:     fmt.Sprintf("%s.%s", entity, action),
		Entity:   entity,
		Action:   action,
		ID:       id,
		ActorID:  actorID,
		Audience: audience,
		At:       time.Now().UTC(),
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every wrapped publisher, even when some fail, and
// returns their errors joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

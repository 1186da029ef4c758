// Package events publishes play events (story started, choice made, story
// ended, errors) to RabbitMQ for downstream analytics.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names a play event. It is also the routing key suffix.
type Type string

const (
	TypeStoryStarted   Type = "story_started"
	TypeChoiceSelected Type = "choice_selected"
	TypeStoryEnded     Type = "story_ended"
	TypeStoryError     Type = "story_error"
)

// Event is the message body published for every play event.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Username  string    `json:"username,omitempty"`
	StoryID   string    `json:"storyId"`
	Node      string    `json:"node,omitempty"`
	Choice    string    `json:"choice,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New fills in the id and timestamp of an event.
func New(t Type, storyID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		StoryID:   storyID,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher sends play events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. It is used when RabbitMQ is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

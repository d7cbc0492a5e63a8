package events

import "context"

// Streams
const (
	StreamRelay = "events:relay"
)

// Event types
const (
	EventRelayConfirmed = "relay_confirmed"
	EventRelayFailed    = "relay_failed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// Nop drops events; used when redis is not configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, stream string, event Event) error { return nil }

package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventLaunch  EventType = "launch"
	EventStop    EventType = "stop"
	EventExit    EventType = "exit"
	EventRestart EventType = "restart"
	EventGiveUp  EventType = "give_up"
	EventRemove  EventType = "remove"
)

// Event is one lifecycle transition of a program.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Program    string    `json:"program"`
	PID        int       `json:"pid"`
	ExitCode   int       `json:"exit_code"`
	Signal     string    `json:"signal,omitempty"`
	Status     string    `json:"status"`
	Restarts   int       `json:"restarts"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

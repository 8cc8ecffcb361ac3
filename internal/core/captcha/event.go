package captcha

import "time"

// EventKind names a lifecycle event
type EventKind string

// Lifecycle events emitted to observers
const (
	EventCreated             EventKind = "created"
	EventRegistered          EventKind = "registered"
	EventRejected            EventKind = "rejected"
	EventHandlerFailed       EventKind = "handler_failed"
	EventResult              EventKind = "result"
	EventResultMalformed     EventKind = "result_malformed"
	EventResultIgnored       EventKind = "result_ignored"
	EventVerdictCorrect      EventKind = "verdict_correct"
	EventVerdictInvalid      EventKind = "verdict_invalid"
	EventRemoved             EventKind = "removed"
	EventInteractionStarted  EventKind = "interaction_started"
	EventInteractionComplete EventKind = "interaction_complete"
	EventInteractionFailed   EventKind = "interaction_failed"
	EventInteractionAborted  EventKind = "interaction_aborted"
)

// Event is one lifecycle fact about a task
type Event struct {
	Kind       EventKind
	TaskID     string
	ResultType ResultType
	Handler    string // set for handler and verdict events
	Detail     string
	At         time.Time
}

// Observer receives lifecycle events synchronously and must not block
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a func to Observer
type ObserverFunc func(Event)

// Observe implements Observer
func (f ObserverFunc) Observe(e Event) { f(e) }

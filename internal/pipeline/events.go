package pipeline

import "time"

// EventType identifies a pipeline notification.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventPageFetched  EventType = "page_fetched"
	EventTermSkipped  EventType = "term_skipped"
	EventRunCompleted EventType = "run_completed"
)

// Event is a pipeline notification, consumed by the dashboard bridge.
type Event struct {
	Type        EventType `json:"type"`
	Time        time.Time `json:"time"`
	ExecutionID int64     `json:"execution_id"`
	Message     string    `json:"message,omitempty"`

	// Result is set on run_completed events only.
	Result *Result `json:"result,omitempty"`
}

// EventFunc receives pipeline events from a running engine.
// Handlers must not block; slow consumers should buffer internally.
type EventFunc func(Event)

func (e *Engine) emit(evt Event) {
	if e.events == nil {
		return
	}
	evt.Time = time.Now()
	e.events(evt)
}

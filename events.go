package gradio

import (
	"encoding/json"
	"time"
)

// EventType tags the three event shapes a submission emits to its
// listeners, per spec.md §3 ("Event (emitted to caller)").
type EventType string

const (
	EventStatus EventType = "status"
	EventData   EventType = "data"
	EventLog    EventType = "log"
)

// StatusEvent is emitted whenever the submission's stage changes.
// Invariant 1 (spec.md §3): every submission emits at least one of these,
// and the final one on any terminal path has Stage complete or error.
type StatusEvent struct {
	Stage     Stage           `json:"stage"`
	Queue     bool            `json:"queue"`
	Time      time.Time       `json:"time"`
	FnIndex   int             `json:"fn_index"`
	Endpoint  string          `json:"endpoint"`
	Eta       float64         `json:"eta,omitempty"`
	Message   string          `json:"message,omitempty"`
	Broken    bool            `json:"broken,omitempty"`
	Progress  json.RawMessage `json:"progress,omitempty"`
	QueueSize int             `json:"queue_size,omitempty"`
	Rank      int             `json:"rank,omitempty"`
}

// DataEvent carries one payload-bearing frame. Invariant 2 (spec.md §3):
// never follows a terminal StatusEvent for the same submission.
type DataEvent struct {
	Data      []any     `json:"data"`
	Time      time.Time `json:"time"`
	FnIndex   int       `json:"fn_index"`
	Endpoint  string    `json:"endpoint"`
	EventData any       `json:"event_data,omitempty"`
	TriggerID *int      `json:"trigger_id,omitempty"`
}

// LogEvent carries one server-emitted log line.
type LogEvent struct {
	Level    string `json:"level"`
	Log      string `json:"log"`
	FnIndex  int    `json:"fn_index"`
	Endpoint string `json:"endpoint"`
}

// Listener receives one event of the type it was registered under.
// Exactly one of the three typed fields on Event is non-nil depending on
// Type, mirroring the tagged-union discipline spec.md §9 asks for
// ("explicit variants and exhaustive dispatch rather than string sniffing").
type Listener func(Event)

// Event is the tagged union delivered to listeners.
type Event struct {
	Type   EventType
	Status *StatusEvent
	Data   *DataEvent
	Log    *LogEvent
}

// Package analytics records query and ingestion events and aggregates them
// into service-level stats.
package analytics

import "time"

type EventType string

const (
	EventQuery  EventType = "query"
	EventIngest EventType = "ingest"
	EventDelete EventType = "delete"
)

type QueryEvent struct {
	Type            EventType `json:"type"`
	Query           string    `json:"query"`
	DocumentID      string    `json:"document_id,omitempty"`
	Expanded        bool      `json:"expanded"`
	ExpansionCached bool      `json:"expansion_cached"`
	Results         int       `json:"results"`
	LatencyMs       int64     `json:"latency_ms"`
	Failed          bool      `json:"failed"`
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id,omitempty"`
}

type IngestEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	FileType   string    `json:"file_type"`
	SizeBytes  int       `json:"size_bytes"`
	Chunks     int       `json:"chunks"`
	Images     int       `json:"images"`
	LatencyMs  int64     `json:"latency_ms"`
	Failed     bool      `json:"failed"`
	Stage      string    `json:"stage,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Tracker accepts events without blocking the caller.
type Tracker interface {
	Track(event any)
}

// Nop discards events.
type Nop struct{}

func (Nop) Track(any) {}

package timer

import (
	"time"
)

// EventType represents the type of timer state event
type EventType string

const (
	EventConfigured EventType = "Configured"
	EventStarted    EventType = "Started"
	EventPaused     EventType = "Paused"
	EventResumed    EventType = "Resumed"
	EventAdjusted   EventType = "Adjusted"
	EventReset      EventType = "Reset"
	EventExpired    EventType = "Expired"
	EventBell       EventType = "Bell"
	EventBellSet    EventType = "BellSet"
)

// StateEvent is an immutable record of one accepted transition on a session.
// Seq is per-session and strictly increasing; subscribers use it to detect
// missed events and fall back to a snapshot.
type StateEvent struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Seq         uint64     `json:"seq"`
	Type        EventType  `json:"type"`
	PhaseBefore Phase      `json:"phase_before"`
	PhaseAfter  Phase      `json:"phase_after"`
	Mode        Mode       `json:"mode"`
	DurationMS  int64      `json:"duration_ms"`
	RemainingMS int64      `json:"remaining_ms"`
	ElapsedMS   int64      `json:"elapsed_ms"`
	DeltaMS     int64      `json:"delta_ms,omitempty"`
	Rings       int        `json:"rings,omitempty"`
	Bells       []BellView `json:"bells,omitempty"`
	At          time.Time  `json:"at"`
}

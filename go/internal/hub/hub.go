package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timekeeper/go/internal/timer"
)

// Role distinguishes clients that may issue commands from clients that only
// watch the clock.
type Role string

const (
	RoleController Role = "controller"
	RoleViewer     Role = "viewer"
)

// Envelope is one item on a subscriber's event stream. Stale set means older
// events were dropped because the subscriber's queue overflowed: there is a
// gap somewhere before this event and the client must fetch a fresh snapshot
// instead of trusting its replayed view. The flag rides the event itself so
// it can never be evicted ahead of the event it belongs to.
type Envelope struct {
	Event *timer.StateEvent `json:"event,omitempty"`
	Stale bool              `json:"stale,omitempty"`
}

// DefaultQueueSize bounds each subscriber's pending event queue.
const DefaultQueueSize = 64

// Subscriber is one client's registration with the hub. Events returns its
// stream; the channel is closed when the subscriber is unsubscribed.
type Subscriber struct {
	ID        string
	SessionID string
	Role      Role

	mu     sync.Mutex
	ch     chan Envelope
	closed bool
}

// Events returns the subscriber's delivery stream. Envelopes arrive in
// produced order; any overflow burst leaves at least one stale-flagged
// envelope behind it.
func (s *Subscriber) Events() <-chan Envelope {
	return s.ch
}

// enqueue delivers one envelope without ever blocking the publisher. On
// overflow the oldest pending envelope is dropped and the incoming one is
// flagged stale, telling the client to re-snapshot.
func (s *Subscriber) enqueue(env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for {
		select {
		case s.ch <- env:
			return
		default:
			s.evictLocked()
			env.Stale = true
		}
	}
}

func (s *Subscriber) evictLocked() {
	select {
	case <-s.ch:
	default:
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Stats summarizes the hub's registrations.
type Stats struct {
	TotalSubscribers int            `json:"total_subscribers"`
	ActiveSessions   int            `json:"active_sessions"`
	SessionCounts    map[string]int `json:"session_counts"`
}

// Hub is the session registry plus broadcast channel: it tracks subscribers
// per session and fans each published StateEvent out to all of them in
// produced order. A slow subscriber loses its oldest queued events, never the
// publisher's time.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[string]map[*Subscriber]struct{}
	queueSize int
}

// New creates a hub whose subscribers buffer up to queueSize pending events.
// A non-positive queueSize selects DefaultQueueSize.
func New(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		sessions:  make(map[string]map[*Subscriber]struct{}),
		queueSize: queueSize,
	}
}

// Subscribe registers a new subscriber for a session. The caller is expected
// to deliver an initial snapshot before consuming Events.
func (h *Hub) Subscribe(sessionID string, role Role) *Subscriber {
	sub := &Subscriber{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		ch:        make(chan Envelope, h.queueSize),
	}

	h.mu.Lock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*Subscriber]struct{})
	}
	h.sessions[sessionID][sub] = struct{}{}
	total := len(h.sessions[sessionID])
	h.mu.Unlock()

	log.Debug().
		Str("subscriber_id", sub.ID).
		Str("session_id", sessionID).
		Str("role", string(role)).
		Int("session_subscribers", total).
		Msg("subscriber registered")
	return sub
}

// Unsubscribe removes a subscriber and closes its stream. Idempotent:
// unsubscribing an unknown or already-removed subscriber is a no-op, which
// absorbs duplicate disconnect signals from the transport.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	subs, ok := h.sessions[sub.SessionID]
	if ok {
		if _, registered := subs[sub]; registered {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.sessions, sub.SessionID)
			}
		} else {
			ok = false
		}
	}
	h.mu.Unlock()

	sub.close()

	if ok {
		log.Debug().
			Str("subscriber_id", sub.ID).
			Str("session_id", sub.SessionID).
			Msg("subscriber unregistered")
	}
}

// Publish fans one event out to every subscriber of its session. The
// subscriber set is snapshotted under the read lock and released before any
// delivery, so subscribe/unsubscribe never contend with a broadcast in
// flight. Delivery per subscriber is non-blocking (see Subscriber.enqueue).
func (h *Hub) Publish(event timer.StateEvent) {
	h.mu.RLock()
	subs, ok := h.sessions[event.SessionID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Subscriber, 0, len(subs))
	for sub := range subs {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	env := Envelope{Event: &event}
	for _, sub := range targets {
		sub.enqueue(env)
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Str("session_id", event.SessionID).
		Uint64("seq", event.Seq).
		Int("subscribers", len(targets)).
		Msg("event broadcast")
}

// GetStats returns counts of active subscribers per session.
func (h *Hub) GetStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{SessionCounts: make(map[string]int)}
	for sessionID, subs := range h.sessions {
		stats.SessionCounts[sessionID] = len(subs)
		stats.TotalSubscribers += len(subs)
	}
	stats.ActiveSessions = len(h.sessions)
	return stats
}

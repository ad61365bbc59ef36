package timekeeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timekeeper/go/internal/hub"
	"github.com/mcdev12/timekeeper/go/internal/timer"
)

// ErrUnknownSession is returned when an operation references a session id
// that was never created.
var ErrUnknownSession = errors.New("unknown session")

// ErrSessionExists is returned by CreateSession for a duplicate id.
var ErrSessionExists = errors.New("session already exists")

// DefaultSessionID is the implicit session every client falls back to when it
// does not name one. A single conference room needs nothing else.
const DefaultSessionID = "main"

// Snapshot is the one-shot computed state handed to late joiners and to the
// polling fallback. LastSeq lets a client detect whether events it holds are
// older than this view.
type Snapshot struct {
	SessionID   string           `json:"session_id"`
	Phase       timer.Phase      `json:"phase"`
	Mode        timer.Mode       `json:"mode"`
	DurationMS  int64            `json:"duration_ms"`
	RemainingMS int64            `json:"remaining_ms"`
	ElapsedMS   int64            `json:"elapsed_ms"`
	Over        bool             `json:"over"`
	Bells       []timer.BellView `json:"bells"`
	LastSeq     uint64           `json:"last_seq"`
	ServerTime  time.Time        `json:"server_time"`
}

// session couples one engine with its sweep timer. The mutex serializes
// mutations and their publication so events reach the hub in sequence order;
// it is held only across the pure transition and the non-blocking enqueue,
// never across network I/O.
type session struct {
	mu     sync.Mutex
	engine *timer.Engine

	sweepMu   sync.Mutex
	sweep     clockwork.Timer
	sweepDone chan struct{}
}

// Service is the control surface: the only mutation entry point transport
// code may call. It owns the session map and republishes every accepted
// StateEvent through the hub.
type Service struct {
	clock clockwork.Clock
	hub   *hub.Hub

	mu       sync.RWMutex
	sessions map[string]*session
	ctx      context.Context
}

// NewService creates a service with one default session already present.
func NewService(clock clockwork.Clock, h *hub.Hub) *Service {
	s := &Service{
		clock:    clock,
		hub:      h,
		sessions: make(map[string]*session),
		ctx:      context.Background(),
	}
	s.sessions[DefaultSessionID] = &session{engine: timer.NewEngine(DefaultSessionID, clock)}
	return s
}

// Start binds the service's background sweep goroutines to ctx. Sweeps armed
// after cancellation fire nothing.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	log.Info().Msg("timekeeper service started")
}

func (s *Service) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// CreateSession registers an additional independent session (multi-room).
func (s *Service) CreateSession(id string) (Snapshot, error) {
	if id == "" {
		return Snapshot{}, ErrUnknownSession
	}

	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionExists
	}
	sess := &session{engine: timer.NewEngine(id, s.clock)}
	s.sessions[id] = sess
	s.mu.Unlock()

	log.Info().Str("session_id", id).Msg("session created")
	return s.snapshotOf(sess), nil
}

// ResolveSessionID maps an empty id to the default session.
func (s *Service) ResolveSessionID(id string) string {
	if id == "" {
		return DefaultSessionID
	}
	return id
}

func (s *Service) lookup(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[s.ResolveSessionID(id)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownSession
	}
	return sess, nil
}

// Configure sets duration and mode for an idle session.
func (s *Service) Configure(sessionID string, duration time.Duration, mode timer.Mode) (Snapshot, error) {
	return s.mutate(sessionID, func(e *timer.Engine) ([]timer.StateEvent, error) {
		return e.Configure(duration, mode)
	})
}

// StartTimer starts an idle session's clock.
func (s *Service) StartTimer(sessionID string) (Snapshot, error) {
	return s.mutate(sessionID, func(e *timer.Engine) ([]timer.StateEvent, error) {
		return e.Start()
	})
}

// Pause freezes a running session.
func (s *Service) Pause(sessionID string) (Snapshot, error) {
	return s.mutate(sessionID, func(e *timer.Engine) ([]timer.StateEvent, error) {
		return e.Pause()
	})
}

// Resume continues a paused session.
func (s *Service) Resume(sessionID string) (Snapshot, error) {
	return s.mutate(sessionID, func(e *timer.Engine) ([]timer.StateEvent, error) {
		return e.Resume()
	})
}

// Adjust grants or removes time on the fly without changing phase.
func (s *Service) Adjust(sessionID string, delta time.Duration) (Snapshot, error) {
	return s.mutate(sessionID, func(e *timer.Engine) ([]timer.StateEvent, error) {
		return e.Adjust(delta)
	})
}

// Reset returns a session to idle from any phase.
func (s *Service) Reset(sessionID string) (Snapshot, error) {
	return s.mutate(sessionID, func(e *timer.Engine) ([]timer.StateEvent, error) {
		return e.Reset()
	})
}

// SetBell reconfigures one slot of the session's bell schedule.
func (s *Service) SetBell(sessionID string, index int, at time.Duration, rings int, enabled bool) (Snapshot, error) {
	return s.mutate(sessionID, func(e *timer.Engine) ([]timer.StateEvent, error) {
		return e.SetBell(index, at, rings, enabled)
	})
}

// ManualBell rings the bell immediately without touching the schedule.
func (s *Service) ManualBell(sessionID string, rings int) (Snapshot, error) {
	return s.mutate(sessionID, func(e *timer.Engine) ([]timer.StateEvent, error) {
		return e.ManualBell(rings)
	})
}

// mutate runs one serialized operation against a session, publishes whatever
// events it produced (due bells and expiry latch too, even when the command
// itself was rejected), and re-arms the sweep timer.
func (s *Service) mutate(sessionID string, op func(*timer.Engine) ([]timer.StateEvent, error)) (Snapshot, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	sess.mu.Lock()
	events, opErr := op(sess.engine)
	result, due := sess.engine.Query()
	for _, ev := range append(events, due...) {
		s.hub.Publish(ev)
	}
	sess.mu.Unlock()

	s.rearmSweep(sess)

	if opErr != nil {
		return snapshotFromResult(result), opErr
	}
	return snapshotFromResult(result), nil
}

// GetSnapshot computes the current state for a session. Any due transition
// (bell, expiry) latched by the read is published before the snapshot is
// returned, so the snapshot never shows a state older than the event stream.
func (s *Service) GetSnapshot(sessionID string) (Snapshot, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshotOf(sess), nil
}

func (s *Service) snapshotOf(sess *session) Snapshot {
	sess.mu.Lock()
	result, events := sess.engine.Query()
	for _, ev := range events {
		s.hub.Publish(ev)
	}
	sess.mu.Unlock()

	if len(events) > 0 {
		s.rearmSweep(sess)
	}
	return snapshotFromResult(result)
}

// Subscribe registers a client with the hub and returns the initial snapshot
// it must receive before live events.
func (s *Service) Subscribe(sessionID string, role hub.Role) (*hub.Subscriber, Snapshot, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, Snapshot{}, err
	}

	sub := s.hub.Subscribe(s.ResolveSessionID(sessionID), role)
	return sub, s.snapshotOf(sess), nil
}

// Unsubscribe releases a subscriber. Safe to call more than once.
func (s *Service) Unsubscribe(sub *hub.Subscriber) {
	s.hub.Unsubscribe(sub)
}

// rearmSweep schedules a one-shot timer for the session's next self-produced
// transition (bell or expiry) so it fires promptly even with no client
// querying. The previous sweep's goroutine is released through its done
// channel when its timer is stopped, so replaced sweeps never accumulate.
func (s *Service) rearmSweep(sess *session) {
	deadline, ok := sess.engine.NextDeadline()

	sess.sweepMu.Lock()
	defer sess.sweepMu.Unlock()

	if sess.sweep != nil {
		stopAndDrainTimer(sess.sweep)
		close(sess.sweepDone)
		sess.sweep = nil
		sess.sweepDone = nil
	}
	if !ok {
		return
	}

	d := deadline.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	t := s.clock.NewTimer(d)
	done := make(chan struct{})
	sess.sweep = t
	sess.sweepDone = done

	ctx := s.context()
	go func() {
		select {
		case <-t.Chan():
			s.snapshotOf(sess)
		case <-done:
		case <-ctx.Done():
			stopAndDrainTimer(t)
		}
	}()
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired,
// per the time.Timer.Stop contract.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}

func snapshotFromResult(r timer.QueryResult) Snapshot {
	return Snapshot{
		SessionID:   r.SessionID,
		Phase:       r.Phase,
		Mode:        r.Mode,
		DurationMS:  r.DurationMS,
		RemainingMS: r.RemainingMS,
		ElapsedMS:   r.ElapsedMS,
		Over:        r.Phase == timer.PhaseExpired,
		Bells:       r.Bells,
		LastSeq:     r.Seq,
		ServerTime:  r.Now,
	}
}

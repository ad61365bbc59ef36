package timer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Phase is the discrete state of a timer session
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
	PhaseExpired Phase = "expired"
)

// Mode selects whether the session counts down from a configured duration or
// counts up from zero.
type Mode string

const (
	ModeCountDown Mode = "countdown"
	ModeCountUp   Mode = "countup"
)

// DefaultDuration is the talk length a fresh session is configured with.
const DefaultDuration = 3 * time.Minute

// QueryResult is a consistent read of the session at one instant. Remaining
// and elapsed are integer milliseconds derived from the clock; they are never
// stored as ticking values.
type QueryResult struct {
	SessionID   string
	Phase       Phase
	Mode        Mode
	DurationMS  int64
	RemainingMS int64
	ElapsedMS   int64
	Seq         uint64
	Bells       []BellView
	Now         time.Time
}

// Engine owns the authoritative state of one timer session. All mutating
// operations are serialized by its mutex; callers publish the returned
// StateEvents after the call returns so the lock is never held across
// network I/O.
//
// Elapsed time is always derived as accumulated + (now - startedAt) while
// running, so it cannot drift from the clock source. Adjustments shift
// accumulated rather than touching any deadline.
type Engine struct {
	mu    sync.Mutex
	clock clockwork.Clock

	sessionID   string
	mode        Mode
	duration    time.Duration
	phase       Phase
	startedAt   time.Time
	accumulated time.Duration
	seq         uint64

	bells       []Bell
	customBells bool
}

// NewEngine creates an idle session with the default count-down
// configuration and the conventional three-bell schedule.
func NewEngine(sessionID string, clock clockwork.Clock) *Engine {
	return &Engine{
		clock:     clock,
		sessionID: sessionID,
		mode:      ModeCountDown,
		duration:  DefaultDuration,
		phase:     PhaseIdle,
		bells:     DefaultBells(DefaultDuration),
	}
}

// SessionID returns the session identifier this engine was created with.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Configure sets the duration and mode. Valid only while idle; configuring a
// running or paused session is rejected with no side effect.
func (e *Engine) Configure(duration time.Duration, mode Mode) ([]StateEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseIdle {
		return nil, invalidTransition("configure", e.phase)
	}
	if mode == ModeCountDown && duration <= 0 {
		return nil, ErrInvalidDuration
	}

	before := e.phase
	e.mode = mode
	e.duration = duration
	e.accumulated = 0
	if e.customBells {
		e.clearBellLatchesLocked()
	} else {
		e.bells = DefaultBells(duration)
	}

	now := e.clock.Now()
	ev := e.appendEventLocked(EventConfigured, before, now)
	ev.Bells = bellViews(e.bells)
	return []StateEvent{ev}, nil
}

// Start begins the session. Valid only from idle; an expired session must be
// reset first.
func (e *Engine) Start() ([]StateEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	pre := e.advanceLocked(now)

	if e.phase != PhaseIdle {
		return pre, invalidTransition("start", e.phase)
	}

	before := e.phase
	e.phase = PhaseRunning
	e.startedAt = now
	return append(pre, e.appendEventLocked(EventStarted, before, now)), nil
}

// Pause freezes the session. Valid only while running.
func (e *Engine) Pause() ([]StateEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	pre := e.advanceLocked(now)

	if e.phase != PhaseRunning {
		return pre, invalidTransition("pause", e.phase)
	}

	before := e.phase
	e.accumulated += now.Sub(e.startedAt)
	e.startedAt = time.Time{}
	e.phase = PhasePaused
	return append(pre, e.appendEventLocked(EventPaused, before, now)), nil
}

// Resume continues a paused session from exactly where Pause left it.
func (e *Engine) Resume() ([]StateEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if e.phase != PhasePaused {
		pre := e.advanceLocked(now)
		return pre, invalidTransition("resume", e.phase)
	}

	before := e.phase
	e.phase = PhaseRunning
	e.startedAt = now
	return []StateEvent{e.appendEventLocked(EventResumed, before, now)}, nil
}

// Adjust shifts the effective remaining time (count-down) or elapsed time
// (count-up) by delta without changing phase. Valid in any non-expired phase.
func (e *Engine) Adjust(delta time.Duration) ([]StateEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	pre := e.advanceLocked(now)

	if e.phase == PhaseExpired {
		return pre, invalidTransition("adjust", e.phase)
	}

	if e.mode == ModeCountDown {
		// more remaining means less elapsed
		e.accumulated -= delta
	} else {
		e.accumulated += delta
	}

	ev := e.appendEventLocked(EventAdjusted, e.phase, now)
	ev.DeltaMS = delta.Milliseconds()
	return append(pre, ev), nil
}

// Reset returns the session to idle from any phase, clearing accrued time
// and bell latches. The configured duration and mode are kept.
func (e *Engine) Reset() ([]StateEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.phase
	e.phase = PhaseIdle
	e.startedAt = time.Time{}
	e.accumulated = 0
	e.clearBellLatchesLocked()

	now := e.clock.Now()
	ev := e.appendEventLocked(EventReset, before, now)
	ev.Bells = bellViews(e.bells)
	return []StateEvent{ev}, nil
}

// SetBell reconfigures one bell slot and clears its latch. Valid in any
// non-expired phase.
func (e *Engine) SetBell(index int, at time.Duration, rings int, enabled bool) ([]StateEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	pre := e.advanceLocked(now)

	if e.phase == PhaseExpired {
		return pre, invalidTransition("set_bell", e.phase)
	}
	if index < 0 || index >= len(e.bells) {
		return pre, ErrBellIndex
	}

	e.bells[index] = Bell{Enabled: enabled, At: at, Rings: rings}
	e.customBells = true

	ev := e.appendEventLocked(EventBellSet, e.phase, now)
	ev.Bells = bellViews(e.bells)
	return append(pre, ev), nil
}

// ManualBell emits a bell event with the given ring count without touching
// the schedule. Valid in any phase; the moderator can always ring.
func (e *Engine) ManualBell(rings int) ([]StateEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rings <= 0 {
		rings = 1
	}

	now := e.clock.Now()
	pre := e.advanceLocked(now)

	ev := e.appendEventLocked(EventBell, e.phase, now)
	ev.Rings = rings
	return append(pre, ev), nil
}

// Query is a consistent read of the session. As a side effect it performs the
// due-transition check: bells whose threshold has passed fire, and a running
// count-down whose time is up moves to expired, each emitted exactly once.
// The returned events must be published by the caller.
func (e *Engine) Query() (QueryResult, []StateEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	events := e.advanceLocked(now)
	return e.resultLocked(now), events
}

// NextDeadline reports the next instant at which the session will produce an
// event on its own (a bell threshold or count-down expiry). ok is false when
// the session is not running or nothing is due.
func (e *Engine) NextDeadline() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseRunning {
		return time.Time{}, false
	}

	var next time.Time
	consider := func(threshold time.Duration) {
		t := e.startedAt.Add(threshold - e.accumulated)
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	for _, b := range e.bells {
		if b.Enabled && !b.fired {
			consider(b.At)
		}
	}
	if e.mode == ModeCountDown && e.duration > 0 {
		consider(e.duration)
	}
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// advanceLocked latches any transitions due at now. Idempotent: a fired bell
// stays fired and an expired session stays expired, so repeated calls emit
// nothing new.
func (e *Engine) advanceLocked(now time.Time) []StateEvent {
	if e.phase != PhaseRunning {
		return nil
	}

	var events []StateEvent
	elapsed := e.rawElapsedLocked(now)

	for i := range e.bells {
		b := &e.bells[i]
		if b.Enabled && !b.fired && elapsed >= b.At {
			b.fired = true
			ev := e.appendEventLocked(EventBell, e.phase, now)
			ev.Rings = b.Rings
			events = append(events, ev)
		}
	}

	if e.mode == ModeCountDown && e.duration > 0 && elapsed >= e.duration {
		before := e.phase
		e.phase = PhaseExpired
		e.startedAt = time.Time{}
		e.accumulated = e.duration
		events = append(events, e.appendEventLocked(EventExpired, before, now))
	}

	return events
}

// rawElapsedLocked may be negative after a positive adjustment grants more
// time than has passed; remaining is computed from the raw value so the
// grant is not swallowed, while displayed elapsed clamps at zero.
func (e *Engine) rawElapsedLocked(now time.Time) time.Duration {
	elapsed := e.accumulated
	if e.phase == PhaseRunning {
		elapsed += now.Sub(e.startedAt)
	}
	return elapsed
}

func (e *Engine) remainingLocked(raw time.Duration) time.Duration {
	if e.mode != ModeCountDown {
		return 0
	}
	remaining := e.duration - raw
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func clampElapsed(raw time.Duration) time.Duration {
	if raw < 0 {
		return 0
	}
	return raw
}

func (e *Engine) resultLocked(now time.Time) QueryResult {
	raw := e.rawElapsedLocked(now)
	return QueryResult{
		SessionID:   e.sessionID,
		Phase:       e.phase,
		Mode:        e.mode,
		DurationMS:  e.duration.Milliseconds(),
		RemainingMS: e.remainingLocked(raw).Milliseconds(),
		ElapsedMS:   clampElapsed(raw).Milliseconds(),
		Seq:         e.seq,
		Bells:       bellViews(e.bells),
		Now:         now,
	}
}

// appendEventLocked allocates the next sequence number and stamps the event
// with the session state after the mutation it records.
func (e *Engine) appendEventLocked(t EventType, before Phase, now time.Time) StateEvent {
	e.seq++
	raw := e.rawElapsedLocked(now)
	return StateEvent{
		ID:          uuid.New().String(),
		SessionID:   e.sessionID,
		Seq:         e.seq,
		Type:        t,
		PhaseBefore: before,
		PhaseAfter:  e.phase,
		Mode:        e.mode,
		DurationMS:  e.duration.Milliseconds(),
		RemainingMS: e.remainingLocked(raw).Milliseconds(),
		ElapsedMS:   clampElapsed(raw).Milliseconds(),
		At:          now,
	}
}

func (e *Engine) clearBellLatchesLocked() {
	for i := range e.bells {
		e.bells[i].fired = false
	}
}

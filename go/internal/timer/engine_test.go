package timer

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestEngine(t *testing.T) (*Engine, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	return NewEngine("test", fc), fc
}

func mustEvents(t *testing.T) func([]StateEvent, error) []StateEvent {
	t.Helper()
	return func(events []StateEvent, err error) []StateEvent {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return events
	}
}

func TestCountdownScenario(t *testing.T) {
	e, fc := newTestEngine(t)

	mustEvents(t)(e.Configure(600000*time.Millisecond, ModeCountDown))
	mustEvents(t)(e.Start())

	fc.Advance(500000 * time.Millisecond)
	result, _ := e.Query()
	if result.Phase != PhaseRunning {
		t.Fatalf("phase = %s, want running", result.Phase)
	}
	if result.RemainingMS != 100000 {
		t.Fatalf("remaining = %d, want 100000", result.RemainingMS)
	}

	mustEvents(t)(e.Pause())
	fc.Advance(300000 * time.Millisecond)
	result, _ = e.Query()
	if result.Phase != PhasePaused {
		t.Fatalf("phase = %s, want paused", result.Phase)
	}
	if result.RemainingMS != 100000 {
		t.Fatalf("remaining while paused = %d, want 100000", result.RemainingMS)
	}

	mustEvents(t)(e.Resume())
	fc.Advance(50000 * time.Millisecond)
	result, _ = e.Query()
	if result.RemainingMS != 50000 {
		t.Fatalf("remaining after resume = %d, want 50000", result.RemainingMS)
	}
}

func TestRemainingMonotonicWhileRunning(t *testing.T) {
	e, fc := newTestEngine(t)
	mustEvents(t)(e.Configure(10*time.Minute, ModeCountDown))
	mustEvents(t)(e.Start())

	prev := int64(10 * 60 * 1000)
	for i := 0; i < 20; i++ {
		fc.Advance(7 * time.Second)
		result, _ := e.Query()
		if result.RemainingMS > prev {
			t.Fatalf("remaining increased: %d > %d", result.RemainingMS, prev)
		}
		prev = result.RemainingMS
	}
}

func TestZeroDurationPauseLosesNothing(t *testing.T) {
	e, fc := newTestEngine(t)
	mustEvents(t)(e.Configure(5*time.Minute, ModeCountDown))
	mustEvents(t)(e.Start())
	fc.Advance(90 * time.Second)

	before, _ := e.Query()
	mustEvents(t)(e.Pause())
	mustEvents(t)(e.Resume())
	after, _ := e.Query()

	if before.RemainingMS != after.RemainingMS {
		t.Fatalf("remaining changed across zero-duration pause: %d -> %d", before.RemainingMS, after.RemainingMS)
	}
}

func TestResetFromEveryPhase(t *testing.T) {
	duration := 2 * time.Minute

	setups := map[string]func(e *Engine, fc *clockwork.FakeClock){
		"idle": func(e *Engine, fc *clockwork.FakeClock) {},
		"running": func(e *Engine, fc *clockwork.FakeClock) {
			mustEvents(t)(e.Start())
			fc.Advance(30 * time.Second)
		},
		"paused": func(e *Engine, fc *clockwork.FakeClock) {
			mustEvents(t)(e.Start())
			fc.Advance(30 * time.Second)
			mustEvents(t)(e.Pause())
		},
		"expired": func(e *Engine, fc *clockwork.FakeClock) {
			mustEvents(t)(e.Start())
			fc.Advance(duration + time.Second)
			e.Query()
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			e, fc := newTestEngine(t)
			mustEvents(t)(e.Configure(duration, ModeCountDown))
			setup(e, fc)

			mustEvents(t)(e.Reset())
			result, _ := e.Query()
			if result.Phase != PhaseIdle {
				t.Fatalf("phase after reset = %s, want idle", result.Phase)
			}
			if result.RemainingMS != duration.Milliseconds() {
				t.Fatalf("remaining after reset = %d, want %d", result.RemainingMS, duration.Milliseconds())
			}
			if result.ElapsedMS != 0 {
				t.Fatalf("elapsed after reset = %d, want 0", result.ElapsedMS)
			}
		})
	}
}

func TestExpiresExactlyOnce(t *testing.T) {
	e, fc := newTestEngine(t)
	mustEvents(t)(e.Configure(time.Minute, ModeCountDown))
	mustEvents(t)(e.Start())

	fc.Advance(61 * time.Second)
	_, events := e.Query()

	expired := 0
	for _, ev := range events {
		if ev.Type == EventExpired {
			expired++
		}
	}
	if expired != 1 {
		t.Fatalf("expired events = %d, want 1", expired)
	}

	for i := 0; i < 3; i++ {
		fc.Advance(10 * time.Second)
		result, events := e.Query()
		if len(events) != 0 {
			t.Fatalf("query after expiry emitted %d events", len(events))
		}
		if result.Phase != PhaseExpired {
			t.Fatalf("phase = %s, want expired", result.Phase)
		}
		if result.RemainingMS != 0 {
			t.Fatalf("remaining after expiry = %d, want 0", result.RemainingMS)
		}
	}
}

func TestAdjustShiftsRemaining(t *testing.T) {
	e, fc := newTestEngine(t)
	mustEvents(t)(e.Configure(10*time.Minute, ModeCountDown))
	mustEvents(t)(e.Start())
	fc.Advance(time.Minute)

	mustEvents(t)(e.Adjust(2*time.Minute))
	result, _ := e.Query()
	if want := int64(11 * 60 * 1000); result.RemainingMS != want {
		t.Fatalf("remaining after +2m adjust = %d, want %d", result.RemainingMS, want)
	}
	if result.Phase != PhaseRunning {
		t.Fatalf("adjust changed phase to %s", result.Phase)
	}

	mustEvents(t)(e.Adjust(-20*time.Minute))
	result, events := e.Query()
	if result.Phase != PhaseExpired {
		t.Fatalf("phase after adjust past zero = %s, want expired", result.Phase)
	}
	found := false
	for _, ev := range events {
		if ev.Type == EventExpired {
			found = true
		}
	}
	if !found {
		t.Fatal("no expired event after adjust pushed remaining below zero")
	}
}

func TestAdjustRejectedWhenExpired(t *testing.T) {
	e, fc := newTestEngine(t)
	mustEvents(t)(e.Configure(time.Second, ModeCountDown))
	mustEvents(t)(e.Start())
	fc.Advance(2 * time.Second)
	e.Query()

	_, err := e.Adjust(time.Minute)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("adjust in expired = %v, want invalid transition", err)
	}
}

func TestCountUp(t *testing.T) {
	e, fc := newTestEngine(t)
	mustEvents(t)(e.Configure(0, ModeCountUp))
	mustEvents(t)(e.Start())

	fc.Advance(45 * time.Second)
	result, _ := e.Query()
	if result.ElapsedMS != 45000 {
		t.Fatalf("elapsed = %d, want 45000", result.ElapsedMS)
	}
	if result.Phase != PhaseRunning {
		t.Fatalf("count-up phase = %s, want running (never expires)", result.Phase)
	}

	mustEvents(t)(e.Adjust(15*time.Second))
	result, _ = e.Query()
	if result.ElapsedMS != 60000 {
		t.Fatalf("elapsed after adjust = %d, want 60000", result.ElapsedMS)
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *Engine, fc *clockwork.FakeClock)
		op    func(e *Engine) ([]StateEvent, error)
		phase Phase
	}{
		{
			name:  "start while running",
			setup: func(e *Engine, fc *clockwork.FakeClock) { mustEvents(t)(e.Start()) },
			op:    func(e *Engine) ([]StateEvent, error) { return e.Start() },
			phase: PhaseRunning,
		},
		{
			name:  "pause while idle",
			setup: func(e *Engine, fc *clockwork.FakeClock) {},
			op:    func(e *Engine) ([]StateEvent, error) { return e.Pause() },
			phase: PhaseIdle,
		},
		{
			name: "resume while running",
			setup: func(e *Engine, fc *clockwork.FakeClock) {
				mustEvents(t)(e.Start())
			},
			op:    func(e *Engine) ([]StateEvent, error) { return e.Resume() },
			phase: PhaseRunning,
		},
		{
			name: "configure while running",
			setup: func(e *Engine, fc *clockwork.FakeClock) {
				mustEvents(t)(e.Start())
			},
			op:    func(e *Engine) ([]StateEvent, error) { return e.Configure(time.Minute, ModeCountDown) },
			phase: PhaseRunning,
		},
		{
			name: "configure while paused",
			setup: func(e *Engine, fc *clockwork.FakeClock) {
				mustEvents(t)(e.Start())
				mustEvents(t)(e.Pause())
			},
			op:    func(e *Engine) ([]StateEvent, error) { return e.Configure(time.Minute, ModeCountDown) },
			phase: PhasePaused,
		},
		{
			name: "start while expired",
			setup: func(e *Engine, fc *clockwork.FakeClock) {
				mustEvents(t)(e.Start())
				fc.Advance(6 * time.Minute)
				e.Query()
			},
			op:    func(e *Engine) ([]StateEvent, error) { return e.Start() },
			phase: PhaseExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fc := newTestEngine(t)
			mustEvents(t)(e.Configure(5*time.Minute, ModeCountDown))
			tt.setup(e, fc)

			before, _ := e.Query()
			_, err := tt.op(e)

			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("error = %v, want InvalidTransitionError", err)
			}
			if invalid.Phase != tt.phase {
				t.Fatalf("reported phase = %s, want %s", invalid.Phase, tt.phase)
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatal("error does not match ErrInvalidTransition sentinel")
			}

			after, _ := e.Query()
			if after.Phase != before.Phase || after.Seq != before.Seq {
				t.Fatalf("rejected call had side effects: %+v -> %+v", before, after)
			}
		})
	}
}

func TestConfigureRejectsBadDuration(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.Configure(0, ModeCountDown); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("configure(0, countdown) = %v, want ErrInvalidDuration", err)
	}
}

func TestSequenceStrictlyIncreasing(t *testing.T) {
	e, fc := newTestEngine(t)

	var all []StateEvent
	collect := func(events []StateEvent, err error) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		all = append(all, events...)
	}

	collect(e.Configure(time.Minute, ModeCountDown))
	collect(e.Start())
	fc.Advance(10 * time.Second)
	collect(e.Pause())
	collect(e.Resume())
	collect(e.Adjust(5 * time.Second))
	fc.Advance(70 * time.Second)
	_, events := e.Query()
	all = append(all, events...)
	collect(e.Reset())

	if len(all) == 0 {
		t.Fatal("no events collected")
	}
	var prev uint64
	for _, ev := range all {
		if ev.Seq != prev+1 {
			t.Fatalf("seq %d followed %d, want strictly increasing by one", ev.Seq, prev)
		}
		prev = ev.Seq
	}
}

func TestNextDeadline(t *testing.T) {
	e, fc := newTestEngine(t)
	mustEvents(t)(e.Configure(3*time.Minute, ModeCountDown))

	if _, ok := e.NextDeadline(); ok {
		t.Fatal("idle session should have no deadline")
	}

	mustEvents(t)(e.Start())
	deadline, ok := e.NextDeadline()
	if !ok {
		t.Fatal("running session should have a deadline")
	}
	// first default bell is at one third of the talk
	if want := fc.Now().Add(time.Minute); !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}
}

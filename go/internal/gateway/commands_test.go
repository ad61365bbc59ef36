package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/timekeeper/go/internal/hub"
	"github.com/mcdev12/timekeeper/go/internal/timekeeper"
	"github.com/mcdev12/timekeeper/go/internal/timer"
)

// fakeControl records the last call made through the control surface.
type fakeControl struct {
	lastMethod  string
	lastSession string
	duration    time.Duration
	mode        timer.Mode
	delta       time.Duration
	index       int
	at          time.Duration
	rings       int
	enabled     bool

	snapshot timekeeper.Snapshot
	err      error
}

func (f *fakeControl) record(method, session string) (timekeeper.Snapshot, error) {
	f.lastMethod = method
	f.lastSession = session
	return f.snapshot, f.err
}

func (f *fakeControl) Configure(sessionID string, duration time.Duration, mode timer.Mode) (timekeeper.Snapshot, error) {
	f.duration, f.mode = duration, mode
	return f.record("configure", sessionID)
}

func (f *fakeControl) StartTimer(sessionID string) (timekeeper.Snapshot, error) {
	return f.record("start", sessionID)
}

func (f *fakeControl) Pause(sessionID string) (timekeeper.Snapshot, error) {
	return f.record("pause", sessionID)
}

func (f *fakeControl) Resume(sessionID string) (timekeeper.Snapshot, error) {
	return f.record("resume", sessionID)
}

func (f *fakeControl) Adjust(sessionID string, delta time.Duration) (timekeeper.Snapshot, error) {
	f.delta = delta
	return f.record("adjust", sessionID)
}

func (f *fakeControl) Reset(sessionID string) (timekeeper.Snapshot, error) {
	return f.record("reset", sessionID)
}

func (f *fakeControl) SetBell(sessionID string, index int, at time.Duration, rings int, enabled bool) (timekeeper.Snapshot, error) {
	f.index, f.at, f.rings, f.enabled = index, at, rings, enabled
	return f.record("set_bell", sessionID)
}

func (f *fakeControl) ManualBell(sessionID string, rings int) (timekeeper.Snapshot, error) {
	f.rings = rings
	return f.record("manual_bell", sessionID)
}

func (f *fakeControl) GetSnapshot(sessionID string) (timekeeper.Snapshot, error) {
	return f.record("snapshot", sessionID)
}

func (f *fakeControl) Subscribe(sessionID string, role hub.Role) (*hub.Subscriber, timekeeper.Snapshot, error) {
	snap, err := f.record("subscribe", sessionID)
	return nil, snap, err
}

func (f *fakeControl) Unsubscribe(sub *hub.Subscriber) {}

func boolPtr(b bool) *bool { return &b }

func TestDispatchRouting(t *testing.T) {
	tests := []struct {
		name   string
		cmd    Command
		method string
		check  func(t *testing.T, f *fakeControl)
	}{
		{
			name:   "configure countdown",
			cmd:    Command{Action: "configure", Session: "main", DurationMS: 600000},
			method: "configure",
			check: func(t *testing.T, f *fakeControl) {
				if f.duration != 10*time.Minute || f.mode != timer.ModeCountDown {
					t.Fatalf("configure args: %v %s", f.duration, f.mode)
				}
			},
		},
		{
			name:   "configure countup",
			cmd:    Command{Action: "configure", Mode: "countup"},
			method: "configure",
			check: func(t *testing.T, f *fakeControl) {
				if f.mode != timer.ModeCountUp {
					t.Fatalf("mode = %s, want countup", f.mode)
				}
			},
		},
		{name: "start", cmd: Command{Action: "start"}, method: "start"},
		{name: "pause", cmd: Command{Action: "pause"}, method: "pause"},
		{name: "resume", cmd: Command{Action: "resume"}, method: "resume"},
		{name: "reset", cmd: Command{Action: "reset"}, method: "reset"},
		{
			name:   "adjust negative",
			cmd:    Command{Action: "adjust", DeltaMS: -30000},
			method: "adjust",
			check: func(t *testing.T, f *fakeControl) {
				if f.delta != -30*time.Second {
					t.Fatalf("delta = %v", f.delta)
				}
			},
		},
		{
			name:   "set_bell defaults enabled",
			cmd:    Command{Action: "set_bell", Index: 1, AtMS: 120000, Rings: 2},
			method: "set_bell",
			check: func(t *testing.T, f *fakeControl) {
				if f.index != 1 || f.at != 2*time.Minute || f.rings != 2 || !f.enabled {
					t.Fatalf("set_bell args: %d %v %d %v", f.index, f.at, f.rings, f.enabled)
				}
			},
		},
		{
			name:   "set_bell explicit disable",
			cmd:    Command{Action: "set_bell", Enabled: boolPtr(false)},
			method: "set_bell",
			check: func(t *testing.T, f *fakeControl) {
				if f.enabled {
					t.Fatal("enabled = true, want false")
				}
			},
		},
		{
			name:   "manual_bell",
			cmd:    Command{Action: "manual_bell", Rings: 3},
			method: "manual_bell",
			check: func(t *testing.T, f *fakeControl) {
				if f.rings != 3 {
					t.Fatalf("rings = %d", f.rings)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeControl{}
			if _, err := Dispatch(f, tt.cmd); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if f.lastMethod != tt.method {
				t.Fatalf("dispatched to %q, want %q", f.lastMethod, tt.method)
			}
			if f.lastSession != tt.cmd.Session {
				t.Fatalf("session = %q, want %q", f.lastSession, tt.cmd.Session)
			}
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	f := &fakeControl{}
	if _, err := Dispatch(f, Command{Action: "explode"}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
	if f.lastMethod != "" {
		t.Fatalf("unknown action reached control surface: %s", f.lastMethod)
	}
}

func TestDispatchBadMode(t *testing.T) {
	f := &fakeControl{}
	if _, err := Dispatch(f, Command{Action: "configure", Mode: "sideways"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestDispatchPropagatesControlErrors(t *testing.T) {
	f := &fakeControl{err: &timer.InvalidTransitionError{Op: "pause", Phase: timer.PhaseIdle}}
	_, err := Dispatch(f, Command{Action: "pause"})
	if !errors.Is(err, timer.ErrInvalidTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
}

package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/timekeeper/go/internal/hub"
	"github.com/mcdev12/timekeeper/go/internal/timekeeper"
	"github.com/mcdev12/timekeeper/go/internal/timer"
)

// ControlSurface is what the transport needs from the timekeeper service.
// It is the only mutation path; the gateway never touches engine state.
type ControlSurface interface {
	Configure(sessionID string, duration time.Duration, mode timer.Mode) (timekeeper.Snapshot, error)
	StartTimer(sessionID string) (timekeeper.Snapshot, error)
	Pause(sessionID string) (timekeeper.Snapshot, error)
	Resume(sessionID string) (timekeeper.Snapshot, error)
	Adjust(sessionID string, delta time.Duration) (timekeeper.Snapshot, error)
	Reset(sessionID string) (timekeeper.Snapshot, error)
	SetBell(sessionID string, index int, at time.Duration, rings int, enabled bool) (timekeeper.Snapshot, error)
	ManualBell(sessionID string, rings int) (timekeeper.Snapshot, error)
	GetSnapshot(sessionID string) (timekeeper.Snapshot, error)
	Subscribe(sessionID string, role hub.Role) (*hub.Subscriber, timekeeper.Snapshot, error)
	Unsubscribe(sub *hub.Subscriber)
}

// ErrUnknownAction is returned for a command whose action is not recognized.
var ErrUnknownAction = errors.New("unknown action")

// Command is the JSON body a controller sends, over the websocket or via
// POST /api/cmd. Session may be empty to address the default session.
type Command struct {
	Action     string `json:"action"`
	Session    string `json:"session,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Mode       string `json:"mode,omitempty"`
	DeltaMS    int64  `json:"delta_ms,omitempty"`
	Index      int    `json:"index,omitempty"`
	AtMS       int64  `json:"at_ms,omitempty"`
	Rings      int    `json:"rings,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
}

const (
	ActionConfigure  = "configure"
	ActionStart      = "start"
	ActionPause      = "pause"
	ActionResume     = "resume"
	ActionAdjust     = "adjust"
	ActionReset      = "reset"
	ActionSetBell    = "set_bell"
	ActionManualBell = "manual_bell"
)

// Dispatch routes one command to the control surface and returns the
// resulting snapshot. Command errors belong to the issuing controller only
// and are never broadcast.
func Dispatch(control ControlSurface, cmd Command) (timekeeper.Snapshot, error) {
	switch cmd.Action {
	case ActionConfigure:
		mode := timer.ModeCountDown
		switch cmd.Mode {
		case "", string(timer.ModeCountDown):
		case string(timer.ModeCountUp):
			mode = timer.ModeCountUp
		default:
			return timekeeper.Snapshot{}, fmt.Errorf("unknown mode %q", cmd.Mode)
		}
		return control.Configure(cmd.Session, time.Duration(cmd.DurationMS)*time.Millisecond, mode)

	case ActionStart:
		return control.StartTimer(cmd.Session)

	case ActionPause:
		return control.Pause(cmd.Session)

	case ActionResume:
		return control.Resume(cmd.Session)

	case ActionAdjust:
		return control.Adjust(cmd.Session, time.Duration(cmd.DeltaMS)*time.Millisecond)

	case ActionReset:
		return control.Reset(cmd.Session)

	case ActionSetBell:
		enabled := true
		if cmd.Enabled != nil {
			enabled = *cmd.Enabled
		}
		return control.SetBell(cmd.Session, cmd.Index, time.Duration(cmd.AtMS)*time.Millisecond, cmd.Rings, enabled)

	case ActionManualBell:
		return control.ManualBell(cmd.Session, cmd.Rings)

	default:
		return timekeeper.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

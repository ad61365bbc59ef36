package timer

import "time"

// Bell is one slot in a session's bell schedule. At is an elapsed-time
// threshold; once the session's elapsed time reaches it while running, the
// bell fires exactly once until its latch is cleared by Reset, Configure or
// SetBell.
type Bell struct {
	Enabled bool
	At      time.Duration
	Rings   int
	fired   bool
}

// BellView is the wire representation of a bell slot.
type BellView struct {
	Enabled bool  `json:"enabled"`
	AtMS    int64 `json:"at_ms"`
	Rings   int   `json:"rings"`
	Fired   bool  `json:"fired"`
}

// DefaultBells returns the conventional three-bell schedule for a talk of the
// given length: one ring at a third, two at two thirds, three at time. A
// non-positive duration (count-up with no limit) gets no schedule.
func DefaultBells(d time.Duration) []Bell {
	if d <= 0 {
		return nil
	}
	third := (d / 3).Truncate(time.Second)
	if third <= 0 {
		third = time.Second
	}
	return []Bell{
		{Enabled: true, At: third, Rings: 1},
		{Enabled: true, At: 2 * third, Rings: 2},
		{Enabled: true, At: d, Rings: 3},
	}
}

func bellViews(bells []Bell) []BellView {
	if len(bells) == 0 {
		return nil
	}
	views := make([]BellView, len(bells))
	for i, b := range bells {
		views[i] = BellView{
			Enabled: b.Enabled,
			AtMS:    b.At.Milliseconds(),
			Rings:   b.Rings,
			Fired:   b.fired,
		}
	}
	return views
}

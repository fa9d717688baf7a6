package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// searchDebounce holds back query changes until typing pauses. Every edit
// bumps seq and schedules a tick; a tick is stale once seq has moved on.
type searchDebounce struct {
	delay   time.Duration
	seq     int
	pending string
	applied string
}

func newSearchDebounce(delay time.Duration) searchDebounce {
	return searchDebounce{delay: delay}
}

// changed records a new input value and returns the tick to wait for, or nil
// when the value is unchanged.
func (d *searchDebounce) changed(value string) tea.Cmd {
	if value == d.pending {
		return nil
	}
	d.seq++
	d.pending = value
	seq := d.seq
	if d.delay <= 0 {
		return func() tea.Msg { return searchTickMsg{seq: seq, query: value} }
	}
	return tea.Tick(d.delay, func(time.Time) tea.Msg {
		return searchTickMsg{seq: seq, query: value}
	})
}

// fire reports whether msg is the latest tick and should be applied.
func (d *searchDebounce) fire(msg searchTickMsg) bool {
	if msg.seq != d.seq || msg.query == d.applied {
		return false
	}
	d.applied = msg.query
	return true
}

// flush applies the pending value now and invalidates outstanding ticks.
func (d *searchDebounce) flush() (string, bool) {
	d.seq++
	if d.pending == d.applied {
		return d.applied, false
	}
	d.applied = d.pending
	return d.applied, true
}

// reset clears the query and invalidates outstanding ticks.
func (d *searchDebounce) reset() bool {
	d.seq++
	d.pending = ""
	had := d.applied != ""
	d.applied = ""
	return had
}

func (d *searchDebounce) active() string {
	return d.applied
}

// Package progress carries incremental progress updates from long-running
// sharing operations to a UI sink. The UI is purely a sink, never a source.
package progress

import "sync"

// Reporter consumes progress updates.
type Reporter interface {
	Progress(goal, completed int, message string)
}

type discard struct{}

func (discard) Progress(goal, completed int, message string) {}

// Discard drops all updates.
var Discard Reporter = discard{}

// Tracker owns the progress state for one operation. Goal and completed
// counts only ever grow; every mutation is forwarded to the Reporter.
type Tracker struct {
	mu        sync.Mutex
	goal      int
	completed int
	message   string
	out       Reporter
}

// NewTracker builds a tracker emitting to out; nil means Discard.
func NewTracker(out Reporter) *Tracker {
	if out == nil {
		out = Discard
	}
	return &Tracker{out: out}
}

// AddGoal grows the goal count by n. Non-positive n is ignored.
func (t *Tracker) AddGoal(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	t.goal += n
	goal, completed, message := t.goal, t.completed, t.message
	t.mu.Unlock()
	t.out.Progress(goal, completed, message)
}

// Step marks one unit of work done and emits the update.
func (t *Tracker) Step(message string) {
	t.mu.Lock()
	t.completed++
	t.message = message
	goal, completed := t.goal, t.completed
	t.mu.Unlock()
	t.out.Progress(goal, completed, message)
}

// Announce updates the current message without completing a step.
func (t *Tracker) Announce(message string) {
	t.mu.Lock()
	t.message = message
	goal, completed := t.goal, t.completed
	t.mu.Unlock()
	t.out.Progress(goal, completed, message)
}

// State returns the current snapshot.
func (t *Tracker) State() (goal, completed int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.goal, t.completed, t.message
}

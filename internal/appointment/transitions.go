package appointment

import (
	"slices"
	"sync"
)

// Transitions is the appointment state machine. A status with no outgoing
// transitions is terminal.
type Transitions struct {
	mu      sync.RWMutex
	next    map[Status][]Status
	initial []Status
}

// DefaultTransitions covers the seeded statuses.
func DefaultTransitions() *Transitions {
	t := &Transitions{
		next:    make(map[Status][]Status),
		initial: []Status{StatusScheduled, StatusConfirmed},
	}
	t.Allow(StatusScheduled, StatusConfirmed, StatusCancelled, StatusNoShow, StatusRescheduled)
	t.Allow(StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled)
	t.Allow(StatusRescheduled, StatusScheduled, StatusConfirmed, StatusCancelled)
	return t
}

// Allow registers transitions out of from. Statuses added to the lookup
// table later stay terminal until registered here.
func (t *Transitions) Allow(from Status, to ...Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range to {
		if !slices.Contains(t.next[from], s) {
			t.next[from] = append(t.next[from], s)
		}
	}
}

func (t *Transitions) Allowed(from, to Status) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Contains(t.next[from], to)
}

func (t *Transitions) Next(from Status) []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.next[from])
}

func (t *Transitions) Terminal(s Status) bool {
	return len(t.Next(s)) == 0
}

// CanBook reports whether a new appointment may start in s.
func (t *Transitions) CanBook(s Status) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Contains(t.initial, s)
}

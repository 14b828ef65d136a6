package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTransitions(t *testing.T) {
	tr := DefaultTransitions()

	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusRescheduled, StatusScheduled, true},
		{StatusRescheduled, StatusNoShow, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusNoShow, StatusConfirmed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Allowed(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		assert.True(t, tr.Terminal(s), s)
	}
	assert.False(t, tr.Terminal(StatusScheduled))
}

func TestAllowRegistersNewStatus(t *testing.T) {
	tr := DefaultTransitions()
	waitlisted := Status("Waitlisted")

	assert.True(t, tr.Terminal(waitlisted))
	tr.Allow(waitlisted, StatusScheduled, StatusCancelled)
	tr.Allow(waitlisted, StatusScheduled)

	assert.Equal(t, []Status{StatusScheduled, StatusCancelled}, tr.Next(waitlisted))
	assert.False(t, tr.CanBook(waitlisted))
	assert.True(t, tr.CanBook(StatusConfirmed))
}

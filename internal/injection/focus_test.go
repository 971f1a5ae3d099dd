package injection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingChecker struct {
	calls  int
	status FocusStatus
}

func (c *countingChecker) FocusStatus(context.Context) (FocusStatus, error) {
	c.calls++
	return c.status, nil
}

func TestFocusTracker_CachesWithinTTL(t *testing.T) {
	checker := &countingChecker{status: EditableText}
	tracker := NewFocusTracker(checker, 50*time.Millisecond)

	s1 := tracker.Status(context.Background())
	s2 := tracker.Status(context.Background())

	assert.Equal(t, EditableText, s1)
	assert.Equal(t, EditableText, s2)
	assert.Equal(t, 1, checker.calls)
}

func TestFocusTracker_RefreshesAfterTTL(t *testing.T) {
	checker := &countingChecker{status: NonEditable}
	tracker := NewFocusTracker(checker, 10*time.Millisecond)

	tracker.Status(context.Background())
	time.Sleep(20 * time.Millisecond)
	tracker.Status(context.Background())

	assert.Equal(t, 2, checker.calls)
}

func TestFocusTracker_InvalidateForcesRecheck(t *testing.T) {
	checker := &countingChecker{status: EditableText}
	tracker := NewFocusTracker(checker, time.Hour)

	tracker.Status(context.Background())
	tracker.Invalidate()
	tracker.Status(context.Background())

	assert.Equal(t, 2, checker.calls)
}

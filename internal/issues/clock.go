package issues

import (
	"sync"
	"time"

	"github.com/joescharf/issuetracker/internal/models"
)

// clock hands out millisecond timestamps that never repeat or go backwards,
// so updated_on advances even when two writes land in the same millisecond.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newClock(now func() time.Time) *clock {
	return &clock{now: now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := models.Timestamp(c.now())
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}

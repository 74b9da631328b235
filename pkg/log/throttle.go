package log

import (
	"time"

	"github.com/cyclopcam/logs"
)

// ThrottledError emits at most one error message per Interval.
// Per-frame failures would otherwise flood the log at the camera frame rate.
type ThrottledError struct {
	Interval   time.Duration
	lastErrAt  time.Time
	suppressed int
}

// Errorf logs the message if Interval has elapsed since the last one, and returns true if it was logged.
func (t *ThrottledError) Errorf(log logs.Log, format string, a ...interface{}) bool {
	interval := t.Interval
	if interval == 0 {
		interval = 15 * time.Second
	}
	now := time.Now()
	if now.Sub(t.lastErrAt) < interval {
		t.suppressed++
		return false
	}
	if t.suppressed != 0 {
		log.Errorf("(%v similar errors suppressed)", t.suppressed)
		t.suppressed = 0
	}
	log.Errorf(format, a...)
	t.lastErrAt = now
	return true
}

// Package perfstats measures how long the stages of the frame pipeline take
package perfstats

import (
	"sync/atomic"
	"time"
)

// MovingAverage is an exponential moving average with a window of roughly 64 samples.
// It is safe to update from one goroutine while others read it.
type MovingAverage struct {
	v atomic.Uint64
}

// Update adds a sample.
// We don't bother about strict correctness here, with CompareAndSwap,
// because this is just sampled stats, and it's OK to miss one or two samples.
func (m *MovingAverage) Update(value int64) {
	if value < 0 {
		value = 0
	}
	vu := uint64(value)
	if m.v.Load() == 0 {
		m.v.Store(vu)
	} else {
		m.v.Store((m.v.Load()*63 + vu) >> 6)
	}
}

// UpdateDuration adds the time elapsed since start, in nanoseconds
func (m *MovingAverage) UpdateDuration(start time.Time) {
	m.Update(time.Since(start).Nanoseconds())
}

func (m *MovingAverage) Value() int64 {
	return int64(m.v.Load())
}

// Rate treats the average as nanoseconds per event, and returns events per second.
// Returns zero if there are no samples yet.
func (m *MovingAverage) Rate() float64 {
	ns := m.v.Load()
	if ns == 0 {
		return 0
	}
	return float64(time.Second) / float64(ns)
}

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
}

func (a *TimeAccumulator) Reset() {
	a.Samples = 0
	a.Total = 0
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

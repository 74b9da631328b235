package pipeline

import (
	"time"

	"github.com/bmharper/ringbuffer"
)

// Number of iterations over which the smoothed FPS is computed
const fpsHistorySize = 32

// Pacer measures the time between the starts of consecutive iterations
type Pacer struct {
	last    time.Time
	history ringbuffer.RingP[float64]
}

func NewPacer() *Pacer {
	return &Pacer{
		history: ringbuffer.NewRingP[float64](fpsHistorySize),
	}
}

// Tick records the start of an iteration.
// hasLatency is false on the very first call, because there is nothing to measure against.
// hasFPS is false if latencyMs is zero (or the clock went backwards), in which case fps is 0.
func (p *Pacer) Tick(now time.Time) (latencyMs, fps float64, hasLatency, hasFPS bool) {
	if p.last.IsZero() {
		p.last = now
		return 0, 0, false, false
	}
	latencyMs = float64(now.Sub(p.last)) / float64(time.Millisecond)
	p.last = now
	if latencyMs <= 0 {
		return latencyMs, 0, true, false
	}
	fps = 1000 / latencyMs
	p.history.Add(fps)
	return latencyMs, fps, true, true
}

// SmoothedFPS is the mean FPS over recent iterations
func (p *Pacer) SmoothedFPS() float64 {
	n := p.history.Len()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += p.history.Peek(i)
	}
	return sum / float64(n)
}

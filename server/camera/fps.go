package camera

import (
	"math"
	"slices"
	"time"
)

// Given a set of consecutive frame intervals, estimate the frames per second.
// We use the median, so that a single stall (eg a USB hiccup) doesn't skew the number.
// Returns 0 if there is nothing to measure.
func EstimateFPS(frameIntervals []time.Duration) float64 {
	if len(frameIntervals) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(frameIntervals))
	copy(sorted, frameIntervals)
	slices.Sort(sorted)
	mid := sorted[len(sorted)/2]
	if mid <= 0 {
		return 0
	}
	fps := float64(time.Second) / float64(mid)
	// One decimal is plenty for a dashboard
	return math.Round(fps*10) / 10
}

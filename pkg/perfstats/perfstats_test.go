package perfstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMovingAverage(t *testing.T) {
	m := MovingAverage{}
	require.Equal(t, 0.0, m.Rate())

	m.Update(int64(10 * time.Millisecond))
	require.Equal(t, int64(10*time.Millisecond), m.Value())
	require.InDelta(t, 100.0, m.Rate(), 1e-9)

	for i := 0; i < 1000; i++ {
		m.Update(int64(20 * time.Millisecond))
	}
	require.InDelta(t, 50.0, m.Rate(), 0.5)
}

func TestTimeAccumulator(t *testing.T) {
	a := TimeAccumulator{}
	require.Equal(t, time.Duration(0), a.Average())
	a.AddSample(time.Millisecond)
	a.AddSample(3 * time.Millisecond)
	require.Equal(t, 2*time.Millisecond, a.Average())
	a.Reset()
	require.Equal(t, int64(0), a.Samples)
}

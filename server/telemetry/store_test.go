package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableDefaults(t *testing.T) {
	s := NewStore()
	tb := s.Table("SmartDashboard")
	require.Equal(t, "Both", tb.GetString(KeyClassFilter, "Both"))
	require.Equal(t, 5.0, tb.GetNumber(KeyRecordInterval, 5))
	require.False(t, tb.GetBoolean(KeyEnabled, false))
	require.Equal(t, []string{"x"}, tb.GetStringArray(KeyStreams, []string{"x"}))
}

func TestTablePutGet(t *testing.T) {
	s := NewStore()
	tb := s.Table("SmartDashboard")
	require.NoError(t, tb.PutString(KeyStatus, StatusSleeping))
	require.NoError(t, tb.PutNumber(KeyLatency, 16.5))
	require.NoError(t, tb.PutBoolean(KeyEnabled, true))
	arr := []string{"mjpg:http://10.0.0.2:1181/?action=stream"}
	require.NoError(t, tb.PutStringArray(KeyStreams, arr))
	arr[0] = "mutated"

	require.Equal(t, StatusSleeping, tb.GetString(KeyStatus, ""))
	require.Equal(t, 16.5, tb.GetNumber(KeyLatency, 0))
	require.True(t, tb.GetBoolean(KeyEnabled, false))
	require.Equal(t, []string{"mjpg:http://10.0.0.2:1181/?action=stream"}, tb.GetStringArray(KeyStreams, nil))

	// Reading with the wrong type yields the default
	require.Equal(t, "def", tb.GetString(KeyLatency, "def"))

	// Writing with the wrong type fails
	err := tb.PutString(KeyLatency, "fast")
	require.True(t, errors.Is(err, ErrWrongType))
	require.Equal(t, 16.5, tb.GetNumber(KeyLatency, 0))

	require.Error(t, tb.PutString("", "x"))
}

func TestSubTables(t *testing.T) {
	s := NewStore()
	pub := s.Table(CameraPublisherTable).SubTable("Jetson")
	require.Equal(t, "CameraPublisher/Jetson", pub.Name())
	require.NoError(t, pub.PutStringArray(KeyStreams, []string{"a"}))
	require.NoError(t, s.Table("SmartDashboard").PutBoolean(KeyEnabled, true))
	require.Equal(t, []string{"CameraPublisher/Jetson", "SmartDashboard"}, s.TableNames())
	require.Len(t, s.Snapshot("CameraPublisher/Jetson"), 1)
	require.Len(t, s.Snapshot("nope"), 0)
}

func TestSetReplacesType(t *testing.T) {
	s := NewStore()
	tb := s.Table("SmartDashboard")
	require.NoError(t, tb.PutNumber(KeyRecordInterval, 5))
	require.NoError(t, s.Set("SmartDashboard", KeyRecordInterval, Value{Type: TypeString, String: "5"}))
	require.Equal(t, "5", tb.GetString(KeyRecordInterval, ""))
}

// Readers never see the key missing while Set changes its type
func TestSetIsAtomic(t *testing.T) {
	s := NewStore()
	tb := s.Table("SmartDashboard")
	require.NoError(t, tb.PutNumber(KeyRecordInterval, 5))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if i%2 == 0 {
				s.Set("SmartDashboard", KeyRecordInterval, Value{Type: TypeString, String: "5"})
			} else {
				s.Set("SmartDashboard", KeyRecordInterval, Value{Type: TypeNumber, Number: 5})
			}
		}
	}()
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
		}
		_, ok := s.Snapshot("SmartDashboard")[KeyRecordInterval]
		require.True(t, ok)
	}
	require.Equal(t, 5.0, tb.GetNumber(KeyRecordInterval, 0))
}

func TestSubscribe(t *testing.T) {
	s := NewStore()
	all := s.Subscribe("", 10)
	dash := s.Subscribe("SmartDashboard", 10)
	tiny := s.Subscribe("", 1)

	require.NoError(t, s.Table("SmartDashboard").PutBoolean(KeyEnabled, true))
	require.NoError(t, s.Table("Other").PutNumber("x", 1))

	require.Len(t, all, 2)
	require.Len(t, dash, 1)
	// A full subscriber drops changes instead of blocking the writer
	require.Len(t, tiny, 1)

	c := <-dash
	require.Equal(t, "SmartDashboard", c.Table)
	require.Equal(t, KeyEnabled, c.Key)
	require.True(t, c.Value.Boolean)

	s.Unsubscribe(dash)
	s.Unsubscribe(dash)
	_, ok := <-dash
	require.False(t, ok)
}

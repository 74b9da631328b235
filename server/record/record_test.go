package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/frcvision/server/config"
	"github.com/cyclopcam/frcvision/server/metrics"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestScheduleInterval(t *testing.T) {
	s := NewSchedule()
	require.False(t, s.InSession())
	written := []int{}
	for i := 0; i < 17; i++ {
		if s.Next(true, 5) {
			written = append(written, i)
		}
	}
	require.Equal(t, []int{0, 5, 10, 15}, written)
	require.Equal(t, 16, s.Frame())
}

func TestScheduleToggleResets(t *testing.T) {
	s := NewSchedule()
	require.True(t, s.Next(true, 5))
	require.False(t, s.Next(true, 5))
	require.False(t, s.Next(true, 5))
	require.False(t, s.Next(false, 5))
	require.False(t, s.InSession())
	require.Equal(t, -1, s.Frame())
	// First frame of the new session is written immediately
	require.True(t, s.Next(true, 5))
	require.False(t, s.Next(true, 5))
}

func TestScheduleClampsInterval(t *testing.T) {
	for _, interval := range []int{0, -3, 1} {
		s := NewSchedule()
		for i := 0; i < 5; i++ {
			require.True(t, s.Next(true, interval))
		}
	}
}

type fakeSink struct {
	path   string
	frames int
	closed bool
	width  int
	height int
}

func (f *fakeSink) Write(img gocv.Mat) error {
	if img.Cols() != f.width || img.Rows() != f.height {
		return errors.New("wrong size")
	}
	f.frames++
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

type fakeFactory struct {
	sinks []*fakeSink
}

func (f *fakeFactory) open(path string, width, height int, fps float64) (Sink, error) {
	s := &fakeSink{path: path, width: width, height: height}
	f.sinks = append(f.sinks, s)
	return s, nil
}

func testRecordConfig(t *testing.T) config.Record {
	cfg := config.Default().Record
	cfg.Dir = t.TempDir()
	return cfg
}

func testFrame(t *testing.T, format camera.PixelFormat) *camera.Frame {
	m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return &camera.Frame{Mat: m, Format: format, Captured: time.Now()}
}

func TestRecorderSessions(t *testing.T) {
	cfg := testRecordConfig(t)
	factory := &fakeFactory{}
	r := NewRecorder(logs.NewTestingLog(t), cfg, factory.open, nil)
	r.Metrics = metrics.New()
	defer r.Close()
	clock := time.Date(2022, 3, 19, 14, 5, 9, 0, time.Local)
	r.now = func() time.Time { return clock }

	frame := testFrame(t, camera.PixelFormatRGB)

	// Not recording: nothing opened, even without a frame
	require.NoError(t, r.Process(false, 5, nil))
	require.Len(t, factory.sinks, 0)

	for i := 0; i < 12; i++ {
		require.NoError(t, r.Process(true, 5, frame))
	}
	require.True(t, r.Active())
	require.Len(t, factory.sinks, 1)
	require.Equal(t, 3, factory.sinks[0].frames) // 0, 5, 10
	require.Equal(t, filepath.Join(cfg.Dir, "2022-03-19_14-05-09.avi"), factory.sinks[0].path)
	require.Equal(t, cfg.Width, factory.sinks[0].width)
	require.Equal(t, uint64(3), r.Metrics.RecordedFrames.Load())

	require.NoError(t, r.Process(false, 5, nil))
	require.False(t, r.Active())
	require.True(t, factory.sinks[0].closed)

	// Same second, so the second file gets a suffix
	require.NoError(t, os.WriteFile(factory.sinks[0].path, []byte("x"), 0644))
	require.NoError(t, r.Process(true, 5, frame))
	require.Len(t, factory.sinks, 2)
	require.Equal(t, 1, factory.sinks[1].frames)
	require.Equal(t, filepath.Join(cfg.Dir, "2022-03-19_14-05-09-2.avi"), factory.sinks[1].path)
}

func TestRecorderOpensLazily(t *testing.T) {
	factory := &fakeFactory{}
	r := NewRecorder(logs.NewTestingLog(t), testRecordConfig(t), factory.open, nil)
	defer r.Close()
	require.False(t, r.Active())
	require.Error(t, r.Process(true, 1, nil))
	require.Len(t, factory.sinks, 0)
	require.NoError(t, r.Process(true, 1, testFrame(t, camera.PixelFormatBGR)))
	require.Len(t, factory.sinks, 1)
}

func TestSessionDB(t *testing.T) {
	dbPath := "test-sessions.sqlite"
	os.Remove(dbPath)
	defer os.Remove(dbPath)
	db, err := NewSessionDB(logs.NewTestingLog(t), dbPath)
	require.NoError(t, err)
	defer db.Close()

	factory := &fakeFactory{}
	r := NewRecorder(logs.NewTestingLog(t), testRecordConfig(t), factory.open, db)
	defer r.Close()
	start := time.Date(2022, 3, 19, 14, 5, 9, 0, time.UTC)
	r.now = func() time.Time { return start }

	frame := testFrame(t, camera.PixelFormatBGR)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Process(true, 2, frame))
	}
	r.now = func() time.Time { return start.Add(10 * time.Second) }
	require.NoError(t, r.Process(false, 2, nil))

	sessions, err := db.Sessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	s := sessions[0]
	require.Equal(t, factory.sinks[0].path, s.Path)
	require.Equal(t, int64(2), s.Frames)
	require.Equal(t, 2, s.Interval)
	require.Equal(t, start.Unix(), s.StartedAt.Get().Unix())
	require.Equal(t, start.Add(10*time.Second).Unix(), s.FinishedAt.Get().Unix())
}

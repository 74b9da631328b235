// Package record writes a low resolution copy of the camera feed to disk while the
// dashboard's "Record" flag is on, so that the footage can be used for training.
package record

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/frcvision/server/config"
	"github.com/cyclopcam/frcvision/server/metrics"
	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"
)

// Recorder is owned by the pipeline goroutine
type Recorder struct {
	Log     logs.Log
	Config  config.Record
	Factory SinkFactory
	DB      *SessionDB       // May be nil
	Metrics *metrics.Metrics // May be nil

	schedule Schedule
	buf      gocv.Mat // Record resolution, BGR
	bufReady bool
	sink     Sink
	session  *Session
	path     string
	frames   int64
	interval int
	now      func() time.Time
}

func NewRecorder(log logs.Log, cfg config.Record, factory SinkFactory, db *SessionDB) *Recorder {
	return &Recorder{
		Log:      log,
		Config:   cfg,
		Factory:  factory,
		DB:       db,
		schedule: NewSchedule(),
		now:      time.Now,
	}
}

// Active is true while a sink is open
func (r *Recorder) Active() bool {
	return r.sink != nil
}

// Process must be called once per pipeline iteration with the current state of the
// record flags. frame may be nil when recording is false.
func (r *Recorder) Process(recording bool, interval int, frame *camera.Frame) error {
	write := r.schedule.Next(recording, interval)
	if !recording {
		r.closeSession()
		return nil
	}
	if !write {
		return nil
	}
	if frame.Empty() {
		return fmt.Errorf("Can't record empty frame")
	}

	if !r.bufReady {
		r.buf = gocv.NewMatWithSize(r.Config.Height, r.Config.Width, gocv.MatTypeCV8UC3)
		r.bufReady = true
	}
	gocv.Resize(frame.Mat, &r.buf, image.Pt(r.Config.Width, r.Config.Height), 0, 0, gocv.InterpolationLinear)
	if frame.Format == camera.PixelFormatRGB {
		gocv.CvtColor(r.buf, &r.buf, gocv.ColorRGBToBGR)
	}

	if r.sink == nil {
		if err := r.openSession(max(interval, 1)); err != nil {
			return err
		}
	}
	if err := r.sink.Write(r.buf); err != nil {
		return fmt.Errorf("Failed to write to recording %v: %w", r.path, err)
	}
	r.frames++
	if r.Metrics != nil {
		r.Metrics.RecordedFrames.Add(1)
	}
	return nil
}

func (r *Recorder) openSession(interval int) error {
	if err := os.MkdirAll(r.Config.Dir, 0777); err != nil {
		return fmt.Errorf("Failed to create recording directory %v: %w", r.Config.Dir, err)
	}
	started := r.now()
	path := r.uniquePath(started)
	sink, err := r.Factory(path, r.Config.Width, r.Config.Height, r.Config.FPS)
	if err != nil {
		return err
	}
	r.sink = sink
	r.path = path
	r.frames = 0
	r.interval = interval
	r.Log.Infof("Recording to %v, every %v frames", path, interval)
	if r.DB != nil {
		session, err := r.DB.StartSession(path, started, interval)
		if err != nil {
			r.Log.Errorf("Failed to add recording %v to session database: %v", path, err)
		} else {
			r.session = session
		}
	}
	return nil
}

// Two sessions that start within the same second get distinct files
func (r *Recorder) uniquePath(t time.Time) string {
	base := t.Format("2006-01-02_15-04-05")
	path := filepath.Join(r.Config.Dir, base+".avi")
	for i := 2; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(r.Config.Dir, fmt.Sprintf("%v-%v.avi", base, i))
	}
}

func (r *Recorder) closeSession() {
	if r.sink == nil {
		return
	}
	if err := r.sink.Close(); err != nil {
		r.Log.Errorf("Failed to close recording %v: %v", r.path, err)
	}
	r.Log.Infof("Recording %v finished with %v frames", r.path, r.frames)
	if r.DB != nil && r.session != nil {
		if err := r.DB.FinishSession(r.session, r.frames, r.now()); err != nil {
			r.Log.Errorf("Failed to update recording %v in session database: %v", r.path, err)
		}
	}
	r.sink = nil
	r.session = nil
	r.path = ""
}

// Close finishes the current session, if any, and releases the record buffer
func (r *Recorder) Close() {
	r.closeSession()
	r.schedule = NewSchedule()
	if r.bufReady {
		r.buf.Close()
		r.bufReady = false
	}
}

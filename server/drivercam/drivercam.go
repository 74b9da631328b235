// Package drivercam streams one of two driver cameras, chosen from the dashboard.
package drivercam

import (
	"context"
	"fmt"
	"time"

	"github.com/cyclopcam/frcvision/pkg/log"
	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/frcvision/server/telemetry"
	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"
)

// Table and key that select the camera. True is the front camera.
const (
	TableName = "DriverCam"
	KeyFront  = "Front"
)

// Pause after a failed frame
const ErrorBackoff = 100 * time.Millisecond

type Source interface {
	Capture() (*camera.Frame, error)
}

type Previewer interface {
	ToPreviewFrame(frame *camera.Frame) (gocv.Mat, error)
}

type StreamSink interface {
	HasViewers() bool
	PutFrame(img gocv.Mat, format camera.PixelFormat) error
}

// Switcher sends frames from the selected camera to the stream.
// The selection is read from the telemetry table on every frame.
type Switcher struct {
	Log     logs.Log
	Front   Source
	Rear    Source
	Preview Previewer
	Format  camera.PixelFormat // Format of the frames that Preview produces
	Stream  StreamSink
	Table   telemetry.Table

	throttle  log.ThrottledError
	lastFront bool
	started   bool
}

// NewSwitcher writes the Front flag back to the table, so that it shows up on the dashboard
func NewSwitcher(logger logs.Log, front, rear Source, preview Previewer, format camera.PixelFormat, stream StreamSink, table telemetry.Table) (*Switcher, error) {
	if err := table.PutBoolean(KeyFront, table.GetBoolean(KeyFront, true)); err != nil {
		return nil, err
	}
	return &Switcher{
		Log:     log.NewPrefixLogger(logger, "DriverCam"),
		Front:   front,
		Rear:    rear,
		Preview: preview,
		Format:  format,
		Stream:  stream,
		Table:   table,
	}, nil
}

// FrontSelected is true if the front camera is the source of the stream
func (s *Switcher) FrontSelected() bool {
	return s.Table.GetBoolean(KeyFront, true)
}

// Step captures one frame from the selected camera and streams it, if anybody is watching
func (s *Switcher) Step() error {
	front := s.FrontSelected()
	if !s.started || front != s.lastFront {
		s.Log.Infof("Streaming the %v camera", cameraName(front))
		s.started = true
		s.lastFront = front
	}
	src := s.Rear
	if front {
		src = s.Front
	}
	frame, err := src.Capture()
	if err != nil {
		return fmt.Errorf("%v camera: %w", cameraName(front), err)
	}
	if !s.Stream.HasViewers() {
		return nil
	}
	img, err := s.Preview.ToPreviewFrame(frame)
	if err != nil {
		return err
	}
	return s.Stream.PutFrame(img, s.Format)
}

// Run calls Step until ctx is done
func (s *Switcher) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := s.Step(); err != nil {
			s.throttle.Errorf(s.Log, "%v", err)
			// An unplugged camera fails immediately
			select {
			case <-ctx.Done():
			case <-time.After(ErrorBackoff):
			}
		}
	}
}

func cameraName(front bool) string {
	if front {
		return "front"
	}
	return "rear"
}

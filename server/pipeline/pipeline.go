// Package pipeline runs the per-frame loop: capture, detect, select a target,
// record, annotate, stream, and publish to telemetry.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cyclopcam/frcvision/pkg/log"
	"github.com/cyclopcam/frcvision/pkg/nn"
	"github.com/cyclopcam/frcvision/server/annotate"
	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/frcvision/server/config"
	"github.com/cyclopcam/frcvision/server/metrics"
	"github.com/cyclopcam/frcvision/server/targeting"
	"github.com/cyclopcam/frcvision/server/telemetry"
	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"
)

// Record Interval, if the dashboard has never set it
const DefaultRecordInterval = 5

type State int

const (
	StateIdle State = iota
	StateCapturing
	StateDetecting
	StateSelecting
	StateAnnotating
	StateStreaming
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCapturing:
		return "Capturing"
	case StateDetecting:
		return "Detecting"
	case StateSelecting:
		return "Selecting"
	case StateAnnotating:
		return "Annotating"
	case StateStreaming:
		return "Streaming"
	case StatePublishing:
		return "Publishing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// FrameSource blocks until the next frame is available.
// The frame stays valid until the next call to Capture.
type FrameSource interface {
	Capture() (*camera.Frame, error)
	FrameRate() float64   // Nominal rate of the device
	MeasuredFPS() float64 // Rate estimated from recent frame intervals, or 0 until there are enough
}

// Previewer produces the frame that is sent to the stream
type Previewer interface {
	ToPreviewFrame(frame *camera.Frame) (gocv.Mat, error)
}

// StreamSink is where preview frames go
type StreamSink interface {
	HasViewers() bool
	PutFrame(img gocv.Mat, format camera.PixelFormat) error
}

// RecordSink is called once per iteration, whether or not the pipeline is gated
type RecordSink interface {
	Process(recording bool, interval int, frame *camera.Frame) error
	Active() bool
}

// Parts of the pipeline. Metrics may be nil.
type Parts struct {
	Source    FrameSource
	Detector  nn.ObjectDetector
	Selector  *targeting.Selector
	Annotator *annotate.Annotator
	Preview   Previewer
	Stream    StreamSink
	Recorder  RecordSink
	Table     telemetry.Table
	Metrics   *metrics.Metrics
}

// Controller owns the loop. All of its methods must be called from one goroutine.
type Controller struct {
	Log    logs.Log
	Config *config.PipelineConfig
	Parts

	pacer      *Pacer
	errorCount int
	throttle   log.ThrottledError
	started    bool // True after the first iteration
	wasEnabled bool
	crosshair  nn.Point
	displayFmt camera.PixelFormat
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
}

func NewController(logger logs.Log, cfg *config.PipelineConfig, parts Parts) *Controller {
	return &Controller{
		Log:        log.NewPrefixLogger(logger, "Pipeline"),
		Config:     cfg,
		Parts:      parts,
		pacer:      NewPacer(),
		crosshair:  nn.Point{X: cfg.Crosshair.X, Y: cfg.Crosshair.Y},
		displayFmt: camera.PixelFormat(cfg.Preview.Format),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// ErrorCount is the number of iterations that have failed
func (c *Controller) ErrorCount() int {
	return c.errorCount
}

// Run loops until ctx is done. Work in flight for the current frame always completes.
func (c *Controller) Run(ctx context.Context) {
	c.Log.Infof("Starting. Crosshair at (%v,%v), class filter defaults to '%v'", c.crosshair.X, c.crosshair.Y, c.Config.ClassFilter)
	for ctx.Err() == nil {
		c.Step(ctx)
	}
	c.Log.Infof("Stopped after %v failed iterations", c.errorCount)
}

// Step runs one iteration of the loop, and returns the last state that it reached.
// If the gate is closed, Step sleeps for the idle interval and returns StateIdle.
// If a stage fails, Step returns that stage, and the error.
func (c *Controller) Step(ctx context.Context) (State, error) {
	c.publishTiming()

	recording := c.Table.GetBoolean(telemetry.KeyRecord, false)
	interval := int(c.Table.GetNumber(telemetry.KeyRecordInterval, DefaultRecordInterval))

	enabled := c.Table.GetBoolean(telemetry.KeyEnabled, false) || c.Config.ForceEnable
	c.logGateChange(enabled)
	if c.Metrics != nil {
		c.Metrics.PipelineEnabled.Store(enabled)
	}
	if !enabled {
		c.Table.PutString(telemetry.KeyStatus, telemetry.StatusSleeping)
		if !recording {
			// Close any recording session that was turned off while we were idle
			c.Recorder.Process(false, interval, nil)
			c.updateRecordingMetric()
		}
		c.sleep(ctx, c.Config.IdleInterval())
		return StateIdle, nil
	}
	c.Table.PutString(telemetry.KeyStatus, telemetry.StatusProcessing)

	frame, err := c.Source.Capture()
	if err != nil {
		if !recording {
			c.Recorder.Process(false, interval, nil)
			c.updateRecordingMetric()
		}
		return c.fail(StateCapturing, fmt.Errorf("Capture failed: %w", err))
	}
	c.Table.PutString(telemetry.KeyCaptureSize, frame.Size())
	c.Table.PutString(telemetry.KeyCaptureFormat, string(frame.Format))

	// Recording only depends on the capture, so a failed detection doesn't stall the schedule.
	// Recordings are training material, so they're made before the frame is drawn on.
	var softErr error
	if err := c.Recorder.Process(recording, interval, frame); err != nil {
		softErr = fmt.Errorf("Recording failed: %w", err)
	}
	c.updateRecordingMetric()

	dets, err := c.Detector.Detect(frame.Mat, c.Config.Model.Threshold)
	if err != nil {
		return c.fail(StateDetecting, fmt.Errorf("Detection failed: %w", err))
	}

	classFilter := c.Table.GetString(telemetry.KeyClassFilter, c.Config.ClassFilter)
	sel, qualifying, err := c.Selector.Select(dets, classFilter, c.crosshair, frame.Captured)
	if err != nil {
		return c.fail(StateSelecting, err)
	}

	c.Annotator.Annotate(frame, sel, qualifying)

	if c.Stream.HasViewers() {
		if err := c.streamPreview(frame); err != nil {
			softErr = err
			if c.Metrics != nil {
				c.Metrics.PreviewErrors.Add(1)
			}
		}
	}

	c.Table.PutString(telemetry.KeyDetections, targeting.DetectionsJSON(qualifying))
	c.Table.PutString(telemetry.KeyClosestDetection, targeting.ClosestJSON(sel))
	c.Table.PutNumber(telemetry.KeyNetworkFPS, float64(c.Detector.NetworkFPS()))

	if c.Metrics != nil {
		c.Metrics.FramesProcessed.Add(1)
		c.Metrics.Detections.Add(uint64(len(qualifying)))
		c.Metrics.NetworkFPS.Store(float64(c.Detector.NetworkFPS()))
		c.Metrics.CaptureFPS.Store(c.Source.MeasuredFPS())
		if sel.None() {
			c.Metrics.TargetOffset.Store(-1)
		} else {
			c.Metrics.TargetOffset.Store(float64(sel.Target.TargetDistance))
		}
	}

	if softErr != nil {
		return c.fail(StatePublishing, softErr)
	}
	c.Table.PutString(telemetry.KeyError, "")
	c.Table.PutNumber(telemetry.KeyErrorCount, float64(c.errorCount))
	return StatePublishing, nil
}

func (c *Controller) streamPreview(frame *camera.Frame) error {
	img, err := c.Preview.ToPreviewFrame(frame)
	if err != nil {
		return err
	}
	if err := c.Stream.PutFrame(img, c.displayFmt); err != nil {
		return fmt.Errorf("Failed to send preview frame: %w", err)
	}
	if c.Metrics != nil {
		c.Metrics.PreviewFrames.Add(1)
	}
	return nil
}

// Latency and FPS are published on every iteration, whether or not the gate is open
func (c *Controller) publishTiming() {
	latencyMs, fps, hasLatency, hasFPS := c.pacer.Tick(c.now())
	if hasLatency {
		c.Table.PutNumber(telemetry.KeyLatency, latencyMs)
		if c.Metrics != nil {
			c.Metrics.LatencyMs.Store(latencyMs)
		}
	}
	if hasFPS {
		c.Table.PutNumber(telemetry.KeyPipelineFPS, fps)
		if c.Metrics != nil {
			c.Metrics.PipelineFPS.Store(c.pacer.SmoothedFPS())
		}
	}
}

func (c *Controller) fail(state State, err error) (State, error) {
	c.errorCount++
	c.Table.PutString(telemetry.KeyError, err.Error())
	c.Table.PutNumber(telemetry.KeyErrorCount, float64(c.errorCount))
	if c.Metrics != nil {
		c.Metrics.IterationErrors.Add(1)
	}
	c.throttle.Errorf(c.Log, "%v: %v", state, err)
	return state, err
}

func (c *Controller) logGateChange(enabled bool) {
	if c.started && enabled == c.wasEnabled {
		return
	}
	if enabled {
		c.Log.Infof("Enabled. Processing frames")
	} else {
		c.Log.Infof("Disabled. Sleeping")
	}
	c.started = true
	c.wasEnabled = enabled
}

func (c *Controller) updateRecordingMetric() {
	if c.Metrics != nil {
		c.Metrics.RecordingActive.Store(c.Recorder.Active())
	}
}

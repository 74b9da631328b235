package camera

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"
)

var ErrCaptureTimeout = errors.New("camera did not produce a frame")
var ErrClosed = errors.New("camera is closed")

// Number of frame intervals used to measure the real frame rate
const intervalHistorySize = 64

// Capture reads frames from a device.
// A single Mat is reused for every frame, so a Frame returned by Capture is only
// valid until the next call to Capture.
type Capture struct {
	Log    logs.Log
	Device string

	lock      sync.Mutex
	dev       *gocv.VideoCapture
	img       gocv.Mat
	nominal   float64
	lastFrame time.Time
	intervals ringbuffer.RingP[time.Duration]
	closed    bool
}

// Open a camera.
// device is either a device index ("0"), a device path ("/dev/video0"), or a
// GStreamer pipeline (for the Jetson CSI camera).
func Open(log logs.Log, device string, width, height int, rate float64) (*Capture, error) {
	var source any = device
	if idx, err := strconv.Atoi(device); err == nil {
		source = idx
	}
	dev, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("Failed to open camera '%v': %w", device, err)
	}
	if width > 0 && height > 0 {
		dev.Set(gocv.VideoCaptureFrameWidth, float64(width))
		dev.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	if rate > 0 {
		dev.Set(gocv.VideoCaptureFPS, rate)
	}
	nominal := dev.Get(gocv.VideoCaptureFPS)
	if nominal <= 0 {
		nominal = rate
	}
	log.Infof("Opened camera '%v' (%.0f x %.0f @ %.1f FPS)", device, dev.Get(gocv.VideoCaptureFrameWidth), dev.Get(gocv.VideoCaptureFrameHeight), nominal)
	return &Capture{
		Log:       log,
		Device:    device,
		dev:       dev,
		img:       gocv.NewMat(),
		nominal:   nominal,
		intervals: ringbuffer.NewRingP[time.Duration](intervalHistorySize),
	}, nil
}

func (c *Capture) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.dev.Close()
	c.img.Close()
}

// Capture blocks until the next frame is available
func (c *Capture) Capture() (*Frame, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if !c.dev.Read(&c.img) || c.img.Empty() {
		return nil, ErrCaptureTimeout
	}
	now := time.Now()
	if !c.lastFrame.IsZero() {
		c.intervals.Add(now.Sub(c.lastFrame))
	}
	c.lastFrame = now
	// OpenCV always delivers BGR
	return &Frame{Mat: c.img, Format: PixelFormatBGR, Captured: now}, nil
}

// FrameRate is the rate that the device claims to deliver
func (c *Capture) FrameRate() float64 {
	return c.nominal
}

// MeasuredFPS is the rate at which frames have actually been read
func (c *Capture) MeasuredFPS() float64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	intervals := make([]time.Duration, c.intervals.Len())
	for i := range intervals {
		intervals[i] = c.intervals.Peek(i)
	}
	return EstimateFPS(intervals)
}

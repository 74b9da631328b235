// Package streamer sends preview frames to the driver station as MJPEG, over plain
// HTTP (multipart/x-mixed-replace) or over a websocket.
package streamer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"
)

// Number of frames that we buffer for each viewer, before dropping frames to it
const ViewerSendBufferSize = 2

// If no new frame arrives within this time, the last frame (or a blank frame) is re-sent
const KeepAliveInterval = 5 * time.Second

var nextViewerID int64

// Streamer fans out JPEG frames to any number of viewers.
// Frames are only encoded at the qualities that the current viewers want.
type Streamer struct {
	Log            logs.Log
	Name           string
	DefaultQuality int // JPEG quality, for viewers that don't ask for one
	Width          int // Dimensions of the blank keepalive frame
	Height         int

	lock    sync.Mutex
	viewers map[*viewer]bool
	last    map[int][]byte // Most recent frame per quality
	blank   []byte

	framesPut     atomic.Int64
	encodeErrors  atomic.Int64
	viewersServed atomic.Int64
}

func NewStreamer(log logs.Log, name string, defaultQuality, width, height int) *Streamer {
	return &Streamer{
		Log:            log,
		Name:           name,
		DefaultQuality: defaultQuality,
		Width:          width,
		Height:         height,
		viewers:        map[*viewer]bool{},
		last:           map[int][]byte{},
	}
}

// HasViewers is true if anybody is watching. The pipeline skips all preview work if not.
func (s *Streamer) HasViewers() bool {
	return s.NumViewers() != 0
}

func (s *Streamer) NumViewers() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.viewers)
}

// FramesPut is the number of frames that have been sent to PutFrame
func (s *Streamer) FramesPut() int64 {
	return s.framesPut.Load()
}

// EncodeErrors is the number of frames that could not be compressed
func (s *Streamer) EncodeErrors() int64 {
	return s.encodeErrors.Load()
}

// ViewersServed is the number of viewers that have connected since startup
func (s *Streamer) ViewersServed() int64 {
	return s.viewersServed.Load()
}

// PutFrame encodes img and sends it to all viewers.
// img is not retained, so the caller may overwrite it as soon as PutFrame returns.
func (s *Streamer) PutFrame(img gocv.Mat, format camera.PixelFormat) error {
	s.framesPut.Add(1)
	wrapped, err := wrapMat(img, format)
	if err != nil {
		s.encodeErrors.Add(1)
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	encoded := map[int][]byte{}
	for v := range s.viewers {
		if _, ok := encoded[v.quality]; ok {
			continue
		}
		jpg, err := cimg.Compress(wrapped, cimg.MakeCompressParams(cimg.Sampling420, v.quality, 0))
		if err != nil {
			s.encodeErrors.Add(1)
			return fmt.Errorf("Failed to compress preview frame to JPEG: %w", err)
		}
		encoded[v.quality] = jpg
	}
	// Keep the previous frames of qualities nobody is watching at anymore out of memory
	s.last = encoded

	for v := range s.viewers {
		v.offer(encoded[v.quality])
	}
	return nil
}

// lastFrame returns the most recent frame of the given quality, or a blank frame
func (s *Streamer) lastFrame(quality int) []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	if jpg, ok := s.last[quality]; ok {
		return jpg
	}
	if s.blank == nil {
		blank := cimg.NewImage(max(s.Width, 16), max(s.Height, 16), cimg.PixelFormatRGB)
		jpg, err := cimg.Compress(blank, cimg.MakeCompressParams(cimg.Sampling420, 50, 0))
		if err != nil {
			s.Log.Errorf("Failed to compress blank frame: %v", err)
			return nil
		}
		s.blank = jpg
	}
	return s.blank
}

func (s *Streamer) addViewer(kind string, quality int) *viewer {
	if quality < 1 || quality > 100 {
		quality = s.DefaultQuality
	}
	id := atomic.AddInt64(&nextViewerID, 1)
	v := &viewer{
		id:      id,
		quality: quality,
		frames:  make(chan []byte, ViewerSendBufferSize),
		log:     newViewerLog(s.Log, s.Name, kind, id),
	}
	s.lock.Lock()
	s.viewers[v] = true
	n := len(s.viewers)
	s.lock.Unlock()
	s.viewersServed.Add(1)
	v.log.Infof("Connected (quality %v, %v viewers)", quality, n)
	return v
}

func (s *Streamer) removeViewer(v *viewer) {
	s.lock.Lock()
	delete(s.viewers, v)
	n := len(s.viewers)
	s.lock.Unlock()
	v.log.Infof("Disconnected after %v frames, %v dropped (%v viewers)", v.sent.Load(), v.dropped.Load(), n)
}

// next waits for the next frame for v, or returns the last frame after the keepalive interval.
// Returns nil if done is closed.
func (s *Streamer) next(v *viewer, done <-chan struct{}) []byte {
	select {
	case <-done:
		return nil
	case jpg := <-v.frames:
		return jpg
	case <-time.After(KeepAliveInterval):
		return s.lastFrame(v.quality)
	}
}

func wrapMat(img gocv.Mat, format camera.PixelFormat) (*cimg.Image, error) {
	if img.Empty() || img.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("Preview frame is empty, or not 8 bit RGB/BGR")
	}
	pix, err := img.DataPtrUint8()
	if err != nil {
		return nil, err
	}
	stride := img.Cols() * 3
	if step := img.Step(); step > 0 {
		stride = step
	}
	if len(pix) < stride*img.Rows() {
		return nil, fmt.Errorf("Preview frame has %v bytes, but needs %v", len(pix), stride*img.Rows())
	}
	pf := cimg.PixelFormatBGR
	if format == camera.PixelFormatRGB {
		pf = cimg.PixelFormatRGB
	}
	return cimg.WrapImageStrided(img.Cols(), img.Rows(), pf, pix, stride), nil
}

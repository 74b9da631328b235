// Package camera captures frames from a local camera (CSI or USB) through OpenCV
package camera

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// PixelFormat is the memory layout of a 3 channel, 8 bit image
type PixelFormat string

const (
	PixelFormatRGB PixelFormat = "rgb8"
	PixelFormatBGR PixelFormat = "bgr8"
)

func (f PixelFormat) Valid() bool {
	return f == PixelFormatRGB || f == PixelFormatBGR
}

// Frame is an image plus the metadata that the pipeline needs.
// The Mat is owned by whoever produced the frame; consumers must not close it.
type Frame struct {
	Mat      gocv.Mat
	Format   PixelFormat
	Captured time.Time
}

func (f *Frame) Width() int {
	return f.Mat.Cols()
}

func (f *Frame) Height() int {
	return f.Mat.Rows()
}

// Size returns "WIDTHxHEIGHT"
func (f *Frame) Size() string {
	return fmt.Sprintf("%vx%v", f.Width(), f.Height())
}

// Signature identifies the shape of a frame. Buffers derived from a frame are
// only valid while the signature stays the same.
type Signature struct {
	Width  int
	Height int
	Format PixelFormat
}

func (f *Frame) Signature() Signature {
	return Signature{Width: f.Width(), Height: f.Height(), Format: f.Format}
}

// Empty is true if the frame holds no pixels, or pixels that are not 3 channel 8 bit
func (f *Frame) Empty() bool {
	return f == nil || f.Mat.Empty() || f.Mat.Type() != gocv.MatTypeCV8UC3
}

// Package preview shrinks frames and converts them to the pixel layout of the
// driver station stream.
package preview

import (
	"errors"
	"fmt"

	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"
)

var ErrSourceFrame = errors.New("invalid source frame")

type State int

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transpiler owns two scratch buffers: the shrunken frame in the source layout, and
// the same frame in the display layout. They are allocated on the first call, and
// reused until the shape of the source frames changes.
// A Transpiler must only be used from one goroutine.
type Transpiler struct {
	Log     logs.Log
	Width   int
	Height  int
	Display camera.PixelFormat

	ops         ImageOps
	state       State
	source      camera.Signature // Shape of the frames that the buffers were allocated for
	small       gocv.Mat         // Width x Height, source layout
	display     gocv.Mat         // Width x Height, display layout
	allocations int
}

func NewTranspiler(log logs.Log, ops ImageOps, width, height int, display camera.PixelFormat) *Transpiler {
	return &Transpiler{
		Log:     log,
		Width:   width,
		Height:  height,
		Display: display,
		ops:     ops,
	}
}

func (t *Transpiler) State() State {
	return t.state
}

// Allocations is the number of times that the scratch buffers have been allocated
func (t *Transpiler) Allocations() int {
	return t.allocations
}

func (t *Transpiler) Close() {
	t.release()
}

func (t *Transpiler) release() {
	if t.state == StateReady {
		t.small.Close()
		t.display.Close()
		t.state = StateUninitialized
	}
}

func (t *Transpiler) allocate(sig camera.Signature) {
	t.small = gocv.NewMatWithSize(t.Height, t.Width, gocv.MatTypeCV8UC3)
	t.display = gocv.NewMatWithSize(t.Height, t.Width, gocv.MatTypeCV8UC3)
	t.source = sig
	t.allocations++
	t.state = StateReady
}

// ToPreviewFrame returns frame, shrunk to Width x Height and converted to the display layout.
// The returned Mat is owned by the transpiler, and is overwritten by the next call.
// Errors are recoverable: the next call starts afresh.
func (t *Transpiler) ToPreviewFrame(frame *camera.Frame) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.Mat{}, fmt.Errorf("%w: empty or not 8 bit RGB/BGR", ErrSourceFrame)
	}
	if !frame.Format.Valid() {
		return gocv.Mat{}, fmt.Errorf("%w: unknown pixel format '%v'", ErrSourceFrame, frame.Format)
	}

	sig := frame.Signature()
	if t.state == StateReady && sig != t.source {
		t.Log.Infof("Source frames changed from %vx%v %v to %vx%v %v. Reallocating preview buffers", t.source.Width, t.source.Height, t.source.Format, sig.Width, sig.Height, sig.Format)
		t.release()
	}
	if t.state == StateUninitialized {
		t.allocate(sig)
	}

	if err := t.ops.Resize(frame.Mat, &t.small); err != nil {
		return gocv.Mat{}, fmt.Errorf("preview resize failed: %w", err)
	}
	if err := t.ops.Convert(t.small, &t.display, frame.Format, t.Display); err != nil {
		return gocv.Mat{}, fmt.Errorf("preview color conversion failed: %w", err)
	}
	if err := t.ops.Synchronize(); err != nil {
		return gocv.Mat{}, fmt.Errorf("preview synchronize failed: %w", err)
	}
	return t.display, nil
}

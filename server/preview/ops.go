package preview

import (
	"errors"
	"fmt"
	"image"

	"github.com/cyclopcam/frcvision/server/camera"
	"gocv.io/x/gocv"
)

// ImageOps are the image transforms that the transpiler runs.
// An implementation that offloads work to an accelerator must make the results
// visible to the host in Synchronize, and only then.
type ImageOps interface {
	// Resize src into dst. dst is already allocated at the target size.
	Resize(src gocv.Mat, dst *gocv.Mat) error
	// Convert src from one pixel layout to another. dst is already allocated.
	Convert(src gocv.Mat, dst *gocv.Mat, from, to camera.PixelFormat) error
	// Synchronize waits until all outstanding work is visible to the host
	Synchronize() error
}

var errEmptyImage = errors.New("empty image")

// CPUOps runs on the CPU through OpenCV, so Synchronize has nothing to wait for
type CPUOps struct{}

func (CPUOps) Resize(src gocv.Mat, dst *gocv.Mat) error {
	if src.Empty() || dst.Empty() {
		return errEmptyImage
	}
	gocv.Resize(src, dst, image.Pt(dst.Cols(), dst.Rows()), 0, 0, gocv.InterpolationLinear)
	return nil
}

func (CPUOps) Convert(src gocv.Mat, dst *gocv.Mat, from, to camera.PixelFormat) error {
	if src.Empty() || dst.Empty() {
		return errEmptyImage
	}
	if src.Cols() != dst.Cols() || src.Rows() != dst.Rows() {
		return fmt.Errorf("convert size mismatch %vx%v -> %vx%v", src.Cols(), src.Rows(), dst.Cols(), dst.Rows())
	}
	switch {
	case from == to:
		src.CopyTo(dst)
	case from == camera.PixelFormatRGB && to == camera.PixelFormatBGR:
		gocv.CvtColor(src, dst, gocv.ColorRGBToBGR)
	case from == camera.PixelFormatBGR && to == camera.PixelFormatRGB:
		gocv.CvtColor(src, dst, gocv.ColorBGRToRGB)
	default:
		return fmt.Errorf("unsupported color conversion %v -> %v", from, to)
	}
	return nil
}

func (CPUOps) Synchronize() error {
	return nil
}

// Package annotate draws detections and crosshairs onto a frame, so that the
// driver can see what the pipeline is aiming at.
package annotate

import (
	"image"
	"image/color"
	"math"

	"github.com/cyclopcam/frcvision/pkg/nn"
	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/frcvision/server/config"
	"github.com/cyclopcam/frcvision/server/targeting"
	"gocv.io/x/gocv"
)

// ColorPolicy picks the box color of a detection from its label
type ColorPolicy struct {
	Classes map[string]config.Color
	Default config.Color
}

func (p *ColorPolicy) ColorOf(label string) config.Color {
	if c, ok := p.Classes[label]; ok {
		return c
	}
	return p.Default
}

// Annotator mutates frames in place. It holds no per-frame state.
type Annotator struct {
	cfg       config.Annotation
	colors    ColorPolicy
	crosshair nn.Point
}

func NewAnnotator(cfg config.Annotation, crosshair nn.Point) *Annotator {
	return &Annotator{
		cfg: cfg,
		colors: ColorPolicy{
			Classes: cfg.ClassColors,
			Default: cfg.DefaultColor,
		},
		crosshair: crosshair,
	}
}

// Scale is the ratio between the frame width and the width at which marker sizes are specified
func (a *Annotator) Scale(frameWidth int) float64 {
	if a.cfg.BaselineWidth <= 0 || frameWidth <= 0 {
		return 1
	}
	return float64(frameWidth) / float64(a.cfg.BaselineWidth)
}

// Annotate draws a box around every qualifying detection, a marker over the selected
// target (if any), and a marker at the reference crosshair.
func (a *Annotator) Annotate(frame *camera.Frame, sel targeting.Selection, qualifying []targeting.ScoredDetection) {
	if frame.Empty() {
		return
	}
	img := &frame.Mat
	scale := a.Scale(frame.Width())
	boxThickness := scaled(a.cfg.BoxThickness, scale, 1)
	size := scaled(a.cfg.MarkerSize, scale, 0)
	gap := scaled(a.cfg.MarkerGap, scale, 0)
	thickness := scaled(a.cfg.MarkerThickness, scale, 1)

	for i := range qualifying {
		d := &qualifying[i]
		c := a.colors.ColorOf(d.Class)
		r := image.Rect(round(d.Left), round(d.Top), round(d.Right), round(d.Bottom))
		gocv.Rectangle(img, r, toGocvColor(c, frame.Format), boxThickness)
	}

	if !sel.None() {
		center := sel.Target.CenterPoint()
		DrawCrosshair(img, frame.Format, round(center.X), round(center.Y), a.cfg.TargetColor, size, gap, thickness)
	}

	DrawCrosshair(img, frame.Format, round(a.crosshair.X), round(a.crosshair.Y), a.cfg.ReferenceColor, size, gap, thickness)
}

// DrawCrosshair draws a "+" made of four segments, leaving an empty square of side 'gap'
// in the middle. size and gap should be even, otherwise the marker is off center by a pixel.
// If the alpha of c is less than 255, the marker is blended with the image.
func DrawCrosshair(img *gocv.Mat, format camera.PixelFormat, x, y int, c config.Color, size, gap, thickness int) {
	if c[3] == 0 || size <= 0 || gap >= size {
		return
	}
	half := size / 2
	g := gap / 2
	segments := [4][2]image.Point{
		{{x - half, y}, {x - g, y}},
		{{x + g, y}, {x + half, y}},
		{{x, y - half}, {x, y - g}},
		{{x, y + g}, {x, y + half}},
	}
	gc := toGocvColor(c, format)

	if c[3] == 255 {
		for _, s := range segments {
			gocv.Line(img, s[0], s[1], gc, thickness)
		}
		return
	}

	// Blend only the pixels around the marker
	pad := thickness + 1
	bounds := image.Rect(x-half-pad, y-half-pad, x+half+pad+1, y+half+pad+1).Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if bounds.Empty() {
		return
	}
	roi := img.Region(bounds)
	defer roi.Close()
	overlay := roi.Clone()
	defer overlay.Close()
	for _, s := range segments {
		gocv.Line(&overlay, s[0].Sub(bounds.Min), s[1].Sub(bounds.Min), gc, thickness)
	}
	alpha := float64(c[3]) / 255
	gocv.AddWeighted(overlay, alpha, roi, 1-alpha, 0, &roi)
}

// gocv takes colors as RGBA, and writes them in BGR order into the Mat.
// For RGB images we must swap red and blue ourselves.
func toGocvColor(c config.Color, format camera.PixelFormat) color.RGBA {
	if format == camera.PixelFormatRGB {
		return color.RGBA{R: c[2], G: c[1], B: c[0], A: 255}
	}
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: 255}
}

func scaled(v int, scale float64, minimum int) int {
	return max(minimum, int(math.Round(float64(v)*scale)))
}

func round(v float32) int {
	return int(math.Round(float64(v)))
}

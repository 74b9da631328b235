package nn

import (
	"github.com/chewxy/math32"
)

type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (p Point) Distance(b Point) float32 {
	return math32.Sqrt((p.X-b.X)*(p.X-b.X) + (p.Y-b.Y)*(p.Y-b.Y))
}

// Rect is a box in pixel coordinates, with Left <= Right and Top <= Bottom
type Rect struct {
	Left   float32 `json:"left"`
	Top    float32 `json:"top"`
	Right  float32 `json:"right"`
	Bottom float32 `json:"bottom"`
}

func (r Rect) Width() float32 {
	return r.Right - r.Left
}

func (r Rect) Height() float32 {
	return r.Bottom - r.Top
}

func (r Rect) Area() float32 {
	return max(0, r.Width()) * max(0, r.Height())
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := max(r.Left, b.Left)
	y1 := max(r.Top, b.Top)
	x2 := min(r.Right, b.Right)
	y2 := min(r.Bottom, b.Bottom)
	return Rect{
		Left:   x1,
		Top:    y1,
		Right:  max(x1, x2),
		Bottom: max(y1, y2),
	}
}

// Intersection over Union
func (r Rect) IOU(b Rect) float32 {
	intersection := r.Intersection(b).Area()
	union := r.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func (r Rect) Center() Point {
	return Point{
		X: (r.Left + r.Right) / 2,
		Y: (r.Top + r.Bottom) / 2,
	}
}

// Clip the rectangle so that it lies inside (0,0,width,height)
func (r Rect) Clip(width, height float32) Rect {
	return Rect{
		Left:   min(max(r.Left, 0), width),
		Top:    min(max(r.Top, 0), height),
		Right:  min(max(r.Right, 0), width),
		Bottom: min(max(r.Bottom, 0), height),
	}
}

// Package targeting reduces the detections of a frame to the single target that is
// closest to the crosshair.
package targeting

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/frcvision/pkg/nn"
)

// FilterBoth is the class filter that accepts every class
const FilterBoth = "Both"

// ErrUnknownClass is returned when a detection has a class that is not in the label table
var ErrUnknownClass = nn.ErrUnknownClass

// ScoredDetection is a detection that passed the class filter, with its offset from the crosshair.
// TargetY grows upward, so a target above the crosshair has a positive TargetY.
// The JSON field names are what the robot code and the dashboard read.
type ScoredDetection struct {
	Class          string     `json:"Class"`
	ClassID        int        `json:"ClassID"`
	Instance       int        `json:"Instance"`
	Confidence     float32    `json:"Confidence"`
	Left           float32    `json:"Left"`
	Top            float32    `json:"Top"`
	Right          float32    `json:"Right"`
	Bottom         float32    `json:"Bottom"`
	Width          float32    `json:"Width"`
	Height         float32    `json:"Height"`
	Area           float32    `json:"Area"`
	Center         [2]float32 `json:"Center"`
	TargetX        float32    `json:"TargetX"`
	TargetY        float32    `json:"TargetY"`
	TargetDistance float32    `json:"TargetDistance"`
	Timestamp      float64    `json:"Timestamp"` // Unix seconds of the capture
}

func (s *ScoredDetection) Box() nn.Rect {
	return nn.Rect{Left: s.Left, Top: s.Top, Right: s.Right, Bottom: s.Bottom}
}

func (s *ScoredDetection) CenterPoint() nn.Point {
	return nn.Point{X: s.Center[0], Y: s.Center[1]}
}

// Selection is the outcome of Select. Target is nil if nothing qualified.
type Selection struct {
	Target *ScoredDetection
}

func (s Selection) None() bool {
	return s.Target == nil
}

// Selector is safe to share between goroutines, because the label table is read only
type Selector struct {
	labels nn.LabelTable
}

func NewSelector(labels nn.LabelTable) *Selector {
	return &Selector{labels: labels}
}

// Score computes the crosshair offset of a single detection
func Score(det *nn.RawDetection, label string, crosshair nn.Point, captured time.Time) ScoredDetection {
	center := det.Center()
	targetX := center.X - crosshair.X
	targetY := crosshair.Y - center.Y
	return ScoredDetection{
		Class:          label,
		ClassID:        det.ClassID,
		Instance:       det.Instance,
		Confidence:     det.Confidence,
		Left:           det.Box.Left,
		Top:            det.Box.Top,
		Right:          det.Box.Right,
		Bottom:         det.Box.Bottom,
		Width:          det.Box.Width(),
		Height:         det.Box.Height(),
		Area:           det.Area(),
		Center:         [2]float32{center.X, center.Y},
		TargetX:        targetX,
		TargetY:        targetY,
		TargetDistance: math32.Sqrt(targetX*targetX + targetY*targetY),
		Timestamp:      float64(captured.UnixNano()) / 1e9,
	}
}

// Select returns the detections whose label matches classFilter (or all of them, for FilterBoth),
// and the one amongst them that is closest to the crosshair.
// Ties go to the earliest detection.
// If any detection has a class that is not in the label table, Select returns an error
// and no result.
func (s *Selector) Select(dets []nn.RawDetection, classFilter string, crosshair nn.Point, captured time.Time) (Selection, []ScoredDetection, error) {
	qualifying := make([]ScoredDetection, 0, len(dets))
	for i := range dets {
		label, err := s.labels.Label(dets[i].ClassID)
		if err != nil {
			return Selection{}, nil, fmt.Errorf("detection %v: %w", i, err)
		}
		if classFilter != FilterBoth && label != classFilter {
			continue
		}
		qualifying = append(qualifying, Score(&dets[i], label, crosshair, captured))
	}

	sel := Selection{}
	minDistance := math32.Inf(1)
	for i := range qualifying {
		if qualifying[i].TargetDistance < minDistance {
			minDistance = qualifying[i].TargetDistance
			sel.Target = &qualifying[i]
		}
	}
	return sel, qualifying, nil
}

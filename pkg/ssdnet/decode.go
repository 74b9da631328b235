package ssdnet

import (
	"fmt"

	"github.com/cyclopcam/frcvision/pkg/nn"
)

// Decode turns the raw SSD outputs into detections in pixel coordinates.
// scores holds numClasses values per anchor, and boxes holds 4 normalized corner coordinates
// per anchor. Class 0 is the background class, and is never reported.
// The detections are not yet de-duplicated.
func Decode(scores, boxes []float32, numClasses int, threshold, frameWidth, frameHeight float32) ([]nn.RawDetection, error) {
	if numClasses < 2 {
		return nil, fmt.Errorf("%w: need at least 2 classes, have %v", ErrModelOutput, numClasses)
	}
	if len(scores)%numClasses != 0 {
		return nil, fmt.Errorf("%w: %v scores is not a multiple of %v classes", ErrModelOutput, len(scores), numClasses)
	}
	nAnchors := len(scores) / numClasses
	if len(boxes) != nAnchors*4 {
		return nil, fmt.Errorf("%w: %v anchors in scores, but %v box values", ErrModelOutput, nAnchors, len(boxes))
	}

	dets := []nn.RawDetection{}
	for i := 0; i < nAnchors; i++ {
		s := scores[i*numClasses : (i+1)*numClasses]
		best := 0
		for c := 1; c < numClasses; c++ {
			if s[c] > s[best] {
				best = c
			}
		}
		if best == 0 || s[best] < threshold {
			continue
		}
		b := boxes[i*4 : i*4+4]
		r := nn.Rect{
			Left:   b[0] * frameWidth,
			Top:    b[1] * frameHeight,
			Right:  b[2] * frameWidth,
			Bottom: b[3] * frameHeight,
		}.Clip(frameWidth, frameHeight)
		if r.Area() <= 0 {
			continue
		}
		dets = append(dets, nn.RawDetection{
			ClassID:    best,
			Confidence: s[best],
			Box:        r,
		})
	}
	return dets, nil
}

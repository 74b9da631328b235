// Package nn is a Neural Network interface layer.
// To load a model, use the ssdnet package.
package nn

import (
	"gocv.io/x/gocv"
)

const DefaultNmsIouThreshold = 0.45

// RawDetection is an object that the neural network has found in a single frame.
// Instance is unique only within one batch of detections.
type RawDetection struct {
	ClassID    int     `json:"classID"`
	Instance   int     `json:"instance"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
}

func (d *RawDetection) Center() Point {
	return d.Box.Center()
}

func (d *RawDetection) Area() float32 {
	return d.Box.Area()
}

// ObjectDetector is given an image, and returns zero or more detected objects
type ObjectDetector interface {
	// Close closes the detector (you MUST call this when finished, because it's a C++ object underneath)
	Close()

	// Detect returns the objects in img whose confidence is at least threshold
	Detect(img gocv.Mat, threshold float32) ([]RawDetection, error)

	// NetworkFPS is the rate at which the network could run, measured over recent inferences
	NetworkFPS() float32

	// Labels is the label table of the model.
	// Callers assume that the table remains constant, so don't change it
	// once the detector has been created.
	Labels() LabelTable
}

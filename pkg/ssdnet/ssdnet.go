// Package ssdnet runs an SSD-Mobilenet ONNX model (as exported by the jetson-inference
// training scripts) through the OpenCV DNN module.
package ssdnet

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/cyclopcam/frcvision/pkg/nn"
	"github.com/cyclopcam/frcvision/pkg/perfstats"
	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"
)

var ErrModelOutput = errors.New("unexpected model output")

// ModelSetup describes the files and tensor names of a model
type ModelSetup struct {
	ModelPath   string
	LabelsPath  string
	InputWidth  int
	InputHeight int
	InputBlob   string // eg input_0
	ScoresBlob  string // eg scores. Shape [1, anchors, classes]
	BoxesBlob   string // eg boxes. Shape [1, anchors, 4], as normalized (x1,y1,x2,y2)
	UseCUDA     bool
	NmsIoU      float32 // 0 for nn.DefaultNmsIouThreshold
}

// Log stage timings after this many inferences
const statsInterval = 1000

// Detector implements nn.ObjectDetector
type Detector struct {
	log    logs.Log
	setup  ModelSetup
	labels nn.LabelTable

	lock      sync.Mutex
	net       gocv.Net
	inference perfstats.MovingAverage // nanoseconds per Detect
	prepTime  perfstats.TimeAccumulator
	runTime   perfstats.TimeAccumulator
	postTime  perfstats.TimeAccumulator
	nDetect   int64
	closed    bool
}

// Load the label table and the network. The label table is constant for the life of the Detector.
func Load(log logs.Log, setup ModelSetup) (*Detector, error) {
	labels, err := nn.LoadLabelTable(setup.LabelsPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(setup.ModelPath); err != nil {
		return nil, fmt.Errorf("Model file %v: %w", setup.ModelPath, err)
	}
	if setup.InputWidth <= 0 || setup.InputHeight <= 0 {
		return nil, fmt.Errorf("Invalid model input size %v x %v", setup.InputWidth, setup.InputHeight)
	}
	if setup.NmsIoU == 0 {
		setup.NmsIoU = nn.DefaultNmsIouThreshold
	}

	net := gocv.ReadNetFromONNX(setup.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("Failed to load ONNX model %v", setup.ModelPath)
	}
	if setup.UseCUDA {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}
	log.Infof("Loaded model %v (%v x %v, %v classes, CUDA: %v)", setup.ModelPath, setup.InputWidth, setup.InputHeight, len(labels), setup.UseCUDA)

	return &Detector{
		log:    log,
		setup:  setup,
		labels: labels,
		net:    net,
	}, nil
}

func (d *Detector) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if !d.closed {
		d.net.Close()
		d.closed = true
	}
}

func (d *Detector) Labels() nn.LabelTable {
	return d.labels
}

func (d *Detector) NetworkFPS() float32 {
	return float32(d.inference.Rate())
}

// Detect expects a BGR image, which is what the camera delivers
func (d *Detector) Detect(img gocv.Mat, threshold float32) ([]nn.RawDetection, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return nil, errors.New("Detector is closed")
	}
	if img.Empty() {
		return nil, errors.New("Empty image")
	}
	start := time.Now()

	// The network was trained on (pixel - 127) / 128, in RGB order
	blob := gocv.BlobFromImage(img, 1.0/128.0, image.Pt(d.setup.InputWidth, d.setup.InputHeight), gocv.NewScalar(127, 127, 127, 0), true, false)
	defer blob.Close()
	d.net.SetInput(blob, d.setup.InputBlob)
	prepDone := time.Now()

	outputs := d.net.ForwardLayers([]string{d.setup.ScoresBlob, d.setup.BoxesBlob})
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()
	runDone := time.Now()
	if len(outputs) != 2 {
		return nil, fmt.Errorf("%w: expected 2 outputs, got %v", ErrModelOutput, len(outputs))
	}

	scores, err := outputs[0].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: scores: %v", ErrModelOutput, err)
	}
	boxes, err := outputs[1].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: boxes: %v", ErrModelOutput, err)
	}
	dets, err := Decode(scores, boxes, len(d.labels), threshold, float32(img.Cols()), float32(img.Rows()))
	if err != nil {
		return nil, err
	}
	dets = nn.SuppressOverlaps(dets, d.setup.NmsIoU)
	for i := range dets {
		dets[i].Instance = i
	}

	end := time.Now()
	d.inference.Update(end.Sub(start).Nanoseconds())
	d.prepTime.AddSample(prepDone.Sub(start))
	d.runTime.AddSample(runDone.Sub(prepDone))
	d.postTime.AddSample(end.Sub(runDone))
	d.nDetect++
	if d.nDetect%statsInterval == 0 {
		d.log.Infof("Inference: prepare %v, run %v, decode %v (%.1f FPS)", d.prepTime.Average(), d.runTime.Average(), d.postTime.Average(), d.inference.Rate())
		d.prepTime.Reset()
		d.runTime.Reset()
		d.postTime.Reset()
	}
	return dets, nil
}

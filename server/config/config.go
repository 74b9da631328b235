package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrInvalid = errors.New("invalid configuration")

type Camera struct {
	Device string  `json:"device"` // eg "0", "/dev/video1", or a gstreamer pipeline for a CSI camera
	Width  int     `json:"width"`  // Capture width, eg 640
	Height int     `json:"height"` // Capture height, eg 480
	Rate   float64 `json:"rate"`   // Capture frames per second, eg 60
}

type Preview struct {
	Width       int    `json:"width"`       // eg 320
	Height      int    `json:"height"`      // eg 180
	Compression int    `json:"compression"` // JPEG quality for viewers that don't specify it (1..100)
	Format      string `json:"format"`      // Display color layout, eg "bgr8"
}

type Model struct {
	Dir         string  `json:"dir"`         // Directory holding the model and labels
	File        string  `json:"file"`        // eg ssd-mobilenet.onnx
	Labels      string  `json:"labels"`      // eg labels.txt
	Threshold   float32 `json:"threshold"`   // Minimum confidence of a detection (0..1)
	InputWidth  int     `json:"inputWidth"`  // Network input width, eg 300
	InputHeight int     `json:"inputHeight"` // Network input height, eg 300
	InputBlob   string  `json:"inputBlob"`   // eg input_0
	ScoresBlob  string  `json:"scoresBlob"`  // eg scores
	BoxesBlob   string  `json:"boxesBlob"`   // eg boxes
	UseCUDA     bool    `json:"useCUDA"`     // Ask OpenCV to run the network on the GPU
}

func (m *Model) ModelPath() string {
	return filepath.Join(m.Dir, m.File)
}

func (m *Model) LabelsPath() string {
	return filepath.Join(m.Dir, m.Labels)
}

// Color is RGBA, matching the order of the values in JSON: [r, g, b, a]
type Color [4]uint8

type Annotation struct {
	BaselineWidth   int              `json:"baselineWidth"`   // Capture width at which marker sizes are specified
	MarkerSize      int              `json:"markerSize"`      // Total size of a crosshair marker (should be even)
	MarkerGap       int              `json:"markerGap"`       // Size of the empty center of the marker (should be even)
	MarkerThickness int              `json:"markerThickness"` // Line thickness of the marker
	TargetColor     Color            `json:"targetColor"`     // Marker drawn over the selected target
	ReferenceColor  Color            `json:"referenceColor"`  // Marker drawn at the crosshair
	ClassColors     map[string]Color `json:"classColors"`     // Box color per class label
	DefaultColor    Color            `json:"defaultColor"`    // Box color for labels that are not in ClassColors
	BoxThickness    int              `json:"boxThickness"`
}

type Crosshair struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type Record struct {
	Dir    string  `json:"dir"`    // Where video files are written
	Width  int     `json:"width"`  // Resolution of recorded frames
	Height int     `json:"height"` //
	FPS    float64 `json:"fps"`    // Nominal playback rate written into the file
	Codec  string  `json:"codec"`  // FourCC, eg MJPG
	DB     string  `json:"db"`     // sqlite file that catalogs recording sessions
}

type Telemetry struct {
	Table string `json:"table"` // eg SmartDashboard
}

// PipelineConfig is loaded once, and is immutable after that
type PipelineConfig struct {
	Camera         Camera     `json:"camera"`
	Preview        Preview    `json:"preview"`
	Model          Model      `json:"model"`
	Annotation     Annotation `json:"annotation"`
	Crosshair      Crosshair  `json:"crosshair"`
	ClassFilter    string     `json:"classFilter"`    // Class filter used until the telemetry store provides one
	Record         Record     `json:"record"`         //
	Telemetry      Telemetry  `json:"telemetry"`      //
	Listen         string     `json:"listen"`         // HTTP address for the stream, telemetry API and metrics, eg ":1181"
	StreamName     string     `json:"streamName"`     // Name under which the stream is published, eg "Jetson"
	ForceEnable    bool       `json:"forceEnable"`    // Run the pipeline even if the Enabled flag is false
	IdleIntervalMs int        `json:"idleIntervalMs"` // Sleep while the pipeline is disabled
}

// IdleInterval is the sleep between gate checks while the pipeline is disabled
func (c *PipelineConfig) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalMs) * time.Millisecond
}

// Default returns a configuration with the values used on the robot
func Default() *PipelineConfig {
	return &PipelineConfig{
		Camera: Camera{
			Device: "0",
			Width:  640,
			Height: 480,
			Rate:   60,
		},
		Preview: Preview{
			Width:       320,
			Height:      180,
			Compression: 20,
			Format:      "bgr8",
		},
		Model: Model{
			Dir:         "models",
			File:        "ssd-mobilenet.onnx",
			Labels:      "labels.txt",
			Threshold:   0.5,
			InputWidth:  300,
			InputHeight: 300,
			InputBlob:   "input_0",
			ScoresBlob:  "scores",
			BoxesBlob:   "boxes",
		},
		Annotation: Annotation{
			BaselineWidth:   640,
			MarkerSize:      40,
			MarkerGap:       10,
			MarkerThickness: 2,
			TargetColor:     Color{0, 255, 0, 255},
			ReferenceColor:  Color{255, 255, 255, 160},
			ClassColors: map[string]Color{
				"RedCargo":  {255, 0, 0, 255},
				"BlueCargo": {0, 0, 255, 255},
			},
			DefaultColor: Color{255, 255, 0, 255},
			BoxThickness: 2,
		},
		Crosshair:   Crosshair{X: 320, Y: 240},
		ClassFilter: "Both",
		Record: Record{
			Dir:    "recordings",
			Width:  320,
			Height: 240,
			FPS:    15,
			Codec:  "MJPG",
			DB:     "recordings/sessions.sqlite",
		},
		Telemetry:      Telemetry{Table: "SmartDashboard"},
		Listen:         ":1181",
		StreamName:     "Jetson",
		IdleIntervalMs: 20,
	}
}

// LoadConfig reads filename over the defaults, and then applies environment overrides.
// If filename is empty, only defaults and environment are used.
func LoadConfig(filename string) (*PipelineConfig, error) {
	cfg := Default()
	if filename != "" {
		raw, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("Error loading %v: %w", filename, err)
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
		}
	}
	// A missing .env file is normal, so the error is ignored
	godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *PipelineConfig) applyEnv() error {
	if v := os.Getenv("FRCVISION_CAMERA"); v != "" {
		c.Camera.Device = v
	}
	if v := os.Getenv("FRCVISION_MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv("FRCVISION_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("FRCVISION_RECORD_DIR"); v != "" {
		c.Record.Dir = v
	}
	if v := os.Getenv("FRCVISION_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("%w: FRCVISION_THRESHOLD '%v' is not a number", ErrInvalid, v)
		}
		c.Model.Threshold = float32(f)
	}
	return nil
}

// Validate returns an error that wraps ErrInvalid if the configuration can't be used
func (c *PipelineConfig) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("%w: capture resolution %vx%v", ErrInvalid, c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.Rate <= 0 {
		return fmt.Errorf("%w: capture rate %v", ErrInvalid, c.Camera.Rate)
	}
	if c.Preview.Width <= 0 || c.Preview.Height <= 0 {
		return fmt.Errorf("%w: preview resolution %vx%v", ErrInvalid, c.Preview.Width, c.Preview.Height)
	}
	if c.Preview.Compression < 1 || c.Preview.Compression > 100 {
		return fmt.Errorf("%w: preview compression %v must be between 1 and 100", ErrInvalid, c.Preview.Compression)
	}
	if c.Preview.Format != "rgb8" && c.Preview.Format != "bgr8" {
		return fmt.Errorf("%w: preview format '%v'", ErrInvalid, c.Preview.Format)
	}
	if c.Model.Threshold < 0 || c.Model.Threshold > 1 {
		return fmt.Errorf("%w: confidence threshold %v", ErrInvalid, c.Model.Threshold)
	}
	if c.Crosshair.X < 0 || c.Crosshair.Y < 0 || c.Crosshair.X > float32(c.Camera.Width) || c.Crosshair.Y > float32(c.Camera.Height) {
		return fmt.Errorf("%w: crosshair (%v,%v) is outside of the %vx%v capture frame", ErrInvalid, c.Crosshair.X, c.Crosshair.Y, c.Camera.Width, c.Camera.Height)
	}
	if c.ClassFilter == "" {
		return fmt.Errorf("%w: class filter may not be empty", ErrInvalid)
	}
	a := &c.Annotation
	if a.BaselineWidth <= 0 || a.MarkerSize <= 0 || a.MarkerGap < 0 || a.MarkerGap >= a.MarkerSize || a.MarkerThickness <= 0 {
		return fmt.Errorf("%w: crosshair marker size %v, gap %v, thickness %v, baseline %v", ErrInvalid, a.MarkerSize, a.MarkerGap, a.MarkerThickness, a.BaselineWidth)
	}
	if c.Record.Width <= 0 || c.Record.Height <= 0 || c.Record.FPS <= 0 {
		return fmt.Errorf("%w: record resolution %vx%v at %v FPS", ErrInvalid, c.Record.Width, c.Record.Height, c.Record.FPS)
	}
	if len(c.Record.Codec) != 4 {
		return fmt.Errorf("%w: record codec '%v' must be a FourCC", ErrInvalid, c.Record.Codec)
	}
	if c.Telemetry.Table == "" {
		return fmt.Errorf("%w: telemetry table may not be empty", ErrInvalid)
	}
	if c.IdleIntervalMs <= 0 {
		return fmt.Errorf("%w: idle interval %v ms", ErrInvalid, c.IdleIntervalMs)
	}
	return nil
}

// Warnings returns problems that don't prevent the pipeline from running
func (c *PipelineConfig) Warnings() []string {
	w := []string{}
	a := &c.Annotation
	if a.MarkerSize%2 != 0 || a.MarkerGap%2 != 0 {
		w = append(w, fmt.Sprintf("Crosshair marker size %v and gap %v should be even, otherwise the marker is off-center by a pixel", a.MarkerSize, a.MarkerGap))
	}
	if c.Preview.Width > c.Camera.Width || c.Preview.Height > c.Camera.Height {
		w = append(w, fmt.Sprintf("Preview %vx%v is larger than the capture %vx%v", c.Preview.Width, c.Preview.Height, c.Camera.Width, c.Camera.Height))
	}
	return w
}

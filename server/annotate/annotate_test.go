package annotate

import (
	"testing"
	"time"

	"github.com/cyclopcam/frcvision/pkg/nn"
	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/frcvision/server/config"
	"github.com/cyclopcam/frcvision/server/targeting"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// pixel returns the 3 channels of the pixel at (x,y), in memory order
func pixel(m gocv.Mat, x, y int) [3]uint8 {
	v := m.GetVecbAt(y, x)
	return [3]uint8{v[0], v[1], v[2]}
}

func TestDrawCrosshair(t *testing.T) {
	m := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer m.Close()

	red := config.Color{255, 0, 0, 255}
	DrawCrosshair(&m, camera.PixelFormatBGR, 50, 50, red, 20, 8, 1)

	// BGR memory order
	require.Equal(t, [3]uint8{0, 0, 255}, pixel(m, 40, 50))
	require.Equal(t, [3]uint8{0, 0, 255}, pixel(m, 46, 50))
	require.Equal(t, [3]uint8{0, 0, 255}, pixel(m, 60, 50))
	require.Equal(t, [3]uint8{0, 0, 255}, pixel(m, 50, 40))
	require.Equal(t, [3]uint8{0, 0, 255}, pixel(m, 50, 60))
	// Dead zone in the middle
	require.Equal(t, [3]uint8{0, 0, 0}, pixel(m, 50, 50))
	require.Equal(t, [3]uint8{0, 0, 0}, pixel(m, 48, 50))
	// Outside of the marker
	require.Equal(t, [3]uint8{0, 0, 0}, pixel(m, 65, 50))
	require.Equal(t, [3]uint8{0, 0, 0}, pixel(m, 45, 45))
}

func TestDrawCrosshairRGB(t *testing.T) {
	m := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer m.Close()
	DrawCrosshair(&m, camera.PixelFormatRGB, 50, 50, config.Color{255, 0, 0, 255}, 20, 8, 1)
	require.Equal(t, [3]uint8{255, 0, 0}, pixel(m, 40, 50))
}

func TestDrawCrosshairAlpha(t *testing.T) {
	m := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer m.Close()
	DrawCrosshair(&m, camera.PixelFormatBGR, 50, 50, config.Color{255, 255, 255, 128}, 20, 8, 1)
	p := pixel(m, 40, 50)
	require.InDelta(t, 128, int(p[0]), 2)
	require.Equal(t, [3]uint8{0, 0, 0}, pixel(m, 50, 50))

	// A marker partially outside the image must not panic
	DrawCrosshair(&m, camera.PixelFormatBGR, 98, 2, config.Color{255, 255, 255, 128}, 20, 8, 1)
	// Entirely outside
	DrawCrosshair(&m, camera.PixelFormatBGR, 500, 500, config.Color{255, 255, 255, 128}, 20, 8, 1)
	// Invisible
	DrawCrosshair(&m, camera.PixelFormatBGR, 20, 20, config.Color{255, 255, 255, 0}, 20, 8, 1)
	require.Equal(t, [3]uint8{0, 0, 0}, pixel(m, 10, 20))
}

func TestColorPolicy(t *testing.T) {
	p := ColorPolicy{
		Classes: map[string]config.Color{"RedCargo": {255, 0, 0, 255}},
		Default: config.Color{1, 2, 3, 255},
	}
	require.Equal(t, config.Color{255, 0, 0, 255}, p.ColorOf("RedCargo"))
	require.Equal(t, config.Color{1, 2, 3, 255}, p.ColorOf("Robot"))
}

func TestAnnotate(t *testing.T) {
	cfg := config.Default().Annotation
	cfg.ReferenceColor = config.Color{255, 255, 255, 255}
	a := NewAnnotator(cfg, nn.Point{X: 320, Y: 240})
	require.Equal(t, 1.0, a.Scale(640))
	require.Equal(t, 2.0, a.Scale(1280))

	m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer m.Close()
	frame := &camera.Frame{Mat: m, Format: camera.PixelFormatBGR, Captured: time.Now()}

	labels := nn.LabelTable{"background", "RedCargo", "BlueCargo"}
	dets := []nn.RawDetection{
		{ClassID: 1, Confidence: 0.9, Box: nn.Rect{Left: 100, Top: 100, Right: 200, Bottom: 200}},
	}
	sel, q, err := targeting.NewSelector(labels).Select(dets, targeting.FilterBoth, nn.Point{X: 320, Y: 240}, frame.Captured)
	require.NoError(t, err)
	a.Annotate(frame, sel, q)

	// Box edge in the RedCargo color
	red := cfg.ClassColors["RedCargo"]
	require.Equal(t, [3]uint8{red[2], red[1], red[0]}, pixel(m, 150, 100))
	// Target marker arm, to the left of the target center
	green := cfg.TargetColor
	require.Equal(t, [3]uint8{green[2], green[1], green[0]}, pixel(m, 150-cfg.MarkerSize/2+2, 150))
	// Reference marker arm
	require.Equal(t, [3]uint8{255, 255, 255}, pixel(m, 320-cfg.MarkerSize/2+2, 240))
	// Reference marker dead zone
	require.Equal(t, [3]uint8{0, 0, 0}, pixel(m, 320, 240))
}

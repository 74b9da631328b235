package camera

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestFrame(t *testing.T) {
	m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer m.Close()
	f := &Frame{Mat: m, Format: PixelFormatBGR}
	require.Equal(t, 640, f.Width())
	require.Equal(t, 480, f.Height())
	require.Equal(t, "640x480", f.Size())
	require.Equal(t, Signature{640, 480, PixelFormatBGR}, f.Signature())
	require.False(t, f.Empty())

	gray := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8U)
	defer gray.Close()
	require.True(t, (&Frame{Mat: gray, Format: PixelFormatBGR}).Empty())

	var nilFrame *Frame
	require.True(t, nilFrame.Empty())

	require.True(t, PixelFormatRGB.Valid())
	require.False(t, PixelFormat("yuv").Valid())
}

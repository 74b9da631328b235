package streamer

import (
	"bytes"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/frcvision/server/telemetry"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func readPart(t *testing.T, mr *multipart.Reader) []byte {
	part, err := mr.NextPart()
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
	b, err := io.ReadAll(part)
	require.NoError(t, err)
	return b
}

func TestMJPEGStream(t *testing.T) {
	s := NewStreamer(logs.NewTestingLog(t), "Jetson", 50, 320, 180)
	require.False(t, s.HasViewers())

	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?action=stream&compression=30")
	require.NoError(t, err)
	require.Contains(t, resp.Header.Get("Content-Type"), "multipart/x-mixed-replace")
	mr := multipart.NewReader(resp.Body, "frame")

	// The first frame is the blank keepalive frame
	blank := readPart(t, mr)
	img, err := jpeg.Decode(bytes.NewReader(blank))
	require.NoError(t, err)
	require.Equal(t, 320, img.Bounds().Dx())
	require.True(t, s.HasViewers())

	frame := gocv.NewMatWithSize(180, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.SetTo(gocv.NewScalar(0, 0, 255, 0))
	require.NoError(t, s.PutFrame(frame, camera.PixelFormatBGR))
	require.Equal(t, int64(1), s.FramesPut())

	jpg := readPart(t, mr)
	img, err = jpeg.Decode(bytes.NewReader(jpg))
	require.NoError(t, err)
	r, g, b, _ := img.At(10, 10).RGBA()
	require.Greater(t, r>>8, uint32(200))
	require.Less(t, g>>8, uint32(50))
	require.Less(t, b>>8, uint32(50))

	resp.Body.Close()
	require.Eventually(t, func() bool { return !s.HasViewers() }, 3*time.Second, 10*time.Millisecond)
}

func TestPutFrameWithoutViewers(t *testing.T) {
	s := NewStreamer(logs.NewTestingLog(t), "Jetson", 50, 320, 180)
	frame := gocv.NewMatWithSize(18, 32, gocv.MatTypeCV8UC3)
	defer frame.Close()
	require.NoError(t, s.PutFrame(frame, camera.PixelFormatRGB))

	empty := gocv.NewMat()
	defer empty.Close()
	require.Error(t, s.PutFrame(empty, camera.PixelFormatRGB))
	require.Equal(t, int64(2), s.FramesPut())
	require.Equal(t, int64(1), s.EncodeErrors())
}

func TestSlowViewerDoesNotBlock(t *testing.T) {
	s := NewStreamer(logs.NewTestingLog(t), "Jetson", 50, 32, 18)
	v := s.addViewer("Test", 0)
	defer s.removeViewer(v)
	require.Equal(t, 50, v.quality)
	require.Equal(t, int64(1), s.ViewersServed())

	frame := gocv.NewMatWithSize(18, 32, gocv.MatTypeCV8UC3)
	defer frame.Close()
	for i := 0; i < 10; i++ {
		require.NoError(t, s.PutFrame(frame, camera.PixelFormatBGR))
	}
	require.Len(t, v.frames, ViewerSendBufferSize)
	require.Equal(t, int64(10-ViewerSendBufferSize), v.dropped.Load())
}

func TestCameraPublisher(t *testing.T) {
	store := telemetry.NewStore()
	p := NewCameraPublisher(logs.NewTestingLog(t), store, "Jetson", 1181)
	p.interfaceAddrs = func() ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
			&net.IPNet{IP: net.ParseIP("10.70.28.11"), Mask: net.CIDRMask(24, 32)},
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPAddr{IP: net.ParseIP("172.22.11.2")},
		}, nil
	}
	require.NoError(t, p.Publish())
	streams := store.Table("CameraPublisher/Jetson").GetStringArray(telemetry.KeyStreams, nil)
	require.Equal(t, []string{
		"mjpg:http://10.70.28.11:1181/?action=stream",
		"mjpg:http://172.22.11.2:1181/?action=stream",
	}, streams)
}

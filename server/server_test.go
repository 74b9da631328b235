package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cyclopcam/frcvision/server/config"
	"github.com/cyclopcam/frcvision/server/metrics"
	"github.com/cyclopcam/frcvision/server/record"
	"github.com/cyclopcam/frcvision/server/streamer"
	"github.com/cyclopcam/frcvision/server/telemetry"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, sessions *record.SessionDB) (*Server, *httptest.Server) {
	log := logs.NewTestingLog(t)
	cfg := config.Default()
	s := NewServer(log, cfg, Parts{
		Store:    telemetry.NewStore(),
		Streamer: streamer.NewStreamer(log, cfg.StreamName, cfg.Preview.Compression, cfg.Preview.Width, cfg.Preview.Height),
		Metrics:  metrics.New(),
		Sessions: sessions,
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestPingAndMetrics(t *testing.T) {
	s, ts := newTestServer(t, nil)
	code, _ := get(t, ts.URL+"/api/ping")
	require.Equal(t, 200, code)

	s.Metrics.PipelineFPS.Store(30)
	code, body := get(t, ts.URL+"/metrics")
	require.Equal(t, 200, code)
	require.Contains(t, body, "frcvision_pipeline_fps 30")
	require.Contains(t, body, "frcvision_frames_processed_total")
}

func TestTelemetryRoutes(t *testing.T) {
	s, ts := newTestServer(t, nil)
	require.NoError(t, s.Store.Table("SmartDashboard").PutBoolean(telemetry.KeyEnabled, true))

	code, body := get(t, ts.URL+"/api/telemetry/tables")
	require.Equal(t, 200, code)
	tables := []string{}
	require.NoError(t, json.Unmarshal([]byte(body), &tables))
	require.Equal(t, []string{"SmartDashboard"}, tables)
}

func TestRecordingsWithoutCatalog(t *testing.T) {
	_, ts := newTestServer(t, nil)
	code, body := get(t, ts.URL+"/api/recordings")
	require.Equal(t, 200, code)
	require.Equal(t, "[]", strings.TrimSpace(body))
}

func TestRecordings(t *testing.T) {
	dbPath := "test-server-sessions.sqlite"
	os.Remove(dbPath)
	defer os.Remove(dbPath)

	db, err := record.NewSessionDB(logs.NewTestingLog(t), dbPath)
	require.NoError(t, err)
	defer db.Close()
	start := time.Date(2022, 3, 19, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		session, err := db.StartSession("recordings/"+string(rune('a'+i))+".avi", start.Add(time.Duration(i)*time.Minute), 5)
		require.NoError(t, err)
		require.NoError(t, db.FinishSession(session, int64(10*i), start.Add(time.Duration(i)*time.Minute+30*time.Second)))
	}

	_, ts := newTestServer(t, db)
	code, body := get(t, ts.URL+"/api/recordings?limit=2")
	require.Equal(t, 200, code)
	sessions := []struct {
		Path   string `json:"path"`
		Frames int64  `json:"frames"`
	}{}
	require.NoError(t, json.Unmarshal([]byte(body), &sessions))
	require.Len(t, sessions, 2)
	require.Equal(t, "recordings/c.avi", sessions[0].Path)
	require.Equal(t, int64(20), sessions[0].Frames)
}

func TestStreamRoute(t *testing.T) {
	_, ts := newTestServer(t, nil)
	for _, path := range []string{"/?action=stream", "/stream.mjpg"} {
		ctx, cancel := context.WithCancel(context.Background())
		req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "multipart/x-mixed-replace"))
		// The blank frame is sent immediately
		line, err := bufio.NewReader(resp.Body).ReadString('\n')
		require.NoError(t, err)
		require.Equal(t, "--frame\r\n", line)
		cancel()
		resp.Body.Close()
	}
}

func TestShutdownCancelsContext(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.Shutdown()
	select {
	case <-s.Context().Done():
	default:
		t.Fatal("Context was not cancelled")
	}
	_, ok := <-s.ShutdownComplete
	require.False(t, ok)
}

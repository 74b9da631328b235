package streamer

import (
	"net/http"
	"strconv"
)

// ServeHTTP streams multipart/x-mixed-replace JPEG frames until the client goes away.
// The optional "compression" query parameter is the JPEG quality.
func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	quality, _ := strconv.Atoi(r.URL.Query().Get("compression"))

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")

	v := s.addViewer("MJPEG", quality)
	defer s.removeViewer(v)

	done := r.Context().Done()

	// Send whatever we have right away, so the dashboard isn't blank while the robot is disabled
	jpg := s.lastFrame(v.quality)
	for jpg != nil {
		if !writePart(w, jpg) {
			return
		}
		flusher.Flush()
		v.sent.Add(1)
		jpg = s.next(v, done)
	}
}

func writePart(w http.ResponseWriter, jpg []byte) bool {
	header := "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: " + strconv.Itoa(len(jpg)) + "\r\n\r\n"
	if _, err := w.Write([]byte(header)); err != nil {
		return false
	}
	if _, err := w.Write(jpg); err != nil {
		return false
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		return false
	}
	return true
}

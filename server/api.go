package server

import (
	"net/http"

	"github.com/cyclopcam/frcvision/server/record"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// Number of sessions returned by /api/recordings when no limit is given
const defaultRecordingsLimit = 100

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	// mjpg-streamer compatible URL, which is what CameraPublisher advertises: /?action=stream
	www.Handle(s.Log, router, "GET", "/", s.httpStreamMJPEG)
	www.Handle(s.Log, router, "GET", "/stream.mjpg", s.httpStreamMJPEG)
	www.Handle(s.Log, router, "GET", "/api/stream/ws", s.httpStreamWebSocket)

	www.Handle(s.Log, router, "GET", "/api/ping", s.httpPing)
	www.Handle(s.Log, router, "GET", "/api/recordings", s.httpRecordings)

	s.Telemetry.AddRoutes(router)

	if s.Metrics != nil {
		router.Handler("GET", "/metrics", s.Metrics.Handler())
	}

	s.httpRouter = router
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendOK(w)
}

func (s *Server) httpStreamMJPEG(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.Streamer == nil {
		www.PanicBadRequestf("No stream is configured")
	}
	s.Streamer.ServeHTTP(w, r)
}

func (s *Server) httpStreamWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.Streamer == nil {
		www.PanicBadRequestf("No stream is configured")
	}
	quality := int(www.QueryInt(r, "compression"))

	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpStreamWebSocket websocket upgrade failed: %v", err)
		return
	}
	// ServeWebSocket closes the connection
	s.Streamer.ServeWebSocket(c, quality)
}

func (s *Server) httpRecordings(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.Sessions == nil {
		www.SendJSON(w, []record.Session{})
		return
	}
	limit := int(www.QueryInt(r, "limit"))
	if limit <= 0 {
		limit = defaultRecordingsLimit
	}
	sessions, err := s.Sessions.Sessions(limit)
	www.Check(err)
	www.SendJSON(w, sessions)
}

// Package server hosts the HTTP surfaces of the vision coprocessor: the preview
// stream, the telemetry API, Prometheus metrics, and the recording catalog.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/frcvision/server/config"
	"github.com/cyclopcam/frcvision/server/metrics"
	"github.com/cyclopcam/frcvision/server/record"
	"github.com/cyclopcam/frcvision/server/streamer"
	"github.com/cyclopcam/frcvision/server/telemetry"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log       logs.Log
	Config    *config.PipelineConfig
	Store     *telemetry.Store
	Telemetry *telemetry.API
	Streamer  *streamer.Streamer
	Metrics   *metrics.Metrics
	Sessions  *record.SessionDB // May be nil, if recording is not catalogued

	// Closed when Shutdown() has finished
	ShutdownComplete chan bool

	// Cancelled by Shutdown(). Long running goroutines (the pipeline, the camera publisher) should run under this context.
	shutdownContext context.Context
	cancelShutdown  context.CancelFunc

	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader
}

// Parts that the server exposes over HTTP. Sessions and Metrics may be nil.
type Parts struct {
	Store    *telemetry.Store
	Streamer *streamer.Streamer
	Metrics  *metrics.Metrics
	Sessions *record.SessionDB
}

func NewServer(log logs.Log, cfg *config.PipelineConfig, parts Parts) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Log:              log,
		Config:           cfg,
		Store:            parts.Store,
		Telemetry:        telemetry.NewAPI(log, parts.Store),
		Streamer:         parts.Streamer,
		Metrics:          parts.Metrics,
		Sessions:         parts.Sessions,
		ShutdownComplete: make(chan bool),
		shutdownContext:  ctx,
		cancelShutdown:   cancel,
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupHttpRoutes()
	return s
}

// Context is cancelled when the server shuts down
func (s *Server) Context() context.Context {
	return s.shutdownContext
}

// Handler is the root HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// port example: ":1181"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
			s.Shutdown()
		} else {
			// Shutdown() was called by something other than ourselves, and it closed signalIn
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

// Shutdown stops the HTTP server and cancels Context(). It may only be called once.
func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}
	s.cancelShutdown()
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Log.Warnf("HTTP server shutdown: %v", err)
		}
	}
	s.Log.Infof("Shutdown complete")
	close(s.ShutdownComplete)
}

package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/frcvision/pkg/nn"
	"github.com/cyclopcam/frcvision/pkg/ssdnet"
	"github.com/cyclopcam/frcvision/server"
	"github.com/cyclopcam/frcvision/server/annotate"
	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/frcvision/server/config"
	"github.com/cyclopcam/frcvision/server/metrics"
	"github.com/cyclopcam/frcvision/server/pipeline"
	"github.com/cyclopcam/frcvision/server/preview"
	"github.com/cyclopcam/frcvision/server/record"
	"github.com/cyclopcam/frcvision/server/streamer"
	"github.com/cyclopcam/frcvision/server/targeting"
	"github.com/cyclopcam/frcvision/server/telemetry"
	"github.com/cyclopcam/logs"
)

func main() {
	parser := argparse.NewParser("frcdetect", "Detect game pieces and publish the closest one to the robot")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file", Default: ""})
	listen := parser.String("", "listen", &argparse.Options{Help: "HTTP address for the stream, telemetry and metrics (overrides config)", Default: ""})
	forceEnable := parser.Flag("", "force-enable", &argparse.Options{Help: "Process frames even when the Enabled flag is false", Default: false})
	noSystemd := parser.Flag("", "nosystemd", &argparse.Options{Help: "Don't notify systemd when we're ready", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *forceEnable {
		cfg.ForceEnable = true
	}
	for _, w := range cfg.Warnings() {
		logger.Warnf("%v", w)
	}
	port, err := listenPort(cfg.Listen)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	detector, err := ssdnet.Load(logger, ssdnet.ModelSetup{
		ModelPath:   cfg.Model.ModelPath(),
		LabelsPath:  cfg.Model.LabelsPath(),
		InputWidth:  cfg.Model.InputWidth,
		InputHeight: cfg.Model.InputHeight,
		InputBlob:   cfg.Model.InputBlob,
		ScoresBlob:  cfg.Model.ScoresBlob,
		BoxesBlob:   cfg.Model.BoxesBlob,
		UseCUDA:     cfg.Model.UseCUDA,
	})
	if err != nil {
		logger.Errorf("Failed to load model: %v", err)
		os.Exit(1)
	}
	defer detector.Close()

	cam, err := camera.Open(logger, cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.Rate)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	defer cam.Close()

	store := telemetry.NewStore()
	m := metrics.New()
	stream := streamer.NewStreamer(logger, cfg.StreamName, cfg.Preview.Compression, cfg.Preview.Width, cfg.Preview.Height)
	m.Stream = stream

	var sessions *record.SessionDB
	if cfg.Record.DB != "" {
		sessions, err = record.NewSessionDB(logger, cfg.Record.DB)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		defer sessions.Close()
	}
	recorder := record.NewRecorder(logger, cfg.Record, record.NewVideoFileSinkFactory(cfg.Record.Codec), sessions)
	recorder.Metrics = m
	defer recorder.Close()

	transpiler := preview.NewTranspiler(logger, preview.CPUOps{}, cfg.Preview.Width, cfg.Preview.Height, camera.PixelFormat(cfg.Preview.Format))
	defer transpiler.Close()

	controller := pipeline.NewController(logger, cfg, pipeline.Parts{
		Source:    cam,
		Detector:  detector,
		Selector:  targeting.NewSelector(detector.Labels()),
		Annotator: annotate.NewAnnotator(cfg.Annotation, nn.Point{X: cfg.Crosshair.X, Y: cfg.Crosshair.Y}),
		Preview:   transpiler,
		Stream:    stream,
		Recorder:  recorder,
		Table:     store.Table(cfg.Telemetry.Table),
		Metrics:   m,
	})

	srv := server.NewServer(logger, cfg, server.Parts{
		Store:    store,
		Streamer: stream,
		Metrics:  m,
		Sessions: sessions,
	})
	srv.ListenForKillSignals()

	publisher := streamer.NewCameraPublisher(logger, store, cfg.StreamName, port)
	go publisher.Run(srv.Context())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		controller.Run(srv.Context())
	}()

	if !*noSystemd {
		daemon.SdNotify(false, daemon.SdNotifyReady)
	}

	if err := srv.ListenHTTP(cfg.Listen); err != nil {
		logger.Errorf("ListenHTTP returned: %v", err)
		srv.Shutdown()
	}
	<-srv.ShutdownComplete
	// Let the current frame finish before the camera and model are released
	wg.Wait()
}

// listenPort extracts the port of an address such as ":1181"
func listenPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("Invalid listen address '%v': %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("Invalid port in listen address '%v'", addr)
	}
	return port, nil
}

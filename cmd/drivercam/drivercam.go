package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/frcvision/server"
	"github.com/cyclopcam/frcvision/server/camera"
	"github.com/cyclopcam/frcvision/server/config"
	"github.com/cyclopcam/frcvision/server/drivercam"
	"github.com/cyclopcam/frcvision/server/metrics"
	"github.com/cyclopcam/frcvision/server/preview"
	"github.com/cyclopcam/frcvision/server/streamer"
	"github.com/cyclopcam/frcvision/server/telemetry"
	"github.com/cyclopcam/logs"
)

func main() {
	parser := argparse.NewParser("drivercam", "Stream the front or rear driver camera")
	frontDevice := parser.String("", "front-camera", &argparse.Options{Help: "Front camera device (see v4l2-ctl --list-devices)", Default: "/dev/video3"})
	rearDevice := parser.String("", "rear-camera", &argparse.Options{Help: "Rear camera device", Default: "/dev/video1"})
	width := parser.Int("", "width", &argparse.Options{Help: "Capture and stream width", Default: 320})
	height := parser.Int("", "height", &argparse.Options{Help: "Capture and stream height", Default: 180})
	rate := parser.Int("", "rate", &argparse.Options{Help: "Capture frames per second", Default: 20})
	compression := parser.Int("", "stream-compression", &argparse.Options{Help: "JPEG quality for clients that don't specify it", Default: 20})
	port := parser.Int("p", "port", &argparse.Options{Help: "HTTP port of the stream", Default: 1181})
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

	front, err := camera.Open(logger, *frontDevice, *width, *height, float64(*rate))
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	defer front.Close()
	rear, err := camera.Open(logger, *rearDevice, *width, *height, float64(*rate))
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	defer rear.Close()

	cfg := config.Default()
	cfg.Listen = ":" + strconv.Itoa(*port)
	cfg.StreamName = "Driver"

	store := telemetry.NewStore()
	m := metrics.New()
	stream := streamer.NewStreamer(logger, cfg.StreamName, *compression, *width, *height)
	m.Stream = stream

	transpiler := preview.NewTranspiler(logger, preview.CPUOps{}, *width, *height, camera.PixelFormatBGR)
	defer transpiler.Close()

	switcher, err := drivercam.NewSwitcher(logger, front, rear, transpiler, camera.PixelFormatBGR, stream, store.Table(drivercam.TableName))
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	srv := server.NewServer(logger, cfg, server.Parts{
		Store:    store,
		Streamer: stream,
		Metrics:  m,
	})
	srv.ListenForKillSignals()

	publisher := streamer.NewCameraPublisher(logger, store, cfg.StreamName, *port)
	go publisher.Run(srv.Context())

	done := make(chan bool)
	go func() {
		switcher.Run(srv.Context())
		close(done)
	}()

	if !*noSystemd {
		daemon.SdNotify(false, daemon.SdNotifyReady)
	}

	if err := srv.ListenHTTP(cfg.Listen); err != nil {
		logger.Errorf("ListenHTTP returned: %v", err)
		srv.Shutdown()
	}
	<-srv.ShutdownComplete
	<-done
}

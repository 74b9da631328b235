package record

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Sink receives the frames of one recording session
type Sink interface {
	Write(img gocv.Mat) error
	Close() error
}

// SinkFactory opens a sink that writes width x height BGR frames to path
type SinkFactory func(path string, width, height int, fps float64) (Sink, error)

// VideoFileSink writes frames into a video file through OpenCV
type VideoFileSink struct {
	writer *gocv.VideoWriter
}

// NewVideoFileSinkFactory returns a SinkFactory that writes with the given FourCC (eg "MJPG")
func NewVideoFileSinkFactory(codec string) SinkFactory {
	return func(path string, width, height int, fps float64) (Sink, error) {
		w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
		if err != nil {
			return nil, fmt.Errorf("Failed to create video file %v: %w", path, err)
		}
		if !w.IsOpened() {
			w.Close()
			return nil, fmt.Errorf("Failed to open video file %v with codec %v", path, codec)
		}
		return &VideoFileSink{writer: w}, nil
	}
}

func (v *VideoFileSink) Write(img gocv.Mat) error {
	return v.writer.Write(img)
}

func (v *VideoFileSink) Close() error {
	return v.writer.Close()
}

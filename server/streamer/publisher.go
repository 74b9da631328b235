package streamer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cyclopcam/frcvision/server/telemetry"
	"github.com/cyclopcam/logs"
)

// DefaultPublishInterval is how often the stream addresses are re-published.
// The network interfaces of the robot can change when the radio reconnects.
const DefaultPublishInterval = 5 * time.Second

// CameraPublisher advertises the URL of a stream in the CameraPublisher/<name> table,
// which is where the driver station dashboard looks for camera streams.
type CameraPublisher struct {
	Log      logs.Log
	Table    telemetry.Table
	Port     int
	Interval time.Duration

	// Returns the addresses of the local network interfaces. Replaced by tests.
	interfaceAddrs func() ([]net.Addr, error)
}

func NewCameraPublisher(log logs.Log, store *telemetry.Store, streamName string, port int) *CameraPublisher {
	return &CameraPublisher{
		Log:            log,
		Table:          store.Table(telemetry.CameraPublisherTable).SubTable(streamName),
		Port:           port,
		Interval:       DefaultPublishInterval,
		interfaceAddrs: net.InterfaceAddrs,
	}
}

// Streams returns one URL per non-loopback IPv4 address of this machine
func (p *CameraPublisher) Streams() ([]string, error) {
	addrs, err := p.interfaceAddrs()
	if err != nil {
		return nil, err
	}
	streams := []string{}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.To4() == nil {
			continue
		}
		streams = append(streams, fmt.Sprintf("mjpg:http://%v:%v/?action=stream", ip.To4(), p.Port))
	}
	return streams, nil
}

func (p *CameraPublisher) Publish() error {
	streams, err := p.Streams()
	if err != nil {
		return fmt.Errorf("Failed to list network interfaces: %w", err)
	}
	if err := p.Table.PutStringArray(telemetry.KeyStreams, streams); err != nil {
		return err
	}
	return p.Table.PutString("source", "usb:frcvision")
}

// Run publishes immediately, and then every Interval, until ctx is done
func (p *CameraPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		if err := p.Publish(); err != nil {
			p.Log.Warnf("Camera publisher: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

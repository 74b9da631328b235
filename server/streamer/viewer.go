package streamer

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/frcvision/pkg/log"
	"github.com/cyclopcam/logs"
)

type viewer struct {
	id      int64
	quality int
	frames  chan []byte
	log     logs.Log

	sent        atomic.Int64
	dropped     atomic.Int64
	lastDropMsg time.Time // Only touched while the Streamer lock is held
}

func newViewerLog(parent logs.Log, streamName, kind string, id int64) logs.Log {
	return log.NewPrefixLogger(parent, fmt.Sprintf("Stream %v %v %v", streamName, kind, id))
}

// offer never blocks, so that a slow viewer can't hold up the pipeline
func (v *viewer) offer(jpg []byte) {
	select {
	case v.frames <- jpg:
	default:
		n := v.dropped.Add(1)
		if now := time.Now(); now.Sub(v.lastDropMsg) > 5*time.Second {
			v.log.Infof("Dropped %v/%v frames", n, n+v.sent.Load())
			v.lastDropMsg = now
		}
	}
}

package streamer

import (
	"encoding/json"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Sent by client over websocket
type webSocketJSON struct {
	Command string `json:"command"`
}

// ServeWebSocket sends every frame as a binary websocket message.
// The client can send {"command": "pause"} and {"command": "resume"}, eg when the
// dashboard tab is hidden.
func (s *Streamer) ServeWebSocket(conn *websocket.Conn, quality int) {
	defer conn.Close()
	v := s.addViewer("WebSocket", quality)
	defer s.removeViewer(v)

	var paused atomic.Bool
	done := make(chan struct{})
	go s.webSocketReader(v, conn, &paused, done)

	jpg := s.lastFrame(v.quality)
	for jpg != nil {
		if !paused.Load() {
			if err := conn.WriteMessage(websocket.BinaryMessage, jpg); err != nil {
				v.log.Infof("Error writing to websocket: %v", err)
				return
			}
			v.sent.Add(1)
		}
		jpg = s.next(v, done)
	}
}

// Read commands from the websocket. done is closed when the socket closes.
func (s *Streamer) webSocketReader(v *viewer, conn *websocket.Conn, paused *atomic.Bool, done chan struct{}) {
	defer close(done)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		msg := webSocketJSON{}
		if err := json.Unmarshal(data, &msg); err != nil {
			v.log.Infof("Failed to decode websocket JSON: %v", err)
			continue
		}
		switch msg.Command {
		case "pause":
			paused.Store(true)
		case "resume":
			paused.Store(false)
		default:
			v.log.Infof("Unknown websocket message from client: '%v'", msg.Command)
		}
	}
}

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/RoastedBrotato/audio-translator/internal/audio"
	"github.com/RoastedBrotato/audio-translator/internal/protocol"
	"github.com/RoastedBrotato/audio-translator/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 16 * 1024,
	// Sessions are identified by session_id, not by origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEmitter delivers transcript messages over one WebSocket connection.
// gorilla/websocket allows a single concurrent writer, so all writes are
// serialized through the mutex.
type wsEmitter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (e *wsEmitter) Emit(msg protocol.ServerMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteJSON(msg)
}

// handleStream implements GET /v1/stream: upgrades to a WebSocket, registers
// the session and runs the inbound-frame receiver until disconnect.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.requireASR(w) {
		return
	}

	params := protocol.ParseStreamParams(r.URL.Query())
	if err := protocol.ValidateSessionID(params.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	emitter := &wsEmitter{conn: conn}

	sess, err := s.registry.CreateSession(params, emitter)
	if err != nil {
		emitter.Emit(protocol.Error(err.Error()))
		return
	}
	defer s.registry.CloseSession(sess)

	emitter.Emit(protocol.Info(fmt.Sprintf("session %s started", sess.ID)))

	s.readFrames(conn, sess, emitter)
}

// readFrames is the inbound-frame receiver: it appends arriving audio as
// fast as the transport delivers it, independent of the evaluation loop.
// Malformed frames are rejected with an error message; the session stays
// open. Returns on disconnect.
func (s *Server) readFrames(conn *websocket.Conn, sess *session.Session, emitter *wsEmitter) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("WebSocket closed unexpectedly",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			// Control/text frames carry no audio.
			continue
		}

		samples, err := audio.DecodePCM16(data)
		if err != nil {
			sess.RecordDecodeError()
			s.metrics.RecordDecodeError()
			emitter.Emit(protocol.Error(fmt.Sprintf("rejected frame: %v", err)))
			continue
		}

		s.metrics.RecordFrameReceived(len(data))
		sess.AddAudio(samples)
	}
}

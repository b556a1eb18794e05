package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/dotcommander/mcpagent/internal/event"
)

const (
	frameUserMessage  = "user_msg"
	frameUserReceived = "user_msg_received"

	writeTimeout = 10 * time.Second
)

// frame is a client message, and the shape of the acknowledgement and
// protocol error replies.
type frame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// handleWebSocket serves one chat connection. Messages are processed one at a
// time; a conversation is cancelled when the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID, _ := gonanoid.New()
	log := s.log.With().Str("conn", connID).Logger()
	s.track(connID, conn)
	defer func() {
		s.untrack(connID)
		_ = conn.Close()
		log.Info().Msg("client disconnected")
	}()
	log.Info().Str("ip", r.RemoteAddr).Msg("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan []byte)
	go func() {
		defer cancel()
		defer close(frames)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("websocket read failed")
				}
				return
			}
			select {
			case frames <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	out := &wsSink{conn: conn}
	for msg := range frames {
		if err := s.handleFrame(ctx, log, out, msg); err != nil {
			log.Warn().Err(err).Msg("websocket write failed")
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, log zerolog.Logger, out *wsSink, msg []byte) error {
	var in frame
	if err := json.Unmarshal(msg, &in); err != nil {
		return out.write(event.Failure("malformed message: " + err.Error()))
	}
	if in.Type != frameUserMessage {
		return out.write(event.Failure(fmt.Sprintf("unsupported message type %q", in.Type)))
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return out.write(event.Failure("message content is empty"))
	}

	if err := out.write(frame{Type: frameUserReceived, Content: content}); err != nil {
		return err
	}

	id, _ := gonanoid.New()
	convLog := log.With().Str("conversation", id).Logger()
	convLog.Info().Int("chars", len(content)).Msg("conversation started")
	return s.cfg.Runner.Run(convLog.WithContext(ctx), content, out)
}

// wsSink writes events as JSON text frames. It is only used from the
// connection goroutine.
type wsSink struct {
	conn *websocket.Conn
}

func (w *wsSink) Emit(_ context.Context, e event.Event) error {
	return w.write(e)
}

func (w *wsSink) write(v any) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}

func (s *Server) track(id string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = conn
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.conns {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
		delete(s.conns, id)
	}
}

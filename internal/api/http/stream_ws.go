package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c3-joao/windturbine-backend/internal/application/stream"
	"github.com/c3-joao/windturbine-backend/internal/domain"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// wsSink writes events as JSON text frames. Writes are serialised since
// gorilla connections support one concurrent writer.
type wsSink struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	onError func(error)
}

func (s *wsSink) Send(_ context.Context, event stream.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(wsFrame{Event: event.Name, Data: event.Data}); err != nil {
		s.onError(err)
		return err
	}
	return nil
}

func (s *wsSink) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
		s.onError(err)
		return err
	}
	return nil
}

func (s *wsSink) close(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func (h *handler) handleStreamWebSocket(w http.ResponseWriter, r *http.Request) {
	req, err := h.streamRequest(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf(r.Context(), "stream: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancelCause(r.Context())
	defer cancel(nil)

	sink := &wsSink{
		conn: conn,
		onError: func(err error) {
			cancel(&domain.TransportError{Op: "websocket write", Err: err})
		},
	}

	sub, err := h.streams.Subscribe(ctx, req, sink)
	if err != nil {
		h.logger.Errorf(r.Context(), "stream: subscribe failed: %v", err)
		sink.close(websocket.CloseInternalServerErr, "failed to start stream")
		return
	}

	go readUntilClosed(conn, cancel)

	ticker := time.NewTicker(h.opts.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-sub.Done():
			if ctx.Err() == nil {
				sink.close(websocket.CloseNormalClosure, "stream closed")
			}
			return
		case <-ticker.C:
			_ = sink.ping()
		}
	}
}

// readUntilClosed discards client messages and cancels the subscription once
// the peer goes away, classifying clean closes separately from failures.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelCauseFunc) {
	conn.SetReadLimit(wsReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				cancel(stream.ErrClientClosed)
			} else {
				cancel(&domain.TransportError{Op: "websocket read", Err: err})
			}
			return
		}
	}
}

package channel

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// session owns one open connection: a write pump draining the outbound
// queue and a read pump that turns read errors into ConnectionLost.
type session struct {
	gen  uint64
	id   string
	conn Conn

	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	writeWait time.Duration
	logger    *slog.Logger

	// lost reports a fatal transport error for this session to the loop.
	lost func(gen uint64, err error)
	// inbound receives every successfully read frame.
	inbound func(kind int, data []byte)
}

func newSession(gen uint64, id string, conn Conn, queue int, writeWait time.Duration, logger *slog.Logger) *session {
	return &session{
		gen:       gen,
		id:        id,
		conn:      conn,
		send:      make(chan []byte, queue),
		done:      make(chan struct{}),
		writeWait: writeWait,
		logger:    logger,
	}
}

func (s *session) start() {
	go s.writePump()
	go s.readPump()
}

// enqueue hands a payload to the write pump without blocking.
// It reports false if the session is closed or its queue is full.
func (s *session) enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// ping sends a websocket ping control frame.
// WriteControl may run concurrently with the write pump.
func (s *session) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait))
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *session) writePump() {
	for {
		select {
		case <-s.done:
			return

		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.fail(fmt.Errorf("write: %w", err))
				return
			}
		}
	}
}

func (s *session) readPump() {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(fmt.Errorf("read: %w", err))
			return
		}
		if s.inbound != nil {
			s.inbound(kind, data)
		}
	}
}

func (s *session) fail(err error) {
	select {
	case <-s.done:
		// Closed locally; the loop already knows.
		return
	default:
	}

	if !errors.Is(err, websocket.ErrCloseSent) {
		if code, text, ok := closeStatus(err); ok {
			s.logger.Info("connection closed by remote", "conn_id", s.id, "code", code, "reason", text)
		} else {
			s.logger.Info("connection error", "conn_id", s.id, "error", err)
		}
	}

	if s.lost != nil {
		s.lost(s.gen, err)
	}
}

package listener

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// peer is one websocket client. Its sender forwards the subscription's
// frames; its receiver hands text frames to onText. When either side stops
// the other follows.
type peer struct {
	conn   *websocket.Conn
	sub    *Subscription
	bcast  *Broadcaster
	onText func(p *peer, data []byte)
	addr   string
	logger *slog.Logger
}

func (p *peer) start() {
	go p.sender()
	go p.receiver()
}

func (p *peer) sender() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	// Closing the conn fails the receiver's pending read.
	defer p.conn.Close()

	for {
		select {
		case <-p.sub.Gone():
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = p.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case frame := <-p.sub.Frames():
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				p.logExit("sender", err)
				p.bcast.Unsubscribe(p.sub, "write_error")
				return
			}

		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.logExit("sender", err)
				p.bcast.Unsubscribe(p.sub, "ping_error")
				return
			}
		}
	}
}

func (p *peer) receiver() {
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := p.conn.ReadMessage()
		if err != nil {
			p.logExit("receiver", err)
			p.bcast.Unsubscribe(p.sub, "read_error")
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))

		if kind == websocket.TextMessage && p.onText != nil {
			p.onText(p, data)
		}
	}
}

func (p *peer) logExit(side string, err error) {
	var ce *websocket.CloseError
	switch {
	case errors.Is(err, websocket.ErrCloseSent):
	case errors.As(err, &ce):
		p.logger.Info("ws "+side+" done", "remote_addr", p.addr, "code", ce.Code, "reason", ce.Text)
	default:
		p.logger.Debug("ws "+side+" done", "remote_addr", p.addr, "error", err)
	}
}

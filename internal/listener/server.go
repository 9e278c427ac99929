package listener

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"keybridge/internal/channel"
)

// Server serves the listener page and the action websocket.
type Server struct {
	logger *slog.Logger
	bcast  *Broadcaster
	device *Device

	// Serializes apply+publish so clients see reports in the order actions
	// were applied, and a new client's first report is never stale.
	mu sync.Mutex
}

type ServerConfig struct {
	// ClientQueue is the per-client outbound frame queue size.
	ClientQueue int

	// InitialVolume seeds the simulated device.
	InitialVolume uint8
}

// NewServer constructs the listener. Call Register on a mux and Close on
// shutdown.
func NewServer(logger *slog.Logger, cfg ServerConfig) *Server {
	return &Server{
		logger: logger,
		bcast:  NewBroadcaster(logger, cfg.ClientQueue),
		device: NewDevice(cfg.InitialVolume),
	}
}

func (s *Server) Broadcaster() *Broadcaster { return s.bcast }

func (s *Server) Device() *Device { return s.device }

// Close disconnects every client.
func (s *Server) Close() { s.bcast.Close() }

// Register registers the page on "/" and the websocket on wsPath.
func (s *Server) Register(mux *http.ServeMux, wsPath string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(wsPath, s.handleWS)
	mux.HandleFunc("/{$}", s.handlePage)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades and subscribes the client with the current status as its
// first frame.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	first, err := encodeStatus(s.device.Status())
	if err != nil {
		s.logger.Error("encode status", "error", err)
		first = nil
	}
	sub := s.bcast.Subscribe(r.RemoteAddr, first)
	s.mu.Unlock()

	p := &peer{
		conn:   conn,
		sub:    sub,
		bcast:  s.bcast,
		onText: s.handleText,
		addr:   r.RemoteAddr,
		logger: s.logger,
	}
	// The peer outlives the handler; its own loops end it.
	p.start()
}

// handleText applies one action message and publishes the resulting status.
func (s *Server) handleText(p *peer, data []byte) {
	msg, err := channel.DecodeMessage(data)
	if err != nil {
		s.logger.Warn("ignoring message", "remote_addr", p.addr, "error", err, "text", string(data))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.device.Apply(msg.Action)
	s.logger.Info("action received", "remote_addr", p.addr, "action", msg.Action.String(),
		"main_volume", st.MainVolume, "muted", st.Muted, "standby", st.Standby)

	payload, err := encodeStatus(st)
	if err != nil {
		s.logger.Error("encode status", "error", err)
		return
	}
	s.bcast.Publish(payload)
}

func encodeStatus(st channel.Status) ([]byte, error) {
	return json.Marshal(st)
}

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>keybridge listener</title></head>
<body>
<h1>keybridge listener</h1>
<p>Volume: <span id="volume">{{.MainVolume}}</span>{{if .Muted}} (muted){{end}}{{if .Standby}}, standby{{end}}</p>
<p>Clients: {{.Clients}}</p>
</body>
</html>
`))

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	data := struct {
		channel.Status
		Clients int
	}{s.device.Status(), s.bcast.Subscribers()}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, data); err != nil {
		s.logger.Warn("render page", "error", err)
	}
}

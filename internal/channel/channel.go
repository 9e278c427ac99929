package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ============================================================================
// Messaging Channel
// ============================================================================
//
// The Channel owns one logical connection to a remote listener and keeps it
// alive for the life of the process:
//   - connect, then reconnect a fixed delay after every loss
//   - ping the open connection on a fixed cadence
//   - keep one read outstanding so disconnects surface promptly
//   - accept Send() from any goroutine without blocking on the network
//
// A single loop goroutine owns the lifecycle Machine. It reduces events into
// effects and executes them; dial results, read/write failures and timer
// expiries come back to it as events.
//
// ============================================================================

const (
	DefaultReconnectDelay    = 2 * time.Second
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultSendQueue         = 16

	writeWait = 5 * time.Second
	eventBuf  = 64
)

var tracer = otel.Tracer("keybridge/internal/channel")

// Config configures a Channel. Zero values select the defaults above.
type Config struct {
	// URL is the listener endpoint, e.g. ws://localhost:8000/ws.
	URL string

	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration

	// SendQueue bounds outbound messages waiting on the current connection.
	SendQueue int

	Dialer Dialer // defaults to WebsocketDialer
	Clock  Clock  // defaults to SystemClock
	Logger *slog.Logger

	// OnState is called from the channel loop for every lifecycle transition.
	// It must not block.
	OnState func(Transition)

	// OnStatus is called from the read pump for inbound status reports.
	OnStatus func(Status)
}

// Channel is a self-healing client connection to a remote listener.
type Channel struct {
	cfg    Config
	logger *slog.Logger
	clock  Clock
	dialer Dialer

	events  chan Event
	stopped chan struct{}
	running atomic.Bool
	state   atomic.Int32

	mu      sync.Mutex
	current *session // non-nil only while Open

	dials sync.WaitGroup

	// Owned by the loop goroutine.
	machine   Machine
	dialed    map[uint64]DialSucceeded
	sessions  map[uint64]*session
	reconnect Timer
}

// New validates cfg and constructs a Channel. Call Run to start it.
func New(cfg Config) (*Channel, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid websocket URL %q: scheme must be ws or wss", cfg.URL)
	}

	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = DefaultSendQueue
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer{HandshakeTimeout: cfg.HandshakeTimeout}
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Channel{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "channel"),
		clock:    cfg.Clock,
		dialer:   cfg.Dialer,
		events:   make(chan Event, eventBuf),
		stopped:  make(chan struct{}),
		dialed:   make(map[uint64]DialSucceeded),
		sessions: make(map[uint64]*session),
	}, nil
}

// URL returns the endpoint the channel connects to.
func (c *Channel) URL() string { return c.cfg.URL }

// State returns the current lifecycle state.
func (c *Channel) State() State { return State(c.state.Load()) }

// Connect requests a connection. It is idempotent: while a connection is
// being established or is open, the request is ignored.
func (c *Channel) Connect() {
	c.post(ConnectRequested{})
}

// Send transmits a on the current connection if it is open and drops it
// otherwise. It never blocks on the network and never reports an error:
// actions are idempotent commands and stale delivery is worse than none.
func (c *Channel) Send(a Action) {
	payload, err := Message{Action: a}.Encode()
	if err != nil {
		c.logger.Debug("dropping action", "action", string(a), "reason", "encode", "error", err)
		return
	}

	s := c.currentSession()
	if s == nil {
		c.logger.Debug("dropping action", "action", string(a), "reason", "not_connected")
		return
	}
	if !s.enqueue(payload) {
		c.logger.Warn("dropping action", "action", string(a), "reason", "send_queue_full", "conn_id", s.id)
		return
	}
	c.logger.Debug("action queued", "action", string(a), "conn_id", s.id)
}

// Run connects and drives the lifecycle until ctx is canceled, then closes
// the current connection. There is no other exit: transport failures only
// ever lead to a reconnect.
func (c *Channel) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("channel already running")
	}
	heartbeat := c.clock.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	go c.runHeartbeat(ctx, heartbeat)

	c.logger.Info("channel starting", "url", c.cfg.URL,
		"reconnect_delay", c.cfg.ReconnectDelay, "heartbeat_interval", c.cfg.HeartbeatInterval)

	c.apply(ctx, ConnectRequested{})

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("channel stopping (context canceled)")
			c.shutdown()
			close(c.stopped)

			// In-flight dials see ctx canceled; a handshake that completed anyway
			// may already sit in the event queue.
			c.dials.Wait()
			c.drain()
			return nil

		case ev := <-c.events:
			c.apply(ctx, ev)
		}
	}
}

// post hands an event to the loop. It gives up once the loop has exited.
func (c *Channel) post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.stopped:
	}
}

func (c *Channel) currentSession() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Channel) apply(ctx context.Context, ev Event) {
	if ds, ok := ev.(DialSucceeded); ok {
		c.dialed[ds.Gen] = ds
	}

	rr := Reduce(c.machine, ev, Policy{ReconnectDelay: c.cfg.ReconnectDelay})
	c.machine = rr.Machine
	c.state.Store(int32(rr.Machine.State))

	for _, eff := range rr.Effects {
		c.runEffect(ctx, eff)
	}
}

// runEffect executes a single reducer-emitted Effect.
// It must never call Reduce; outcomes come back through post().
func (c *Channel) runEffect(ctx context.Context, eff Effect) {
	switch e := eff.(type) {
	case Dial:
		c.dials.Add(1)
		go func() {
			defer c.dials.Done()
			c.dial(ctx, e.Gen)
		}()

	case StartSession:
		ds, ok := c.dialed[e.Gen]
		if !ok {
			c.logger.Error("no dialed connection for session", "gen", e.Gen)
			return
		}
		delete(c.dialed, e.Gen)

		s := newSession(e.Gen, ds.id, ds.conn, c.cfg.SendQueue, writeWait, c.logger)
		s.lost = func(gen uint64, err error) {
			c.post(ConnectionLost{Gen: gen, Err: err})
		}
		s.inbound = func(kind int, data []byte) {
			c.handleInbound(s, kind, data)
		}
		c.sessions[e.Gen] = s

		c.mu.Lock()
		c.current = s
		c.mu.Unlock()

		s.start()

	case CloseConnection:
		if s, ok := c.sessions[e.Gen]; ok {
			delete(c.sessions, e.Gen)
			c.mu.Lock()
			if c.current == s {
				c.current = nil
			}
			c.mu.Unlock()
			s.close()
		}
		if ds, ok := c.dialed[e.Gen]; ok {
			delete(c.dialed, e.Gen)
			_ = ds.conn.Close()
			c.logger.Debug("closed abandoned connection", "gen", e.Gen, "conn_id", ds.id)
		}

	case ScheduleReconnect:
		c.stopReconnect()
		gen := e.Gen
		c.reconnect = c.clock.AfterFunc(e.After, func() {
			c.post(ReconnectDue{Gen: gen})
		})
		c.logger.Info("reconnect scheduled", "gen", gen, "after", e.After)

	case CancelReconnect:
		c.stopReconnect()

	case Notify:
		t := e.Transition
		if t.Err != nil {
			c.logger.Info("channel state", "from", t.From.String(), "to", t.To.String(), "gen", t.Gen, "error", t.Err)
		} else {
			c.logger.Info("channel state", "from", t.From.String(), "to", t.To.String(), "gen", t.Gen)
		}
		if c.cfg.OnState != nil {
			c.cfg.OnState(t)
		}

	default:
		c.logger.Warn("unknown effect", "effect", eff.String())
	}
}

func (c *Channel) stopReconnect() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

// dial runs the handshake off the loop goroutine and reports the outcome.
// The transport's HandshakeTimeout bounds how long it can hang.
func (c *Channel) dial(ctx context.Context, gen uint64) {
	id := uuid.NewString()

	ctx, span := tracer.Start(ctx, "keybridge.channel.dial", trace.WithAttributes(
		attribute.String("ws.url", c.cfg.URL),
		attribute.String("connection.id", id),
		attribute.Int64("connection.gen", int64(gen)),
	))
	defer span.End()

	c.logger.Debug("dialing", "url", c.cfg.URL, "gen", gen, "conn_id", id)

	conn, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("connect failed", "url", c.cfg.URL, "gen", gen, "error", err)
		c.post(DialFailed{Gen: gen, Err: err})
		return
	}

	c.logger.Info("connected", "url", c.cfg.URL, "gen", gen, "conn_id", id)

	select {
	case c.events <- DialSucceeded{Gen: gen, conn: conn, id: id}:
	case <-c.stopped:
		// Loop is gone; nobody will own this connection.
		_ = conn.Close()
	}
}

func (c *Channel) runHeartbeat(ctx context.Context, ticker Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.probe()
		}
	}
}

// probe pings the open connection, if any. Failures are reported but do not
// change state; the read pump detects real disconnects.
func (c *Channel) probe() {
	s := c.currentSession()
	if s == nil {
		return
	}
	if err := s.ping(); err != nil {
		c.logger.Warn("heartbeat ping failed", "conn_id", s.id, "error", err)
		return
	}
	c.logger.Debug("heartbeat ping sent", "conn_id", s.id)
}

func (c *Channel) handleInbound(s *session, kind int, data []byte) {
	switch kind {
	case websocket.TextMessage:
		c.logger.Debug("received text message", "conn_id", s.id, "text", string(data))
		if st, ok := DecodeStatus(data); ok && c.cfg.OnStatus != nil {
			c.cfg.OnStatus(st)
		}
	case websocket.BinaryMessage:
		c.logger.Debug("received binary message", "conn_id", s.id, "bytes", len(data))
	default:
		c.logger.Debug("received message", "conn_id", s.id, "type", kind, "bytes", len(data))
	}
}

// drain closes connections carried by events nobody will apply.
func (c *Channel) drain() {
	for {
		select {
		case ev := <-c.events:
			if ds, ok := ev.(DialSucceeded); ok {
				_ = ds.conn.Close()
				c.logger.Debug("closed connection dialed during shutdown", "gen", ds.Gen, "conn_id", ds.id)
			}
		default:
			return
		}
	}
}

func (c *Channel) shutdown() {
	c.stopReconnect()

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	for gen, s := range c.sessions {
		s.close()
		delete(c.sessions, gen)
	}
	for gen, ds := range c.dialed {
		_ = ds.conn.Close()
		delete(c.dialed, gen)
	}
}

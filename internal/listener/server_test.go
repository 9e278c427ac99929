package listener

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"keybridge/internal/channel"
)

func startListener(t *testing.T, volume uint8) (*Server, *httptest.Server) {
	t.Helper()

	srv := NewServer(slog.Default(), ServerConfig{InitialVolume: volume})

	mux := http.NewServeMux()
	srv.Register(mux, "/ws")
	ts := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func nextStatus(t *testing.T, ch <-chan channel.Status) channel.Status {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("no status received")
		return channel.Status{}
	}
}

func TestServer_ChannelRoundTrip(t *testing.T) {
	srv, ts := startListener(t, 20)

	statuses := make(chan channel.Status, 16)
	ch, err := channel.New(channel.Config{
		URL:      wsURL(ts),
		Logger:   slog.Default(),
		OnStatus: func(st channel.Status) { statuses <- st },
	})
	if err != nil {
		t.Fatalf("channel.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// The listener reports the current status as soon as we connect.
	if st := nextStatus(t, statuses); st.MainVolume != 20 || st.Standby {
		t.Fatalf("unexpected initial status %+v", st)
	}
	if ch.State() != channel.StateOpen {
		t.Fatalf("expected open channel, got %s", ch.State())
	}

	ch.Send(channel.ActionVolumeUp)
	if st := nextStatus(t, statuses); st.MainVolume != 21 {
		t.Fatalf("expected volume 21, got %+v", st)
	}

	ch.Send(channel.ActionEffect3D)
	if st := nextStatus(t, statuses); st.Input1Effect != Effect3D {
		t.Fatalf("expected 3D effect on input 1, got %+v", st)
	}

	ch.Send(channel.ActionTurnOff)
	if st := nextStatus(t, statuses); !st.Standby {
		t.Fatalf("expected standby, got %+v", st)
	}

	ch.Send(channel.ActionVolumeUp)
	if st := nextStatus(t, statuses); st.MainVolume != 21 || !st.Standby {
		t.Fatalf("standby device should ignore volume, got %+v", st)
	}

	if got := srv.Device().Status(); got.MainVolume != 21 || !got.Standby {
		t.Fatalf("unexpected device status %+v", got)
	}
}

func TestServer_IgnoresUnknownActions(t *testing.T) {
	_, ts := startListener(t, 5)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	read := func() channel.Status {
		t.Helper()
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		st, ok := channel.DecodeStatus(data)
		if !ok {
			t.Fatalf("not a status: %s", data)
		}
		return st
	}

	if st := read(); st.MainVolume != 5 {
		t.Fatalf("unexpected initial status %+v", st)
	}

	for _, msg := range []string{`{"action":"reboot"}`, `not json`, `{"action":"volume_down"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write %s: %v", msg, err)
		}
	}

	// Only the valid action produces a broadcast.
	if st := read(); st.MainVolume != 4 {
		t.Fatalf("expected volume 4, got %+v", st)
	}
}

func TestServer_BroadcastsToEveryClient(t *testing.T) {
	srv, ts := startListener(t, 7)

	var conns []*websocket.Conn
	for range 2 {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read initial status: %v", err)
		}
		conns = append(conns, conn)
	}
	waitUntil(t, time.Second, func() bool { return srv.Broadcaster().Subscribers() == 2 }, "clients not registered in time")

	if err := conns[0].WriteMessage(websocket.TextMessage, []byte(`{"action":"mute"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	for i, conn := range conns {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d: read: %v", i, err)
		}
		if st, ok := channel.DecodeStatus(data); !ok || !st.Muted {
			t.Fatalf("client %d: expected muted status, got %s", i, data)
		}
	}
}

func TestServer_Page(t *testing.T) {
	_, ts := startListener(t, 12)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `<span id="volume">12</span>`) {
		t.Fatalf("page does not show the volume:\n%s", body)
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", resp.StatusCode)
	}
}

func TestServer_CloseDisconnectsClients(t *testing.T) {
	srv, ts := startListener(t, 3)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read initial status: %v", err)
	}

	srv.Close()

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}

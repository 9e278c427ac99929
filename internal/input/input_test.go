package input

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"keybridge/internal/channel"
)

func encodeEvents(t *testing.T, evs ...Event) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, ev := range evs {
		if err := binary.Write(&buf, binary.LittleEndian, ev); err != nil {
			t.Fatalf("encode event: %v", err)
		}
	}
	return buf.Bytes()
}

func key(code uint16, value int32) Event {
	return Event{Type: EvKey, Code: code, Value: value}
}

func TestEventSize(t *testing.T) {
	if EventSize != 24 {
		t.Fatalf("EventSize = %d, want 24 (64-bit timeval layout)", EventSize)
	}
}

func TestActionFor(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want channel.Action
		ok   bool
	}{
		{"mute press", key(KeyMute, ValuePress), channel.ActionMute, true},
		{"mute repeat", key(KeyMute, ValueRepeat), "", false},
		{"mute release", key(KeyMute, ValueRelease), "", false},
		{"volume up press", key(KeyVolumeUp, ValuePress), channel.ActionVolumeUp, true},
		{"volume up repeat", key(KeyVolumeUp, ValueRepeat), channel.ActionVolumeUp, true},
		{"volume up release", key(KeyVolumeUp, ValueRelease), "", false},
		{"volume down press", key(KeyVolumeDown, ValuePress), channel.ActionVolumeDown, true},
		{"volume down repeat", key(KeyVolumeDown, ValueRepeat), channel.ActionVolumeDown, true},
		{"other key", key(30, ValuePress), "", false},
		{"not a key event", Event{Type: 0x02, Code: KeyMute, Value: ValuePress}, "", false},
	}
	for _, tc := range cases {
		got, ok := ActionFor(tc.ev)
		if ok != tc.ok || got != tc.want {
			t.Errorf("%s: ActionFor = (%q, %v), want (%q, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestReadEvents(t *testing.T) {
	want := []Event{
		{Sec: 1700000000, Usec: 42, Type: EvKey, Code: KeyMute, Value: ValuePress},
		{Sec: 1700000000, Usec: 99, Type: EvKey, Code: KeyMute, Value: ValueRelease},
	}
	data := encodeEvents(t, want...)
	data = append(data, 0x01, 0x02, 0x03) // truncated trailing record

	var got []Event
	err := ReadEvents(bytes.NewReader(data), func(ev Event) { got = append(got, ev) })
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("ReadEvents error = %v, want ErrUnexpectedEOF", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDecode_Short(t *testing.T) {
	var ev Event
	if err := decode(make([]byte, 10), &ev); err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestWatch_PipeDevice(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()

	var mu sync.Mutex
	var got []Event
	done := make(chan error, 1)
	go func() {
		done <- watch(context.Background(), []*os.File{r}, func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, ev)
		})
	}()

	if _, err := w.Write(encodeEvents(t, key(KeyVolumeUp, ValuePress), key(KeyVolumeUp, ValueRepeat))); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout: got %d events", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Writer hangup surfaces as a device error.
	_ = w.Close()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected error after hangup")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watch did not return after hangup")
	}
}

func TestWatch_CancelReturns(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watch(ctx, []*os.File{r}, func(Event) {}) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("watch error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watch did not return after cancel")
	}
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	sink := func(channel.Action) {}

	if err := Run(ctx, nil, sink, nil); !errors.Is(err, errNoDevices) {
		t.Fatalf("Run with no devices = %v", err)
	}

	missing := filepath.Join(t.TempDir(), "event99")
	if err := Run(ctx, []string{missing}, sink, nil); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Run with missing device = %v", err)
	}
}

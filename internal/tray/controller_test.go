package tray

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"keybridge/internal/channel"
)

type recordingCommands struct {
	mu   sync.Mutex
	sent []channel.Action
}

func (r *recordingCommands) Send(a channel.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, a)
}

func newTestController(t *testing.T) (*Controller, *recordingCommands, *[]string) {
	t.Helper()
	cmds := &recordingCommands{}
	c := NewController(cmds, "http://localhost:8000", slog.New(slog.NewTextHandler(io.Discard, nil)))
	var opened []string
	c.open = func(raw string) error {
		opened = append(opened, raw)
		return nil
	}
	return c, cmds, &opened
}

func TestController_InitialViewIsDisconnected(t *testing.T) {
	c, _, _ := newTestController(t)
	v := c.View()
	if v.Connected || v.Title != titleDisconnected {
		t.Fatalf("initial view = %+v", v)
	}
	if v.Status != nil {
		t.Fatalf("initial view has status")
	}
}

func TestController_FollowsTransitions(t *testing.T) {
	c, _, _ := newTestController(t)

	c.OnState(channel.Transition{From: channel.StateConnecting, To: channel.StateOpen, Gen: 1})
	if v := c.View(); !v.Connected || v.Title != titleConnected {
		t.Fatalf("after open: %+v", v)
	}

	c.OnState(channel.Transition{From: channel.StateOpen, To: channel.StateClosed, Gen: 1, Err: errors.New("eof")})
	if v := c.View(); v.Connected || v.Title != titleDisconnected {
		t.Fatalf("after close: %+v", v)
	}
}

func TestController_StatusTooltip(t *testing.T) {
	c, _, _ := newTestController(t)
	c.OnState(channel.Transition{To: channel.StateOpen, Gen: 1})

	c.OnStatus(channel.Status{MainVolume: 35})
	if got := c.View().Tooltip; got != "keybridge: connected, volume 35" {
		t.Errorf("tooltip = %q", got)
	}

	c.OnStatus(channel.Status{MainVolume: 35, Muted: true})
	if got := c.View().Tooltip; !strings.HasSuffix(got, "volume 35 (muted)") {
		t.Errorf("tooltip = %q", got)
	}

	c.OnStatus(channel.Status{Standby: true})
	if got := c.View().Tooltip; !strings.HasSuffix(got, ", standby") {
		t.Errorf("tooltip = %q", got)
	}

	// Status survives a reconnect cycle.
	c.OnState(channel.Transition{To: channel.StateClosed, Gen: 1})
	if v := c.View(); v.Status == nil || !v.Status.Standby {
		t.Errorf("status lost on transition: %+v", v)
	}
}

func TestController_UpdatesKeepLatest(t *testing.T) {
	c, _, _ := newTestController(t)

	c.OnState(channel.Transition{To: channel.StateConnecting, Gen: 1})
	c.OnState(channel.Transition{To: channel.StateOpen, Gen: 1})
	c.OnStatus(channel.Status{MainVolume: 12})

	select {
	case v := <-c.Updates():
		if !v.Connected || v.Status == nil || v.Status.MainVolume != 12 {
			t.Fatalf("pending update = %+v, want latest", v)
		}
	default:
		t.Fatalf("no pending update")
	}
	select {
	case v := <-c.Updates():
		t.Fatalf("stale update left behind: %+v", v)
	default:
	}
}

func TestController_TriggerActions(t *testing.T) {
	c, cmds, _ := newTestController(t)

	ids := []string{
		"mute", "volume_up", "volume_down", "turn_on", "turn_off",
		"effect_3d", "effect_2_1", "effect_4_1", "effect_disabled",
	}
	for _, id := range ids {
		if err := c.Trigger(id); err != nil {
			t.Fatalf("Trigger(%q): %v", id, err)
		}
	}

	want := []channel.Action{
		channel.ActionMute, channel.ActionVolumeUp, channel.ActionVolumeDown,
		channel.ActionTurnOn, channel.ActionTurnOff,
		channel.ActionEffect3D, channel.ActionEffect2_1, channel.ActionEffect4_1, channel.ActionEffectDisabled,
	}
	if len(cmds.sent) != len(want) {
		t.Fatalf("sent = %v", cmds.sent)
	}
	for i := range want {
		if cmds.sent[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, cmds.sent[i], want[i])
		}
	}
}

func TestController_TriggerOpenAndQuit(t *testing.T) {
	c, cmds, opened := newTestController(t)

	if err := c.Trigger(ItemOpenPage); err != nil {
		t.Fatalf("open page: %v", err)
	}
	if len(*opened) != 1 || (*opened)[0] != "http://localhost:8000" {
		t.Fatalf("opened = %v", *opened)
	}

	if err := c.Trigger(ItemQuit); !errors.Is(err, ErrQuit) {
		t.Fatalf("quit = %v", err)
	}
	if err := c.Trigger("reboot"); err == nil {
		t.Fatalf("expected error for unknown item")
	}
	if len(cmds.sent) != 0 {
		t.Fatalf("non-action items sent %v", cmds.sent)
	}
}

func TestController_OpenPageError(t *testing.T) {
	c, _, _ := newTestController(t)
	c.open = func(string) error { return errors.New("no browser") }
	if err := c.OpenPage(); err == nil {
		t.Fatalf("expected launcher error")
	}
}

func TestOpenURL_Validates(t *testing.T) {
	if err := openURL(""); err == nil {
		t.Errorf("empty url accepted")
	}
	if err := openURL("not a url"); err == nil {
		t.Errorf("relative url accepted")
	}
}

func TestMenu_ActionsAreValid(t *testing.T) {
	seen := map[string]bool{}
	for _, item := range Menu {
		if seen[item.ID] {
			t.Errorf("duplicate menu id %q", item.ID)
		}
		seen[item.ID] = true
		if item.Action != "" && !item.Action.Valid() {
			t.Errorf("menu item %q has invalid action %q", item.ID, item.Action)
		}
	}
	if !seen[ItemOpenPage] || !seen[ItemQuit] {
		t.Errorf("menu missing open page or quit")
	}
}

func TestMenu_CoversEveryAction(t *testing.T) {
	inMenu := map[channel.Action]bool{}
	for _, item := range Menu {
		inMenu[item.Action] = true
	}
	for _, a := range channel.Actions() {
		if !inMenu[a] {
			t.Errorf("no menu item sends %q", a)
		}
	}
}

package main

import (
	"testing"

	"keybridge/internal/channel"
)

func TestCommandAction(t *testing.T) {
	cases := map[string]channel.Action{
		"volume-up":       channel.ActionVolumeUp,
		"up":              channel.ActionVolumeUp,
		"down":            channel.ActionVolumeDown,
		"mute":            channel.ActionMute,
		"on":              channel.ActionTurnOn,
		"turn-off":        channel.ActionTurnOff,
		"effect-3d":       channel.ActionEffect3D,
		"effect-2-1":      channel.ActionEffect2_1,
		"effect-4-1":      channel.ActionEffect4_1,
		"effect-disabled": channel.ActionEffectDisabled,
		"effect-off":      channel.ActionEffectDisabled,
	}
	for cmd, want := range cases {
		got, ok := commandAction(cmd)
		if !ok || got != want {
			t.Errorf("commandAction(%q) = %q, %v; want %q", cmd, got, ok, want)
		}
	}

	for _, cmd := range []string{"status", "help", "effect-5-1", ""} {
		if _, ok := commandAction(cmd); ok {
			t.Errorf("commandAction(%q): expected no action", cmd)
		}
	}
}

func TestCommandAction_CoversEveryAction(t *testing.T) {
	reachable := map[channel.Action]bool{}
	for _, cmd := range []string{"up", "down", "mute", "on", "off", "effect-3d", "effect-2-1", "effect-4-1", "effect-off"} {
		a, _ := commandAction(cmd)
		reachable[a] = true
	}
	for _, a := range channel.Actions() {
		if !reachable[a] {
			t.Errorf("no command sends %q", a)
		}
	}
}

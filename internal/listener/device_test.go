package listener

import (
	"testing"

	"keybridge/internal/channel"
)

func TestDevice_VolumeClamps(t *testing.T) {
	d := NewDevice(MaxVolume - 1)
	d.Apply(channel.ActionVolumeUp)
	if st := d.Apply(channel.ActionVolumeUp); st.MainVolume != MaxVolume {
		t.Fatalf("expected volume clamped to %d, got %d", MaxVolume, st.MainVolume)
	}

	d = NewDevice(1)
	d.Apply(channel.ActionVolumeDown)
	if st := d.Apply(channel.ActionVolumeDown); st.MainVolume != 0 {
		t.Fatalf("expected volume clamped to 0, got %d", st.MainVolume)
	}
}

func TestDevice_MuteToggles(t *testing.T) {
	d := NewDevice(10)
	if st := d.Apply(channel.ActionMute); !st.Muted {
		t.Fatal("expected muted")
	}
	if st := d.Apply(channel.ActionMute); st.Muted {
		t.Fatal("expected unmuted")
	}

	d.Apply(channel.ActionMute)
	if st := d.Apply(channel.ActionVolumeUp); st.Muted || st.MainVolume != 11 {
		t.Fatalf("volume change should unmute, got %+v", st)
	}
}

func TestDevice_StandbyOnlyWakesOnTurnOn(t *testing.T) {
	d := NewDevice(10)
	if st := d.Apply(channel.ActionTurnOff); !st.Standby {
		t.Fatal("expected standby")
	}
	for _, a := range []channel.Action{channel.ActionVolumeUp, channel.ActionVolumeDown, channel.ActionMute} {
		if st := d.Apply(a); st.MainVolume != 10 || st.Muted {
			t.Fatalf("%s changed a device in standby: %+v", a, st)
		}
	}
	if st := d.Apply(channel.ActionTurnOn); st.Standby {
		t.Fatal("expected device awake")
	}
}

func TestNewDevice_ClampsInitialVolume(t *testing.T) {
	if st := NewDevice(200).Status(); st.MainVolume != MaxVolume || st.Input != 1 {
		t.Fatalf("unexpected initial status %+v", st)
	}
}

func TestDevice_EffectTargetsSelectedInput(t *testing.T) {
	cases := []struct {
		input  uint8
		action channel.Action
		want   [3]uint8 // input 1, 2, 6
	}{
		{1, channel.ActionEffect3D, [3]uint8{Effect3D, EffectDisabled, EffectDisabled}},
		{1, channel.ActionEffect2_1, [3]uint8{Effect2_1, EffectDisabled, EffectDisabled}},
		{2, channel.ActionEffect4_1, [3]uint8{EffectDisabled, Effect4_1, EffectDisabled}},
		{6, channel.ActionEffect3D, [3]uint8{EffectDisabled, EffectDisabled, Effect3D}},
		{3, channel.ActionEffect3D, [3]uint8{EffectDisabled, EffectDisabled, EffectDisabled}},
	}
	for _, tc := range cases {
		d := NewDevice(10)
		d.SelectInput(tc.input)
		st := d.Apply(tc.action)
		got := [3]uint8{st.Input1Effect, st.Input2Effect, st.Input6Effect}
		if got != tc.want {
			t.Errorf("input %d %s: effects = %#x, want %#x", tc.input, tc.action, got, tc.want)
		}
	}
}

func TestDevice_EffectDisabledResets(t *testing.T) {
	d := NewDevice(10)
	d.Apply(channel.ActionEffect4_1)
	if st := d.Apply(channel.ActionEffectDisabled); st.Input1Effect != EffectDisabled {
		t.Fatalf("expected effect disabled, got %#x", st.Input1Effect)
	}

	d.Apply(channel.ActionTurnOff)
	if st := d.Apply(channel.ActionEffect3D); st.Input1Effect != EffectDisabled {
		t.Fatalf("standby device changed effect to %#x", st.Input1Effect)
	}
}

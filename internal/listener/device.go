// Package listener is a development stand-in for the remote endpoint: it
// accepts action messages over websocket, applies them to a simulated
// speaker system and pushes the resulting status to every client.
package listener

import (
	"sync"

	"keybridge/internal/channel"
)

// MaxVolume is the top of the simulated main volume scale.
const MaxVolume = 43

// Effect codes reported in the input_N_effect status fields.
const (
	Effect3D       uint8 = 0x14
	Effect4_1      uint8 = 0x15
	Effect2_1      uint8 = 0x16
	EffectDisabled uint8 = 0x35
)

var effectCodes = map[channel.Action]uint8{
	channel.ActionEffect3D:       Effect3D,
	channel.ActionEffect2_1:      Effect2_1,
	channel.ActionEffect4_1:      Effect4_1,
	channel.ActionEffectDisabled: EffectDisabled,
}

// Device simulates the speaker system behind the listener.
type Device struct {
	mu     sync.Mutex
	status channel.Status
}

// NewDevice returns a device that is powered on with input 1 selected and
// every effect disabled.
func NewDevice(volume uint8) *Device {
	if volume > MaxVolume {
		volume = MaxVolume
	}
	return &Device{status: channel.Status{
		MainVolume:   volume,
		Input:        1,
		Input1Effect: EffectDisabled,
		Input2Effect: EffectDisabled,
		Input6Effect: EffectDisabled,
	}}
}

// SelectInput switches the active input. Only inputs 1, 2 and 6 carry an
// effect setting; effect actions on other inputs change nothing.
func (d *Device) SelectInput(input uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.Input = input
}

// Apply performs a and returns the resulting status. A device in standby only
// reacts to turn_on.
func (d *Device) Apply(a channel.Action) channel.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := &d.status
	if s.Standby && a != channel.ActionTurnOn {
		return *s
	}

	switch a {
	case channel.ActionVolumeUp:
		if s.MainVolume < MaxVolume {
			s.MainVolume++
		}
		s.Muted = false
	case channel.ActionVolumeDown:
		if s.MainVolume > 0 {
			s.MainVolume--
		}
		s.Muted = false
	case channel.ActionMute:
		s.Muted = !s.Muted
	case channel.ActionTurnOn:
		s.Standby = false
	case channel.ActionTurnOff:
		s.Standby = true
	case channel.ActionEffect3D, channel.ActionEffect2_1, channel.ActionEffect4_1, channel.ActionEffectDisabled:
		if slot := effectSlot(s); slot != nil {
			*slot = effectCodes[a]
		}
	}
	return *s
}

// Status returns the current status.
func (d *Device) Status() channel.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func effectSlot(s *channel.Status) *uint8 {
	switch s.Input {
	case 1:
		return &s.Input1Effect
	case 2:
		return &s.Input2Effect
	case 6:
		return &s.Input6Effect
	}
	return nil
}

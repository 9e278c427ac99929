// Package input captures media keys from Linux evdev devices and turns them
// into channel actions.
package input

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"keybridge/internal/channel"
)

// Linux input event types and codes (from <linux/input.h>)
const (
	EvKey = 0x01

	KeyMute       = 113
	KeyVolumeDown = 114
	KeyVolumeUp   = 115
)

// Input event value constants
const (
	ValueRelease = 0
	ValuePress   = 1
	ValueRepeat  = 2
)

// Event represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type Event struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// EventSize is the size of one encoded Event on the wire.
var EventSize = binary.Size(Event{})

// ActionFor maps a key event to the action it triggers.
// Mute fires on press only; volume keys also fire on auto-repeat so holding
// them keeps stepping.
func ActionFor(ev Event) (channel.Action, bool) {
	if ev.Type != EvKey {
		return "", false
	}
	switch ev.Code {
	case KeyMute:
		if ev.Value == ValuePress {
			return channel.ActionMute, true
		}
	case KeyVolumeUp:
		if ev.Value == ValuePress || ev.Value == ValueRepeat {
			return channel.ActionVolumeUp, true
		}
	case KeyVolumeDown:
		if ev.Value == ValuePress || ev.Value == ValueRepeat {
			return channel.ActionVolumeDown, true
		}
	}
	return "", false
}

// ReadEvents reads events from r until it fails and passes each one to emit.
// Short trailing reads are reported as io.ErrUnexpectedEOF.
func ReadEvents(r io.Reader, emit func(Event)) error {
	buf := make([]byte, EventSize)
	reader := bytes.NewReader(buf) // reset on each iteration

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}

		reader.Reset(buf)
		var ev Event
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			continue
		}
		emit(ev)
	}
}

func decode(buf []byte, ev *Event) error {
	if len(buf) < EventSize {
		return fmt.Errorf("short input event: %d bytes", len(buf))
	}
	return binary.Read(bytes.NewReader(buf[:EventSize]), binary.LittleEndian, ev)
}

var errNoDevices = errors.New("no input devices provided")

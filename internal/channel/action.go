package channel

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ============================================================================
// Actions - the fixed command vocabulary
// ============================================================================
// An Action is a named command derived from a recognized key event or a UI
// click. The remote listener understands exactly this set of tags, so
// ParseAction is the only way to turn arbitrary text into an Action.
// ============================================================================

// Action is a command tag sent to the remote listener.
type Action string

const (
	ActionMute       Action = "mute"
	ActionVolumeUp   Action = "volume_up"
	ActionVolumeDown Action = "volume_down"
	ActionTurnOn     Action = "turn_on"
	ActionTurnOff    Action = "turn_off"

	// Sound effect for the selected input.
	ActionEffect3D       Action = "effect_3d"
	ActionEffect2_1      Action = "effect_2_1"
	ActionEffect4_1      Action = "effect_4_1"
	ActionEffectDisabled Action = "effect_disabled"
)

// ErrUnknownAction is returned for tags outside the vocabulary.
var ErrUnknownAction = errors.New("unknown action")

var vocabulary = []Action{
	ActionMute,
	ActionVolumeUp,
	ActionVolumeDown,
	ActionTurnOn,
	ActionTurnOff,
	ActionEffect3D,
	ActionEffect2_1,
	ActionEffect4_1,
	ActionEffectDisabled,
}

// Actions returns the full vocabulary in a stable order.
func Actions() []Action {
	return slices.Clone(vocabulary)
}

// Valid reports whether a is part of the vocabulary.
func (a Action) Valid() bool {
	return slices.Contains(vocabulary, a)
}

func (a Action) String() string { return string(a) }

// ParseAction converts a tag into an Action.
// Hyphens are accepted in place of underscores ("volume-up") so CLI input
// can use the more shell-friendly spelling.
func ParseAction(s string) (Action, error) {
	tag := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	a := Action(tag)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

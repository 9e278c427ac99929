package channel

import (
	"encoding/json"
	"fmt"
)

// Message is the wire envelope for one Action: {"action":"<tag>"}.
// The field name is fixed for compatibility with existing listeners.
type Message struct {
	Action Action `json:"action"`
}

// Encode serializes the message as a JSON text frame payload.
func (m Message) Encode() ([]byte, error) {
	if !m.Action.Valid() {
		return nil, fmt.Errorf("encode message: %w: %q", ErrUnknownAction, string(m.Action))
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return payload, nil
}

// DecodeMessage parses a wire payload and validates the action tag.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if !m.Action.Valid() {
		return Message{}, fmt.Errorf("decode message: %w: %q", ErrUnknownAction, string(m.Action))
	}
	return m, nil
}

package app

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Client frame types.
const (
	frameJoinRoom    = "join_room"
	frameLeaveRoom   = "leave_room"
	frameSendMessage = "send_message"
	frameUserAction  = "user_action"
)

// wsFrame is the envelope for every frame in both directions.
type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Absent fields take their documented default.
type roomPayload struct {
	Room textField `json:"room"`
}

type sendPayload struct {
	Room      textField `json:"room"`
	Message   textField `json:"message"`
	Timestamp textField `json:"timestamp"`
}

type actionPayload struct {
	Room   textField       `json:"room"`
	Action textField       `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// textField is a string payload field. A value of any other JSON type is
// treated as absent rather than failing the frame.
type textField struct {
	value string
	set   bool
}

func (f *textField) UnmarshalJSON(data []byte) error {
	*f = textField{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return nil
	}
	*f = textField{value: value, set: true}
	return nil
}

func (f textField) or(fallback string) string {
	if !f.set {
		return fallback
	}
	return f.value
}

// ptr returns nil when the field was absent.
func (f textField) ptr() *string {
	if !f.set {
		return nil
	}
	value := f.value
	return &value
}

var errPayloadNotObject = errors.New("payload must be a JSON object")

// decodePayload treats a missing or null payload as an empty object.
func decodePayload(raw json.RawMessage, target any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return errPayloadNotObject
	}
	return json.Unmarshal(trimmed, target)
}

package hub

import (
	"encoding/json"

	"github.com/louisbranch/partyline/internal/services/realtime/history"
)

// Event is a server-to-client notification. EventName is the wire type.
type Event interface {
	EventName() string
}

// Wire names of server events.
const (
	EventUserConnected    = "user_connected"
	EventUserDisconnected = "user_disconnected"
	EventChatHistory      = "chat_history"
	EventUserJoined       = "user_joined"
	EventUserLeft         = "user_left"
	EventReceiveMessage   = "receive_message"
	EventActionUpdate     = "action_update"
)

type UserConnected struct {
	Username string `json:"username"`
}

func (UserConnected) EventName() string { return EventUserConnected }

type UserDisconnected struct {
	Username string `json:"username"`
}

func (UserDisconnected) EventName() string { return EventUserDisconnected }

// ChatHistory is the replay unicast to a joining connection.
type ChatHistory struct {
	Messages []history.Message `json:"messages"`
}

func (ChatHistory) EventName() string { return EventChatHistory }

// MarshalJSON keeps an empty history as [] rather than null.
func (e ChatHistory) MarshalJSON() ([]byte, error) {
	messages := e.Messages
	if messages == nil {
		messages = []history.Message{}
	}
	type plain ChatHistory
	return json.Marshal(plain{Messages: messages})
}

type UserJoined struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

func (UserJoined) EventName() string { return EventUserJoined }

type UserLeft struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

func (UserLeft) EventName() string { return EventUserLeft }

type ReceiveMessage struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (ReceiveMessage) EventName() string { return EventReceiveMessage }

// ActionUpdate carries an opaque game-state delta. Data is relayed as sent.
type ActionUpdate struct {
	Username string          `json:"username"`
	Action   string          `json:"action"`
	Data     json.RawMessage `json:"data"`
}

func (ActionUpdate) EventName() string { return EventActionUpdate }

package room

// Operation identifies which client request a room label arrived with.
type Operation string

const (
	OpJoin        Operation = "join"
	OpLeave       Operation = "leave"
	OpSendMessage Operation = "send_message"
	OpUserAction  Operation = "user_action"
)

const (
	// DefaultRoom is substituted for an absent or empty room label.
	DefaultRoom = "default"
	// PlatformerRoom is the label used by the platformer game page.
	PlatformerRoom = "platformer_game"
	// UnifiedRoom is where the default lobby and the platformer share chat.
	UnifiedRoom = "unified_chat"
)

// Canonicalize maps a client-supplied room label to the room name the
// registry and broadcasters operate on.
//
// Chat operations fold both the default lobby and the platformer into
// UnifiedRoom. Actions fold only the platformer, so action deltas sent
// from the default lobby stay in "default".
func Canonicalize(op Operation, raw string) string {
	if raw == "" {
		raw = DefaultRoom
	}
	switch op {
	case OpUserAction:
		if raw == PlatformerRoom {
			return UnifiedRoom
		}
	default:
		if raw == DefaultRoom || raw == PlatformerRoom {
			return UnifiedRoom
		}
	}
	return raw
}

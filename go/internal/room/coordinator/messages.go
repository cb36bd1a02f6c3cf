package coordinator

import (
	"encoding/json"

	"github.com/mcdev12/estimate/go/internal/room"
)

// WebSocket close codes sent to observers.
const (
	CloseNormal        = 1000
	CloseGoingAway     = 1001
	CloseTryAgainLater = 1013
)

const (
	MessageTypeState = "state"
	MessageTypeError = "error"
)

// Notices sent to a single observer.
const (
	NoticeInvalidAction = "invalid action"
	NoticeRoomNotFound  = "room not found"
	NoticeSessionEnded  = "session ended"
	NoticeShuttingDown  = "server shutting down"
	NoticeSlowConsumer  = "send buffer full"
	NoticeUnavailable   = "room temporarily unavailable"
)

// Message is the envelope of every frame sent to observers.
type Message struct {
	Type    string      `json:"type"`
	State   *room.State `json:"state,omitempty"`
	Message string      `json:"message,omitempty"`
}

func encodeState(s *room.State) ([]byte, error) {
	return json.Marshal(Message{Type: MessageTypeState, State: s})
}

// EncodeNotice renders an error notice frame.
func EncodeNotice(text string) []byte {
	data, err := json.Marshal(Message{Type: MessageTypeError, Message: text})
	if err != nil {
		// Marshalling a struct of strings cannot fail.
		panic(err)
	}
	return data
}

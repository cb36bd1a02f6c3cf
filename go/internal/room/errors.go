package room

import "errors"

// Rejection reasons returned by Apply. A rejected action leaves the state
// unchanged apart from its UpdatedAt timestamp.
var (
	ErrUnauthorized  = errors.New("host token does not match")
	ErrInvalid       = errors.New("invalid action payload")
	ErrNotAllowed    = errors.New("action not allowed in current state")
	ErrNotFound      = errors.New("referenced entity not found")
	ErrLimitReached  = errors.New("room limit reached")
	ErrUnknownAction = errors.New("unknown action type")
)

var (
	// ErrRoomNotFound is returned by stores and the coordinator for rooms
	// without persisted state.
	ErrRoomNotFound = errors.New("room not found")

	// ErrMalformedAction is returned when a payload is not a valid action envelope.
	ErrMalformedAction = errors.New("malformed action")
)

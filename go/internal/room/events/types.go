package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/estimate/go/internal/room"
)

// RoomEvent summarizes one processed action. It never carries the host
// secret nor any vote value, so it is safe to fan out to other services.
type RoomEvent struct {
	ID           string           `json:"eventId"`
	RoomID       string           `json:"roomId"`
	Action       room.Kind        `json:"action"`
	Rejected     bool             `json:"rejected"`
	Reason       string           `json:"reason,omitempty"`
	Status       room.Status      `json:"status"`
	RoundStatus  room.RoundStatus `json:"roundStatus"`
	Participants int              `json:"participants"`
	Tasks        int              `json:"tasks"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

// NewRoomEvent describes the outcome of applying kind to a room. rejection
// is the reducer's error, nil when the action took effect.
func NewRoomEvent(s *room.State, kind room.Kind, rejection error) RoomEvent {
	e := RoomEvent{
		ID:           uuid.NewString(),
		RoomID:       s.RoomID,
		Action:       kind,
		Status:       s.Status,
		RoundStatus:  s.Voting.Status,
		Participants: len(s.Participants),
		Tasks:        len(s.Tasks),
		OccurredAt:   s.UpdatedAt,
	}
	if rejection != nil {
		e.Rejected = true
		e.Reason = rejection.Error()
	}
	return e
}

// Publisher delivers room events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event RoomEvent) error
	Close() error
}

// NopPublisher discards every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, RoomEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }

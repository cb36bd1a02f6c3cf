package storage

import (
	"context"

	"github.com/mcdev12/estimate/go/internal/room"
)

// Store persists room states. Implementations return room.ErrRoomNotFound
// from Get when nothing is stored under the id.
type Store interface {
	Get(ctx context.Context, roomID string) (*room.State, error)
	Put(ctx context.Context, s *room.State) error
	Delete(ctx context.Context, roomID string) error
}

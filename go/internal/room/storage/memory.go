package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcdev12/estimate/go/internal/room"
)

// MemoryStore keeps rooms as JSON blobs, so callers never share state with
// what is stored. It is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, roomID string) (*room.State, error) {
	m.mu.RLock()
	data, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, room.ErrRoomNotFound
	}

	var s room.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode room %s: %w", roomID, err)
	}
	return &s, nil
}

func (m *MemoryStore) Put(_ context.Context, s *room.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode room %s: %w", s.RoomID, err)
	}

	m.mu.Lock()
	m.rooms[s.RoomID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, roomID string) error {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored rooms.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

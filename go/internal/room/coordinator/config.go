package coordinator

import (
	"fmt"
	"time"
)

// Config holds the room lifecycle policy.
type Config struct {
	// AlarmInterval is how long a room may go without actions or new
	// connections before its alarm checks whether it should be destroyed.
	AlarmInterval time.Duration
	// IdleRetention is how old the last update of a room without observers
	// must be before the room is destroyed.
	IdleRetention time.Duration
	// EndedGrace is how long an ended room stays around after its last update.
	EndedGrace time.Duration
	// InboxSize bounds the number of requests queued per room.
	InboxSize int
	// EventBufferSize bounds the room events waiting for the publisher.
	// Events beyond it are dropped.
	EventBufferSize int
}

func DefaultConfig() Config {
	return Config{
		AlarmInterval:   time.Hour,
		IdleRetention:   24 * time.Hour,
		EndedGrace:      time.Hour,
		InboxSize:       256,
		EventBufferSize: 1024,
	}
}

func (c Config) Validate() error {
	if c.AlarmInterval <= 0 {
		return fmt.Errorf("alarm interval must be positive, got %s", c.AlarmInterval)
	}
	if c.IdleRetention < 0 || c.EndedGrace < 0 {
		return fmt.Errorf("retention windows must not be negative")
	}
	if c.InboxSize <= 0 {
		return fmt.Errorf("inbox size must be positive, got %d", c.InboxSize)
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", c.EventBufferSize)
	}
	return nil
}

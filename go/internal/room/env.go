package room

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Env supplies the non-deterministic inputs of the reducer.
type Env struct {
	Now       func() time.Time
	NewID     func() string
	NewSecret func() string
}

// DefaultEnv uses the wall clock, random UUIDs and random secrets.
func DefaultEnv() Env {
	return Env{
		Now:       time.Now,
		NewID:     uuid.NewString,
		NewSecret: GenerateSecret,
	}
}

// GenerateSecret creates a random host token (24 bytes = 192 bits of entropy).
func GenerateSecret() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("room: failed to generate host secret: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// IsHost reports whether token is the room's current host secret.
func (s *State) IsHost(token string) bool {
	if token == "" || s.Host.Token == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(s.Host.Token))
}

package room

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// testEnv is a deterministic Env whose clock can be moved by tests.
type testEnv struct {
	now     time.Time
	ids     int
	secrets int
}

func newTestEnv() *testEnv {
	return &testEnv{now: baseTime}
}

func (e *testEnv) Env() Env {
	return Env{
		Now: func() time.Time { return e.now },
		NewID: func() string {
			e.ids++
			return fmt.Sprintf("task-%d", e.ids)
		},
		NewSecret: func() string {
			e.secrets++
			return fmt.Sprintf("secret-%d", e.secrets)
		},
	}
}

func (e *testEnv) tick() {
	e.now = e.now.Add(time.Second)
}

// newRoom returns a room hosted by "Ann" whose host token is "secret-1".
func newRoom(t *testing.T, env *testEnv, mode Mode) *State {
	t.Helper()
	s := NewState("room-1", "Ann", mode, env.Env())
	require.Equal(t, "secret-1", s.Host.Token)
	return s
}

// mustApply applies an action that the test expects to succeed.
func mustApply(t *testing.T, env *testEnv, s *State, a Action) *State {
	t.Helper()
	env.tick()
	next, err := Apply(s, a, env.Env())
	require.NoError(t, err, "action %s", a.Kind())
	return next
}

// withoutTimestamp blanks UpdatedAt so states can be compared structurally.
func withoutTimestamp(s *State) *State {
	c := s.Clone()
	c.UpdatedAt = time.Time{}
	return c
}

func host(token string) HostAuth {
	return HostAuth{HostToken: token}
}

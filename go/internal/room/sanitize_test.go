package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_MasksOthersDuringOpenRound(t *testing.T) {
	env := newTestEnv()
	s := votingRoom(t, env)
	s = mustApply(t, env, s, &CastVote{Actor: "Ann", Value: "8"})

	tests := []struct {
		requester string
		want      map[string]string
	}{
		{requester: "Bob", want: map[string]string{"Ann": VotedMarker, "Bob": "5"}},
		{requester: "Ann", want: map[string]string{"Ann": "8", "Bob": VotedMarker}},
		{requester: "Cleo", want: map[string]string{"Ann": VotedMarker, "Bob": VotedMarker}},
		{requester: "", want: map[string]string{"Ann": VotedMarker, "Bob": VotedMarker}},
	}
	for _, tt := range tests {
		t.Run("requester="+tt.requester, func(t *testing.T) {
			p := Project(s, tt.requester)
			assert.Equal(t, tt.want, p.ActiveTask().Votes)
		})
	}
}

func TestProject_ClosedRoundStaysMasked(t *testing.T) {
	env := newTestEnv()
	s := votingRoom(t, env)
	s = mustApply(t, env, s, &CloseVoting{HostAuth: host("secret-1")})

	p := Project(s, "Cleo")

	assert.Equal(t, map[string]string{"Bob": VotedMarker}, p.ActiveTask().Votes)
}

func TestProject_RevealsValues(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, env *testEnv, s *State) *State
	}{
		{
			name: "round revealed",
			prepare: func(t *testing.T, env *testEnv, s *State) *State {
				return mustApply(t, env, s, &Reveal{HostAuth: host("secret-1")})
			},
		},
		{
			name: "session ended",
			prepare: func(t *testing.T, env *testEnv, s *State) *State {
				return mustApply(t, env, s, &EndSession{HostAuth: host("secret-1")})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			s := tt.prepare(t, env, votingRoom(t, env))

			p := Project(s, "Cleo")

			assert.Equal(t, map[string]string{"Bob": "5"}, p.ActiveTask().Votes)
		})
	}
}

func TestProject_InactiveTasksKeepTheirResults(t *testing.T) {
	env := newTestEnv()
	s := votingRoom(t, env)
	s = mustApply(t, env, s, &Reveal{HostAuth: host("secret-1")})
	s = mustApply(t, env, s, &AddTask{Actor: "Ann", Title: "Signup"})
	s = mustApply(t, env, s, &SelectTask{HostAuth: host("secret-1"), TaskID: "task-2"})
	s = mustApply(t, env, s, &StartVoting{HostAuth: host("secret-1")})
	s = mustApply(t, env, s, &CastVote{Actor: "Bob", Value: "13"})

	p := Project(s, "Cleo")

	assert.Equal(t, map[string]string{"Bob": "5"}, p.Tasks[0].Votes)
	assert.Equal(t, map[string]string{"Bob": VotedMarker}, p.Tasks[1].Votes)

	// Going back to the first task shows its last result while idle.
	s = mustApply(t, env, s, &SelectTask{HostAuth: host("secret-1"), TaskID: "task-1"})
	p = Project(s, "Cleo")
	assert.Equal(t, map[string]string{"Bob": "5"}, p.Tasks[0].Votes)
}

func TestProject_HostToken(t *testing.T) {
	env := newTestEnv()
	s := votingRoom(t, env)

	assert.Equal(t, "secret-1", Project(s, "Ann").Host.Token)
	assert.Empty(t, Project(s, "Bob").Host.Token)
	assert.Empty(t, Project(s, "").Host.Token)
	assert.Equal(t, "Ann", Project(s, "Bob").Host.Name)
}

func TestProject_DoesNotAliasInput(t *testing.T) {
	env := newTestEnv()
	s := votingRoom(t, env)
	before := s.Clone()

	p := Project(s, "Cleo")
	p.ActiveTask().Votes["Bob"] = "89"
	p.Participants["Zed"] = Participant{Name: "Zed"}
	*p.Voting.EndsAt = baseTime

	assert.Equal(t, before, s)
	require.Nil(t, Project(nil, "Ann"))
}

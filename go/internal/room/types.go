package room

import (
	"time"
)

// Mode controls whether newcomers join directly or wait for host approval.
type Mode string

const (
	ModeOpen   Mode = "open"
	ModeClosed Mode = "closed"
)

// Status is the lifecycle status of a room.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Role defines what a participant may do in a room.
type Role string

const (
	RoleVoter    Role = "voter"
	RoleObserver Role = "observer"
)

// RoundStatus is the state of the room's voting round.
type RoundStatus string

const (
	RoundIdle     RoundStatus = "idle"
	RoundOpen     RoundStatus = "open"
	RoundClosed   RoundStatus = "closed"
	RoundRevealed RoundStatus = "revealed"
)

// VotedMarker replaces a hidden vote value in projections.
const VotedMarker = "voted"

// DefaultTaskTitle is used when voting starts in a room without tasks.
const DefaultTaskTitle = "Untitled task"

// Host identifies the participant holding host authority.
type Host struct {
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

// Participant represents a named member of a room.
type Participant struct {
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Task is a single estimation unit.
type Task struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Votes         map[string]string `json:"votes"`
	FinalEstimate *string           `json:"finalEstimate,omitempty"`
}

// Round is the voting lifecycle attached to the room, not to a task.
type Round struct {
	Status RoundStatus `json:"status"`
	EndsAt *time.Time  `json:"endsAt"`
}

// State is the authoritative session state of one room.
type State struct {
	RoomID       string                 `json:"roomId"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
	Host         Host                   `json:"host"`
	Mode         Mode                   `json:"mode"`
	Status       Status                 `json:"status"`
	Participants map[string]Participant `json:"participants"`
	JoinRequests map[string]Role        `json:"joinRequests"`
	Tasks        []Task                 `json:"tasks"`
	ActiveTaskID *string                `json:"activeTaskId"`
	Voting       Round                  `json:"voting"`
}

// NewState builds the initial state of a room: the host is the sole voter,
// there are no tasks and the round is idle.
func NewState(roomID, hostName string, mode Mode, env Env) *State {
	now := env.Now()
	return &State{
		RoomID:    roomID,
		CreatedAt: now,
		UpdatedAt: now,
		Host:      Host{Name: hostName, Token: env.NewSecret()},
		Mode:      mode,
		Status:    StatusActive,
		Participants: map[string]Participant{
			hostName: {Name: hostName, Role: RoleVoter, JoinedAt: now},
		},
		JoinRequests: map[string]Role{},
		Tasks:        []Task{},
		Voting:       Round{Status: RoundIdle},
	}
}

// Clone returns a deep copy sharing no references with s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	c := *s
	c.Participants = make(map[string]Participant, len(s.Participants))
	for name, p := range s.Participants {
		c.Participants[name] = p
	}
	c.JoinRequests = make(map[string]Role, len(s.JoinRequests))
	for name, role := range s.JoinRequests {
		c.JoinRequests[name] = role
	}
	c.Tasks = make([]Task, len(s.Tasks))
	for i, t := range s.Tasks {
		c.Tasks[i] = t.clone()
	}
	c.ActiveTaskID = cloneString(s.ActiveTaskID)
	c.Voting.EndsAt = cloneTime(s.Voting.EndsAt)
	return &c
}

func (t Task) clone() Task {
	c := t
	c.Votes = make(map[string]string, len(t.Votes))
	for name, v := range t.Votes {
		c.Votes[name] = v
	}
	c.FinalEstimate = cloneString(t.FinalEstimate)
	return c
}

// taskIndex returns the position of the task with the given id, or -1.
func (s *State) taskIndex(id string) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// ActiveTask returns the active task, or nil when none is selected.
func (s *State) ActiveTask() *Task {
	if s.ActiveTaskID == nil {
		return nil
	}
	if i := s.taskIndex(*s.ActiveTaskID); i >= 0 {
		return &s.Tasks[i]
	}
	return nil
}

// Task returns the task with the given id.
func (s *State) Task(id string) (*Task, bool) {
	i := s.taskIndex(id)
	if i < 0 {
		return nil, false
	}
	return &s.Tasks[i], true
}

func (s *State) removeVotesBy(name string) {
	for i := range s.Tasks {
		delete(s.Tasks[i].Votes, name)
	}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

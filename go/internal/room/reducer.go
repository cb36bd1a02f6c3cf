package room

import (
	"fmt"
	"time"
)

// Apply is the single path through which room state changes. It never
// mutates prev. The returned state is always stamped with env.Now() as its
// UpdatedAt, whether or not the action had any other effect: any contact
// counts as activity.
//
// A nil error means the action was applied. A non-nil error explains why the
// action was rejected; the returned state is then prev's content with only
// the timestamp moved forward. A nil prev has no room to act on and yields
// (nil, ErrRoomNotFound).
func Apply(prev *State, action Action, env Env) (*State, error) {
	if prev == nil {
		return nil, ErrRoomNotFound
	}
	now := env.Now()

	next := prev.Clone()
	next.UpdatedAt = now

	if err := next.apply(action, env, now); err != nil {
		rejected := prev.Clone()
		rejected.UpdatedAt = now
		return rejected, err
	}
	return next, nil
}

func (s *State) apply(action Action, env Env, now time.Time) error {
	switch a := action.(type) {
	case *Join:
		return s.join(a, now)
	case *ApproveJoin:
		return s.approveJoin(a, now)
	case *RejectJoin:
		return s.rejectJoin(a)
	case *AddTask:
		return s.addTask(a, env)
	case *SelectTask:
		return s.selectTask(a)
	case *CastVote:
		return s.castVote(a)
	case *StartVoting:
		return s.startVoting(a, env, now)
	case *CloseVoting:
		return s.closeVoting(a)
	case *Reveal:
		return s.reveal(a)
	case *AddTime:
		return s.addTime(a)
	case *ClearVotes:
		return s.clearVotes(a)
	case *SetFinalEstimate:
		return s.setFinalEstimate(a)
	case *SetRole:
		return s.setRole(a)
	case *Kick:
		return s.kick(a)
	case *TransferHost:
		return s.transferHost(a, env)
	case *EndSession:
		return s.endSession(a)
	case nil:
		return fmt.Errorf("%w: nil action", ErrUnknownAction)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
}

func (s *State) requireHost(auth HostAuth) error {
	if !s.IsHost(auth.HostToken) {
		return ErrUnauthorized
	}
	return nil
}

func (s *State) join(a *Join, now time.Time) error {
	name, ok := SanitizeName(a.Name)
	if !ok {
		return fmt.Errorf("%w: name", ErrInvalid)
	}
	role := a.Role
	if role == "" {
		role = RoleVoter
	}
	if !ValidRole(role) {
		return fmt.Errorf("%w: role %q", ErrInvalid, role)
	}
	if _, exists := s.Participants[name]; exists {
		return fmt.Errorf("%w: name %q already taken", ErrNotAllowed, name)
	}
	if len(s.Participants) >= MaxParticipants {
		return fmt.Errorf("%w: %d participants", ErrLimitReached, MaxParticipants)
	}

	if s.Mode == ModeClosed && !s.IsHost(a.HostToken) {
		s.JoinRequests[name] = role
		return nil
	}

	s.Participants[name] = Participant{Name: name, Role: role, JoinedAt: now}
	delete(s.JoinRequests, name)
	return nil
}

func (s *State) approveJoin(a *ApproveJoin, now time.Time) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	role, ok := s.JoinRequests[a.Name]
	if !ok {
		return fmt.Errorf("%w: join request %q", ErrNotFound, a.Name)
	}
	if _, exists := s.Participants[a.Name]; !exists {
		if len(s.Participants) >= MaxParticipants {
			return fmt.Errorf("%w: %d participants", ErrLimitReached, MaxParticipants)
		}
		s.Participants[a.Name] = Participant{Name: a.Name, Role: role, JoinedAt: now}
	}
	delete(s.JoinRequests, a.Name)
	return nil
}

func (s *State) rejectJoin(a *RejectJoin) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	if _, ok := s.JoinRequests[a.Name]; !ok {
		return fmt.Errorf("%w: join request %q", ErrNotFound, a.Name)
	}
	delete(s.JoinRequests, a.Name)
	return nil
}

func (s *State) addTask(a *AddTask, env Env) error {
	isHost := s.IsHost(a.HostToken)
	if s.Mode == ModeClosed && !isHost {
		return ErrUnauthorized
	}
	if !isHost {
		if _, ok := s.Participants[a.Actor]; !ok {
			return fmt.Errorf("%w: %q is not a participant", ErrUnauthorized, a.Actor)
		}
	}

	title, ok := SanitizeTitle(a.Title)
	if !ok {
		return fmt.Errorf("%w: title", ErrInvalid)
	}
	description, ok := SanitizeDescription(a.Description)
	if !ok {
		return fmt.Errorf("%w: description", ErrInvalid)
	}
	if len(s.Tasks) >= MaxTasks {
		return fmt.Errorf("%w: %d tasks", ErrLimitReached, MaxTasks)
	}

	s.appendTask(env.NewID(), title, description)
	return nil
}

func (s *State) appendTask(id, title, description string) {
	s.Tasks = append(s.Tasks, Task{
		ID:          id,
		Title:       title,
		Description: description,
		Votes:       map[string]string{},
	})
	if s.ActiveTaskID == nil {
		s.ActiveTaskID = &id
	}
}

func (s *State) selectTask(a *SelectTask) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	if s.taskIndex(a.TaskID) < 0 {
		return fmt.Errorf("%w: task %q", ErrNotFound, a.TaskID)
	}
	id := a.TaskID
	s.ActiveTaskID = &id
	s.Voting = Round{Status: RoundIdle}
	return nil
}

func (s *State) castVote(a *CastVote) error {
	p, ok := s.Participants[a.Actor]
	if !ok {
		return fmt.Errorf("%w: %q is not a participant", ErrUnauthorized, a.Actor)
	}
	if p.Role != RoleVoter {
		return fmt.Errorf("%w: %q is an observer", ErrNotAllowed, a.Actor)
	}
	if s.Status != StatusActive {
		return fmt.Errorf("%w: room has ended", ErrNotAllowed)
	}
	if s.Voting.Status != RoundOpen {
		return fmt.Errorf("%w: round is %s", ErrNotAllowed, s.Voting.Status)
	}
	task := s.ActiveTask()
	if task == nil {
		return fmt.Errorf("%w: no active task", ErrNotAllowed)
	}
	if !ValidVote(a.Value) {
		return fmt.Errorf("%w: vote %q", ErrInvalid, a.Value)
	}

	task.Votes[a.Actor] = a.Value
	return nil
}

// startVoting creates a placeholder task when the room has none, so that a
// host can start estimating without preparing a backlog first.
func (s *State) startVoting(a *StartVoting, env Env, now time.Time) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	if !ValidDuration(a.Duration) {
		return fmt.Errorf("%w: duration %d", ErrInvalid, a.Duration)
	}

	if len(s.Tasks) == 0 {
		s.appendTask(env.NewID(), DefaultTaskTitle, "")
	}
	if task := s.ActiveTask(); task != nil {
		task.Votes = map[string]string{}
	}

	s.Voting = Round{Status: RoundOpen}
	if a.Duration > 0 {
		endsAt := now.Add(time.Duration(a.Duration) * time.Second)
		s.Voting.EndsAt = &endsAt
	}
	return nil
}

func (s *State) closeVoting(a *CloseVoting) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	s.Voting = Round{Status: RoundClosed}
	return nil
}

func (s *State) reveal(a *Reveal) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	s.Voting = Round{Status: RoundRevealed}
	return nil
}

func (s *State) addTime(a *AddTime) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	if s.Voting.Status != RoundOpen || s.Voting.EndsAt == nil {
		return fmt.Errorf("%w: no running timer", ErrNotAllowed)
	}
	if !ValidExtension(a.Seconds) {
		return fmt.Errorf("%w: seconds %d", ErrInvalid, a.Seconds)
	}
	endsAt := s.Voting.EndsAt.Add(time.Duration(a.Seconds) * time.Second)
	s.Voting.EndsAt = &endsAt
	return nil
}

func (s *State) clearVotes(a *ClearVotes) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	if task := s.ActiveTask(); task != nil {
		task.Votes = map[string]string{}
	}
	s.Voting = Round{Status: RoundIdle}
	return nil
}

func (s *State) setFinalEstimate(a *SetFinalEstimate) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	task, ok := s.Task(a.TaskID)
	if !ok {
		return fmt.Errorf("%w: task %q", ErrNotFound, a.TaskID)
	}
	estimate, ok := SanitizeEstimate(a.Estimate)
	if !ok {
		return fmt.Errorf("%w: estimate", ErrInvalid)
	}

	if estimate == "" {
		task.FinalEstimate = nil
		return nil
	}
	task.FinalEstimate = &estimate
	return nil
}

func (s *State) setRole(a *SetRole) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	p, ok := s.Participants[a.Name]
	if !ok {
		return fmt.Errorf("%w: participant %q", ErrNotFound, a.Name)
	}
	if !ValidRole(a.Role) {
		return fmt.Errorf("%w: role %q", ErrInvalid, a.Role)
	}

	p.Role = a.Role
	s.Participants[a.Name] = p
	// An observer cannot be said to have voted.
	if a.Role == RoleObserver {
		s.removeVotesBy(a.Name)
	}
	return nil
}

func (s *State) kick(a *Kick) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	if a.Name == s.Host.Name {
		return fmt.Errorf("%w: host cannot be kicked", ErrNotAllowed)
	}
	_, isParticipant := s.Participants[a.Name]
	_, isRequester := s.JoinRequests[a.Name]
	if !isParticipant && !isRequester {
		return fmt.Errorf("%w: participant %q", ErrNotFound, a.Name)
	}

	delete(s.Participants, a.Name)
	delete(s.JoinRequests, a.Name)
	s.removeVotesBy(a.Name)
	return nil
}

func (s *State) transferHost(a *TransferHost, env Env) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	if _, ok := s.Participants[a.Name]; !ok {
		return fmt.Errorf("%w: participant %q", ErrNotFound, a.Name)
	}
	s.Host = Host{Name: a.Name, Token: env.NewSecret()}
	return nil
}

func (s *State) endSession(a *EndSession) error {
	if err := s.requireHost(a.HostAuth); err != nil {
		return err
	}
	s.Status = StatusEnded
	return nil
}

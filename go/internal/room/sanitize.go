package room

// Project returns the view of s that requester is allowed to see. The input
// is never modified and the result shares no references with it, so a
// projection queued for one observer cannot change underneath it.
//
// The host token is kept only for the host. Votes on the active task are
// masked with VotedMarker, except the requester's own, until the round is
// revealed. Tasks that already carry a result are never masked.
func Project(s *State, requester string) *State {
	p := s.Clone()
	if p == nil {
		return nil
	}

	if requester == "" || requester != p.Host.Name {
		p.Host.Token = ""
	}

	revealAll := p.Voting.Status == RoundRevealed || p.Status == StatusEnded
	for i := range p.Tasks {
		task := &p.Tasks[i]
		if revealAll || p.taskVisible(task) {
			continue
		}
		for name := range task.Votes {
			if requester != "" && name == requester {
				continue
			}
			task.Votes[name] = VotedMarker
		}
	}
	return p
}

func (s *State) taskVisible(t *Task) bool {
	if len(t.Votes) == 0 {
		return true
	}
	isActive := s.ActiveTaskID != nil && *s.ActiveTaskID == t.ID
	if !isActive {
		return true
	}
	// Returning to a previously voted task shows its last result.
	return s.Voting.Status == RoundIdle
}

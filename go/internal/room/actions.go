package room

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the type of an action.
type Kind string

const (
	KindJoin             Kind = "join"
	KindApproveJoin      Kind = "approve_join"
	KindRejectJoin       Kind = "reject_join"
	KindAddTask          Kind = "add_task"
	KindSelectTask       Kind = "select_task"
	KindCastVote         Kind = "cast_vote"
	KindStartVoting      Kind = "start_voting"
	KindCloseVoting      Kind = "close_voting"
	KindReveal           Kind = "reveal"
	KindAddTime          Kind = "add_time"
	KindClearVotes       Kind = "clear_votes"
	KindSetFinalEstimate Kind = "set_final_estimate"
	KindSetRole          Kind = "set_role"
	KindKick             Kind = "kick"
	KindTransferHost     Kind = "transfer_host"
	KindEndSession       Kind = "end_session"
)

// Action is a user-submitted mutation request. The set of implementations is
// closed: only the types in this file satisfy it.
type Action interface {
	Kind() Kind
	sealed()
}

// HostAuth carries the host secret presented with host-restricted actions.
type HostAuth struct {
	HostToken string `json:"hostToken,omitempty"`
}

// Join asks for Name to enter the room with Role. A valid HostToken lets the
// host admit a name directly into a closed room.
type Join struct {
	Name      string `json:"name"`
	Role      Role   `json:"role,omitempty"`
	HostToken string `json:"hostToken,omitempty"`
}

type ApproveJoin struct {
	HostAuth
	Name string `json:"name"`
}

type RejectJoin struct {
	HostAuth
	Name string `json:"name"`
}

// AddTask is host-only in closed rooms; in open rooms any participant may add.
type AddTask struct {
	Actor       string `json:"actor,omitempty"`
	HostToken   string `json:"hostToken,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type SelectTask struct {
	HostAuth
	TaskID string `json:"taskId"`
}

type CastVote struct {
	Actor string `json:"actor"`
	Value string `json:"value"`
}

// StartVoting opens a round lasting Duration seconds; 0 means no expiry.
type StartVoting struct {
	HostAuth
	Duration int `json:"duration"`
}

type CloseVoting struct {
	HostAuth
}

type Reveal struct {
	HostAuth
}

type AddTime struct {
	HostAuth
	Seconds int `json:"seconds"`
}

type ClearVotes struct {
	HostAuth
}

type SetFinalEstimate struct {
	HostAuth
	TaskID   string `json:"taskId"`
	Estimate string `json:"estimate"`
}

type SetRole struct {
	HostAuth
	Name string `json:"name"`
	Role Role   `json:"role"`
}

type Kick struct {
	HostAuth
	Name string `json:"name"`
}

type TransferHost struct {
	HostAuth
	Name string `json:"name"`
}

type EndSession struct {
	HostAuth
}

func (*Join) Kind() Kind             { return KindJoin }
func (*ApproveJoin) Kind() Kind      { return KindApproveJoin }
func (*RejectJoin) Kind() Kind       { return KindRejectJoin }
func (*AddTask) Kind() Kind          { return KindAddTask }
func (*SelectTask) Kind() Kind       { return KindSelectTask }
func (*CastVote) Kind() Kind         { return KindCastVote }
func (*StartVoting) Kind() Kind      { return KindStartVoting }
func (*CloseVoting) Kind() Kind      { return KindCloseVoting }
func (*Reveal) Kind() Kind           { return KindReveal }
func (*AddTime) Kind() Kind          { return KindAddTime }
func (*ClearVotes) Kind() Kind       { return KindClearVotes }
func (*SetFinalEstimate) Kind() Kind { return KindSetFinalEstimate }
func (*SetRole) Kind() Kind          { return KindSetRole }
func (*Kick) Kind() Kind             { return KindKick }
func (*TransferHost) Kind() Kind     { return KindTransferHost }
func (*EndSession) Kind() Kind       { return KindEndSession }

func (*Join) sealed()             {}
func (*ApproveJoin) sealed()      {}
func (*RejectJoin) sealed()       {}
func (*AddTask) sealed()          {}
func (*SelectTask) sealed()       {}
func (*CastVote) sealed()         {}
func (*StartVoting) sealed()      {}
func (*CloseVoting) sealed()      {}
func (*Reveal) sealed()           {}
func (*AddTime) sealed()          {}
func (*ClearVotes) sealed()       {}
func (*SetFinalEstimate) sealed() {}
func (*SetRole) sealed()          {}
func (*Kick) sealed()             {}
func (*TransferHost) sealed()     {}
func (*EndSession) sealed()       {}

var actionFactories = map[Kind]func() Action{
	KindJoin:             func() Action { return &Join{} },
	KindApproveJoin:      func() Action { return &ApproveJoin{} },
	KindRejectJoin:       func() Action { return &RejectJoin{} },
	KindAddTask:          func() Action { return &AddTask{} },
	KindSelectTask:       func() Action { return &SelectTask{} },
	KindCastVote:         func() Action { return &CastVote{} },
	KindStartVoting:      func() Action { return &StartVoting{} },
	KindCloseVoting:      func() Action { return &CloseVoting{} },
	KindReveal:           func() Action { return &Reveal{} },
	KindAddTime:          func() Action { return &AddTime{} },
	KindClearVotes:       func() Action { return &ClearVotes{} },
	KindSetFinalEstimate: func() Action { return &SetFinalEstimate{} },
	KindSetRole:          func() Action { return &SetRole{} },
	KindKick:             func() Action { return &Kick{} },
	KindTransferHost:     func() Action { return &TransferHost{} },
	KindEndSession:       func() Action { return &EndSession{} },
}

// DecodeAction parses an action envelope of the form
// {"type": "<kind>", ...type-specific fields}.
func DecodeAction(data []byte) (Action, error) {
	var envelope struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedAction)
	}

	factory, ok := actionFactories[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", ErrMalformedAction, ErrUnknownAction, envelope.Type)
	}

	action := factory()
	if err := json.Unmarshal(data, action); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedAction, envelope.Type, err)
	}
	return action, nil
}

// EncodeAction renders an action as an envelope understood by DecodeAction.
func EncodeAction(a Action) ([]byte, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", a.Kind(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", a.Kind(), err)
	}
	kind, _ := json.Marshal(a.Kind())
	fields["type"] = kind
	return json.Marshal(fields)
}

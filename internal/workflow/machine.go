package workflow

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusInReview  Status = "inReview"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPublished Status = "published"
)

var Statuses = []Status{StatusDraft, StatusInReview, StatusApproved, StatusRejected, StatusPublished}

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownStatus     = errors.New("unknown status")
)

// Effect is the side effect a transition has on the publish timestamp.
type Effect int

const (
	EffectNone Effect = iota
	EffectSetPublishedAt
	EffectClearPublishedAt
)

type edge struct {
	from   Status
	to     Status
	effect Effect
}

// Reset is handled separately because it accepts every non-draft source.
var edges = map[Action]edge{
	ActionSubmit:    {from: StatusDraft, to: StatusInReview},
	ActionApprove:   {from: StatusInReview, to: StatusApproved},
	ActionReject:    {from: StatusInReview, to: StatusRejected},
	ActionPublish:   {from: StatusApproved, to: StatusPublished, effect: EffectSetPublishedAt},
	ActionUnpublish: {from: StatusPublished, to: StatusApproved, effect: EffectClearPublishedAt},
}

// Normalize maps the empty status to draft.
func Normalize(s Status) Status {
	if s == "" {
		return StatusDraft
	}
	return s
}

func IsValidStatus(s Status) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Transition resolves action for role from the given status. The guard is
// checked before the source state so a denied call never reveals more.
func Transition(role Role, action Action, from Status) (Status, Effect, error) {
	if _, ok := allowList[action]; !ok {
		return from, EffectNone, ErrUnknownAction
	}
	if !CanPerform(role, action) {
		return from, EffectNone, fmt.Errorf("%w: %s may not %s", ErrPermissionDenied, role, action)
	}
	from = Normalize(from)

	if action == ActionReset {
		if from == StatusDraft {
			return from, EffectNone, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
		}
		return StatusDraft, EffectClearPublishedAt, nil
	}

	e := edges[action]
	if e.from != from {
		return from, EffectNone, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
	}
	return e.to, e.effect, nil
}

// Available lists the actions role can apply to a record in status s.
func Available(role Role, s Status) []Action {
	out := make([]Action, 0, len(Actions))
	for _, a := range Actions {
		if _, _, err := Transition(role, a, s); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// Notice is the confirmation shown after a successful transition.
func Notice(action Action, slug string) string {
	switch action {
	case ActionSubmit:
		return fmt.Sprintf("%s submitted for review", slug)
	case ActionApprove:
		return fmt.Sprintf("%s approved", slug)
	case ActionReject:
		return fmt.Sprintf("%s rejected", slug)
	case ActionPublish:
		return fmt.Sprintf("%s published", slug)
	case ActionUnpublish:
		return fmt.Sprintf("%s unpublished", slug)
	case ActionReset:
		return fmt.Sprintf("%s reset to draft", slug)
	default:
		return slug
	}
}

// Package workflow holds the case lifecycle: statuses, roles, actions and the
// guarded transitions between them.
package workflow

import (
	"errors"
	"strings"
)

type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleEditor    Role = "Editor"
	RoleReviewer  Role = "Reviewer"
	RolePublisher Role = "Publisher"
	RoleViewer    Role = "Viewer"
)

var Roles = []Role{RoleAdmin, RoleEditor, RoleReviewer, RolePublisher, RoleViewer}

type Action string

const (
	ActionSubmit    Action = "submit"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionPublish   Action = "publish"
	ActionUnpublish Action = "unpublish"
	ActionReset     Action = "reset"
)

var Actions = []Action{ActionSubmit, ActionApprove, ActionReject, ActionPublish, ActionUnpublish, ActionReset}

var (
	ErrUnknownRole   = errors.New("unknown role")
	ErrUnknownAction = errors.New("unknown action")
)

// Admin is implied for every action and is not listed.
var allowList = map[Action]map[Role]struct{}{
	ActionSubmit:    {RoleEditor: {}},
	ActionApprove:   {RoleReviewer: {}, RolePublisher: {}},
	ActionReject:    {RoleReviewer: {}},
	ActionPublish:   {RolePublisher: {}},
	ActionUnpublish: {RolePublisher: {}},
	ActionReset:     {},
}

// CanPerform reports whether role may invoke action.
func CanPerform(role Role, action Action) bool {
	roles, ok := allowList[action]
	if !ok {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	_, allowed := roles[role]
	return allowed
}

// Allowed returns the actions role may invoke, in display order.
func Allowed(role Role) []Action {
	out := make([]Action, 0, len(Actions))
	for _, a := range Actions {
		if CanPerform(role, a) {
			out = append(out, a)
		}
	}
	return out
}

func ParseRole(raw string) (Role, error) {
	raw = strings.TrimSpace(raw)
	for _, r := range Roles {
		if strings.EqualFold(raw, string(r)) {
			return r, nil
		}
	}
	return "", ErrUnknownRole
}

func ParseAction(raw string) (Action, error) {
	raw = strings.TrimSpace(raw)
	for _, a := range Actions {
		if strings.EqualFold(raw, string(a)) {
			return a, nil
		}
	}
	return "", ErrUnknownAction
}

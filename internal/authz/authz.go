// Package authz decides whether an identity may perform an action on a
// defect. It never looks a defect up itself: callers load the resource and
// turn a missing one into NotFound before asking.
package authz

import (
	"github.com/geocoder89/civicfix/internal/apperr"
	"github.com/geocoder89/civicfix/internal/domain/defect"
	"github.com/geocoder89/civicfix/internal/identity"
)

type Action string

const (
	ActionCreate    Action = "create"
	ActionRead      Action = "read"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionSetStatus Action = "set_status"
	ActionComment   Action = "comment"
	ActionMarkRead  Action = "mark_read"
)

// Allowed applies the capability rules. d may be nil for actions that do not
// depend on the resource.
func Allowed(id identity.Identity, action Action, d *defect.Defect) bool {
	if id.IsZero() {
		return false
	}

	switch action {
	case ActionCreate:
		return true
	case ActionRead, ActionUpdate, ActionDelete:
		return id.IsAdmin() || isOwner(id, d)
	case ActionSetStatus:
		return id.IsAdmin() || id.IsModerator()
	case ActionComment:
		return id.IsAdmin()
	case ActionMarkRead:
		return isOwner(id, d)
	}
	return false
}

// Authorize is Allowed returning a Forbidden error on denial.
func Authorize(id identity.Identity, action Action, d *defect.Defect) error {
	if id.IsZero() {
		return apperr.Unauthenticated("Authentication required")
	}
	if !Allowed(id, action, d) {
		return apperr.Forbidden(denialMessage(action))
	}
	return nil
}

// ListScope returns the owner filter for list queries: "" for admins,
// the caller's own id otherwise.
func ListScope(id identity.Identity) string {
	if id.IsAdmin() {
		return ""
	}
	return id.UserID
}

func isOwner(id identity.Identity, d *defect.Defect) bool {
	return d != nil && d.OwnerID != "" && d.OwnerID == id.UserID
}

func denialMessage(action Action) string {
	switch action {
	case ActionSetStatus:
		return "Only admins and moderators can change status"
	case ActionComment:
		return "Only admins can comment"
	case ActionMarkRead:
		return "Only the reporter can mark notifications read"
	}
	return "Not authorized"
}

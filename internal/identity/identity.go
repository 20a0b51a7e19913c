package identity

import (
	"context"

	"github.com/geocoder89/civicfix/internal/domain/user"
)

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID string
	Email  string
	Role   user.Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == user.RoleAdmin
}

func (i Identity) IsModerator() bool {
	return i.Role == user.RoleModerator
}

func (i Identity) IsZero() bool {
	return i.UserID == ""
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKey{}).(Identity)

	return v, ok && v.UserID != ""
}

package auth

import (
	"context"

	apperrors "tourbook/internal/errors"
	"tourbook/internal/models"
)

// Identity is the authenticated caller of an operation
type Identity struct {
	UserID string
	Role   models.Role
	Email  string
	Name   string
}

// IsAdmin reports whether the caller carries the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

type ctxKey struct{}

// ContextWithIdentity attaches the caller to ctx
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the caller attached by ContextWithIdentity
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// RequireUser fails with ErrUnauthorized when ctx carries no identity
func RequireUser(ctx context.Context) (Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, apperrors.ErrUnauthorized
	}
	return id, nil
}

// RequireAdmin fails with ErrUnauthorized without identity and ErrForbidden for non-admins
func RequireAdmin(ctx context.Context) (Identity, error) {
	id, err := RequireUser(ctx)
	if err != nil {
		return Identity{}, err
	}
	if !id.IsAdmin() {
		return Identity{}, apperrors.ErrForbidden
	}
	return id, nil
}

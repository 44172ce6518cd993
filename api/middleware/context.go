package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
)

type identityKey struct{}

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID uuid.UUID
	Role   enums.Role
}

// WithIdentity seeds ctx with the caller. Auth calls it after verifying the
// token; handler tests call it directly.
func WithIdentity(ctx context.Context, userID uuid.UUID, role enums.Role) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, Identity{UserID: userID, Role: role})
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != uuid.Nil
}

// UserIDFromContext returns the caller or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// CallerID returns the caller or an UNAUTHORIZED error.
func CallerID(ctx context.Context) (uuid.UUID, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id.UserID, nil
}

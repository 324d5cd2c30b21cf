package gateway

import (
	"context"
	"errors"
)

var ErrNoCurrentUser = errors.New("no current user")

type userIDKey struct{}

// WithUserID scopes remote calls made with ctx to the given user.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the user set by WithUserID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

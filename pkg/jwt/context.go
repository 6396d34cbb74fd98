package jwt

import (
	"context"
)

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID stores the session subject alongside the identity that
// middleware.RequireAuth attaches, for code that only needs the user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the session subject set by WithUserID.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

package core

import "context"

type contextKey string

const userIDContextKey contextKey = "userID"

// ContextWithUserID attaches a virtual user id to ctx.
func ContextWithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext reads back the id attached by ContextWithUserID,
// defaulting to 0 if none was set.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDContextKey).(int); ok {
		return id
	}
	return 0
}

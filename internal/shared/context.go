package shared

import "context"

type contextKey string

const userContextKey contextKey = "kedaiku.user"

// User identifies the authenticated caller for core operations.
type User struct {
	ID    int64
	Email string
	Admin bool
}

// ContextWithUser stores the authenticated user in the context.
func ContextWithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey).(User)
	return user, ok
}

const sessionContextKey contextKey = "kedaiku.session"

// ContextWithSession stores the request session in the context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionFromContext retrieves the request session, if any.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey).(*Session)
	return sess
}

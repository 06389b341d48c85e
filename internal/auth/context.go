package auth

import "context"

type contextKey struct{}

// AuthContext is the identity of the caller of an authenticated request.
type AuthContext struct {
	UserID  string
	Name    string
	Email   string
	Picture string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.UserID
}

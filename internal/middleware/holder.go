package middleware

import "context"

type userHolder struct {
	userID string
}

type holderKey struct{}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func recordUser(ctx context.Context, userID string) {
	if h, ok := ctx.Value(holderKey{}).(*userHolder); ok {
		h.userID = userID
	}
}

package middleware

import "context"

type userKey struct{}

// UserCtx is the authenticated identity attached to a request. APIKeyID is
// set only when the request authenticated with an API key.
type UserCtx struct {
	UserID   string
	Role     string
	APIKeyID string
}

func WithUser(ctx context.Context, u UserCtx) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func FromCtx(ctx context.Context) UserCtx {
	if v := ctx.Value(userKey{}); v != nil {
		if u, ok := v.(UserCtx); ok {
			return u
		}
	}
	return UserCtx{}
}

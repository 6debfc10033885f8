package auth

import (
	"context"

	"github.com/jw6ventures/volunteerportal/internal/store"
)

type contextKey string

const (
	contextKeyUser   contextKey = "user"
	contextKeyMethod contextKey = "auth_method"
)

// Method records how a request was authenticated.
type Method string

const (
	MethodSession  Method = "session"
	MethodAPIToken Method = "api_token"
)

func WithUser(ctx context.Context, user *store.User, method Method) context.Context {
	ctx = context.WithValue(ctx, contextKeyUser, user)
	return context.WithValue(ctx, contextKeyMethod, method)
}

func UserFromContext(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(contextKeyUser).(*store.User)
	return u, ok && u != nil
}

func MethodFromContext(ctx context.Context) Method {
	m, _ := ctx.Value(contextKeyMethod).(Method)
	return m
}

package auth

import (
	"context"

	"google.golang.org/grpc/metadata"
)

type UserContext struct {
	UserID string
	Role   Role
}

type userKey struct{}

func WithUser(ctx context.Context, u UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// GetUser returns the caller set by an interceptor or middleware, falling back
// to incoming gRPC metadata.
func GetUser(ctx context.Context) UserContext {
	if u, ok := ctx.Value(userKey{}).(UserContext); ok {
		return u
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return UserContext{}
	}
	var u UserContext
	if val := md.Get("x-user-id"); len(val) > 0 {
		u.UserID = val[0]
	}
	if val := md.Get("x-user-role"); len(val) > 0 {
		u.Role = Role(val[0])
	}
	return u
}

// System is the actor used for work triggered by events rather than people.
var System = UserContext{UserID: "system", Role: RoleAdmin}

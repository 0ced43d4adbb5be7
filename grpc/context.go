// Package grpc carries an authflow session across gRPC calls. Clients attach
// the session's bearer token to each RPC; servers verify it and expose the
// caller's user id on the request context.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// MetadataKeyAuthorization is the metadata key holding "Bearer <token>"
const MetadataKeyAuthorization = "authorization"

type userIDKey struct{}

// UserIDFromContext returns the user id set by the auth interceptors, or "".
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

// IsAuthenticated returns true if the interceptors verified a caller
func IsAuthenticated(ctx context.Context) bool {
	return UserIDFromContext(ctx) != ""
}

func contextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// BearerFromIncomingContext extracts the bearer token from incoming metadata
func BearerFromIncomingContext(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, v := range md.Get(MetadataKeyAuthorization) {
		scheme, token, found := strings.Cut(v, " ")
		if found && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), true
		}
	}
	return "", false
}

// TokenToOutgoingContext adds the bearer token to outgoing metadata
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataKeyAuthorization, "Bearer "+token)
}

package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

// TokenSource yields the current access token. client.AuthClient satisfies it.
type TokenSource interface {
	AccessToken() (string, bool)
}

// SessionCredentials attaches the live session's token to every RPC.
// Calls made while signed out fail with codes.Unauthenticated.
type SessionCredentials struct {
	Source TokenSource

	// AllowInsecure permits sending the token over a plaintext connection
	AllowInsecure bool
}

// GetRequestMetadata implements credentials.PerRPCCredentials
func (c SessionCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	token, ok := c.Source.AccessToken()
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no active session")
	}
	return map[string]string{MetadataKeyAuthorization: "Bearer " + token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials
func (c SessionCredentials) RequireTransportSecurity() bool {
	return !c.AllowInsecure
}

var _ credentials.PerRPCCredentials = SessionCredentials{}

// UnaryClientInterceptor attaches the token when there is one and lets
// signed-out calls through unauthenticated.
func UnaryClientInterceptor(source TokenSource) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if token, ok := source.AccessToken(); ok {
			ctx = TokenToOutgoingContext(ctx, token)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

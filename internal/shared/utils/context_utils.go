package utils

import (
	"context"
	"errors"

	"social-connect/internal/shared/contextkeys"
)

// Common context errors
var (
	ErrIdentityIDNotFound  = errors.New("identityID not found in context")
	ErrIdentityIDNotString = errors.New("identityID in context is not a string")
	ErrRequestIDNotFound   = errors.New("requestID not found in context")
	ErrRequestIDNotString  = errors.New("requestID in context is not a string")
)

func stringValue(ctx context.Context, key interface{}, missing, notString error) (string, error) {
	val := ctx.Value(key)
	if val == nil {
		return "", missing
	}
	s, ok := val.(string)
	if !ok {
		return "", notString
	}
	return s, nil
}

// GetIdentityIDFromContext retrieves the authenticated identity id from the context.
func GetIdentityIDFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.IdentityIDKey, ErrIdentityIDNotFound, ErrIdentityIDNotString)
}

// GetRequestIDFromContext retrieves the request id from the context.
func GetRequestIDFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.RequestIDKey, ErrRequestIDNotFound, ErrRequestIDNotString)
}

// WithIdentityID returns a copy of ctx carrying the identity id.
func WithIdentityID(ctx context.Context, identityID string) context.Context {
	return context.WithValue(ctx, contextkeys.IdentityIDKey, identityID)
}

// WithRequestID returns a copy of ctx carrying the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// WithComponent returns a copy of ctx carrying the component name.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, contextkeys.ComponentKey, component)
}

// WithOperation returns a copy of ctx carrying the attempted action.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, contextkeys.OperationKey, operation)
}

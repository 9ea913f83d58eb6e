package utils

import (
	"context"
	"testing"

	"social-connect/internal/shared/contextkeys"

	"github.com/stretchr/testify/assert"
)

func TestGetSetContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithIdentityID(ctx, "u1")
	ctx = WithRequestID(ctx, "req1")
	ctx = WithComponent(ctx, "feed-assembler")
	ctx = WithOperation(ctx, "toggle-like")

	identityID, err := GetIdentityIDFromContext(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "u1", identityID)

	requestID, err := GetRequestIDFromContext(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "req1", requestID)

	assert.Equal(t, "feed-assembler", ctx.Value(contextkeys.ComponentKey))
	assert.Equal(t, "toggle-like", ctx.Value(contextkeys.OperationKey))
}

func TestContextErrors(t *testing.T) {
	_, err := GetIdentityIDFromContext(context.Background())
	assert.ErrorIs(t, err, ErrIdentityIDNotFound)

	ctx := context.WithValue(context.Background(), contextkeys.IdentityIDKey, 42)
	_, err = GetIdentityIDFromContext(ctx)
	assert.ErrorIs(t, err, ErrIdentityIDNotString)

	_, err = GetRequestIDFromContext(context.Background())
	assert.ErrorIs(t, err, ErrRequestIDNotFound)
}

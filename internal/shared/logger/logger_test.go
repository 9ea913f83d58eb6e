package logger

import (
	"context"
	"testing"

	"social-connect/internal/shared/contextkeys"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerInterface_Contract(t *testing.T) {
	var _ Logger = NewLogger()
	var _ Logger = NewLoggerWithConfig("info", "json")
	var _ Logger = NewZapLogger("debug", "text")
	var _ Logger = NewNopLogger()
}

func TestNewLogger_ZapBackend(t *testing.T) {
	t.Setenv("LOG_BACKEND", "zap")
	_, ok := NewLogger().(*ZapLogger)
	assert.True(t, ok)

	t.Setenv("LOG_BACKEND", "")
	_, ok = NewLogger().(*LogrusLogger)
	assert.True(t, ok)
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	ctx = context.WithValue(ctx, contextkeys.IdentityIDKey, "u1")
	ctx = context.WithValue(ctx, contextkeys.OperationKey, "send-message")
	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, "")

	fields := contextFields(ctx)
	assert.Equal(t, "u1", fields["identity_id"])
	assert.Equal(t, "send-message", fields["operation"])
	assert.NotContains(t, fields, "request_id")
}

func TestZapLogger_WithContextWritesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewZapLoggerFrom(zap.New(core))

	ctx := context.WithValue(context.Background(), contextkeys.IdentityIDKey, "u1")
	log.WithComponent("feed-assembler").WithContext(ctx).Infof("published %d items", 3)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "published 3 items", entries[0].Message)
		fields := entries[0].ContextMap()
		assert.Equal(t, "feed-assembler", fields["component"])
		assert.Equal(t, "u1", fields["identity_id"])
	}
}

func TestLogrusLogger_Chaining(t *testing.T) {
	log := NewLoggerWithConfig("debug", "text")
	assert.NotNil(t, log.WithFields(map[string]interface{}{"foo": "bar"}))
	assert.NotNil(t, log.WithComponent("profile-sync"))
	assert.NotNil(t, log.WithContext(context.Background()))
}

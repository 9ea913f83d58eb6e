package di

import (
	"context"
	"path/filepath"
	"testing"

	"social-connect/internal/config"
	"social-connect/internal/session"
	"social-connect/internal/shared/logger"
	"social-connect/internal/social"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_InitializeMemoryBackend(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	c := NewContainer(logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Initialize(ctx, cfg))
	c.Start(ctx)

	module, err := GetService[*social.SocialModule](c)
	require.NoError(t, err)
	assert.Same(t, c.SocialModule, module)

	sessions, err := GetService[*session.Manager](c)
	require.NoError(t, err)
	assert.Same(t, c.Sessions, sessions)

	assert.NoError(t, c.HealthCheck(ctx))
	assert.NoError(t, c.Close())

	_, err = GetService[*social.SocialModule](c)
	assert.Error(t, err)
}

func TestContainer_HealthCheckBeforeInitialize(t *testing.T) {
	c := NewContainer(logger.NewNopLogger())
	assert.Error(t, c.HealthCheck(context.Background()))
}

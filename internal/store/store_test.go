package store

import (
	"context"
	"testing"

	"social-connect/internal/store/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MemoryDefaults(t *testing.T) {
	s, err := Open(context.Background(), Options{}, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetDocument(context.Background(), "user/u1", map[string]interface{}{"displayName": "Ann"}, model.SetOptions{}))
	doc, err := s.GetDocument(context.Background(), "user/u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", doc.Data["displayName"])
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "sqlite"}, nil, nil)
	assert.Error(t, err)

	_, err = Open(context.Background(), Options{Feed: "kafka"}, nil, nil)
	assert.Error(t, err)
}

package memory

import (
	"context"
	"testing"
	"time"

	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()

	require.NoError(t, repo.CreateAccount(ctx, &model.Account{ID: "u1", Email: " Ann@Example.com ", DisplayName: "Ann"}))
	assert.ErrorIs(t, repo.CreateAccount(ctx, &model.Account{ID: "u2", Email: "ann@example.com"}), repository.ErrEmailExists)

	byEmail, err := repo.GetAccountByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
	assert.Equal(t, "ann@example.com", byEmail.Email)

	byID, err := repo.GetAccountByID(ctx, "u1")
	require.NoError(t, err)
	byID.DisplayName = "mutated"
	again, _ := repo.GetAccountByID(ctx, "u1")
	assert.Equal(t, "Ann", again.DisplayName)

	_, err = repo.GetAccountByID(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
	_, err = repo.GetAccountByEmail(ctx, "nope@example.com")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestAccountRepository_PasswordAndRevocation(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()
	require.NoError(t, repo.CreateAccount(ctx, &model.Account{ID: "u1", Email: "a@b.co", PasswordHash: "old"}))

	require.NoError(t, repo.UpdatePasswordHash(ctx, "u1", "new"))
	acc, _ := repo.GetAccountByID(ctx, "u1")
	assert.Equal(t, "new", acc.PasswordHash)
	assert.Equal(t, 1, acc.CredentialVersion)
	assert.ErrorIs(t, repo.UpdatePasswordHash(ctx, "u9", "x"), repository.ErrAccountNotFound)

	revoked, err := repo.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.RevokeToken(ctx, &model.RevokedToken{ID: "jti-1", IdentityID: "u1", ExpiresAt: time.Now().Add(time.Hour)}))
	revoked, err = repo.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

package memory

import (
	"context"
	"sync"
	"time"

	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/domain/repository"
)

// AccountRepository keeps accounts in process memory
type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[string]*model.Account
	byEmail map[string]string
	revoked map[string]time.Time
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates an empty repository
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[string]*model.Account),
		byEmail: make(map[string]string),
		revoked: make(map[string]time.Time),
	}
}

func (r *AccountRepository) CreateAccount(ctx context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := model.NormalizeEmail(account.Email)
	if _, taken := r.byEmail[email]; taken {
		return repository.ErrEmailExists
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	stored := *account
	stored.Email = email
	r.byID[account.ID] = &stored
	r.byEmail[email] = account.ID
	return nil
}

func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[model.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	account := *r.byID[id]
	return &account, nil
}

func (r *AccountRepository) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	account := *stored
	return &account, nil
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	stored.PasswordHash = hash
	stored.CredentialVersion++
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AccountRepository) RevokeToken(ctx context.Context, token *model.RevokedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, until := range r.revoked {
		if until.Before(now) {
			delete(r.revoked, id)
		}
	}
	r.revoked[token.ID] = token.ExpiresAt
	return nil
}

func (r *AccountRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.revoked[tokenID]
	return ok, nil
}

package testutil

import (
	"context"
	"regexp"
	"time"

	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/domain/repository"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the plain password of every fixture account
const DefaultPassword = "password123"

// AccountFixture provides test data for Account model
type AccountFixture struct{}

// NewAccountFixture creates a new AccountFixture instance
func NewAccountFixture() *AccountFixture {
	return &AccountFixture{}
}

func hash(password string) string {
	h, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(h)
}

// ValidAccount returns a valid account for testing
func (f *AccountFixture) ValidAccount() *model.Account {
	return f.AccountWithPassword("test@example.com", DefaultPassword)
}

// AccountWithEmail returns an account with a specific email
func (f *AccountFixture) AccountWithEmail(email string) *model.Account {
	return f.AccountWithPassword(email, DefaultPassword)
}

// IDFor derives the fixture account id of email; it is a valid document id
func IDFor(email string) string {
	return "user-" + idUnsafe.ReplaceAllString(model.NormalizeEmail(email), "-")
}

var idUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// AccountWithPassword returns an account with a specific email and password
func (f *AccountFixture) AccountWithPassword(email, password string) *model.Account {
	return &model.Account{
		ID:           IDFor(email),
		Email:        model.NormalizeEmail(email),
		PasswordHash: hash(password),
		DisplayName:  "Test " + email,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// Seed stores accounts in repo
func Seed(ctx context.Context, repo repository.AccountRepository, accounts ...*model.Account) error {
	for _, a := range accounts {
		if err := repo.CreateAccount(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// RecordingMailer keeps the last reset token sent to each address
type RecordingMailer struct {
	Tokens map[string]string
}

// NewRecordingMailer creates an empty RecordingMailer
func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{Tokens: make(map[string]string)}
}

func (m *RecordingMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.Tokens[email] = token
	return nil
}

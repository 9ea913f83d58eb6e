package usecase_test

import (
	"context"
	"sync"
	"testing"

	"social-connect/internal/auth/adapter/persistence/memory"
	"social-connect/internal/auth/adapter/security"
	"social-connect/internal/auth/config"
	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/domain/repository"
	"social-connect/internal/auth/usecase"
	"social-connect/internal/shared/errors"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type capturingMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *capturingMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[email] = token
	return nil
}

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) CreateAccount(ctx context.Context, account *model.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *mockAccountRepository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepository) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *mockAccountRepository) RevokeToken(ctx context.Context, token *model.RevokedToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAccountRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

type AuthUsecaseTestSuite struct {
	suite.Suite
	ctx    context.Context
	repo   *memory.AccountRepository
	mailer *capturingMailer
	cfg    *config.Config
	uc     *usecase.AuthUsecase
}

func (s *AuthUsecaseTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = config.DefaultConfig()
	s.cfg.BcryptCost = bcrypt.MinCost
	tokens, err := security.NewJWTokenService(s.cfg)
	s.Require().NoError(err)

	s.repo = memory.NewAccountRepository()
	s.mailer = &capturingMailer{tokens: map[string]string{}}
	s.uc = usecase.NewAuthUsecase(s.repo, tokens, s.mailer, s.cfg, nil)
}

func TestAuthUsecaseTestSuite(t *testing.T) {
	suite.Run(t, new(AuthUsecaseTestSuite))
}

func (s *AuthUsecaseTestSuite) signUp(email, password, name string) (*model.Identity, string) {
	identity, token, err := s.uc.SignUp(s.ctx, usecase.SignUpRequest{Email: email, Password: password, DisplayName: name})
	s.Require().NoError(err)
	return identity, token
}

func (s *AuthUsecaseTestSuite) TestSignUpAndSignIn() {
	identity, token := s.signUp("Ann@Example.com", "secret1", "  Ann  ")
	s.NotEmpty(identity.ID)
	s.Equal("ann@example.com", identity.Email)
	s.Equal("Ann", identity.DisplayName)
	s.NotEmpty(token)

	signedIn, token2, err := s.uc.SignIn(s.ctx, usecase.SignInRequest{Email: "ann@example.com", Password: "secret1"})
	s.Require().NoError(err)
	s.Equal(identity.ID, signedIn.ID)

	current, err := s.uc.CurrentIdentity(s.ctx, token2)
	s.Require().NoError(err)
	s.Equal(identity.ID, current.ID)
}

func (s *AuthUsecaseTestSuite) TestSignUpValidation() {
	cases := []usecase.SignUpRequest{
		{Email: "", Password: "secret1", DisplayName: "A"},
		{Email: "not-an-email", Password: "secret1", DisplayName: "A"},
		{Email: "a@b.co", Password: "123", DisplayName: "A"},
		{Email: "a@b.co", Password: "secret1", DisplayName: "   "},
	}
	for _, req := range cases {
		_, _, err := s.uc.SignUp(s.ctx, req)
		s.True(errors.IsValidation(err), "%+v", req)
	}
}

func (s *AuthUsecaseTestSuite) TestSignUpRejectsTakenEmail() {
	s.signUp("ann@example.com", "secret1", "Ann")
	_, _, err := s.uc.SignUp(s.ctx, usecase.SignUpRequest{Email: "ANN@example.com", Password: "secret2", DisplayName: "Other"})
	s.True(errors.IsAuth(err))
	s.Equal(errors.CodeEmailTaken, errors.CodeOf(err))
}

func (s *AuthUsecaseTestSuite) TestSignInFailureTaxonomy() {
	s.signUp("ann@example.com", "secret1", "Ann")

	_, _, err := s.uc.SignIn(s.ctx, usecase.SignInRequest{Email: "bob@example.com", Password: "secret1"})
	s.True(errors.IsAuth(err))
	s.Equal(errors.CodeNotRegistered, errors.CodeOf(err))

	_, _, err = s.uc.SignIn(s.ctx, usecase.SignInRequest{Email: "ann@example.com", Password: "wrong!"})
	s.True(errors.IsAuth(err))
	s.Equal(errors.CodeInvalidCredentials, errors.CodeOf(err))
}

func (s *AuthUsecaseTestSuite) TestSignInUnknownFailure() {
	repo := new(mockAccountRepository)
	tokens, _ := security.NewJWTokenService(s.cfg)
	uc := usecase.NewAuthUsecase(repo, tokens, s.mailer, s.cfg, nil)
	repo.On("GetAccountByEmail", mock.Anything, "ann@example.com").Return(nil, errors.ErrStoreClosed)

	_, _, err := uc.SignIn(s.ctx, usecase.SignInRequest{Email: "ann@example.com", Password: "x"})
	s.True(errors.IsRemote(err))
	s.Equal(errors.CodeUnknown, errors.CodeOf(err))
	repo.AssertExpectations(s.T())
}

func (s *AuthUsecaseTestSuite) TestSignOutRevokesToken() {
	_, token := s.signUp("ann@example.com", "secret1", "Ann")
	s.Require().NoError(s.uc.SignOut(s.ctx, token))

	_, err := s.uc.CurrentIdentity(s.ctx, token)
	s.True(errors.IsAuth(err))

	s.True(errors.IsAuth(s.uc.SignOut(s.ctx, "garbage")))
}

func (s *AuthUsecaseTestSuite) TestPasswordResetFlow() {
	_, accessToken := s.signUp("ann@example.com", "secret1", "Ann")

	s.Require().NoError(s.uc.RequestPasswordReset(s.ctx, "ANN@example.com"))
	resetToken := s.mailer.tokens["ann@example.com"]
	s.Require().NotEmpty(resetToken)

	// a reset token is not an access token
	_, err := s.uc.CurrentIdentity(s.ctx, resetToken)
	s.True(errors.IsAuth(err))

	s.True(errors.IsValidation(s.uc.ResetPassword(s.ctx, resetToken, "1")))
	s.Require().NoError(s.uc.ResetPassword(s.ctx, resetToken, "brand-new"))

	// single use
	s.True(errors.IsAuth(s.uc.ResetPassword(s.ctx, resetToken, "another1")))

	// access tokens minted before the reset are retired
	_, err = s.uc.CurrentIdentity(s.ctx, accessToken)
	s.True(errors.IsAuth(err))

	_, _, err = s.uc.SignIn(s.ctx, usecase.SignInRequest{Email: "ann@example.com", Password: "secret1"})
	s.Equal(errors.CodeInvalidCredentials, errors.CodeOf(err))
	_, fresh, err := s.uc.SignIn(s.ctx, usecase.SignInRequest{Email: "ann@example.com", Password: "brand-new"})
	s.Require().NoError(err)
	_, err = s.uc.CurrentIdentity(s.ctx, fresh)
	s.NoError(err)

	err = s.uc.RequestPasswordReset(s.ctx, "nobody@example.com")
	s.Equal(errors.CodeNotRegistered, errors.CodeOf(err))
}

func (s *AuthUsecaseTestSuite) TestCurrentIdentityForDeletedAccount() {
	repo := new(mockAccountRepository)
	tokens, _ := security.NewJWTokenService(s.cfg)
	uc := usecase.NewAuthUsecase(repo, tokens, s.mailer, s.cfg, nil)

	token, claims, err := tokens.GenerateToken(s.ctx, &model.Account{ID: "gone", Email: "gone@example.com"}, model.PurposeAccess)
	s.Require().NoError(err)
	repo.On("IsTokenRevoked", mock.Anything, claims.ID).Return(false, nil)
	repo.On("GetAccountByID", mock.Anything, "gone").Return(nil, repository.ErrAccountNotFound)

	_, err = uc.CurrentIdentity(s.ctx, token)
	s.True(errors.IsAuth(err))
	s.Equal(errors.CodeNotRegistered, errors.CodeOf(err))
}

package http_test

import (
	"context"

	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/usecase"

	"github.com/stretchr/testify/mock"
)

// mockProvider is a shared mock type for usecase.Provider
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) SignUp(ctx context.Context, req usecase.SignUpRequest) (*model.Identity, string, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*model.Identity), args.String(1), args.Error(2)
}

func (m *mockProvider) SignIn(ctx context.Context, req usecase.SignInRequest) (*model.Identity, string, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*model.Identity), args.String(1), args.Error(2)
}

func (m *mockProvider) SignOut(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockProvider) CurrentIdentity(ctx context.Context, token string) (*model.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

func (m *mockProvider) RequestPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockProvider) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return m.Called(ctx, resetToken, newPassword).Error(0)
}

package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	authhttp "social-connect/internal/auth/adapter/http"
	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/usecase"
	"social-connect/internal/shared/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type AuthRouterTestSuite struct {
	suite.Suite
	app      *fiber.App
	provider *mockProvider
}

func (suite *AuthRouterTestSuite) SetupTest() {
	suite.provider = &mockProvider{}
	handler := authhttp.NewAuthHTTPHandler(suite.provider, "sc_token", "/", "", 3600, false, true, "Lax")
	middleware := authhttp.NewAuthMiddleware(suite.provider, "sc_token")

	suite.app = fiber.New()
	handler.SetupAuthRoutesWithMiddleware(suite.app.Group("/auth"), middleware)
}

func TestAuthRouterTestSuite(t *testing.T) {
	suite.Run(t, new(AuthRouterTestSuite))
}

func (suite *AuthRouterTestSuite) post(path string, body interface{}, token string) *http.Response {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := suite.app.Test(req)
	suite.Require().NoError(err)
	return resp
}

func (suite *AuthRouterTestSuite) TestSignUp() {
	req := usecase.SignUpRequest{Email: "ann@example.com", Password: "secret1", DisplayName: "Ann"}
	suite.provider.On("SignUp", mock.Anything, req).Return(&model.Identity{ID: "u1", DisplayName: "Ann"}, "tok", nil)

	resp := suite.post("/auth/sign-up", req, "")
	suite.Equal(http.StatusCreated, resp.StatusCode)

	var body authhttp.AuthResponse
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	suite.Equal("u1", body.Identity.ID)
	suite.Equal("tok", body.AccessToken)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "sc_token" {
			cookie = c
		}
	}
	suite.Require().NotNil(cookie)
	suite.Equal("tok", cookie.Value)
}

func (suite *AuthRouterTestSuite) TestSignUpEmailTaken() {
	suite.provider.On("SignUp", mock.Anything, mock.Anything).
		Return(nil, "", errors.NewAuthError("email is already registered").WithCode(errors.CodeEmailTaken))

	resp := suite.post("/auth/sign-up", usecase.SignUpRequest{Email: "ann@example.com"}, "")
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)

	var body map[string]interface{}
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	suite.Equal(errors.CodeEmailTaken, body["error"])
}

func (suite *AuthRouterTestSuite) TestSignInFailures() {
	suite.provider.On("SignIn", mock.Anything, usecase.SignInRequest{Email: "x@example.com", Password: "p"}).
		Return(nil, "", errors.NewAuthError("nope").WithCode(errors.CodeNotRegistered))

	resp := suite.post("/auth/sign-in", usecase.SignInRequest{Email: "x@example.com", Password: "p"}, "")
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("POST", "/auth/sign-in", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	raw, err := suite.app.Test(req)
	suite.Require().NoError(err)
	suite.Equal(http.StatusBadRequest, raw.StatusCode)
}

func (suite *AuthRouterTestSuite) TestSignOutAndMe() {
	suite.provider.On("CurrentIdentity", mock.Anything, "tok").Return(&model.Identity{ID: "u1"}, nil)
	suite.provider.On("SignOut", mock.Anything, "tok").Return(nil)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := suite.app.Test(req)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, resp.StatusCode)

	resp = suite.post("/auth/sign-out", nil, "tok")
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.provider.AssertCalled(suite.T(), "SignOut", mock.Anything, "tok")

	resp = suite.post("/auth/sign-out", nil, "")
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (suite *AuthRouterTestSuite) TestPasswordReset() {
	suite.provider.On("RequestPasswordReset", mock.Anything, "ann@example.com").Return(nil)
	suite.provider.On("ResetPassword", mock.Anything, "reset-tok", "new-secret").Return(nil)

	resp := suite.post("/auth/password-reset", map[string]string{"email": "ann@example.com"}, "")
	suite.Equal(http.StatusAccepted, resp.StatusCode)

	resp = suite.post("/auth/password-reset/confirm", map[string]string{"token": "reset-tok", "newPassword": "new-secret"}, "")
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.provider.AssertExpectations(suite.T())
}

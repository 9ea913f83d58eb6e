package http_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	authhttp "social-connect/internal/auth/adapter/http"
	"social-connect/internal/auth/domain/model"
	"social-connect/internal/shared/contextkeys"
	"social-connect/internal/shared/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MiddlewareTestSuite struct {
	suite.Suite
	app        *fiber.App
	provider   *mockProvider
	middleware *authhttp.AuthMiddleware
}

func (suite *MiddlewareTestSuite) SetupTest() {
	suite.provider = &mockProvider{}
	suite.middleware = authhttp.NewAuthMiddleware(suite.provider, "sc_token")
	suite.app = fiber.New()
}

func TestMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareTestSuite))
}

func (suite *MiddlewareTestSuite) protectedRoute() {
	suite.app.Use(suite.middleware.Protect())
	suite.app.Get("/protected", func(c *fiber.Ctx) error {
		identity, ok := authhttp.GetIdentity(c)
		if !ok {
			return c.Status(500).JSON(fiber.Map{"error": "identity not found"})
		}
		ctxID, _ := c.UserContext().Value(contextkeys.IdentityIDKey).(string)
		return c.JSON(fiber.Map{"id": identity.ID, "ctx": ctxID})
	})
}

func (suite *MiddlewareTestSuite) TestProtect_BearerToken() {
	suite.protectedRoute()
	suite.provider.On("CurrentIdentity", mock.Anything, "valid-token").
		Return(&model.Identity{ID: "u1", Email: "ann@example.com"}, nil)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", "valid-token"))

	resp, err := suite.app.Test(req)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.provider.AssertExpectations(suite.T())
}

func (suite *MiddlewareTestSuite) TestProtect_CookieAndQueryToken() {
	suite.protectedRoute()
	suite.provider.On("CurrentIdentity", mock.Anything, "cookie-token").Return(&model.Identity{ID: "u1"}, nil)
	suite.provider.On("CurrentIdentity", mock.Anything, "query-token").Return(&model.Identity{ID: "u2"}, nil)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "sc_token", Value: "cookie-token"})
	resp, err := suite.app.Test(req)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, resp.StatusCode)

	resp, err = suite.app.Test(httptest.NewRequest("GET", "/protected?token=query-token", nil))
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, resp.StatusCode)
}

func (suite *MiddlewareTestSuite) TestProtect_NoToken() {
	suite.protectedRoute()

	resp, err := suite.app.Test(httptest.NewRequest("GET", "/protected", nil))
	suite.Require().NoError(err)
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
	suite.provider.AssertNotCalled(suite.T(), "CurrentIdentity")
}

func (suite *MiddlewareTestSuite) TestProtect_InvalidToken() {
	suite.protectedRoute()
	suite.provider.On("CurrentIdentity", mock.Anything, "bad").
		Return(nil, errors.NewAuthError("invalid token"))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer bad")
	resp, err := suite.app.Test(req)
	suite.Require().NoError(err)
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (suite *MiddlewareTestSuite) TestProtect_ProviderDown() {
	suite.protectedRoute()
	suite.provider.On("CurrentIdentity", mock.Anything, "t").Return(nil, fmt.Errorf("dial tcp: refused"))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer t")
	resp, err := suite.app.Test(req)
	suite.Require().NoError(err)
	suite.Equal(http.StatusBadGateway, resp.StatusCode)
}

func (suite *MiddlewareTestSuite) TestOptionalAuth() {
	suite.app.Use(suite.middleware.OptionalAuth())
	suite.app.Get("/open", func(c *fiber.Ctx) error {
		_, ok := authhttp.GetIdentity(c)
		return c.JSON(fiber.Map{"signedIn": ok})
	})
	suite.provider.On("CurrentIdentity", mock.Anything, "bad").Return(nil, errors.NewAuthError("invalid token"))

	req := httptest.NewRequest("GET", "/open", nil)
	req.Header.Set("Authorization", "Bearer bad")
	resp, err := suite.app.Test(req)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, resp.StatusCode)
}

func (suite *MiddlewareTestSuite) TestSecurityHeadersAndRequestID() {
	suite.app.Use(suite.middleware.RequestID(), suite.middleware.SecurityHeaders())
	suite.app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	resp, err := suite.app.Test(httptest.NewRequest("GET", "/", nil))
	suite.Require().NoError(err)
	suite.Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))
	suite.Equal("DENY", resp.Header.Get("X-Frame-Options"))
	suite.NotEmpty(resp.Header.Get("X-Request-ID"))
}

package http

import (
	"time"

	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/usecase"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/respond"

	"github.com/gofiber/fiber/v2"
)

// AuthHTTPHandler handles HTTP requests for authentication
type AuthHTTPHandler struct {
	provider       usecase.Provider
	cookieName     string
	cookiePath     string
	cookieDomain   string
	cookieMaxAge   int
	cookieSecure   bool
	cookieHTTPOnly bool
	cookieSameSite string
}

// NewAuthHTTPHandler creates a new authentication HTTP handler
func NewAuthHTTPHandler(
	provider usecase.Provider,
	cookieName, cookiePath, cookieDomain string,
	cookieMaxAge int,
	cookieSecure, cookieHTTPOnly bool,
	cookieSameSite string,
) *AuthHTTPHandler {
	return &AuthHTTPHandler{
		provider:       provider,
		cookieName:     cookieName,
		cookiePath:     cookiePath,
		cookieDomain:   cookieDomain,
		cookieMaxAge:   cookieMaxAge,
		cookieSecure:   cookieSecure,
		cookieHTTPOnly: cookieHTTPOnly,
		cookieSameSite: cookieSameSite,
	}
}

// AuthResponse is returned by sign-up and sign-in
type AuthResponse struct {
	Identity    *model.Identity `json:"identity"`
	AccessToken string          `json:"accessToken"`
}

// SetupAuthRoutesWithMiddleware sets up authentication routes with middleware
func (h *AuthHTTPHandler) SetupAuthRoutesWithMiddleware(router fiber.Router, middleware *AuthMiddleware) {
	router.Post("/sign-up", h.SignUp)
	router.Post("/sign-in", h.SignIn)
	router.Post("/password-reset", h.RequestPasswordReset)
	router.Post("/password-reset/confirm", h.ResetPassword)

	protected := router.Group("/", middleware.Protect())
	protected.Post("/sign-out", h.SignOut)
	protected.Get("/me", h.Me)
}

// SignUp handles registration
func (h *AuthHTTPHandler) SignUp(c *fiber.Ctx) error {
	var req usecase.SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.BadRequest(c)
	}

	identity, token, err := h.provider.SignUp(c.UserContext(), req)
	if err != nil {
		return respond.Error(c, err)
	}

	h.setCookie(c, token)
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Identity: identity, AccessToken: token})
}

// SignIn handles login
func (h *AuthHTTPHandler) SignIn(c *fiber.Ctx) error {
	var req usecase.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.BadRequest(c)
	}

	identity, token, err := h.provider.SignIn(c.UserContext(), req)
	if err != nil {
		return respond.Error(c, err)
	}

	h.setCookie(c, token)
	return c.JSON(AuthResponse{Identity: identity, AccessToken: token})
}

// SignOut ends the session behind the presented token
func (h *AuthHTTPHandler) SignOut(c *fiber.Ctx) error {
	token, ok := GetToken(c)
	if !ok {
		return respond.Error(c, errors.NotSignedIn())
	}
	if err := h.provider.SignOut(c.UserContext(), token); err != nil {
		return respond.Error(c, err)
	}

	h.clearCookie(c)
	return c.JSON(fiber.Map{
		"message": "Signed out successfully",
	})
}

// Me returns the signed-in identity
func (h *AuthHTTPHandler) Me(c *fiber.Ctx) error {
	identity, ok := GetIdentity(c)
	if !ok {
		return respond.Error(c, errors.NotSignedIn())
	}
	return c.JSON(identity)
}

// RequestPasswordReset sends a reset token to the account's address
func (h *AuthHTTPHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respond.BadRequest(c)
	}
	if err := h.provider.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return respond.Error(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Password reset email sent",
	})
}

// ResetPassword applies a reset token
func (h *AuthHTTPHandler) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respond.BadRequest(c)
	}
	if err := h.provider.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Password changed successfully",
	})
}

// Helper methods

func (h *AuthHTTPHandler) setCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     h.cookiePath,
		Domain:   h.cookieDomain,
		MaxAge:   h.cookieMaxAge,
		Secure:   h.cookieSecure,
		HTTPOnly: h.cookieHTTPOnly,
		SameSite: h.cookieSameSite,
		Expires:  time.Now().Add(time.Duration(h.cookieMaxAge) * time.Second),
	})
}

func (h *AuthHTTPHandler) clearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     h.cookiePath,
		Domain:   h.cookieDomain,
		MaxAge:   -1,
		Secure:   h.cookieSecure,
		HTTPOnly: h.cookieHTTPOnly,
		SameSite: h.cookieSameSite,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
}

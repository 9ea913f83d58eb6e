package restclient

import (
	"context"
	"strings"

	"social-connect/internal/auth/config"
	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/usecase"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/logger"

	"github.com/go-resty/resty/v2"
)

// Client is a Provider backed by an Identity Toolkit style REST API.
// Token verification and password storage happen on the remote side.
type Client struct {
	http *resty.Client
	log  logger.Logger
}

var _ usecase.Provider = (*Client)(nil)

// New builds a client for cfg.RemoteBaseURL authenticated with cfg.RemoteAPIKey
func New(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.RemoteBaseURL, "/")).
		SetTimeout(cfg.RemoteTimeout).
		SetQueryParam("key", cfg.RemoteAPIKey).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, log: log.WithComponent("identity-client")}
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type authResponse struct {
	IDToken     string `json:"idToken"`
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	} `json:"users"`
}

// call posts body to endpoint and decodes the answer into result
func (c *Client) call(ctx context.Context, action, endpoint string, body, result interface{}) error {
	var apiErr apiError
	req := c.http.R().SetContext(ctx).SetBody(body).SetError(&apiErr)
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Post(endpoint)
	if err != nil {
		return errors.NewRemoteError(action+" failed").WithCode(errors.CodeUnknown).WithCause(err)
	}
	if resp.IsError() {
		c.log.WithFields(map[string]interface{}{"status": resp.StatusCode(), "endpoint": endpoint}).
			Warnf("%s rejected: %s", action, apiErr.Error.Message)
		return mapAPIError(action, apiErr.Error.Message)
	}
	return nil
}

// mapAPIError translates provider error messages such as
// "WEAK_PASSWORD : Password should be at least 6 characters"
func mapAPIError(action, message string) error {
	code := strings.TrimSpace(strings.SplitN(message, ":", 2)[0])
	switch code {
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return errors.NewAuthError("no account is registered for this email").WithCode(errors.CodeNotRegistered)
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return errors.NewAuthError("invalid email or password").WithCode(errors.CodeInvalidCredentials)
	case "EMAIL_EXISTS":
		return errors.NewAuthError("email is already registered").WithCode(errors.CodeEmailTaken)
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "INVALID_OOB_CODE", "EXPIRED_OOB_CODE":
		return errors.NewAuthError("invalid token").WithCause(errors.ErrInvalidToken)
	case "INVALID_EMAIL", "MISSING_EMAIL", "MISSING_PASSWORD", "WEAK_PASSWORD":
		return errors.NewValidationError(strings.ToLower(strings.ReplaceAll(code, "_", " ")))
	default:
		return errors.NewRemoteError(action + " failed").WithCode(errors.CodeUnknown).WithDetail("provider", message)
	}
}

func (c *Client) SignUp(ctx context.Context, req usecase.SignUpRequest) (*model.Identity, string, error) {
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, "", errors.NewValidationError("display name is required").WithDetail("field", "displayName")
	}

	var created authResponse
	err := c.call(ctx, "sign up", "/accounts:signUp", map[string]interface{}{
		"email":             model.NormalizeEmail(req.Email),
		"password":          req.Password,
		"returnSecureToken": true,
	}, &created)
	if err != nil {
		return nil, "", err
	}

	var updated authResponse
	err = c.call(ctx, "sign up", "/accounts:update", map[string]interface{}{
		"idToken":           created.IDToken,
		"displayName":       displayName,
		"returnSecureToken": true,
	}, &updated)
	if err != nil {
		return nil, "", err
	}

	token := created.IDToken
	if updated.IDToken != "" {
		token = updated.IDToken
	}
	return &model.Identity{ID: created.LocalID, Email: created.Email, DisplayName: displayName}, token, nil
}

func (c *Client) SignIn(ctx context.Context, req usecase.SignInRequest) (*model.Identity, string, error) {
	var out authResponse
	err := c.call(ctx, "sign in", "/accounts:signInWithPassword", map[string]interface{}{
		"email":             model.NormalizeEmail(req.Email),
		"password":          req.Password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, "", err
	}
	return &model.Identity{ID: out.LocalID, Email: out.Email, DisplayName: out.DisplayName}, out.IDToken, nil
}

// SignOut is local only; remote id tokens expire on their own
func (c *Client) SignOut(ctx context.Context, token string) error {
	return nil
}

func (c *Client) CurrentIdentity(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, errors.NotSignedIn()
	}
	var out lookupResponse
	if err := c.call(ctx, "resolve identity", "/accounts:lookup", map[string]interface{}{"idToken": token}, &out); err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return nil, errors.NewAuthError("account no longer exists").WithCode(errors.CodeNotRegistered)
	}
	u := out.Users[0]
	return &model.Identity{ID: u.LocalID, Email: u.Email, DisplayName: u.DisplayName}, nil
}

// RequestPasswordReset asks the provider to mail its own reset code
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.call(ctx, "password reset", "/accounts:sendOobCode", map[string]interface{}{
		"requestType": "PASSWORD_RESET",
		"email":       model.NormalizeEmail(email),
	}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return c.call(ctx, "password reset", "/accounts:resetPassword", map[string]interface{}{
		"oobCode":     resetToken,
		"newPassword": newPassword,
	}, nil)
}

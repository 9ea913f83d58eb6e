package security

import (
	"context"
	"testing"
	"time"

	"social-connect/internal/auth/config"
	"social-connect/internal/auth/domain/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type JWTTestSuite struct {
	suite.Suite
	config  *config.Config
	service *JWTokenService
	ctx     context.Context
}

func (suite *JWTTestSuite) SetupTest() {
	suite.config = config.DefaultConfig()
	suite.config.JWTSecretKey = "test-secret-key-32-characters-long-12345"
	suite.config.JWTIssuer = "test-issuer"
	suite.config.AccessTokenTTL = 15 * time.Minute
	suite.config.ResetTokenTTL = 5 * time.Minute

	service, err := NewJWTokenService(suite.config)
	require.NoError(suite.T(), err)
	suite.service = service
	suite.ctx = context.Background()
}

func TestJWTTestSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}

func (suite *JWTTestSuite) TestNewJWTokenService_ValidationErrors() {
	testCases := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"empty secret key", func(cfg *config.Config) { cfg.JWTSecretKey = "" }},
		{"empty issuer", func(cfg *config.Config) { cfg.JWTIssuer = "" }},
		{"zero access TTL", func(cfg *config.Config) { cfg.AccessTokenTTL = 0 }},
		{"negative reset TTL", func(cfg *config.Config) { cfg.ResetTokenTTL = -time.Minute }},
	}
	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			cfg := *suite.config
			tc.modify(&cfg)
			_, err := NewJWTokenService(&cfg)
			assert.Error(suite.T(), err)
		})
	}
}

func (suite *JWTTestSuite) TestGenerateAndValidate() {
	token, issued, err := suite.service.GenerateToken(suite.ctx, &model.Account{ID: "u1", Email: "ann@example.com", CredentialVersion: 3}, model.PurposeAccess)
	require.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), issued.ID)

	claims, err := suite.service.ValidateToken(suite.ctx, token, model.PurposeAccess)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "u1", claims.IdentityID)
	assert.Equal(suite.T(), "ann@example.com", claims.Email)
	assert.Equal(suite.T(), 3, claims.Version)
	assert.Equal(suite.T(), issued.ID, claims.ID)
	assert.Equal(suite.T(), "test-issuer", claims.Issuer)
}

func (suite *JWTTestSuite) TestTokensAreUnique() {
	a, _, err := suite.service.GenerateToken(suite.ctx, &model.Account{ID: "u1", Email: "a@b.co"}, model.PurposeAccess)
	require.NoError(suite.T(), err)
	b, _, err := suite.service.GenerateToken(suite.ctx, &model.Account{ID: "u1", Email: "a@b.co"}, model.PurposeAccess)
	require.NoError(suite.T(), err)
	assert.NotEqual(suite.T(), a, b)
}

func (suite *JWTTestSuite) TestPurposeIsEnforced() {
	reset, _, err := suite.service.GenerateToken(suite.ctx, &model.Account{ID: "u1", Email: "a@b.co"}, model.PurposeReset)
	require.NoError(suite.T(), err)

	_, err = suite.service.ValidateToken(suite.ctx, reset, model.PurposeAccess)
	assert.ErrorIs(suite.T(), err, ErrTokenWrongPurpose)

	_, err = suite.service.ValidateToken(suite.ctx, reset, model.PurposeReset)
	assert.NoError(suite.T(), err)

	_, _, err = suite.service.GenerateToken(suite.ctx, &model.Account{ID: "u1", Email: "a@b.co"}, model.TokenPurpose("refresh"))
	assert.ErrorIs(suite.T(), err, ErrTokenWrongPurpose)
}

func (suite *JWTTestSuite) TestExpiredToken() {
	token, _, err := suite.service.GenerateToken(suite.ctx, &model.Account{ID: "u1", Email: "a@b.co"}, model.PurposeReset)
	require.NoError(suite.T(), err)

	suite.service.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = suite.service.ValidateToken(suite.ctx, token, model.PurposeReset)
	assert.ErrorIs(suite.T(), err, ErrTokenExpired)
}

func (suite *JWTTestSuite) TestRejectsForeignTokens() {
	_, err := suite.service.ValidateToken(suite.ctx, "", model.PurposeAccess)
	assert.ErrorIs(suite.T(), err, ErrTokenInvalid)

	_, err = suite.service.ValidateToken(suite.ctx, "not.a.jwt", model.PurposeAccess)
	assert.ErrorIs(suite.T(), err, ErrTokenInvalid)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "test-issuer"})
	signed, err := other.SignedString([]byte("another-secret"))
	require.NoError(suite.T(), err)
	_, err = suite.service.ValidateToken(suite.ctx, signed, model.PurposeAccess)
	assert.ErrorIs(suite.T(), err, ErrTokenSignatureInvalid)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: "test-issuer"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(suite.T(), err)
	_, err = suite.service.ValidateToken(suite.ctx, unsigned, model.PurposeAccess)
	assert.Error(suite.T(), err)
}

package model

import (
	"strings"
	"time"
)

// Account is the credential record behind an Identity
type Account struct {
	ID           string `json:"id" bson:"_id"`
	Email        string `json:"email" bson:"email"`
	PasswordHash string `json:"-" bson:"password_hash"`
	DisplayName  string `json:"displayName" bson:"display_name"`
	// CredentialVersion is bumped on every password change. Tokens minted
	// for an older version no longer resolve.
	CredentialVersion int       `json:"-" bson:"credential_version"`
	CreatedAt         time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updated_at"`
}

// Identity is the authenticated principal handed to the sync core
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Identity strips credentials from the account
func (a *Account) Identity() *Identity {
	return &Identity{ID: a.ID, Email: a.Email, DisplayName: a.DisplayName}
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RevokedToken blocks a token id until the token would have expired anyway
type RevokedToken struct {
	ID         string    `json:"id" bson:"_id"`
	IdentityID string    `json:"identityId" bson:"identity_id"`
	ExpiresAt  time.Time `json:"expiresAt" bson:"expires_at"`
	RevokedAt  time.Time `json:"revokedAt" bson:"revoked_at"`
}

// TokenPurpose separates access tokens from single-use reset tokens
type TokenPurpose string

const (
	PurposeAccess TokenPurpose = "access"
	PurposeReset  TokenPurpose = "password-reset"
)

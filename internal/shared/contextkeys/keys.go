package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "social-connect context key " + string(c)
}

const (
	// IdentityIDKey carries the authenticated identity id
	IdentityIDKey = contextKey("identityID")
	// RequestIDKey carries the gateway request id
	RequestIDKey = contextKey("requestID")
	// ComponentKey carries the name of the sync component doing the work
	ComponentKey = contextKey("component")
	// OperationKey carries the attempted action, e.g. "toggle-like"
	OperationKey = contextKey("operation")
	// TokenKey carries the raw access token
	TokenKey = contextKey("token")
)

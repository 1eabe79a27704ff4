package models

import "time"

type APIKeyEnv string

const (
	APIKeyEnvTest       APIKeyEnv = "test"
	APIKeyEnvProduction APIKeyEnv = "production"
)

type APIKeyStatus string

const (
	APIKeyActive  APIKeyStatus = "active"
	APIKeyRevoked APIKeyStatus = "revoked"
)

// APIKey grants third-party programmatic access. The secret is generated
// exactly once at creation; only its SHA-256 digest is stored. Revocation
// flips the status, it never regenerates the secret in place.
type APIKey struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Name        string       `json:"name"`
	Prefix      string       `json:"prefix"` // sk_test_ or sk_live_
	Last4       string       `json:"last4"`
	SecretHash  string       `json:"-"`
	Environment APIKeyEnv    `json:"environment"`
	Permissions []string     `json:"permissions"`
	Status      APIKeyStatus `json:"status"`

	// Per-minute rate limiting; the window resets lazily on use.
	RateLimitPerMin int       `json:"rate_limit_per_min"`
	WindowCount     int       `json:"-"`
	WindowResetAt   time.Time `json:"-"`

	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// HasPermission reports whether the key carries the named permission.
func (k *APIKey) HasPermission(perm string) bool {
	for _, p := range k.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

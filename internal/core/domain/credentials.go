package domain

import "time"

// OAuthToken stores a user's OAuth tokens for the remote platform.
// Token issuance happens outside classmate; the remote adapter only refreshes.
type OAuthToken struct {
	// UserID is the local user the token belongs to.
	UserID string `json:"user_id"`
	// AccessToken is the bearer token for API access.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`
	// Expiry is when the access token expires.
	Expiry time.Time `json:"expiry,omitempty"`
	// UpdatedAt is when the token was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired returns true if the access token has expired.
func (t *OAuthToken) IsExpired(now time.Time) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return now.After(t.Expiry)
}

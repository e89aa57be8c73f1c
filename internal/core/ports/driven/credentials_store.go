package driven

import (
	"context"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// CredentialsStore persists users' OAuth tokens for the remote platform.
type CredentialsStore interface {
	// SaveToken stores a token. Creates if new, updates if exists.
	SaveToken(ctx context.Context, token domain.OAuthToken) error

	// GetToken retrieves the token for a user.
	// Returns domain.ErrNoCredentials if none is stored.
	GetToken(ctx context.Context, userID string) (*domain.OAuthToken, error)

	// DeleteToken removes a user's token.
	DeleteToken(ctx context.Context, userID string) error

	// ListUsers returns the IDs of users with a stored token.
	ListUsers(ctx context.Context) ([]string, error)
}

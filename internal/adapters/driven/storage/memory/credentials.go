package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type credentialsStore struct {
	*Store
}

var _ driven.CredentialsStore = (*credentialsStore)(nil)

// SaveToken stores or updates a user's token.
func (s *credentialsStore) SaveToken(_ context.Context, token domain.OAuthToken) error {
	if token.UserID == "" || token.AccessToken == "" {
		return fmt.Errorf("%w: token needs a user and an access token", domain.ErrInvalidInput)
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = s.now()
	}
	s.tokens[token.UserID] = token
	return nil
}

// GetToken retrieves the token for a user.
func (s *credentialsStore) GetToken(_ context.Context, userID string) (*domain.OAuthToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[userID]
	if !ok {
		return nil, domain.ErrNoCredentials
	}
	return &t, nil
}

// DeleteToken removes a user's token.
func (s *credentialsStore) DeleteToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

// ListUsers returns the IDs of users with a stored token.
func (s *credentialsStore) ListUsers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.tokens))
	for id := range s.tokens {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

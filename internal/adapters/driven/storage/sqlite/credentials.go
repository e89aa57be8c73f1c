package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type credentialsStore struct {
	store *Store
}

var _ driven.CredentialsStore = (*credentialsStore)(nil)

// SaveToken stores or updates a user's token.
func (s *credentialsStore) SaveToken(ctx context.Context, token domain.OAuthToken) error {
	if token.UserID == "" || token.AccessToken == "" {
		return fmt.Errorf("%w: token needs a user and an access token", domain.ErrInvalidInput)
	}
	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	updated := token.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at
	`, token.UserID, token.AccessToken, token.RefreshToken, tokenType,
		formatTime(token.Expiry), formatTime(updated))
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// GetToken retrieves the token for a user.
func (s *credentialsStore) GetToken(ctx context.Context, userID string) (*domain.OAuthToken, error) {
	var (
		t               domain.OAuthToken
		expiry, updated sql.NullString
	)
	err := s.store.db.QueryRowContext(ctx, `
		SELECT user_id, access_token, refresh_token, token_type, expiry, updated_at
		FROM credentials WHERE user_id = ?
	`, userID).Scan(&t.UserID, &t.AccessToken, &t.RefreshToken, &t.TokenType, &expiry, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	if t.Expiry, err = parseTime(expiry); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteToken removes a user's token.
func (s *credentialsStore) DeleteToken(ctx context.Context, userID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM credentials WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// ListUsers returns the IDs of users with a stored token.
func (s *credentialsStore) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT user_id FROM credentials ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

package google

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/logger"
)

// Scopes are the read-only Classroom scopes the connector needs.
var Scopes = []string{
	"https://www.googleapis.com/auth/classroom.courses.readonly",
	"https://www.googleapis.com/auth/classroom.announcements.readonly",
	"https://www.googleapis.com/auth/classroom.coursework.me.readonly",
	"https://www.googleapis.com/auth/classroom.coursework.students.readonly",
	"https://www.googleapis.com/auth/classroom.courseworkmaterials.readonly",
}

// OAuthConfig builds the oauth2 configuration used to refresh tokens.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       Scopes,
	}
}

// TokenSource is an oauth2.TokenSource over a user's stored token.
// Refreshed tokens are written back to the credentials store.
type TokenSource struct {
	ctx    context.Context
	store  driven.CredentialsStore
	config *oauth2.Config
	userID string

	mu   sync.Mutex
	base oauth2.TokenSource
	last *oauth2.Token
}

// NewTokenSource loads userID's token and wraps it in a refreshing source.
// Returns domain.ErrNoCredentials if the user has no stored token.
func NewTokenSource(ctx context.Context, store driven.CredentialsStore, config *oauth2.Config, userID string) (*TokenSource, error) {
	stored, err := store.GetToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	tok := toOAuth2(stored)
	return &TokenSource{
		ctx:    context.WithoutCancel(ctx),
		store:  store,
		config: config,
		userID: userID,
		base:   config.TokenSource(context.WithoutCancel(ctx), tok),
		last:   tok,
	}, nil
}

// Token implements oauth2.TokenSource.
func (t *TokenSource) Token() (*oauth2.Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tok, err := t.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != t.last.AccessToken {
		t.persist(tok)
	}
	t.last = tok
	return tok, nil
}

// Refresh discards the current access token and obtains a new one.
func (t *TokenSource) Refresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token for %s", domain.ErrAuthExpired, t.userID)
	}
	if t.config.ClientID == "" {
		return fmt.Errorf("%w: no OAuth client configured", domain.ErrAuthExpired)
	}

	// A token without an access token is never valid, so the source refreshes.
	expired := &oauth2.Token{RefreshToken: t.last.RefreshToken, TokenType: t.last.TokenType}
	base := t.config.TokenSource(context.WithoutCancel(ctx), expired)
	tok, err := base.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return fmt.Errorf("%w: %s", domain.ErrAuthExpired, rerr.ErrorCode)
		}
		return fmt.Errorf("%w: refresh: %w", domain.ErrRemoteUnavailable, err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = t.last.RefreshToken
	}

	t.base = t.config.TokenSource(t.ctx, tok)
	t.last = tok
	t.persist(tok)
	return nil
}

func (t *TokenSource) persist(tok *oauth2.Token) {
	record := domain.OAuthToken{
		UserID:       t.userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		UpdatedAt:    time.Now(),
	}
	if record.RefreshToken == "" {
		record.RefreshToken = t.last.RefreshToken
	}
	if err := t.store.SaveToken(t.ctx, record); err != nil {
		logger.Warn("Failed to persist refreshed token for %s: %v", t.userID, err)
	}
}

func toOAuth2(t *domain.OAuthToken) *oauth2.Token {
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    tokenType,
		Expiry:       t.Expiry,
	}
}

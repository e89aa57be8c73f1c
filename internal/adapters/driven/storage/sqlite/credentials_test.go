package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

func TestCredentialsStore_SaveGetDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	creds := store.CredentialsStore()

	_, err := creds.GetToken(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNoCredentials)

	token := domain.OAuthToken{
		UserID:       "alice",
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       testNow.Add(time.Hour),
		UpdatedAt:    testNow,
	}
	require.NoError(t, creds.SaveToken(ctx, token))

	got, err := creds.GetToken(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "Bearer", got.TokenType)
	assert.True(t, got.Expiry.Equal(token.Expiry))

	token.AccessToken = "rotated"
	require.NoError(t, creds.SaveToken(ctx, token))
	got, err = creds.GetToken(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.AccessToken)

	require.NoError(t, creds.SaveToken(ctx, domain.OAuthToken{UserID: "bob", AccessToken: "b"}))
	users, err := creds.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	require.NoError(t, creds.DeleteToken(ctx, "alice"))
	_, err = creds.GetToken(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNoCredentials)
}

func TestCredentialsStore_Validation(t *testing.T) {
	store := setupTestStore(t)
	err := store.CredentialsStore().SaveToken(context.Background(), domain.OAuthToken{UserID: "alice"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

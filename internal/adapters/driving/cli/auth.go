package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage users' Google OAuth tokens",
	Long: `Import, list, and remove the OAuth tokens classmate syncs with.

Tokens are issued outside classmate, for example with the OAuth playground
or gcloud, and imported as the JSON form of an oauth2 token:

  {"access_token": "...", "refresh_token": "...", "token_type": "Bearer",
   "expiry": "2026-03-02T10:00:00Z"}

classmate refreshes access tokens itself when a refresh token and the
Google client ID and secret are configured.

Examples:
  classmate auth import --user alice --token-file token.json
  cat token.json | classmate auth import --user alice --token-file -
  classmate auth list
  classmate auth remove alice`,
}

var authImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an OAuth token for a user",
	RunE:  runAuthImport,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users with stored tokens",
	RunE:  runAuthList,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove [user-id]",
	Short: "Remove a user's stored token",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

func init() {
	authImportCmd.Flags().StringP("user", "u", "", "User the token belongs to")
	authImportCmd.Flags().String("token-file", "", "Path to the token JSON, or - for stdin")

	authCmd.AddCommand(authImportCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authRemoveCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthImport(cmd *cobra.Command, _ []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	path, err := cmd.Flags().GetString("token-file")
	if err != nil {
		return fmt.Errorf("getting token-file flag: %w", err)
	}
	if path == "" {
		return errors.New("--token-file is required")
	}

	tok, err := readToken(cmd, path)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	record := domain.OAuthToken{
		UserID:       user,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
	}
	if err := rt.Credentials.SaveToken(cmd.Context(), record); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	cmd.Printf("Imported token for %s.\n", user)
	if tok.RefreshToken == "" {
		cmd.Println("Warning: the token has no refresh token and cannot be renewed.")
	}
	return nil
}

// readToken decodes an oauth2 token from path, or stdin when path is "-".
func readToken(cmd *cobra.Command, path string) (*oauth2.Token, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening token file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var tok oauth2.Token
	if err := json.NewDecoder(r).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token has neither an access token nor a refresh token")
	}
	return &tok, nil
}

func runAuthList(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	users, err := rt.Credentials.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	if len(users) == 0 {
		cmd.Println("No stored tokens.")
		cmd.Println("Import one with: classmate auth import --user <id> --token-file <path>")
		return nil
	}

	cmd.Println("Stored tokens:")
	cmd.Println()
	for _, user := range users {
		tok, err := rt.Credentials.GetToken(ctx, user)
		if err != nil {
			cmd.Printf("  %s (unreadable: %v)\n\n", user, err)
			continue
		}
		cmd.Printf("  %s\n", user)
		cmd.Printf("    Access token: %s\n", maskSecret(tok.AccessToken))
		cmd.Printf("    Refreshable: %t\n", tok.RefreshToken != "")
		cmd.Printf("    Expiry: %s\n", formatExpiry(tok))
		cmd.Println()
	}
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	user := args[0]
	ctx := cmd.Context()

	if _, err := rt.Credentials.GetToken(ctx, user); err != nil {
		if errors.Is(err, domain.ErrNoCredentials) {
			return fmt.Errorf("no stored token for %s", user)
		}
		return fmt.Errorf("loading token: %w", err)
	}
	if err := rt.Credentials.DeleteToken(ctx, user); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}

	cmd.Printf("Removed token for %s\n", user)
	return nil
}

// maskSecret keeps the first and last four characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func formatExpiry(tok *domain.OAuthToken) string {
	if tok.Expiry.IsZero() {
		return "none"
	}
	suffix := ""
	if tok.IsExpired(time.Now()) {
		suffix = " (expired)"
	}
	return tok.Expiry.UTC().Format(time.RFC3339) + suffix
}

// Package cli implements the classmate command line.
//
// Commands obtain their services from a Runtime built lazily on first use,
// so commands that need no storage (version, config) start instantly.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
	"github.com/custodia-labs/classmate/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// ErrNoRuntime is returned when a command needs services but no factory is set.
var ErrNoRuntime = errors.New("runtime not configured")

// Runtime holds the services commands operate on.
type Runtime struct {
	Config      domain.Config
	Sync        driving.SyncEngine
	QA          driving.QAService
	Scheduler   driving.Scheduler
	Access      driven.AccessResolver
	Courses     driven.CourseStore
	Credentials driven.CredentialsStore

	// Close releases stores and embedders. May be nil.
	Close func() error
}

// Options are the global flags a RuntimeFactory receives.
type Options struct {
	ConfigPath string
	Ephemeral  bool
	Verbose    bool
}

// RuntimeFactory builds the Runtime for a command invocation.
type RuntimeFactory func(ctx context.Context, opts Options) (*Runtime, error)

// Global flags.
var (
	configPath string
	verbose    bool
	ephemeral  bool
)

var (
	runtimeFactory RuntimeFactory
	activeRuntime  *Runtime
)

var rootCmd = &cobra.Command{
	Use:   "classmate",
	Short: "Sync classroom courses and answer questions about them",
	Long: `classmate mirrors Google Classroom courses into a local index and answers
questions from that content only, with sources and a confidence score.

Examples:
  # Import a user's OAuth token, then sync their courses
  classmate auth import --user alice --token-file token.json
  classmate sync --user alice

  # Ask a question
  classmate ask --user alice "When is Lab 3 due?"

  # Serve the HTTP API with scheduled syncs
  classmate serve`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "", "Config file (default ~/.classmate/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(
		&ephemeral, "ephemeral", false, "Keep all state in memory")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetRuntimeFactory sets how commands build their services.
func SetRuntimeFactory(f RuntimeFactory) {
	runtimeFactory = f
}

// Execute runs the root command and releases the runtime afterwards.
func Execute(ctx context.Context) error {
	defer closeRuntime()
	return rootCmd.ExecuteContext(ctx)
}

// loadRuntime returns the runtime, building it on first use.
func loadRuntime(cmd *cobra.Command) (*Runtime, error) {
	if activeRuntime != nil {
		return activeRuntime, nil
	}
	if runtimeFactory == nil {
		return nil, ErrNoRuntime
	}
	rt, err := runtimeFactory(cmd.Context(), Options{
		ConfigPath: configPath,
		Ephemeral:  ephemeral,
		Verbose:    verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("starting classmate: %w", err)
	}
	activeRuntime = rt
	return activeRuntime, nil
}

func closeRuntime() {
	if activeRuntime == nil || activeRuntime.Close == nil {
		activeRuntime = nil
		return
	}
	if err := activeRuntime.Close(); err != nil {
		logger.Warn("closing runtime: %v", err)
	}
	activeRuntime = nil
}

// requireUser reads the --user flag.
func requireUser(cmd *cobra.Command) (string, error) {
	user, err := cmd.Flags().GetString("user")
	if err != nil {
		return "", fmt.Errorf("getting user flag: %w", err)
	}
	if user == "" {
		return "", errors.New("--user is required")
	}
	return user, nil
}

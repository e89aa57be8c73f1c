package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/classmate/internal/adapters/driven/config/file"
	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

// newConfigStore opens the config store for the --config path.
var newConfigStore = func(path string) (driven.ConfigStore, error) {
	return file.NewConfigStore(path)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialise configuration",
	Long: `Configuration is read from ~/.classmate/config.toml (or --config),
then overridden by a .env file and the CLASSMATE_* environment variables.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE:  runConfigPath,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("getting force flag: %w", err)
	}
	store, err := newConfigStore(configPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(store.Path()); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", store.Path())
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}

	if err := store.Save(domain.DefaultConfig()); err != nil {
		return err
	}
	cmd.Printf("Wrote default configuration to %s\n", store.Path())
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	store, err := newConfigStore(configPath)
	if err != nil {
		return err
	}
	cmd.Println(store.Path())
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	store, err := newConfigStore(configPath)
	if err != nil {
		return err
	}
	cfg, err := store.Load()
	if err != nil {
		return err
	}
	if cfg.Google.ClientSecret != "" {
		cfg.Google.ClientSecret = maskSecret(cfg.Google.ClientSecret)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	cmd.Printf("# %s\n", store.Path())
	cmd.Print(string(data))
	return nil
}

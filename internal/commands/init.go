package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/talkcents/talkcents/internal/config"
	"github.com/talkcents/talkcents/internal/tokenstore"
)

func newInitCommand(a *app) *cobra.Command {
	var baseURL string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file with a fresh token key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(a.cfgPath)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			if err := runInit(path, baseURL, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized talkcents config at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "backend API base URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(path, baseURL string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	dir := filepath.Dir(path)
	cfg := config.Default(dir)
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	cfg.CategoriesFile = filepath.Join(dir, "categories.csv")
	cfg.ImportDir = filepath.Join(dir, "import")

	key, err := tokenstore.NewKey()
	if err != nil {
		return err
	}
	cfg.Auth.TokenKey = key

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ImportDir, 0o755); err != nil {
		return fmt.Errorf("creating import dir: %w", err)
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

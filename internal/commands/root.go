// Package commands is the talkcents command-line front end.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/talkcents/talkcents/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "talkcents",
		Short:   "Track income and expenses against the talkcents backend",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default $XDG_CONFIG_HOME/talkcents/talkcents.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newInitCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newListCommand(a),
		newAddCommand(a),
		newEditCommand(a),
		newDeleteCommand(a),
		newApproveCommand(a),
		newSummaryCommand(a),
		newTotalsCommand(a),
		newWidgetCommand(a),
		newCategoriesCommand(a),
		newInsightsCommand(a),
		newBudgetCommand(a),
		newCaptureCommand(a),
		newChatCommand(a),
		newImportCommand(a),
		newExportCommand(a),
		newHistoryCommand(a),
	)

	return rootCmd
}

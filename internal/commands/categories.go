package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/talkcents/talkcents/internal/categories"
)

func newCategoriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "Manage local categories",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ICON\tNAME")
			for _, c := range a.registry.All() {
				fmt.Fprintf(tw, "%s\t%s\n", c.Icon, c.Name)
			}
			return tw.Flush()
		},
	}

	add := &cobra.Command{
		Use:   "add <name> [icon]",
		Short: "Add a category",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			icon := ""
			if len(args) == 2 {
				icon = args[1]
			}
			c, err := a.registry.Add(args[0], icon)
			if errors.Is(err, categories.ErrDuplicate) {
				return fmt.Errorf("category %q already exists", args[0])
			}
			if err != nil {
				return err
			}
			if err := a.saveCategories(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added category %s\n", categoryLabel(c))
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a category",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.registry.Remove(args[0]) {
				return fmt.Errorf("category %q not found", args[0])
			}
			if err := a.saveCategories(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed category %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

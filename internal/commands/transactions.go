package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/talkcents/talkcents/internal/activity"
	"github.com/talkcents/talkcents/internal/model"
	"github.com/talkcents/talkcents/internal/report"
)

func newListCommand(a *app) *cobra.Command {
	var pending, approved, asJSON bool
	var month, year int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pending && approved {
				return errors.New("--pending and --approved are mutually exclusive")
			}
			if err := a.reload(cmd.Context()); err != nil {
				return err
			}

			var txs []model.Transaction
			switch {
			case pending:
				txs = a.store.Pending()
			case approved:
				txs = a.store.Approved()
			default:
				txs = a.store.Transactions()
			}
			if month != 0 || year != 0 {
				m, y, err := resolveMonth(a.now(), month, year)
				if err != nil {
					return err
				}
				txs = report.InMonth(txs, m, y)
			}

			if asJSON {
				if txs == nil {
					txs = []model.Transaction{}
				}
				return writeJSON(cmd.OutOrStdout(), txs)
			}
			return printTransactions(cmd.OutOrStdout(), txs)
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "only entries awaiting approval")
	cmd.Flags().BoolVar(&approved, "approved", false, "only approved entries")
	cmd.Flags().IntVar(&month, "month", 0, "filter to month (1-12, default current when --year is set)")
	cmd.Flags().IntVar(&year, "year", 0, "filter to year (default current when --month is set)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

type draftFlags struct {
	typ      string
	name     string
	amount   float64
	category string
	icon     string
	date     string
	note     string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.typ, "type", string(model.TypeExpense), "Expense or Income")
	cmd.Flags().StringVar(&f.name, "name", "", "label")
	cmd.Flags().Float64Var(&f.amount, "amount", 0, "amount (non-negative)")
	cmd.Flags().StringVar(&f.category, "category", model.DefaultCategoryName, "category name")
	cmd.Flags().StringVar(&f.icon, "icon", "", "icon for a new category")
	cmd.Flags().StringVar(&f.date, "date", "", "date YYYY-MM-DD (default now)")
	cmd.Flags().StringVar(&f.note, "note", "", "free-text note")
}

func parseType(s string) (model.Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense":
		return model.TypeExpense, nil
	case "income":
		return model.TypeIncome, nil
	}
	return "", fmt.Errorf("unknown type %q (want Expense or Income)", s)
}

// ensureCategory registers name so its icon resolves, creating it on
// first use the way entry forms do.
func (a *app) ensureCategory(name, icon string) error {
	if _, ok := a.registry.Get(name); ok && icon == "" {
		return nil
	}
	if _, err := a.registry.Register(name, icon); err != nil {
		return err
	}
	return a.saveCategories()
}

func newAddCommand(a *app) *cobra.Command {
	var f draftFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := parseType(f.typ)
			if err != nil {
				return err
			}
			date := a.now()
			if f.date != "" {
				if date, err = parseDay(f.date); err != nil {
					return err
				}
			}
			if err := a.ensureCategory(f.category, f.icon); err != nil {
				return err
			}

			tx, err := a.store.Add(cmd.Context(), model.Draft{
				Type:     typ,
				Name:     f.name,
				Amount:   f.amount,
				Date:     date,
				Category: f.category,
				Note:     f.note,
			})
			if err != nil {
				return err
			}
			a.recordTx(activity.ActionAdd, tx)
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", describe(tx))
			return nil
		},
	}

	f.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newEditCommand(a *app) *cobra.Command {
	var f draftFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a transaction; only the given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.reload(cmd.Context()); err != nil {
				return err
			}
			tx, ok := a.store.Get(args[0])
			if !ok {
				return fmt.Errorf("transaction %s not found", args[0])
			}

			changed := cmd.Flags().Changed
			if changed("type") {
				typ, err := parseType(f.typ)
				if err != nil {
					return err
				}
				tx.Type = typ
			}
			if changed("name") {
				tx.Name = f.name
			}
			if changed("amount") {
				tx.Amount = f.amount
			}
			if changed("date") {
				d, err := parseDay(f.date)
				if err != nil {
					return err
				}
				tx.Date = d
			}
			if changed("note") {
				tx.Note = f.note
			}
			if changed("category") || changed("icon") {
				name := tx.Category.Name
				if changed("category") {
					name = f.category
				}
				if err := a.ensureCategory(name, f.icon); err != nil {
					return err
				}
				tx.Category = model.Category{Name: name, Icon: a.registry.ResolveIcon(name)}
			}

			updated, err := a.store.Edit(cmd.Context(), tx)
			if err != nil {
				return err
			}
			a.recordTx(activity.ActionEdit, updated)
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", describe(updated))
			return nil
		},
	}

	f.register(cmd)
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a transaction",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.record(activity.Entry{Action: activity.ActionDelete, TransactionID: args[0]})
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newApproveCommand(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "approve [id]",
		Short: "Approve a pending transaction, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case all && len(args) > 0:
				return errors.New("give an id or --all, not both")
			case all:
				n, err := a.store.ApproveAll(cmd.Context())
				if err != nil {
					return err
				}
				a.record(activity.Entry{Action: activity.ActionApproveAll, Details: fmt.Sprintf("%d approved", n)})
				fmt.Fprintf(out, "Approved %d transactions\n", n)
			case len(args) == 1:
				if err := a.store.Approve(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.record(activity.Entry{Action: activity.ActionApprove, TransactionID: args[0]})
				fmt.Fprintf(out, "Approved %s\n", args[0])
			default:
				return errors.New("give an id or --all")
			}
			fmt.Fprintf(out, "%d pending, %d approved\n", len(a.store.Pending()), len(a.store.Approved()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "approve every pending transaction")
	return cmd
}

func describe(tx model.Transaction) string {
	return tx.ID + " " + describeBrief(tx)
}

func describeBrief(tx model.Transaction) string {
	return fmt.Sprintf("%s %.2f %s (%s)", tx.Type, tx.Amount, tx.Name, categoryLabel(tx.Category))
}

func categoryLabel(c model.Category) string {
	if c.Icon == "" {
		return c.Name
	}
	return c.Icon + " " + c.Name
}

func printTransactions(w io.Writer, txs []model.Transaction) error {
	if len(txs) == 0 {
		_, err := fmt.Fprintln(w, "No transactions.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tCATEGORY\tNAME\tSTATUS")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			tx.ID, tx.Date.Format("2006-01-02"), tx.Type, tx.Amount, categoryLabel(tx.Category), tx.Name, tx.Status)
	}
	return tw.Flush()
}

// resolveMonth fills a zero month or year from now (UTC).
func resolveMonth(now time.Time, month, year int) (time.Month, int, error) {
	if month < 0 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %d (want 1-12)", month)
	}
	now = now.UTC()
	m, y := time.Month(month), year
	if m == 0 {
		m = now.Month()
	}
	if y == 0 {
		y = now.Year()
	}
	return m, y, nil
}

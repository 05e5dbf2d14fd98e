package commands

import (
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/talkcents/talkcents/internal/activity"
	"github.com/talkcents/talkcents/internal/api"
	"github.com/talkcents/talkcents/internal/model"
	"github.com/talkcents/talkcents/internal/report"
)

func newSummaryCommand(a *app) *cobra.Command {
	var month, year int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expense and balance for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, y, err := resolveMonth(a.now(), month, year)
			if err != nil {
				return err
			}
			if err := a.reload(cmd.Context()); err != nil {
				return err
			}
			sum := report.MonthlySummary(a.store.Transactions(), m, y)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), sum)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(tw, "%s %d\t\n", m, y)
			fmt.Fprintf(tw, "Income\t%.2f\t\n", sum.Income)
			fmt.Fprintf(tw, "Expense\t%.2f\t\n", sum.Expense)
			fmt.Fprintf(tw, "Balance\t%.2f\t\n", sum.Balance)
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newTotalsCommand(a *app) *cobra.Command {
	var month, year int
	var typ string
	var allTime, asJSON bool

	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Break a month's spending down by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseType(typ)
			if err != nil {
				return err
			}
			m, y, err := resolveMonth(a.now(), month, year)
			if err != nil {
				return err
			}
			if err := a.reload(cmd.Context()); err != nil {
				return err
			}

			txs := report.OfType(a.store.Transactions(), t)
			if !allTime {
				txs = report.InMonth(txs, m, y)
			}
			totals := report.CategoryTotals(txs)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), totals)
			}
			if len(totals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to total.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tAMOUNT\tPERCENT")
			for _, ct := range totals {
				label := ct.Name
				if icon := a.registry.ResolveIcon(ct.Name); icon != "" {
					label = icon + " " + ct.Name
				}
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f%%\n", label, ct.Amount, ct.Percent)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().StringVar(&typ, "type", string(model.TypeExpense), "Expense or Income")
	cmd.Flags().BoolVar(&allTime, "all-time", false, "ignore --month/--year")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newWidgetCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Show spending today and this month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.now()
			// A day either side covers now's location against the server's UTC days.
			from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -1)
			raws, err := a.client.ListBetween(cmd.Context(), from, now.AddDate(0, 0, 1))
			if api.IsUnauthorized(err) {
				return fmt.Errorf("%w (try `talkcents login`)", err)
			}
			if err != nil {
				return err
			}
			win := report.SpendWindow(a.norm.NormalizeAll(raws, ""), now)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), win)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Spent today: %.2f\nSpent this month: %.2f\n", win.Today, win.Month)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

type rangeFlags struct {
	from, to string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "start date YYYY-MM-DD (default first of this month)")
	cmd.Flags().StringVar(&r.to, "to", "", "end date YYYY-MM-DD (default today)")
}

func (r *rangeFlags) resolve(now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var err error
	if r.from != "" {
		if from, err = parseDay(r.from); err != nil {
			return from, to, err
		}
	}
	if r.to != "" {
		if to, err = parseDay(r.to); err != nil {
			return from, to, err
		}
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("--to %s is before --from %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	return from, to, nil
}

func newInsightsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Server-side spending insights",
	}
	cmd.AddCommand(newInsightsCategoriesCommand(a), newInsightsDailyCommand(a))
	return cmd
}

func newInsightsCategoriesCommand(a *app) *cobra.Command {
	var r rangeFlags

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Spending per category between two dates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := r.resolve(a.now())
			if err != nil {
				return err
			}
			totals, err := a.client.CategoryTotals(cmd.Context(), from, to)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(totals))
			for name := range totals {
				names = append(names, name)
			}
			sort.SliceStable(names, func(i, j int) bool {
				if totals[names[i]] != totals[names[j]] {
					return totals[names[i]] > totals[names[j]]
				}
				return names[i] < names[j]
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tAMOUNT")
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%.2f\n", name, totals[name])
			}
			return tw.Flush()
		},
	}
	r.register(cmd)
	return cmd
}

func newInsightsDailyCommand(a *app) *cobra.Command {
	var r rangeFlags
	var local bool

	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Spending per day between two dates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := r.resolve(a.now())
			if err != nil {
				return err
			}
			var days []report.DayTotal
			if local {
				if err := a.reload(cmd.Context()); err != nil {
					return err
				}
				days = report.DailyTotals(a.store.Transactions(), from, to)
			} else {
				remote, err := a.client.DailyTotals(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				for _, d := range remote {
					days = append(days, report.DayTotal{Day: d.Day, Amount: d.Amount})
				}
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DAY\tAMOUNT")
			for _, d := range days {
				fmt.Fprintf(tw, "%s\t%.2f\n", d.Day.Format("2006-01-02"), d.Amount)
			}
			return tw.Flush()
		},
	}
	r.register(cmd)
	cmd.Flags().BoolVar(&local, "local", false, "total the loaded transactions instead of asking the server")
	return cmd
}

func newBudgetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show or set the monthly budget",
	}

	var asJSON bool
	get := &cobra.Command{
		Use:   "get",
		Short: "Show the budget and this month's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.client.Budget(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.reload(cmd.Context()); err != nil {
				return err
			}
			now := a.now().UTC()
			spent := report.MonthlySummary(a.store.Transactions(), now.Month(), now.Year()).Expense
			p := report.BudgetProgress(b.MonthlyBudget, spent)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), p)
			}
			out := cmd.OutOrStdout()
			if p.Budget == 0 {
				fmt.Fprintf(out, "No budget set. Spent this month: %.2f\n", p.Spent)
				return nil
			}
			fmt.Fprintf(out, "Budget %.2f, spent %.2f (%.2f%%), remaining %.2f\n", p.Budget, p.Spent, p.PercentUsed, p.Remaining)
			if p.Over {
				fmt.Fprintln(out, "Over budget!")
			}
			return nil
		},
	}
	get.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	set := &cobra.Command{
		Use:   "set <amount>",
		Short: "Set the monthly budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil || amount < 0 {
				return fmt.Errorf("invalid amount %q: want a non-negative number", args[0])
			}
			b, err := a.client.SetBudget(cmd.Context(), amount)
			if err != nil {
				return err
			}
			a.record(activity.Entry{Action: activity.ActionBudget, Details: fmt.Sprintf("%.2f", b.MonthlyBudget)})
			fmt.Fprintf(cmd.OutOrStdout(), "Monthly budget set to %.2f\n", b.MonthlyBudget)
			return nil
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

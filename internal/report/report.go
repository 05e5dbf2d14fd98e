// Package report derives totals and summaries from a transaction list.
// Nothing here mutates its input.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talkcents/talkcents/internal/model"
)

// UncategorizedName groups transactions with a blank category.
const UncategorizedName = "Uncategorized"

var hundred = decimal.NewFromInt(100)

// CategoryTotal is one slice of the category breakdown.
type CategoryTotal struct {
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"` // 0-100 share of the grand total
}

// CategoryTotals groups txs by category name and sums amounts. Groups are
// ordered by amount, largest first; equal amounts keep first-seen order.
func CategoryTotals(txs []model.Transaction) []CategoryTotal {
	if len(txs) == 0 {
		return []CategoryTotal{}
	}

	var order []string
	sums := make(map[string]decimal.Decimal)
	grand := decimal.Zero
	for _, tx := range txs {
		name := strings.TrimSpace(tx.Category.Name)
		if name == "" {
			name = UncategorizedName
		}
		if _, ok := sums[name]; !ok {
			order = append(order, name)
		}
		amt := decimal.NewFromFloat(tx.Amount)
		sums[name] = sums[name].Add(amt)
		grand = grand.Add(amt)
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, name := range order {
		sum := sums[name]
		pct := decimal.Zero
		if !grand.IsZero() {
			pct = sum.Div(grand).Mul(hundred)
		}
		out = append(out, CategoryTotal{
			Name:    name,
			Amount:  round2(sum),
			Percent: round2(pct),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out
}

// Summary is the income, expense and balance of a period.
type Summary struct {
	Expense float64 `json:"expense"`
	Income  float64 `json:"income"`
	Balance float64 `json:"balance"`
}

// MonthlySummary totals the transactions dated in month/year (UTC).
func MonthlySummary(txs []model.Transaction, month time.Month, year int) Summary {
	return Summarize(InMonth(txs, month, year))
}

// Summarize totals txs without filtering.
func Summarize(txs []model.Transaction) Summary {
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		amt := decimal.NewFromFloat(tx.Amount)
		switch tx.Type {
		case model.TypeIncome:
			income = income.Add(amt)
		case model.TypeExpense:
			expense = expense.Add(amt)
		}
	}
	return Summary{
		Expense: round2(expense),
		Income:  round2(income),
		Balance: round2(income.Sub(expense)),
	}
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// Filter returns the transactions keep accepts.
func Filter(txs []model.Transaction, keep func(model.Transaction) bool) []model.Transaction {
	out := make([]model.Transaction, 0, len(txs))
	for _, tx := range txs {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// OfType returns the transactions of one type.
func OfType(txs []model.Transaction, t model.Type) []model.Transaction {
	return Filter(txs, func(tx model.Transaction) bool { return tx.Type == t })
}

// Between returns transactions dated in [from, to).
func Between(txs []model.Transaction, from, to time.Time) []model.Transaction {
	return Filter(txs, func(tx model.Transaction) bool {
		return !tx.Date.Before(from) && tx.Date.Before(to)
	})
}

// InMonth returns transactions whose UTC date falls in month/year.
func InMonth(txs []model.Transaction, month time.Month, year int) []model.Transaction {
	return Filter(txs, func(tx model.Transaction) bool {
		d := tx.Date.UTC()
		return d.Month() == month && d.Year() == year
	})
}

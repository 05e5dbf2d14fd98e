package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/talkcents/talkcents/internal/model"
)

// Window is what the home-screen widget shows.
type Window struct {
	Today float64 `json:"spent_today"`
	Month float64 `json:"spent_this_month"`
}

// SpendWindow sums expenses for the calendar day and month containing
// now, in now's location.
func SpendWindow(txs []model.Transaction, now time.Time) Window {
	loc := now.Location()
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, loc)

	today, month := decimal.Zero, decimal.Zero
	for _, tx := range OfType(txs, model.TypeExpense) {
		at := tx.Date.In(loc)
		amt := decimal.NewFromFloat(tx.Amount)
		if !at.Before(monthStart) && at.Before(monthStart.AddDate(0, 1, 0)) {
			month = month.Add(amt)
		}
		if !at.Before(dayStart) && at.Before(dayStart.AddDate(0, 0, 1)) {
			today = today.Add(amt)
		}
	}
	return Window{Today: round2(today), Month: round2(month)}
}

// Progress compares spending with the monthly budget.
type Progress struct {
	Budget      float64 `json:"budget"`
	Spent       float64 `json:"spent"`
	Remaining   float64 `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`
	Over        bool    `json:"over_budget"`
}

// BudgetProgress reports how much of budget spent uses. A zero budget
// means none is set: nothing is over and the percentage stays 0.
func BudgetProgress(budget, spent float64) Progress {
	b := decimal.NewFromFloat(budget)
	s := decimal.NewFromFloat(spent)

	p := Progress{
		Budget:    round2(b),
		Spent:     round2(s),
		Remaining: round2(b.Sub(s)),
	}
	if b.IsPositive() {
		p.PercentUsed = round2(s.Div(b).Mul(hundred))
		p.Over = s.GreaterThan(b)
	}
	return p
}

// DayTotal is the expense total of one UTC day.
type DayTotal struct {
	Day    time.Time `json:"day"`
	Amount float64   `json:"amount"`
}

// DailyTotals returns one entry per UTC day from from through to,
// inclusive, including days with no spending.
func DailyTotals(txs []model.Transaction, from, to time.Time) []DayTotal {
	start := truncateDay(from)
	end := truncateDay(to)
	if end.Before(start) {
		return []DayTotal{}
	}

	sums := make(map[time.Time]decimal.Decimal)
	for _, tx := range OfType(txs, model.TypeExpense) {
		day := truncateDay(tx.Date)
		if day.Before(start) || day.After(end) {
			continue
		}
		sums[day] = sums[day].Add(decimal.NewFromFloat(tx.Amount))
	}

	var out []DayTotal
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		out = append(out, DayTotal{Day: day, Amount: round2(sums[day])})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

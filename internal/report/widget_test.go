package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkcents/talkcents/internal/model"
)

func TestSpendWindow(t *testing.T) {
	now := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	txs := []model.Transaction{
		tx(model.TypeExpense, 4.5, "Food", time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)),
		tx(model.TypeExpense, 10, "Food", time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)),
		tx(model.TypeExpense, 20, "Transport", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		tx(model.TypeExpense, 99, "Transport", time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC)),
		tx(model.TypeIncome, 500, "Salary", time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)),
	}

	got := SpendWindow(txs, now)
	assert.Equal(t, Window{Today: 14.5, Month: 34.5}, got)
}

func TestSpendWindow_UsesNowLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	now := time.Date(2025, 3, 15, 1, 0, 0, 0, tokyo)
	// 16:00 UTC on the 14th is 01:00 on the 15th in Tokyo.
	txs := []model.Transaction{
		tx(model.TypeExpense, 7, "Food", time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)),
	}
	assert.Equal(t, 7.0, SpendWindow(txs, now).Today)
}

func TestBudgetProgress(t *testing.T) {
	tests := []struct {
		name   string
		budget float64
		spent  float64
		want   Progress
	}{
		{
			name:   "under",
			budget: 1000, spent: 250.5,
			want: Progress{Budget: 1000, Spent: 250.5, Remaining: 749.5, PercentUsed: 25.05},
		},
		{
			name:   "over",
			budget: 100, spent: 150,
			want: Progress{Budget: 100, Spent: 150, Remaining: -50, PercentUsed: 150, Over: true},
		},
		{
			name:   "exactly at budget",
			budget: 100, spent: 100,
			want: Progress{Budget: 100, Spent: 100, Remaining: 0, PercentUsed: 100},
		},
		{
			name:   "no budget set",
			budget: 0, spent: 40,
			want: Progress{Budget: 0, Spent: 40, Remaining: -40},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BudgetProgress(tt.budget, tt.spent))
		})
	}
}

func TestDailyTotals(t *testing.T) {
	txs := []model.Transaction{
		tx(model.TypeExpense, 5, "Food", time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)),
		tx(model.TypeExpense, 2.5, "Food", time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)),
		tx(model.TypeExpense, 8, "Food", time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)),
		tx(model.TypeExpense, 100, "Food", time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)),
		tx(model.TypeIncome, 1000, "Salary", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)),
	}

	got := DailyTotals(txs, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 3, 15, 0, 0, 0, time.UTC))
	require.Len(t, got, 3)
	assert.Equal(t, 7.5, got[0].Amount)
	assert.Zero(t, got[1].Amount)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), got[1].Day)
	assert.Equal(t, 8.0, got[2].Amount)
}

func TestDailyTotals_EmptyRange(t *testing.T) {
	got := DailyTotals(nil, day(2025, 1, 5), day(2025, 1, 1))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

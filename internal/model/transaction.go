package model

import (
	"encoding/json"
	"time"
)

// Type separates money coming in from money going out.
type Type string

const (
	TypeIncome  Type = "Income"
	TypeExpense Type = "Expense"
)

// Status is the server-side review state of an expenditure.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
)

// ISOLayout renders timestamps the way the backend and the mobile client
// exchange them: UTC with millisecond precision.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// FormatISO formats t in UTC using ISOLayout.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// Transaction is the canonical client-side view of one expenditure.
type Transaction struct {
	ID       string
	Type     Type
	Name     string
	Amount   float64
	Date     time.Time // always UTC
	Category Category  // never a bare name
	Note     string
	Status   Status // empty for entries that did not come from a review list
}

type transactionJSON struct {
	ID       string   `json:"id"`
	Type     Type     `json:"type"`
	Name     string   `json:"name"`
	Amount   float64  `json:"amount"`
	Date     string   `json:"date"`
	Category Category `json:"category"`
	Note     string   `json:"note"`
	Status   Status   `json:"status,omitempty"`
}

// MarshalJSON writes the date with FormatISO so output matches the API.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:       t.ID,
		Type:     t.Type,
		Name:     t.Name,
		Amount:   t.Amount,
		Date:     FormatISO(t.Date),
		Category: t.Category,
		Note:     t.Note,
		Status:   t.Status,
	})
}

// IsIncome reports whether the transaction adds money.
func (t Transaction) IsIncome() bool {
	return t.Type == TypeIncome
}

// Draft is a user-entered transaction that has not been persisted yet.
type Draft struct {
	LocalID  string // transient key until the backend assigns one
	Type     Type
	Name     string
	Amount   float64
	Date     time.Time
	Category string
	Note     string
	Status   Status
}

// DraftOf converts a transaction back into an editable draft.
func DraftOf(t Transaction) Draft {
	return Draft{
		LocalID:  t.ID,
		Type:     t.Type,
		Name:     t.Name,
		Amount:   t.Amount,
		Date:     t.Date,
		Category: t.Category.Name,
		Note:     t.Note,
		Status:   t.Status,
	}
}

// Budget is the user's monthly spending target.
type Budget struct {
	MonthlyBudget float64 `json:"monthly_budget"`
}

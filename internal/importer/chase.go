package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talkcents/talkcents/internal/model"
)

// ChaseParser parses Chase bank checking CSV exports. Debits become
// expenses and credits become income, both with positive amounts.
type ChaseParser struct {
	// Category is assigned to every row; empty means the default category.
	Category string
}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns drafts.
func (p *ChaseParser) Parse(r io.Reader) ([]model.Draft, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	category := strings.TrimSpace(p.Category)
	if category == "" {
		category = model.DefaultCategoryName
	}

	var drafts []model.Draft
	for i, rec := range records[1:] {
		d, err := parseChaseRow(rec, category)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func parseChaseRow(rec []string, category string) (model.Draft, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return model.Draft{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := decimal.NewFromString(rec[chaseColAmount])
	if err != nil {
		return model.Draft{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}

	typ := model.TypeExpense
	if amount.IsPositive() {
		typ = model.TypeIncome
	}

	desc := strings.TrimSpace(rec[chaseColDesc])
	return model.Draft{
		LocalID:  makeChaseRef(date, desc),
		Type:     typ,
		Name:     desc,
		Amount:   amount.Abs().InexactFloat64(),
		Date:     date,
		Category: category,
		Note:     rec[chaseColType],
	}, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUB.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}

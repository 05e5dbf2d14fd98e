// Package export writes transactions as CSV and reads them back as
// drafts for re-import.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talkcents/talkcents/internal/model"
	"github.com/talkcents/talkcents/internal/normalize"
)

// Header is the CSV header row.
const Header = "id,date,type,name,amount,category,icon,note,status"

const (
	numFields   = 9
	colID       = 0
	colDate     = 1
	colType     = 2
	colName     = 3
	colAmount   = 4
	colCategory = 5
	colIcon     = 6
	colNote     = 7
	colStatus   = 8
)

var dateLayouts = []string{model.ISOLayout, time.RFC3339Nano, "2006-01-02"}

// WriteTransactions writes txs with a header row.
func WriteTransactions(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, tx := range txs {
		if err := cw.Write(MarshalTransaction(tx)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(tx model.Transaction) []string {
	row := make([]string, numFields)
	row[colID] = tx.ID
	row[colDate] = model.FormatISO(tx.Date)
	row[colType] = string(tx.Type)
	row[colName] = tx.Name
	row[colAmount] = decimal.NewFromFloat(tx.Amount).StringFixed(2)
	row[colCategory] = tx.Category.Name
	row[colIcon] = tx.Category.Icon
	row[colNote] = tx.Note
	row[colStatus] = string(tx.Status)
	return row
}

// ReadDrafts reads rows written by WriteTransactions. The id column
// becomes the draft's local id; the icon column is ignored since icons
// come from the category registry.
func ReadDrafts(r io.Reader) ([]model.Draft, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading export CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	drafts := make([]model.Draft, 0, len(records)-1)
	for i, rec := range records[1:] {
		d, err := UnmarshalDraft(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// UnmarshalDraft converts a CSV row to a Draft.
func UnmarshalDraft(record []string) (model.Draft, error) {
	if len(record) != numFields {
		return model.Draft{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := parseDate(record[colDate])
	if err != nil {
		return model.Draft{}, err
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(record[colAmount]))
	if err != nil {
		return model.Draft{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	typ := model.Type(strings.TrimSpace(record[colType]))
	switch typ {
	case model.TypeIncome, model.TypeExpense:
	default:
		return model.Draft{}, fmt.Errorf("unknown type %q", record[colType])
	}

	category := strings.TrimSpace(record[colCategory])
	if category == "" {
		category = model.DefaultCategoryName
	}

	return model.Draft{
		LocalID:  strings.TrimSpace(record[colID]),
		Type:     typ,
		Name:     record[colName],
		Amount:   amount.InexactFloat64(),
		Date:     date,
		Category: category,
		Note:     record[colNote],
		Status:   normalize.StatusOf(record[colStatus]),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", s)
}

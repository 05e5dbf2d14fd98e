package categories

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/talkcents/talkcents/internal/model"
)

const (
	numFields = 2
	colName   = 0
	colIcon   = 1
)

// ReadCategories reads a categories CSV with a "name,icon" header.
func ReadCategories(r io.Reader) ([]model.Category, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading categories CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var cats []model.Category
	for i, rec := range records[1:] {
		if rec[colName] == "" {
			return nil, fmt.Errorf("row %d: %w", i+2, ErrEmptyName)
		}
		cats = append(cats, model.Category{Name: rec[colName], Icon: rec[colIcon]})
	}
	return cats, nil
}

// WriteCategories writes a categories CSV.
func WriteCategories(w io.Writer, cats []model.Category) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"name", "icon"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, c := range cats {
		row := make([]string, numFields)
		row[colName] = c.Name
		row[colIcon] = c.Icon
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

package model

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError describes one problem with user-entered data.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// Validate checks a draft before it is sent to the backend.
// Server payloads are never validated; they are normalized instead.
func (d Draft) Validate() []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, ValidationError{Field: "name", Description: "must not be blank"})
	}
	if len(d.Name) > 200 {
		errs = append(errs, ValidationError{Field: "name", Description: "too long (max 200 characters)"})
	}
	if math.IsNaN(d.Amount) || math.IsInf(d.Amount, 0) {
		errs = append(errs, ValidationError{Field: "amount", Description: "must be a finite number"})
	} else if d.Amount < 0 {
		errs = append(errs, ValidationError{Field: "amount", Description: "must not be negative"})
	}
	switch d.Type {
	case TypeIncome, TypeExpense:
	default:
		errs = append(errs, ValidationError{Field: "type", Description: fmt.Sprintf("unknown type %q", d.Type)})
	}
	if strings.TrimSpace(d.Category) == "" {
		errs = append(errs, ValidationError{Field: "category", Description: "must not be blank"})
	}
	return errs
}

// JoinValidation folds validation errors into one error, or nil.
func JoinValidation(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

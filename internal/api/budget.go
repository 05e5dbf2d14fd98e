package api

import (
	"context"
	"net/http"

	"github.com/talkcents/talkcents/internal/model"
)

// Budget returns the user's monthly budget.
func (c *Client) Budget(ctx context.Context) (model.Budget, error) {
	var b model.Budget
	if err := c.doJSON(ctx, http.MethodGet, "/user/budget", nil, nil, &b); err != nil {
		return model.Budget{}, err
	}
	return b, nil
}

// SetBudget replaces the monthly budget and returns the stored value.
func (c *Client) SetBudget(ctx context.Context, amount float64) (model.Budget, error) {
	in := model.Budget{MonthlyBudget: amount}
	out := in
	if err := c.doJSON(ctx, http.MethodPut, "/user/budget", nil, in, &out); err != nil {
		return model.Budget{}, err
	}
	return out, nil
}

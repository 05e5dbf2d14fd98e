package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/talkcents/talkcents/internal/id"
)

// DayTotal is the amount spent on one calendar day.
type DayTotal struct {
	Day    time.Time
	Amount float64
}

func rangeQuery(from, to time.Time) url.Values {
	q := url.Values{}
	q.Set("start_date", dateParam(from))
	q.Set("end_date", dateParam(to))
	return q
}

// CategoryTotals returns server-computed spend per category name.
func (c *Client) CategoryTotals(ctx context.Context, from, to time.Time) (map[string]float64, error) {
	var raw map[string]json.Number
	if err := c.doJSON(ctx, http.MethodGet, "/insights/category-totals", rangeQuery(from, to), nil, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(raw))
	for name, n := range raw {
		v, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("category %q total %q: %w", name, n, err)
		}
		out[name] = v
	}
	return out, nil
}

// DailyTotals returns server-computed spend per day, oldest first.
// Entries whose key is not a date are skipped.
func (c *Client) DailyTotals(ctx context.Context, from, to time.Time) ([]DayTotal, error) {
	var raw map[string]json.Number
	if err := c.doJSON(ctx, http.MethodGet, "/insights/daily-totals", rangeQuery(from, to), nil, &raw); err != nil {
		return nil, err
	}

	out := make([]DayTotal, 0, len(raw))
	for key, n := range raw {
		day, err := id.ParseDayKey(key)
		if err != nil {
			c.log.Warn().Str("key", key).Err(err).Msg("skipping daily total")
			continue
		}
		v, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("daily total %q: %w", key, err)
		}
		out = append(out, DayTotal{Day: day, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

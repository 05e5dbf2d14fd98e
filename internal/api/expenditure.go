package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/talkcents/talkcents/internal/model"
)

// CreateRequest is the body of a create call.
type CreateRequest struct {
	Type     model.Type   `json:"type"`
	Name     string       `json:"name"`
	Amount   float64      `json:"amount"`
	Category string       `json:"category"`
	Date     string       `json:"date"`
	Note     string       `json:"note"`
	Status   model.Status `json:"status,omitempty"`
}

// NewCreateRequest builds a create body from a draft.
func NewCreateRequest(d model.Draft) CreateRequest {
	date := d.Date
	if date.IsZero() {
		date = time.Now()
	}
	return CreateRequest{
		Type:     d.Type,
		Name:     d.Name,
		Amount:   d.Amount,
		Category: d.Category,
		Date:     model.FormatISO(date),
		Note:     d.Note,
		Status:   d.Status,
	}
}

// Raw returns the body as a loosely typed record.
func (r CreateRequest) Raw() model.Raw {
	raw := model.Raw{
		"type":     string(r.Type),
		"name":     r.Name,
		"amount":   r.Amount,
		"category": r.Category,
		"date":     r.Date,
		"note":     r.Note,
	}
	if r.Status != "" {
		raw["status"] = string(r.Status)
	}
	return raw
}

// Patch is a partial update. Nil fields are left unchanged on the server.
type Patch struct {
	Type     *model.Type   `json:"type,omitempty"`
	Name     *string       `json:"name,omitempty"`
	Amount   *float64      `json:"amount,omitempty"`
	Category *string       `json:"category,omitempty"`
	Date     *string       `json:"date,omitempty"`
	Note     *string       `json:"note,omitempty"`
	Status   *model.Status `json:"status,omitempty"`
}

// PatchOf returns a patch setting every editable field of t. Status is
// left out; it only moves through the approve endpoints.
func PatchOf(t model.Transaction) Patch {
	date := model.FormatISO(t.Date)
	return Patch{
		Type:     &t.Type,
		Name:     &t.Name,
		Amount:   &t.Amount,
		Category: &t.Category.Name,
		Date:     &date,
		Note:     &t.Note,
	}
}

// Raw returns the set fields as a loosely typed record.
func (p Patch) Raw() model.Raw {
	raw := model.Raw{}
	if p.Type != nil {
		raw["type"] = string(*p.Type)
	}
	if p.Name != nil {
		raw["name"] = *p.Name
	}
	if p.Amount != nil {
		raw["amount"] = *p.Amount
	}
	if p.Category != nil {
		raw["category"] = *p.Category
	}
	if p.Date != nil {
		raw["date"] = *p.Date
	}
	if p.Note != nil {
		raw["note"] = *p.Note
	}
	if p.Status != nil {
		raw["status"] = string(*p.Status)
	}
	return raw
}

// ApproveAllResult reports how many entries an approve-all call moved.
type ApproveAllResult struct {
	Count int `json:"count"`
}

// ListAll returns every expenditure regardless of review state.
func (c *Client) ListAll(ctx context.Context) ([]model.Raw, error) {
	return c.list(ctx, "/expenditure", nil)
}

// ListPending returns expenditures awaiting approval.
func (c *Client) ListPending(ctx context.Context) ([]model.Raw, error) {
	return c.list(ctx, "/expenditure/pending", nil)
}

// ListApproved returns approved expenditures.
func (c *Client) ListApproved(ctx context.Context) ([]model.Raw, error) {
	return c.list(ctx, "/expenditure/approved", nil)
}

// ListBetween returns expenditures dated within [from, to].
func (c *Client) ListBetween(ctx context.Context, from, to time.Time) ([]model.Raw, error) {
	return c.list(ctx, "/expenditure/date_filter", rangeQuery(from, to))
}

func (c *Client) list(ctx context.Context, path string, q url.Values) ([]model.Raw, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: path, query: q})
	if err != nil {
		return nil, err
	}
	raws, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("decoding GET %s response: %w", path, err)
	}
	return raws, nil
}

// Create persists a new expenditure and returns the server's record.
func (c *Client) Create(ctx context.Context, req CreateRequest) (model.Raw, error) {
	return c.record(ctx, http.MethodPost, "/expenditure", req)
}

// CreateBulk persists several expenditures in one call.
func (c *Client) CreateBulk(ctx context.Context, reqs []CreateRequest) ([]model.Raw, error) {
	if reqs == nil {
		reqs = []CreateRequest{}
	}
	data, err := encodeJSON(reqs)
	if err != nil {
		return nil, fmt.Errorf("encoding bulk body: %w", err)
	}
	body, err := c.do(ctx, request{method: http.MethodPost, path: "/expenditure/bulk", body: data})
	if err != nil {
		return nil, err
	}
	raws, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("decoding POST /expenditure/bulk response: %w", err)
	}
	return raws, nil
}

// Update applies a partial update to an expenditure.
func (c *Client) Update(ctx context.Context, id string, p Patch) (model.Raw, error) {
	return c.record(ctx, http.MethodPatch, "/expenditure/"+url.PathEscape(id), p)
}

// Delete removes an expenditure.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/expenditure/"+url.PathEscape(id), nil, nil, nil)
}

// ApproveOne moves one expenditure from pending to approved.
func (c *Client) ApproveOne(ctx context.Context, id string) (model.Raw, error) {
	return c.record(ctx, http.MethodPatch, "/expenditure/approve/"+url.PathEscape(id), nil)
}

// ApproveAll approves every pending expenditure.
func (c *Client) ApproveAll(ctx context.Context) (ApproveAllResult, error) {
	raw, err := c.record(ctx, http.MethodPost, "/expenditure/approve", nil)
	if err != nil {
		return ApproveAllResult{}, err
	}
	for _, k := range []string{"count", "approved_count", "approved", "modified_count"} {
		if n, ok := raw[k].(json.Number); ok {
			if v, err := n.Int64(); err == nil {
				return ApproveAllResult{Count: int(v)}, nil
			}
		}
	}
	return ApproveAllResult{}, nil
}

func (c *Client) record(ctx context.Context, method, path string, in any) (model.Raw, error) {
	r := request{method: method, path: path}
	if in != nil {
		data, err := encodeJSON(in)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		r.body = data
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	raw, err := decodeRecord(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return raw, nil
}

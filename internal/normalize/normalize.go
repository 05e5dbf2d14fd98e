// Package normalize turns loosely-shaped backend records into canonical
// transactions. It is the only place that knows about backend field-name
// variants.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talkcents/talkcents/internal/id"
	"github.com/talkcents/talkcents/internal/model"
)

// IconResolver looks up a category icon by name.
type IconResolver interface {
	ResolveIcon(name string) string
}

// Normalizer maps raw records to model.Transaction. The zero value is not
// usable; call New.
type Normalizer struct {
	icons IconResolver
	now   func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock replaces time.Now for fallback IDs and dates.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New creates a Normalizer resolving icons through icons (may be nil).
func New(icons IconResolver, opts ...Option) *Normalizer {
	n := &Normalizer{icons: icons, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Field precedence, first non-null wins.
var (
	idKeys     = []string{"id", "uuid", "_id"}
	amountKeys = []string{"amount", "price"}
	dateKeys   = []string{"date_of_expense", "date"}
	noteKeys   = []string{"note", "notes"}
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Normalize converts raw into a Transaction. Missing or malformed fields
// degrade to defaults; it never fails.
func (n *Normalizer) Normalize(raw model.Raw) model.Transaction {
	now := n.now().UTC()

	catName := categoryName(raw["category"])
	icon := ""
	if n.icons != nil {
		icon = n.icons.ResolveIcon(catName)
	}

	txID := idOf(raw)
	if txID == "" {
		txID = id.NewLocal(now)
	}

	note, _ := lookup(raw, noteKeys...)
	name := raw["name"]

	return model.Transaction{
		ID:       txID,
		Type:     typeOf(raw["type"]),
		Name:     text(name),
		Amount:   amountOf(raw),
		Date:     dateOf(raw, now),
		Category: model.Category{Name: catName, Icon: icon},
		Note:     text(note),
		Status:   StatusOf(raw["status"]),
	}
}

// NormalizeAll normalizes every record. Records without a recognizable
// status get def, which callers use to stamp endpoint membership.
func (n *Normalizer) NormalizeAll(raws []model.Raw, def model.Status) []model.Transaction {
	out := make([]model.Transaction, 0, len(raws))
	for _, raw := range raws {
		tx := n.Normalize(raw)
		if tx.Status == "" {
			tx.Status = def
		}
		out = append(out, tx)
	}
	return out
}

// HasID reports whether raw carries a backend-assigned identifier.
func HasID(raw model.Raw) bool {
	return idOf(raw) != ""
}

// Overlay returns a copy of base with every non-null field of over applied
// on top. It lets a sparse create/update response fall back to the fields
// that were sent.
func Overlay(base, over model.Raw) model.Raw {
	out := make(model.Raw, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// StatusOf maps a raw status value onto the known review states.
func StatusOf(v any) model.Status {
	switch model.Status(strings.ToUpper(strings.TrimSpace(text(v)))) {
	case model.StatusPending:
		return model.StatusPending
	case model.StatusApproved:
		return model.StatusApproved
	default:
		return ""
	}
}

func lookup(raw model.Raw, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func idOf(raw model.Raw) string {
	for _, k := range idKeys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		// Mongo-style {"$oid": "..."} identifiers.
		if m, ok := v.(map[string]any); ok {
			v = m["$oid"]
		}
		if s := strings.TrimSpace(text(v)); s != "" {
			return s
		}
	}
	return ""
}

func typeOf(v any) model.Type {
	if text(v) == string(model.TypeIncome) {
		return model.TypeIncome
	}
	return model.TypeExpense
}

func categoryName(v any) string {
	var name string
	switch c := v.(type) {
	case string:
		name = c
	case map[string]any:
		name = text(c["name"])
	case model.Raw:
		name = text(c["name"])
	case model.Category:
		name = c.Name
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.DefaultCategoryName
	}
	return name
}

func amountOf(raw model.Raw) float64 {
	v, ok := lookup(raw, amountKeys...)
	if !ok {
		return 0
	}
	var f float64
	switch a := v.(type) {
	case float64:
		f = a
	case float32:
		f = float64(a)
	case int:
		f = float64(a)
	case int64:
		f = float64(a)
	case json.Number:
		d, err := decimal.NewFromString(a.String())
		if err != nil {
			return 0
		}
		f = d.InexactFloat64()
	case string:
		s := strings.TrimSpace(a)
		if s == "" {
			return 0
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0
		}
		f = d.InexactFloat64()
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func dateOf(raw model.Raw, now time.Time) time.Time {
	v, ok := lookup(raw, dateKeys...)
	if !ok {
		return now
	}
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case string:
		t, _ = parseDate(d)
	case json.Number:
		if ms, err := d.Int64(); err == nil {
			t = time.UnixMilli(ms)
		}
	case float64:
		if !math.IsNaN(d) && math.Abs(d) < maxEpochMillis {
			t = time.UnixMilli(int64(d))
		}
	case int64:
		t = time.UnixMilli(d)
	case int:
		t = time.UnixMilli(int64(d))
	}
	if t.IsZero() || !isoYear(t.UTC().Year()) {
		return now
	}
	return t.UTC()
}

// maxEpochMillis bounds float timestamps so the int64 conversion cannot
// overflow; isoYear rejects whatever is still out of range.
const maxEpochMillis = 1 << 53

// isoYear reports whether year fits the four digits FormatISO renders.
func isoYear(year int) bool {
	return year >= 0 && year <= 9999
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// text renders scalar JSON values as strings; objects and arrays render
// as "".
func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

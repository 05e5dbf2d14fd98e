package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkcents/talkcents/internal/api/apitest"
	"github.com/talkcents/talkcents/internal/model"
	"github.com/talkcents/talkcents/internal/tokenstore"
)

type tokenFunc func(ctx context.Context) (string, error)

func (f tokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

func newTestClient(t *testing.T, base string, tokens TokenSource) *Client {
	t.Helper()
	c, err := New(base, tokens)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{"https", "https://example.com/api", true},
		{"trailing slash", "http://localhost:8000/api/", true},
		{"no scheme", "example.com/api", false},
		{"ftp", "ftp://example.com", false},
		{"no host", "http://", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.url, nil)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, strings.HasSuffix(c.BaseURL(), "/"))
		})
	}
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, tokenstore.NewMemory("tok"))
	_, err := c.ListPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
	assert.Equal(t, "talkcents-cli/dev", got.Get("User-Agent"))
}

func TestClient_MissingTokenIsNotFatal(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, tokenstore.NewMemory(""))
	_, err := c.ListApproved(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestClient_TokenSourceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}))
	t.Cleanup(srv.Close)

	boom := errors.New("keychain locked")
	c := newTestClient(t, srv.URL, tokenFunc(func(context.Context) (string, error) { return "", boom }))
	_, err := c.ListAll(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, nil)
	_, err := c.ListPending(context.Background())
	require.Error(t, err)

	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusInternalServerError, he.StatusCode)
	assert.Equal(t, "GET", he.Method)
	assert.Equal(t, "/expenditure/pending", he.Path)
	assert.Contains(t, err.Error(), "HTTP 500: boom")
	assert.False(t, IsUnauthorized(err))
}

func TestClient_NoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, nil)
	_, err := c.Create(context.Background(), CreateRequest{Name: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"null", "null", 0},
		{"empty", "", 0},
		{"array", `[{"id":"a"},{"id":"b"}]`, 2},
		{"envelope", `{"expenditures":[{"id":"a"},{"id":"b"},{"id":"c"}]}`, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRecords([]byte(tt.body))
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestDecodeRecords_RejectsBareObjects(t *testing.T) {
	for _, body := range []string{`{}`, `{"id":"a"}`, `{"detail":"x"}`, `"ok"`} {
		t.Run(body, func(t *testing.T) {
			got, err := decodeRecords([]byte(body))
			assert.Error(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestDecodeRecordsOrOne(t *testing.T) {
	got, err := decodeRecordsOrOne([]byte(`{"id":"a"}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0]["id"])

	got, err = decodeRecordsOrOne([]byte(`[{"id":"a"},{"id":"b"}]`))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = decodeRecordsOrOne([]byte(`{"id":`))
	assert.Error(t, err)
}

func TestListPending_ObjectBodyIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detail":"no pending expenditures"}`))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, nil)
	got, err := c.ListPending(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "decoding GET /expenditure/pending response")
	assert.Nil(t, got)
}

func TestDecodeRecords_KeepsNumbers(t *testing.T) {
	got, err := decodeRecords([]byte(`[{"amount": 12.50}]`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("12.50"), got[0]["amount"])
}

func TestExpenditureLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := apitest.New(t)
	c := newTestClient(t, fake.BaseURL(), nil)

	created, err := c.Create(ctx, NewCreateRequest(model.Draft{
		Type:     model.TypeExpense,
		Name:     "Coffee",
		Amount:   4.5,
		Date:     time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		Category: "Food & Drinks",
	}))
	require.NoError(t, err)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "2025-03-01T08:00:00.000Z", created["date"])

	pending, err := c.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	name := "Flat white"
	updated, err := c.Update(ctx, id, Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Flat white", updated["name"])

	approved, err := c.ApproveOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", approved["status"])

	pending, err = c.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	list, err := c.ListApproved(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, c.Delete(ctx, id))
	err = c.Delete(ctx, id)
	assert.True(t, IsNotFound(err))
}

func TestApproveAll(t *testing.T) {
	ctx := context.Background()
	fake := apitest.New(t)
	fake.Seed(model.StatusPending, model.Raw{"name": "a"}, model.Raw{"name": "b"})
	fake.Seed(model.StatusApproved, model.Raw{"name": "c"})

	c := newTestClient(t, fake.BaseURL(), nil)
	res, err := c.ApproveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	pending, err := c.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCreateBulkAndListBetween(t *testing.T) {
	ctx := context.Background()
	fake := apitest.New(t)
	c := newTestClient(t, fake.BaseURL(), nil)

	reqs := []CreateRequest{
		{Name: "Jan", Amount: 1, Date: "2025-01-15T00:00:00.000Z", Category: "Others"},
		{Name: "Feb", Amount: 2, Date: "2025-02-15T00:00:00.000Z", Category: "Others"},
	}
	out, err := c.CreateBulk(ctx, reqs)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	got, err := c.ListBetween(ctx,
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Feb", got[0]["name"])
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	fake := apitest.New(t)
	fake.SetCredentials("ana@example.com", "pw")
	fake.RequireToken("server-token")

	c := newTestClient(t, fake.BaseURL(), tokenstore.NewMemory("stale"))

	_, err := c.Login(ctx, "ana@example.com", "wrong")
	assert.True(t, IsUnauthorized(err))

	token, err := c.Login(ctx, "ana@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "server-token", token)

	for _, r := range fake.Requests() {
		if r.Path == "/user/login" {
			assert.Empty(t, r.Auth, "login must not send a token")
		}
	}

	_, err = c.Me(ctx)
	assert.True(t, IsUnauthorized(err), "stale token is rejected")

	authed := newTestClient(t, fake.BaseURL(), tokenstore.NewMemory(token))
	me, err := authed.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", me["username"])
}

func TestLogin_NoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, nil)
	_, err := c.Login(context.Background(), "u", "p")
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestBudget(t *testing.T) {
	ctx := context.Background()
	fake := apitest.New(t)
	c := newTestClient(t, fake.BaseURL(), nil)

	b, err := c.Budget(ctx)
	require.NoError(t, err)
	assert.Zero(t, b.MonthlyBudget)

	b, err = c.SetBudget(ctx, 1200)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, b.MonthlyBudget)

	b, err = c.Budget(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, b.MonthlyBudget)
}

func TestInsights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-01-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2025-01-31", r.URL.Query().Get("end_date"))
		switch r.URL.Path {
		case "/api/insights/category-totals":
			w.Write([]byte(`{"Food & Drinks": 30.5, "Transport": 12}`))
		case "/api/insights/daily-totals":
			w.Write([]byte(`{"20250105": 10, "2025-01-03": 5.25, "junk": 1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	c := newTestClient(t, srv.URL+"/api", nil)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	cats, err := c.CategoryTotals(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Food & Drinks": 30.5, "Transport": 12}, cats)

	days, err := c.DailyTotals(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), days[0].Day)
	assert.Equal(t, 5.25, days[0].Amount)
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), days[1].Day)
}

func TestChat(t *testing.T) {
	fake := apitest.New(t)
	c := newTestClient(t, fake.BaseURL(), nil)

	reply, err := c.Chat(context.Background(), []ChatMessage{{Role: RoleUser, Content: "lunch 12"}})
	require.NoError(t, err)
	assert.Equal(t, "You said: lunch 12", reply["reply"])
}

func TestAudioToExpenditure(t *testing.T) {
	fake := apitest.New(t)
	fake.SetAudioResult(model.Raw{"name": "Taxi", "amount": 18, "category": "Transport"})
	c := newTestClient(t, fake.BaseURL(), nil)

	path := filepath.Join(t.TempDir(), "memo.m4a")
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o600))

	got, err := c.AudioToExpenditure(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Taxi", got[0]["name"])

	_, err = c.AudioToExpenditure(context.Background(), filepath.Join(t.TempDir(), "missing.m4a"))
	assert.ErrorContains(t, err, "opening audio file")
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/llm/transcribe-audio/", r.URL.Path)
		w.Write([]byte(`{"transcription":"bought groceries"}`))
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "memo.m4a")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	c := newTestClient(t, srv.URL, nil)
	text, err := c.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "bought groceries", text)
}

func TestPatchOf(t *testing.T) {
	tx := model.Transaction{
		ID:       "a1",
		Type:     model.TypeExpense,
		Name:     "Lunch",
		Amount:   12,
		Date:     time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC),
		Category: model.Category{Name: "Food & Drinks"},
	}
	raw := PatchOf(tx).Raw()
	assert.Equal(t, "Lunch", raw["name"])
	assert.Equal(t, "Food & Drinks", raw["category"])
	assert.Equal(t, "2025-01-05T12:00:00.000Z", raw["date"])
	assert.NotContains(t, raw, "status")
}

func TestPatchOf_OmitsStatus(t *testing.T) {
	for _, status := range []model.Status{model.StatusPending, model.StatusApproved} {
		tx := model.Transaction{ID: "a1", Type: model.TypeExpense, Name: "Rent", Amount: 600, Status: status}
		p := PatchOf(tx)
		assert.Nil(t, p.Status, "status %s", status)
		assert.NotContains(t, p.Raw(), "status", "status %s", status)

		body, err := json.Marshal(p)
		require.NoError(t, err)
		assert.NotContains(t, string(body), `"status"`, "status %s", status)
	}
}

package store

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkcents/talkcents/internal/api"
	"github.com/talkcents/talkcents/internal/api/apitest"
	"github.com/talkcents/talkcents/internal/categories"
	"github.com/talkcents/talkcents/internal/model"
	"github.com/talkcents/talkcents/internal/normalize"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func newNormalizer() *normalize.Normalizer {
	reg := categories.NewRegistry(categories.Defaults())
	_, _ = reg.Register("Food", "🍕")
	return normalize.New(reg, normalize.WithClock(func() time.Time { return fixedNow }))
}

func newFakeStore(t *testing.T) (*Store, *apitest.Server) {
	t.Helper()
	fake := apitest.New(t)
	client, err := api.New(fake.BaseURL(), nil)
	require.NoError(t, err)
	return New(client, newNormalizer(), WithClock(func() time.Time { return fixedNow })), fake
}

func coffee() model.Raw {
	return model.Raw{
		"uuid":            "a1",
		"name":            "Coffee",
		"amount":          "4.50",
		"category":        "Food",
		"date_of_expense": "2025-01-05",
	}
}

func ids(txs []model.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func TestReload_NormalizesPendingThenApproved(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusApproved, model.Raw{"id": "b1", "name": "Salary", "type": "Income", "amount": 3000, "date": "2025-01-01"})
	fake.Seed(model.StatusPending, coffee())

	require.NoError(t, s.Reload(context.Background()))

	txs := s.Transactions()
	require.Equal(t, []string{"a1", "b1"}, ids(txs))

	got := txs[0]
	assert.Equal(t, model.TypeExpense, got.Type)
	assert.Equal(t, "Coffee", got.Name)
	assert.Equal(t, 4.5, got.Amount)
	assert.Equal(t, model.Category{Name: "Food", Icon: "🍕"}, got.Category)
	assert.Equal(t, "2025-01-05T00:00:00.000Z", model.FormatISO(got.Date))
	assert.Equal(t, model.StatusPending, got.Status)

	assert.Equal(t, model.StatusApproved, txs[1].Status)
	assert.Equal(t, model.TypeIncome, txs[1].Type)
	assert.False(t, s.Stale())
}

func TestReload_Idempotent(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusPending, coffee(), model.Raw{"id": "p2", "price": 7, "category": map[string]any{"name": "Shopping"}})
	fake.Seed(model.StatusApproved, model.Raw{"_id": "b1", "name": "Bus", "amount": 2.4, "category": "Transport"})

	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))
	first := s.Transactions()
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, first, s.Transactions())
}

func TestReload_FailureKeepsLastGood(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusPending, coffee())

	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))
	before := s.Transactions()

	fake.FailNext(http.MethodGet, "/expenditure/approved", http.StatusInternalServerError)
	err := s.Reload(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, api.StatusCode(err))

	assert.Equal(t, before, s.Transactions())
	assert.True(t, s.Stale())
	assert.ErrorIs(t, s.LastError(), err)

	require.NoError(t, s.Reload(ctx))
	assert.False(t, s.Stale())
	assert.NoError(t, s.LastError())
}

// blockingRemote blocks the first ListPending until its context is
// cancelled.
type blockingRemote struct {
	Remote
	entered chan struct{}
	calls   atomic.Int32
}

func (b *blockingRemote) ListPending(ctx context.Context) ([]model.Raw, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []model.Raw{{"id": "new", "name": "fresh"}}, nil
}

func (b *blockingRemote) ListApproved(context.Context) ([]model.Raw, error) {
	return nil, nil
}

func TestReload_SupersededResultsAreDiscarded(t *testing.T) {
	remote := &blockingRemote{entered: make(chan struct{})}
	s := New(remote, newNormalizer())

	ctx := context.Background()
	firstErr := make(chan error, 1)
	go func() { firstErr <- s.Reload(ctx) }()

	<-remote.entered
	require.NoError(t, s.Reload(ctx))

	assert.ErrorIs(t, <-firstErr, ErrStaleReload)
	assert.Equal(t, []string{"new"}, ids(s.Transactions()))
	assert.False(t, s.Stale(), "a superseded reload does not mark the store stale")
}

func TestAdd_ThenReloadRoundTrip(t *testing.T) {
	s, _ := newFakeStore(t)
	ctx := context.Background()

	draft := model.Draft{
		Type:     model.TypeExpense,
		Name:     "Lunch",
		Amount:   12.75,
		Date:     time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		Category: "Food & Drinks",
	}
	tx, err := s.Add(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", tx.ID)
	assert.Equal(t, "🍔", tx.Category.Icon)
	require.Len(t, s.Transactions(), 1)

	require.NoError(t, s.Reload(ctx))
	txs := s.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "Lunch", txs[0].Name)
	assert.Equal(t, 12.75, txs[0].Amount)
	assert.Equal(t, "Food & Drinks", txs[0].Category.Name)
}

func TestAdd_KeepsLocalIDWithoutResponseID(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.OmitIDOnCreate()

	tx, err := s.Add(context.Background(), model.Draft{
		LocalID: "local-1", Type: model.TypeExpense, Name: "Tea", Amount: 3, Category: "Others",
	})
	require.NoError(t, err)
	assert.Equal(t, "local-1", tx.ID)

	got, ok := s.Get("local-1")
	require.True(t, ok)
	assert.Equal(t, "Tea", got.Name)
}

func TestAdd_AssignsLocalIDWhenDraftHasNone(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.OmitIDOnCreate()

	tx, err := s.Add(context.Background(), model.Draft{
		Type: model.TypeExpense, Name: "Tea", Amount: 3, Category: "Others",
	})
	require.NoError(t, err)
	assert.Equal(t, "1741944413589", tx.ID)
}

func TestAdd_SparseResponseFallsBackToSentFields(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.SparseResponses()

	tx, err := s.Add(context.Background(), model.Draft{
		Type: model.TypeIncome, Name: "Refund", Amount: 20, Category: "Shopping", Note: "shoes",
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", tx.ID)
	assert.Equal(t, "Refund", tx.Name)
	assert.Equal(t, model.TypeIncome, tx.Type)
	assert.Equal(t, 20.0, tx.Amount)
	assert.Equal(t, "shoes", tx.Note)
	assert.Equal(t, "🛍️", tx.Category.Icon)
}

func TestAdd_InvalidDraftIsNotSent(t *testing.T) {
	s, fake := newFakeStore(t)

	_, err := s.Add(context.Background(), model.Draft{Type: model.TypeExpense, Amount: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Zero(t, fake.Count(http.MethodPost, "/expenditure"))
	assert.Empty(t, s.Transactions())
}

func TestAdd_RemoteFailureLeavesCollection(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.FailNext(http.MethodPost, "/expenditure", http.StatusBadRequest)

	_, err := s.Add(context.Background(), model.Draft{
		Type: model.TypeExpense, Name: "Tea", Amount: 3, Category: "Others",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, api.StatusCode(err))
	assert.Empty(t, s.Transactions())
}

func TestEdit_ReplacesByID(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusPending, coffee(), model.Raw{"id": "p2", "name": "Bread", "amount": 3, "category": "Food"})
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))

	tx, ok := s.Get("a1")
	require.True(t, ok)
	tx.Name = "Latte"
	tx.Amount = 5.2

	updated, err := s.Edit(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, "a1", updated.ID)
	assert.Equal(t, "Latte", updated.Name)
	assert.Equal(t, model.StatusPending, updated.Status)

	assert.Equal(t, []string{"a1", "p2"}, ids(s.Transactions()))
	got, _ := s.Get("a1")
	assert.Equal(t, 5.2, got.Amount)
}

func TestEdit_DoesNotSendStatus(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusApproved, model.Raw{"id": "b1", "name": "Rent", "amount": 600, "category": "Housing"})
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))

	tx, ok := s.Get("b1")
	require.True(t, ok)
	tx.Status = model.StatusPending
	tx.Amount = 650

	updated, err := s.Edit(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, updated.Status)

	recs := fake.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, string(model.StatusApproved), recs[0]["status"])
}

func TestEdit_SparseResponseKeepsStatus(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusApproved, model.Raw{"id": "b1", "name": "Rent", "amount": 600, "category": "Housing"})
	fake.SparseResponses()
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))

	tx, _ := s.Get("b1")
	tx.Name = "Rent March"
	updated, err := s.Edit(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, updated.Status)
	assert.Equal(t, "Rent March", updated.Name)
}

func TestEdit_RemoteFailureLeavesCollection(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusPending, coffee())
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))
	before := s.Transactions()

	tx := before[0]
	tx.Name = "Changed"
	fake.FailNext(http.MethodPatch, "/expenditure/a1", http.StatusInternalServerError)
	_, err := s.Edit(ctx, tx)
	require.Error(t, err)
	assert.Equal(t, before, s.Transactions())
}

func TestRemove(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusPending, coffee(), model.Raw{"id": "p2", "name": "Bread", "amount": 3})
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))

	require.NoError(t, s.Remove(ctx, "a1"))
	assert.Equal(t, []string{"p2"}, ids(s.Transactions()))
	assert.Len(t, fake.Records(), 1)
}

func TestRemove_IDNotHeldLocally(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusPending, coffee())
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))
	before := s.Transactions()

	// Present on the server but not in the local collection.
	fake.Seed(model.StatusPending, model.Raw{"id": "x9", "name": "Elsewhere"})

	require.NoError(t, s.Remove(ctx, "x9"))
	assert.Equal(t, 1, fake.Count(http.MethodDelete, "/expenditure/x9"))
	assert.Equal(t, before, s.Transactions())
}

func TestRemove_RemoteFailureLeavesCollection(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusPending, coffee())
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))
	before := s.Transactions()

	err := s.Remove(ctx, "missing")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.Equal(t, 1, fake.Count(http.MethodDelete, "/expenditure/missing"))
	assert.Equal(t, before, s.Transactions())
}

func TestApprove_MovesBetweenLists(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusPending, coffee())
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, []string{"a1"}, ids(s.Pending()))
	assert.Empty(t, s.Approved())

	require.NoError(t, s.Approve(ctx, "a1"))

	assert.Empty(t, s.Pending())
	assert.Equal(t, []string{"a1"}, ids(s.Approved()))
}

func TestApprove_RemoteFailureSkipsReload(t *testing.T) {
	s, fake := newFakeStore(t)
	ctx := context.Background()

	err := s.Approve(ctx, "nope")
	require.Error(t, err)
	assert.Zero(t, fake.Count(http.MethodGet, "/expenditure/pending"))
}

func TestApproveAll(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusPending, coffee(), model.Raw{"id": "p2", "name": "Bread"})
	fake.Seed(model.StatusApproved, model.Raw{"id": "b1", "name": "Bus"})
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))

	n, err := s.ApproveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, s.Pending())
	assert.Len(t, s.Approved(), 3)
}

func TestImportDrafts(t *testing.T) {
	s, fake := newFakeStore(t)
	ctx := context.Background()

	drafts := []model.Draft{
		{Type: model.TypeExpense, Name: "Taxi", Amount: 18, Category: "Transport"},
		{Type: model.TypeIncome, Name: "Gift", Amount: 50, Category: "Others"},
	}
	txs, err := s.ImportDrafts(ctx, drafts)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, []string{"srv-1", "srv-2"}, ids(txs))
	assert.Equal(t, "🚃", txs[0].Category.Icon)
	assert.Equal(t, 1, fake.Count(http.MethodPost, "/expenditure/bulk"))
	assert.Len(t, s.Transactions(), 2)
}

func TestImportDrafts_RejectsInvalidBeforeSending(t *testing.T) {
	s, fake := newFakeStore(t)

	_, err := s.ImportDrafts(context.Background(), []model.Draft{
		{Type: model.TypeExpense, Name: "ok", Amount: 1, Category: "Others"},
		{Type: model.TypeExpense, Name: "", Amount: 1, Category: "Others"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft 2")
	assert.Zero(t, fake.Count(http.MethodPost, "/expenditure/bulk"))
}

func TestConcurrentUse(t *testing.T) {
	s, fake := newFakeStore(t)
	fake.Seed(model.StatusPending, coffee())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := s.Reload(ctx)
			if err != nil {
				assert.ErrorIs(t, err, ErrStaleReload)
			}
		}()
		go func() {
			defer wg.Done()
			_ = s.Transactions()
			_ = s.Pending()
			_, _ = s.Get("a1")
		}()
	}
	wg.Wait()

	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, []string{"a1"}, ids(s.Transactions()))
}

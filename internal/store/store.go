// Package store holds the in-memory transaction collection and keeps it
// consistent with the backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/talkcents/talkcents/internal/api"
	"github.com/talkcents/talkcents/internal/id"
	"github.com/talkcents/talkcents/internal/model"
	"github.com/talkcents/talkcents/internal/normalize"
)

// ErrStaleReload is returned by a reload that a newer reload superseded.
// Its results were discarded.
var ErrStaleReload = errors.New("reload superseded by a newer reload")

// Remote is the part of the backend client the store drives.
type Remote interface {
	ListPending(ctx context.Context) ([]model.Raw, error)
	ListApproved(ctx context.Context) ([]model.Raw, error)
	Create(ctx context.Context, req api.CreateRequest) (model.Raw, error)
	CreateBulk(ctx context.Context, reqs []api.CreateRequest) ([]model.Raw, error)
	Update(ctx context.Context, id string, p api.Patch) (model.Raw, error)
	Delete(ctx context.Context, id string) error
	ApproveOne(ctx context.Context, id string) (model.Raw, error)
	ApproveAll(ctx context.Context) (api.ApproveAllResult, error)
}

// Store is safe for concurrent use.
type Store struct {
	remote Remote
	norm   *normalize.Normalizer
	log    zerolog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	txs     []model.Transaction
	stale   bool
	lastErr error

	// reloadMu orders reload generations and guards commits.
	reloadMu sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock overrides the clock used for local ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(remote Remote, norm *normalize.Normalizer, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		norm:   norm,
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reload fetches the pending and approved lists concurrently and replaces
// the collection with pending entries followed by approved ones.
//
// Starting a reload cancels any reload still in flight. A reload that
// finishes after a newer one started returns ErrStaleReload and changes
// nothing. A failed reload keeps the previous collection and marks the
// store stale until the next successful reload.
func (s *Store) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	rctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.reloadMu.Unlock()
	defer cancel()

	var pending, approved []model.Raw
	g, gctx := errgroup.WithContext(rctx)
	g.Go(func() error {
		raws, err := s.remote.ListPending(gctx)
		if err != nil {
			return fmt.Errorf("listing pending: %w", err)
		}
		pending = raws
		return nil
	})
	g.Go(func() error {
		raws, err := s.remote.ListApproved(gctx)
		if err != nil {
			return fmt.Errorf("listing approved: %w", err)
		}
		approved = raws
		return nil
	})
	err := g.Wait()

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if gen != s.gen {
		s.log.Debug().Str("op", "reload").Uint64("generation", gen).Msg("discarding superseded reload")
		return ErrStaleReload
	}
	s.cancel = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.stale = true
		s.lastErr = err
		s.log.Warn().Str("op", "reload").Err(err).Int("kept", len(s.txs)).Msg("reload failed, keeping last good collection")
		return err
	}

	txs := s.norm.NormalizeAll(pending, model.StatusPending)
	txs = append(txs, s.norm.NormalizeAll(approved, model.StatusApproved)...)
	s.txs = txs
	s.stale = false
	s.lastErr = nil
	s.log.Debug().Str("op", "reload").Int("pending", len(pending)).Int("approved", len(approved)).Msg("reloaded")
	return nil
}

// Stale reports whether the last reload failed, meaning the collection
// may be out of date.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// LastError returns the error of the last failed reload, or nil once a
// reload succeeds.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Transactions returns a copy of the collection.
func (s *Store) Transactions() []model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Transaction(nil), s.txs...)
}

// Pending returns the entries awaiting approval.
func (s *Store) Pending() []model.Transaction {
	return s.withStatus(model.StatusPending)
}

// Approved returns the approved entries.
func (s *Store) Approved() []model.Transaction {
	return s.withStatus(model.StatusApproved)
}

func (s *Store) withStatus(status model.Status) []model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Transaction
	for _, tx := range s.txs {
		if tx.Status == status {
			out = append(out, tx)
		}
	}
	return out
}

// Get returns the transaction with the given id.
func (s *Store) Get(txID string) (model.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.txs {
		if tx.ID == txID {
			return tx, true
		}
	}
	return model.Transaction{}, false
}

// Add validates and creates d, then appends the result. Fields missing
// from the backend response fall back to what was sent, and a response
// without an id keeps the draft's local id.
func (s *Store) Add(ctx context.Context, d model.Draft) (model.Transaction, error) {
	if err := model.JoinValidation(d.Validate()); err != nil {
		return model.Transaction{}, err
	}
	if d.LocalID == "" {
		d.LocalID = id.NewLocal(s.now())
	}

	req := api.NewCreateRequest(d)
	resp, err := s.remote.Create(ctx, req)
	if err != nil {
		s.log.Warn().Str("op", "add").Str("id", d.LocalID).Err(err).Msg("create failed")
		return model.Transaction{}, fmt.Errorf("creating %q: %w", d.Name, err)
	}

	tx := s.fromResponse(req.Raw(), resp, d.LocalID)

	s.mu.Lock()
	s.txs = append(s.txs, tx)
	s.mu.Unlock()

	s.log.Debug().Str("op", "add").Str("id", tx.ID).Str("status", string(tx.Status)).Msg("added")
	return tx, nil
}

// ImportDrafts creates all drafts in one bulk call and appends the
// results. Nothing is sent if any draft is invalid.
func (s *Store) ImportDrafts(ctx context.Context, drafts []model.Draft) ([]model.Transaction, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	reqs := make([]api.CreateRequest, len(drafts))
	for i, d := range drafts {
		if err := model.JoinValidation(d.Validate()); err != nil {
			return nil, fmt.Errorf("draft %d (%q): %w", i+1, d.Name, err)
		}
		reqs[i] = api.NewCreateRequest(d)
	}

	resps, err := s.remote.CreateBulk(ctx, reqs)
	if err != nil {
		s.log.Warn().Str("op", "import").Int("count", len(drafts)).Err(err).Msg("bulk create failed")
		return nil, fmt.Errorf("bulk creating %d drafts: %w", len(drafts), err)
	}

	base := s.now()
	out := make([]model.Transaction, len(drafts))
	for i := range drafts {
		var resp model.Raw
		if i < len(resps) {
			resp = resps[i]
		}
		localID := drafts[i].LocalID
		if localID == "" {
			localID = id.NewLocal(base.Add(time.Duration(i) * time.Millisecond))
		}
		out[i] = s.fromResponse(reqs[i].Raw(), resp, localID)
	}

	s.mu.Lock()
	s.txs = append(s.txs, out...)
	s.mu.Unlock()

	s.log.Debug().Str("op", "import").Int("count", len(out)).Msg("imported")
	return out, nil
}

// Edit sends every editable field of tx and replaces the entry with the
// same id. An entry not held locally is appended.
func (s *Store) Edit(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	if err := model.JoinValidation(model.DraftOf(tx).Validate()); err != nil {
		return model.Transaction{}, err
	}

	patch := api.PatchOf(tx)
	resp, err := s.remote.Update(ctx, tx.ID, patch)
	if err != nil {
		s.log.Warn().Str("op", "edit").Str("id", tx.ID).Err(err).Msg("update failed")
		return model.Transaction{}, fmt.Errorf("updating %s: %w", tx.ID, err)
	}

	base := patch.Raw()
	base["id"] = tx.ID
	updated := s.fromResponse(base, resp, tx.ID)
	if updated.Status == "" {
		updated.Status = tx.Status
	}

	s.mu.Lock()
	replaced := false
	for i := range s.txs {
		if s.txs[i].ID == tx.ID {
			s.txs[i] = updated
			replaced = true
			break
		}
	}
	if !replaced {
		s.txs = append(s.txs, updated)
	}
	s.mu.Unlock()

	s.log.Debug().Str("op", "edit").Str("id", updated.ID).Str("status", string(updated.Status)).Msg("edited")
	return updated, nil
}

// Remove deletes txID on the backend, then drops it locally. The remote
// call is made even when the id is not held locally. A failed delete
// leaves the collection untouched.
func (s *Store) Remove(ctx context.Context, txID string) error {
	if err := s.remote.Delete(ctx, txID); err != nil {
		s.log.Warn().Str("op", "remove").Str("id", txID).Err(err).Msg("delete failed")
		return fmt.Errorf("deleting %s: %w", txID, err)
	}

	s.mu.Lock()
	kept := s.txs[:0:0]
	for _, tx := range s.txs {
		if tx.ID != txID {
			kept = append(kept, tx)
		}
	}
	removed := len(s.txs) - len(kept)
	s.txs = kept
	s.mu.Unlock()

	s.log.Debug().Str("op", "remove").Str("id", txID).Int("removed", removed).Msg("removed")
	return nil
}

// Approve approves txID and reloads so the entry moves between lists.
func (s *Store) Approve(ctx context.Context, txID string) error {
	if _, err := s.remote.ApproveOne(ctx, txID); err != nil {
		s.log.Warn().Str("op", "approve").Str("id", txID).Err(err).Msg("approve failed")
		return fmt.Errorf("approving %s: %w", txID, err)
	}
	s.log.Debug().Str("op", "approve").Str("id", txID).Msg("approved")
	return s.reloadAfter(ctx, "approve")
}

// ApproveAll approves every pending entry, reloads, and returns how many
// the backend reported approving.
func (s *Store) ApproveAll(ctx context.Context) (int, error) {
	res, err := s.remote.ApproveAll(ctx)
	if err != nil {
		s.log.Warn().Str("op", "approve_all").Err(err).Msg("approve all failed")
		return 0, fmt.Errorf("approving all: %w", err)
	}
	s.log.Debug().Str("op", "approve_all").Int("count", res.Count).Msg("approved all")
	return res.Count, s.reloadAfter(ctx, "approve_all")
}

// reloadAfter reloads following a mutation. A newer reload started after
// the mutation, so being superseded by it is not an error.
func (s *Store) reloadAfter(ctx context.Context, op string) error {
	err := s.Reload(ctx)
	if errors.Is(err, ErrStaleReload) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reloading after %s: %w", op, err)
	}
	return nil
}

func (s *Store) fromResponse(sent, resp model.Raw, fallbackID string) model.Transaction {
	tx := s.norm.Normalize(normalize.Overlay(sent, resp))
	if !normalize.HasID(resp) {
		tx.ID = fallbackID
	}
	return tx
}

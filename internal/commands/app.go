package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/talkcents/talkcents/internal/activity"
	"github.com/talkcents/talkcents/internal/api"
	"github.com/talkcents/talkcents/internal/categories"
	"github.com/talkcents/talkcents/internal/config"
	"github.com/talkcents/talkcents/internal/logging"
	"github.com/talkcents/talkcents/internal/model"
	"github.com/talkcents/talkcents/internal/normalize"
	"github.com/talkcents/talkcents/internal/store"
	"github.com/talkcents/talkcents/internal/tokenstore"
)

// errNoTokenKey is returned when a command must persist a token but no
// key is configured.
var errNoTokenKey = errors.New("no token key configured: run `talkcents init` or set " + config.EnvTokenKey)

// app carries everything a command needs. setup fills it from the
// resolved configuration before any RunE runs.
type app struct {
	cfgPath  string
	logLevel string

	cfg      *config.Config
	log      zerolog.Logger
	tokens   tokenstore.Store
	client   *api.Client
	registry *categories.Registry
	norm     *normalize.Normalizer
	store    *store.Store
	now      func() time.Time
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.now == nil {
		a.now = time.Now
	}
	if a.cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		a.cfgPath = p
	}

	// init writes the config, so it must not require one to be valid.
	if cmd.Name() == "init" || cmd.Name() == "help" {
		a.log = zerolog.Nop()
		return nil
	}

	cfg, err := config.Resolve(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	log, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.log = log

	if cfg.Auth.TokenKey != "" {
		f, err := tokenstore.NewEncryptedFile(cfg.Auth.TokenFile, cfg.Auth.TokenKey)
		if err != nil {
			return fmt.Errorf("opening token store: %w", err)
		}
		a.tokens = f
	} else {
		a.log.Debug().Msg("no token key configured, requests are unauthenticated")
		a.tokens = tokenstore.NewMemory("")
	}

	client, err := api.New(cfg.API.BaseURL, a.tokens,
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(a.log.With().Str("component", "api").Logger()),
	)
	if err != nil {
		return err
	}
	a.client = client

	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	a.registry = reg
	a.norm = normalize.New(reg, normalize.WithClock(a.now))
	a.store = store.New(client, a.norm,
		store.WithLogger(a.log.With().Str("component", "store").Logger()),
		store.WithClock(a.now),
	)
	return nil
}

// persistentTokens returns the token store only if it survives the
// process.
func (a *app) persistentTokens() (tokenstore.Store, error) {
	if _, ok := a.tokens.(*tokenstore.EncryptedFile); !ok {
		return nil, errNoTokenKey
	}
	return a.tokens, nil
}

// saveCategories writes the registry back to the categories file when
// one is configured.
func (a *app) saveCategories() error {
	if a.cfg.CategoriesFile == "" {
		return nil
	}
	if err := a.registry.Save(a.cfg.CategoriesFile); err != nil {
		return err
	}
	a.log.Debug().Str("path", a.cfg.CategoriesFile).Int("count", a.registry.Len()).Msg("saved categories")
	return nil
}

// record appends to the activity log. The change already reached the
// backend, so a write failure is only logged.
func (a *app) record(entries ...activity.Entry) {
	if a.cfg.ActivityFile == "" {
		return
	}
	now := a.now()
	for i := range entries {
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = now
		}
	}
	if err := activity.Append(a.cfg.ActivityFile, entries...); err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.ActivityFile).Msg("could not record activity")
	}
}

// recordTx logs one transaction-level change.
func (a *app) recordTx(action string, tx model.Transaction) {
	a.record(activity.Entry{Action: action, TransactionID: tx.ID, Details: describeBrief(tx)})
}

// reload fills the store, surfacing an auth hint on 401/403.
func (a *app) reload(ctx context.Context) error {
	err := a.store.Reload(ctx)
	if api.IsUnauthorized(err) {
		return fmt.Errorf("%w (try `talkcents login`)", err)
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

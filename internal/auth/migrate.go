package auth

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"

	"github.com/teemow/mailsweep/internal/logging"
)

// Migrator adopts a pre-multi-account token file into the registry. Earlier
// releases kept a single token.json with no account identity; on first use
// with an empty registry the token is attributed to its account and moved
// into a per-account slot.
type Migrator struct {
	cfg      Config
	store    *Store
	registry *Registry
	logger   *slog.Logger

	identity     IdentityResolver
	newExchanger func() (Exchanger, error)
}

// NewMigrator creates a migrator over the store and registry.
func NewMigrator(cfg Config, store *Store, registry *Registry) *Migrator {
	cfg = cfg.withDefaults()
	m := &Migrator{
		cfg:      cfg,
		store:    store,
		registry: registry,
		logger:   cfg.Logger,
		identity: gmailIdentity{},
	}
	m.newExchanger = func() (Exchanger, error) {
		conf, err := cfg.oauthConfig()
		if err != nil {
			return nil, err
		}
		return &codeExchanger{conf: conf}, nil
	}
	return m
}

// Migrate attempts the legacy migration. It returns the migrated account's
// email and true on success, and ("", false) when there is nothing usable to
// migrate. The legacy file is left untouched if the identity cannot be
// resolved, so a transient failure can be retried later.
//
// Migrate is idempotent: once the legacy file has been moved into a slot, a
// second call finds nothing and reports false.
func (m *Migrator) Migrate(ctx context.Context) (string, bool) {
	cred := m.store.Load(m.cfg.LegacyTokenFile)
	if cred == nil {
		return "", false
	}

	var src oauth2.TokenSource
	if ex, err := m.newExchanger(); err == nil {
		src = ex.TokenSource(ctx, cred.Token)
	}

	if !cred.Valid(m.cfg.Scopes) {
		if !cred.Renewable() {
			m.logger.Info("legacy token is unusable, removing it")
			m.store.Delete(m.cfg.LegacyTokenFile)
			return "", false
		}
		refreshed := m.store.Refresh(m.cfg.LegacyTokenFile, cred, src)
		if refreshed == nil {
			return "", false
		}
		cred = refreshed
		src = nil
		if ex, err := m.newExchanger(); err == nil {
			src = ex.TokenSource(ctx, cred.Token)
		}
	}

	client := m.httpClient(ctx, cred, src)
	email, err := m.identity.ResolveEmail(ctx, client)
	if err != nil || email == "" {
		m.logger.Warn("could not attribute legacy token to an account",
			logging.Err(err))
		return "", false
	}

	slot := SlotForEmail(email)
	if err := os.Rename(m.store.path(m.cfg.LegacyTokenFile), m.store.path(slot)); err != nil {
		m.logger.Warn("failed to move legacy token into account slot",
			logging.Err(err))
		return "", false
	}

	accounts, _ := m.registry.Load()
	found := false
	for i, a := range accounts {
		if a.Email == email {
			accounts[i].TokenFile = slot
			found = true
			break
		}
	}
	if !found {
		accounts = append(accounts, Account{Email: email, TokenFile: slot})
	}
	if err := m.registry.Save(accounts, email); err != nil {
		m.logger.Error("migrated token could not be registered",
			logging.Err(err))
		return "", false
	}

	m.logger.Info("migrated legacy token",
		logging.UserHash(email))
	return email, true
}

func (m *Migrator) httpClient(ctx context.Context, cred *Credential, src oauth2.TokenSource) *http.Client {
	if src != nil {
		return oauth2.NewClient(ctx, src)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(cred.Token))
}

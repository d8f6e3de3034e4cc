package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/mailsweep/internal/logging"
)

// User-facing messages returned when a request cannot be served with an
// authorized client yet.
const (
	msgSignInStarted = "Sign-in started. Please complete authorization in your browser."
	msgSignInRunning = "Sign-in already in progress. Please complete authorization in your browser."
)

// Resettable is implemented by components holding per-account state that
// must be cleared when the last account signs out.
type Resettable interface {
	Reset()
}

// Resolver is the composition root of the credential lifecycle. It wires the
// registry, store, session, migrator, and flow together and exposes the
// operations the rest of the application uses.
type Resolver struct {
	cfg      Config
	store    *Store
	registry *Registry
	session  *Session
	migrator *Migrator
	flow     *Flow

	mu         sync.Mutex
	resettable []Resettable
}

// NewResolver builds the full lifecycle stack from cfg.
func NewResolver(cfg Config) *Resolver {
	cfg = cfg.withDefaults()
	store := NewStore(cfg.Dir, cfg.Logger)
	registry := NewRegistry(cfg.Dir, cfg.RegistryFile, cfg.Logger)
	return &Resolver{
		cfg:      cfg,
		store:    store,
		registry: registry,
		session:  NewSession(registry),
		migrator: NewMigrator(cfg, store, registry),
		flow:     NewFlow(cfg, store, registry),
	}
}

// RegisterResettable adds a component whose state is cleared when the last
// account signs out.
func (r *Resolver) RegisterResettable(res Resettable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resettable = append(r.resettable, res)
}

// Resolve returns an authorized HTTP client for the active account.
//
// When no usable credential exists it starts (or reports on) the
// interactive sign-in flow and returns a nil client with a user-facing
// message explaining what to do. The client, when returned, refreshes its
// token transparently.
func (r *Resolver) Resolve(ctx context.Context) (*http.Client, string) {
	if client := r.activeClient(ctx); client != nil {
		return client, ""
	}

	// Nothing usable in the registry. A legacy single-account token may
	// still be adoptable before falling back to interactive sign-in.
	if _, ok := r.session.Active(); !ok {
		if _, migrated := r.migrator.Migrate(ctx); migrated {
			if client := r.activeClient(ctx); client != nil {
				return client, ""
			}
		}
	}

	switch err := r.flow.Start(ctx); err {
	case nil:
		return nil, msgSignInStarted
	case ErrFlowInProgress:
		return nil, msgSignInRunning
	default:
		return nil, err.Error()
	}
}

// activeClient returns a client for the active account, refreshing the
// credential if possible, or nil when no usable credential exists.
func (r *Resolver) activeClient(ctx context.Context) *http.Client {
	active, ok := r.session.Active()
	if !ok {
		return nil
	}

	cred := r.store.Load(active.TokenFile)
	if cred == nil {
		return nil
	}

	src := r.tokenSource(ctx, cred)
	if !cred.Valid(r.cfg.Scopes) {
		if !cred.Renewable() {
			r.cfg.Logger.Info("stored credential is unusable and cannot be refreshed",
				logging.UserHash(active.Email))
			r.observeRefresh("expired")
			return nil
		}
		cred = r.store.Refresh(active.TokenFile, cred, src)
		if cred == nil || !cred.Valid(r.cfg.Scopes) {
			r.observeRefresh("failure")
			return nil
		}
		r.observeRefresh("success")
		src = r.tokenSource(ctx, cred)
	}

	if src == nil {
		src = oauth2.StaticTokenSource(cred.Token)
	}
	return oauth2.NewClient(ctx, src)
}

// observeRefresh reports a token refresh outcome to the configured observer.
func (r *Resolver) observeRefresh(result string) {
	if r.cfg.OnTokenRefresh != nil {
		r.cfg.OnTokenRefresh(result)
	}
}

// tokenSource builds a refreshing token source when client secrets are
// available, or nil when they are not.
func (r *Resolver) tokenSource(ctx context.Context, cred *Credential) oauth2.TokenSource {
	ex, err := r.flow.newExchanger()
	if err != nil {
		return nil
	}
	return ex.TokenSource(ctx, cred.Token)
}

// ListAccounts returns the registered accounts and the active email.
func (r *Resolver) ListAccounts() ([]Account, string) {
	accounts := r.session.Accounts()
	active := ""
	if a, ok := r.session.Active(); ok {
		active = a.Email
	}
	return accounts, active
}

// SwitchActive makes email the active account.
func (r *Resolver) SwitchActive(email string) error {
	accounts, _ := r.registry.Load()
	for _, a := range accounts {
		if a.Email == email {
			return r.registry.Save(accounts, email)
		}
	}
	return fmt.Errorf("Account %s not found", email)
}

// RemoveAccount deletes an account's credential and registry entry. If the
// removed account was active, the first remaining account becomes active.
func (r *Resolver) RemoveAccount(email string) error {
	accounts, active := r.registry.Load()
	idx := -1
	for i, a := range accounts {
		if a.Email == email {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("Account %s not found", email)
	}

	r.store.Delete(accounts[idx].TokenFile)
	accounts = append(accounts[:idx], accounts[idx+1:]...)

	if active == email {
		active = ""
		if len(accounts) > 0 {
			active = accounts[0].Email
		}
	}
	if err := r.registry.Save(accounts, active); err != nil {
		return err
	}
	if len(accounts) == 0 {
		r.resetAll()
	}
	return nil
}

// SignOut removes the active account. When the last account is removed, any
// lingering legacy token file is deleted too and registered per-account
// state is reset.
func (r *Resolver) SignOut() (string, error) {
	active, ok := r.session.Active()
	if !ok {
		// Nothing registered; clear legacy state so the next resolve starts
		// from a clean slate.
		r.store.Delete(r.cfg.LegacyTokenFile)
		r.resetAll()
		return "", nil
	}
	if err := r.RemoveAccount(active.Email); err != nil {
		return "", err
	}
	if accounts, _ := r.registry.Load(); len(accounts) == 0 {
		r.store.Delete(r.cfg.LegacyTokenFile)
	}
	return active.Email, nil
}

// PendingAuthorization reports the state of the sign-in flow.
func (r *Resolver) PendingAuthorization() Status {
	return r.flow.Status()
}

// AuthStatus summarizes whether the application can serve mailbox requests.
type AuthStatus struct {
	// NeedsSetup is true when no OAuth client secrets are available.
	NeedsSetup bool `json:"needsSetup"`

	// AuthConfigured is true when client secrets were found and parsed.
	AuthConfigured bool `json:"authConfigured"`

	// PendingAuthURL is the authorization URL of an in-flight sign-in, if any.
	PendingAuthURL string `json:"pendingAuthUrl,omitempty"`
}

// Status reports the setup and sign-in state for status endpoints.
func (r *Resolver) Status() AuthStatus {
	st := AuthStatus{}
	if _, err := r.cfg.resolveCredentials(); err == nil {
		st.AuthConfigured = true
	} else {
		st.NeedsSetup = true
	}
	if flow := r.flow.Status(); flow.State == StateAwaitingAuthorization {
		st.PendingAuthURL = flow.AuthURL
	}
	return st
}

// CurrentUser returns the active account email, or false when no account is
// registered.
func (r *Resolver) CurrentUser() (string, bool) {
	active, ok := r.session.Active()
	if !ok {
		return "", false
	}
	return active.Email, true
}

// Accounts exposes the read-through session view.
func (r *Resolver) Accounts() *Session { return r.session }

func (r *Resolver) resetAll() {
	r.mu.Lock()
	targets := make([]Resettable, len(r.resettable))
	copy(targets, r.resettable)
	r.mu.Unlock()
	for _, t := range targets {
		t.Reset()
	}
}

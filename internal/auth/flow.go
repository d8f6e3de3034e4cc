package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/mailsweep/internal/logging"
)

// FlowState is the observable phase of the authorization flow.
type FlowState string

const (
	// StateIdle means no flow is running and the last one, if any, succeeded.
	StateIdle FlowState = "idle"

	// StateAwaitingAuthorization means the flow is waiting for the user to
	// complete consent in the browser.
	StateAwaitingAuthorization FlowState = "awaiting_authorization"

	// StateExchangingCode means the callback arrived and the authorization
	// code is being exchanged for a token.
	StateExchangingCode FlowState = "exchanging_code"

	// StateResolvingIdentity means the token is being used to look up the
	// account's email address.
	StateResolvingIdentity FlowState = "resolving_identity"

	// StateRegistering means the credential is being persisted and the
	// account added to the registry.
	StateRegistering FlowState = "registering"

	// StateFailed means the last flow ended in an error. A new flow may be
	// started.
	StateFailed FlowState = "failed"
)

const (
	listenAttempts = 5
	listenBackoff  = 200 * time.Millisecond
)

// callbackResult carries the query parameters of the authorization redirect.
type callbackResult struct {
	code   string
	state  string
	errMsg string
}

// Status is a snapshot of the flow for UIs and the HTTP API.
type Status struct {
	State FlowState
	// AuthURL is the authorization URL of the running flow, for surfacing
	// to users who cannot be redirected automatically. Empty when no flow
	// is running.
	AuthURL string
	// LastError describes why the last flow failed. Nil unless State is
	// StateFailed.
	LastError *FlowError
}

// Flow runs the interactive authorization flow: it issues the authorization
// URL, listens for the local redirect, exchanges the code, resolves the
// account identity, and registers the credential.
//
// At most one flow runs at a time across the whole process. Start either
// acquires the flow or returns ErrFlowInProgress; it never blocks on a
// running flow.
type Flow struct {
	cfg      Config
	store    *Store
	registry *Registry
	logger   *slog.Logger

	// Seams for tests. Production defaults are set by NewFlow.
	newExchanger func() (Exchanger, error)
	identity     IdentityResolver
	openBrowser  func(url string) error

	mu        sync.Mutex
	running   bool
	state     FlowState
	csrfState string
	authURL   string
	lastErr   *FlowError
}

// NewFlow creates a flow bound to the store and registry.
func NewFlow(cfg Config, store *Store, registry *Registry) *Flow {
	cfg = cfg.withDefaults()
	f := &Flow{
		cfg:         cfg,
		store:       store,
		registry:    registry,
		logger:      cfg.Logger,
		identity:    gmailIdentity{},
		openBrowser: openBrowser,
		state:       StateIdle,
	}
	f.newExchanger = func() (Exchanger, error) {
		conf, err := cfg.oauthConfig()
		if err != nil {
			return nil, err
		}
		return &codeExchanger{conf: conf}, nil
	}
	return f
}

// Status returns a snapshot of the flow.
func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{State: f.state, AuthURL: f.authURL, LastError: f.lastErr}
}

// Running reports whether a flow is currently in progress.
func (f *Flow) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Start begins an authorization flow on a background goroutine and returns
// immediately. If a flow is already running it returns ErrFlowInProgress.
// Configuration problems (missing client secrets) surface here, before any
// goroutine is spawned.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return ErrFlowInProgress
	}

	ex, err := f.newExchanger()
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}

	state, err := randomState()
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("failed to generate state: %w", err)
	}

	f.running = true
	f.state = StateAwaitingAuthorization
	f.csrfState = state
	f.authURL = ex.AuthCodeURL(state)
	f.lastErr = nil
	authURL := f.authURL
	f.mu.Unlock()

	f.logger.Info("authorization flow started",
		logging.Operation("sign_in"))

	go f.run(ctx, ex, state, authURL)
	return nil
}

// run drives the flow to completion and always releases the guard.
func (f *Flow) run(ctx context.Context, ex Exchanger, csrfState, authURL string) {
	var failure *FlowError
	defer func() { f.finish(failure) }()

	if !f.cfg.WebAuth {
		if err := f.openBrowser(authURL); err != nil {
			f.logger.Warn("could not open browser, visit the URL manually",
				logging.Err(err))
		}
	}

	result, ferr := f.awaitCallback(ctx, csrfState)
	if ferr != nil {
		failure = ferr
		return
	}

	if result.errMsg != "" {
		failure = &FlowError{Failure: FailureDenied,
			Err: fmt.Errorf("authorization server returned %q", result.errMsg)}
		return
	}
	if result.state != csrfState {
		failure = &FlowError{Failure: FailureStateMismatch,
			Err: errors.New("callback state does not match")}
		return
	}
	if result.code == "" {
		failure = &FlowError{Failure: FailureDenied,
			Err: errors.New("callback carried no authorization code")}
		return
	}

	f.setState(StateExchangingCode)
	tok, err := ex.Exchange(ctx, result.code)
	if err != nil {
		failure = &FlowError{Failure: FailureExchange, Err: err}
		return
	}
	cred := &Credential{Token: tok, Scopes: f.cfg.Scopes}

	f.setState(StateResolvingIdentity)
	client := oauth2.NewClient(ctx, ex.TokenSource(ctx, tok))
	email, err := f.identity.ResolveEmail(ctx, client)
	if err != nil || email == "" {
		f.logger.Warn("could not resolve account identity",
			logging.Err(err))
		email = UnknownIdentity
	}

	f.setState(StateRegistering)
	if ferr := f.register(email, cred); ferr != nil {
		failure = ferr
		return
	}

	f.logger.Info("authorization flow completed",
		logging.Operation("sign_in"),
		logging.UserHash(email))
}

// register persists the credential into the account's slot and upserts the
// registry entry, making the new account active.
func (f *Flow) register(email string, cred *Credential) *FlowError {
	slot := SlotForEmail(email)
	if err := f.store.Save(slot, cred); err != nil {
		f.logger.Error("sign-in succeeded but credential could not be saved",
			logging.Err(err))
		return &FlowError{Failure: FailureRegister, Err: err}
	}

	accounts, _ := f.registry.Load()
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
	if err := f.registry.Save(accounts, email); err != nil {
		f.logger.Error("sign-in succeeded but account could not be registered",
			logging.Err(err))
		return &FlowError{Failure: FailureRegister, Err: err}
	}
	return nil
}

// awaitCallback binds the local redirect listener and waits for the
// authorization redirect, the flow deadline, or cancellation.
//
// The listener port may still be held in TIME_WAIT by a just-finished flow,
// so binding retries briefly before giving up.
func (f *Flow) awaitCallback(ctx context.Context, csrfState string) (callbackResult, *FlowError) {
	host := "localhost"
	if f.cfg.WebAuth {
		host = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", host, f.cfg.CallbackPort)

	var ln net.Listener
	var err error
	for attempt := 0; attempt < listenAttempts; attempt++ {
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return callbackResult{}, &FlowError{Failure: FailureCanceled, Err: ctx.Err()}
		case <-time.After(listenBackoff):
		}
	}
	if err != nil {
		return callbackResult{}, &FlowError{Failure: FailureListener,
			Err: fmt.Errorf("failed to bind %s: %w", addr, err)}
	}

	results := make(chan callbackResult, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := callbackResult{
			code:   r.URL.Query().Get("code"),
			state:  r.URL.Query().Get("state"),
			errMsg: r.URL.Query().Get("error"),
		}
		// The page must not claim success unless the callback is one this
		// flow can actually accept, state included.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.errMsg == "" && res.code != "" && res.state == csrfState {
			fmt.Fprint(w, "<html><body><h3>Authorization complete.</h3><p>You can close this window.</p></body></html>")
		} else {
			fmt.Fprint(w, "<html><body><h3>Authorization failed.</h3><p>You can close this window.</p></body></html>")
		}
		select {
		case results <- res:
		default:
		}
	})}

	go func() {
		if serr := srv.Serve(ln); serr != nil && serr != http.ErrServerClosed {
			f.logger.Warn("callback listener stopped",
				logging.Err(serr))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case res := <-results:
		return res, nil
	case <-ctx.Done():
		return callbackResult{}, &FlowError{Failure: FailureCanceled, Err: ctx.Err()}
	case <-time.After(f.cfg.FlowTimeout):
		return callbackResult{}, &FlowError{Failure: FailureTimeout,
			Err: fmt.Errorf("authorization not completed within %s", f.cfg.FlowTimeout)}
	}
}

func (f *Flow) setState(s FlowState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// finish releases the flow guard and reports the outcome. Every flow,
// successful or not, ends here. The outcome observer runs outside the mutex;
// it may call back into the flow.
func (f *Flow) finish(failure *FlowError) {
	f.mu.Lock()
	f.running = false
	f.csrfState = ""
	f.authURL = ""
	if failure != nil {
		f.state = StateFailed
		f.lastErr = failure
	} else {
		f.state = StateIdle
		f.lastErr = nil
	}
	f.mu.Unlock()

	result := "success"
	if failure != nil {
		result = string(failure.Failure)
		f.logger.Warn("authorization flow failed",
			logging.Operation("sign_in"),
			slog.String("failure", string(failure.Failure)),
			logging.Err(failure.Err))
	}
	if f.cfg.OnFlowResult != nil {
		f.cfg.OnFlowResult(result)
	}
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

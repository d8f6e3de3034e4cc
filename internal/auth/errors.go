package auth

import (
	"errors"
	"fmt"
)

// FlowFailure classifies why an authorization flow did not produce a
// credential. Callers surface the class to users; the underlying error is
// kept for logs.
type FlowFailure string

const (
	// FailureTimeout means the user did not complete authorization before
	// the flow deadline.
	FailureTimeout FlowFailure = "timeout"

	// FailureStateMismatch means the callback carried a state parameter that
	// does not match the one issued for this flow.
	FailureStateMismatch FlowFailure = "state_mismatch"

	// FailureDenied means the authorization server reported an error, such
	// as the user declining consent.
	FailureDenied FlowFailure = "denied"

	// FailureExchange means the authorization code could not be exchanged
	// for a token.
	FailureExchange FlowFailure = "exchange"

	// FailureListener means the local redirect listener could not be bound.
	FailureListener FlowFailure = "listener"

	// FailureRegister means the credential was obtained but could not be
	// persisted or registered.
	FailureRegister FlowFailure = "register"

	// FailureCanceled means the flow's context was canceled.
	FailureCanceled FlowFailure = "canceled"
)

// FlowError wraps a flow failure with its classification.
type FlowError struct {
	Failure FlowFailure
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authorization flow failed: %s", e.Failure)
	}
	return fmt.Sprintf("authorization flow failed (%s): %v", e.Failure, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }

// ErrFlowInProgress is returned by Flow.Start when another sign-in is
// already running. The caller should let that flow complete rather than
// starting a second one.
var ErrFlowInProgress = errors.New("sign-in already in progress")

// ErrNoCredentials is returned when no client secrets are available, which
// makes any sign-in impossible.
var ErrNoCredentials = errors.New("no OAuth client credentials configured")

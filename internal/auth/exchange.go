package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// UnknownIdentity is recorded when the provider's profile lookup fails after
// a successful token exchange. The credential is kept; the identity can be
// corrected on the next sign-in.
const UnknownIdentity = "unknown"

// Exchanger abstracts the OAuth authorization-code exchange so the flow can
// be exercised in tests without a live authorization server.
type Exchanger interface {
	// AuthCodeURL builds the authorization URL carrying the CSRF state.
	AuthCodeURL(state string) string

	// Exchange swaps an authorization code for a token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// TokenSource returns a refreshing token source seeded with tok.
	TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource
}

// codeExchanger is the production Exchanger backed by the parsed client
// secrets.
type codeExchanger struct {
	conf *oauth2.Config
}

func (e *codeExchanger) AuthCodeURL(state string) string {
	return e.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

func (e *codeExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return e.conf.Exchange(ctx, code)
}

func (e *codeExchanger) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return e.conf.TokenSource(ctx, tok)
}

// IdentityResolver turns a freshly authorized client into the account's
// email address.
type IdentityResolver interface {
	ResolveEmail(ctx context.Context, client *http.Client) (string, error)
}

// gmailIdentity resolves the identity from the Gmail profile endpoint.
type gmailIdentity struct{}

func (gmailIdentity) ResolveEmail(ctx context.Context, client *http.Client) (string, error) {
	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", fmt.Errorf("failed to create gmail service: %w", err)
	}
	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch profile: %w", err)
	}
	return profile.EmailAddress, nil
}

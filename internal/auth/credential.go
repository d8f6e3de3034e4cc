package auth

import (
	"regexp"
	"time"

	"golang.org/x/oauth2"
)

// expiryDelta mirrors the oauth2 package's early-expiry margin so a token
// about to expire is treated as expired rather than failing mid-request.
const expiryDelta = 10 * time.Second

// Credential is one account's secret material: the OAuth token plus the
// scopes it was granted. It is owned exclusively by that account's token
// file and never shared across accounts.
type Credential struct {
	Token  *oauth2.Token
	Scopes []string
}

// Valid reports whether the credential can authorize requests right now:
// an access token is present, it has not expired, and the granted scopes
// cover every required scope.
func (c *Credential) Valid(required []string) bool {
	if c == nil || c.Token == nil || c.Token.AccessToken == "" {
		return false
	}
	if c.expired() {
		return false
	}
	return scopesCover(c.Scopes, required)
}

// Renewable reports whether an expired credential can be refreshed without
// user interaction.
func (c *Credential) Renewable() bool {
	if c == nil || c.Token == nil {
		return false
	}
	return c.expired() && c.Token.RefreshToken != ""
}

func (c *Credential) expired() bool {
	if c.Token.Expiry.IsZero() {
		return false
	}
	return time.Until(c.Token.Expiry) < expiryDelta
}

// scopesCover reports whether every required scope appears in granted.
// An empty granted list is treated as covering (older token files did not
// record scopes).
func scopesCover(granted, required []string) bool {
	if len(granted) == 0 {
		return true
	}
	have := make(map[string]bool, len(granted))
	for _, s := range granted {
		have[s] = true
	}
	for _, s := range required {
		if !have[s] {
			return false
		}
	}
	return true
}

var slotUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SlotForEmail derives the token file name for an account. The mapping is
// deterministic so repeat sign-ins of the same account reuse the same slot.
func SlotForEmail(email string) string {
	return "token_" + slotUnsafe.ReplaceAllString(email, "_") + ".json"
}

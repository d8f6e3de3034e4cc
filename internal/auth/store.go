package auth

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/mailsweep/internal/logging"
)

// storedToken is the on-disk shape of one account's credential.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Store persists per-account credentials, one file per account under the
// configured directory. File contents are never cached: every Load hits the
// filesystem so out-of-band changes are observed immediately.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a credential store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

func (s *Store) path(slot string) string {
	return filepath.Join(s.dir, slot)
}

// Load reads the credential stored in slot. A missing file returns nil. A
// file that cannot be parsed is deleted so the account re-enters the
// sign-in path instead of failing the same way forever.
func (s *Store) Load(slot string) *Credential {
	data, err := os.ReadFile(s.path(slot))
	if err != nil {
		return nil
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil || st.AccessToken == "" && st.RefreshToken == "" {
		s.logger.Warn("removing unreadable token file",
			slog.String("slot", slot),
			logging.Err(err))
		_ = os.Remove(s.path(slot))
		return nil
	}

	return &Credential{
		Token: &oauth2.Token{
			AccessToken:  st.AccessToken,
			RefreshToken: st.RefreshToken,
			TokenType:    st.TokenType,
			Expiry:       st.Expiry,
		},
		Scopes: st.Scopes,
	}
}

// Save writes the credential into slot with owner-only permissions.
func (s *Store) Save(slot string, cred *Credential) error {
	st := storedToken{
		AccessToken:  cred.Token.AccessToken,
		RefreshToken: cred.Token.RefreshToken,
		TokenType:    cred.Token.TokenType,
		Expiry:       cred.Token.Expiry,
		Scopes:       cred.Scopes,
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(slot), data, 0600)
}

// Delete removes the slot's token file. A missing file is not an error.
func (s *Store) Delete(slot string) {
	if err := os.Remove(s.path(slot)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove token file",
			slog.String("slot", slot),
			logging.Err(err))
	}
}

// Refresh exchanges the credential's refresh token for a fresh access token
// using src and persists the result.
//
// A rejected refresh (revoked or expired refresh token) deletes the slot and
// returns nil, forcing a new interactive sign-in. A persistence failure
// after a successful refresh is logged but the refreshed credential is still
// returned; the session continues and persistence is retried on the next
// refresh.
func (s *Store) Refresh(slot string, cred *Credential, src oauth2.TokenSource) *Credential {
	if src == nil {
		s.logger.Warn("no token source available for refresh",
			slog.String("slot", slot))
		return nil
	}

	tok, err := src.Token()
	if err != nil {
		s.logger.Warn("token refresh rejected, removing credential",
			slog.String("slot", slot),
			logging.Err(err))
		s.Delete(slot)
		return nil
	}

	if tok.RefreshToken == "" {
		tok.RefreshToken = cred.Token.RefreshToken
	}
	refreshed := &Credential{Token: tok, Scopes: cred.Scopes}

	if err := s.Save(slot, refreshed); err != nil {
		s.logger.Warn("refreshed credential could not be persisted",
			slog.String("slot", slot),
			logging.Err(err))
	}
	return refreshed
}

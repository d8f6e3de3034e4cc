package auth

// Session answers "which accounts exist and which one is active" by reading
// the registry on every call. Nothing is cached, so sign-ins, sign-outs, and
// out-of-band registry edits are visible immediately.
type Session struct {
	registry *Registry
}

// NewSession creates a session view over the registry.
func NewSession(registry *Registry) *Session {
	return &Session{registry: registry}
}

// Accounts returns the currently registered accounts.
func (s *Session) Accounts() []Account {
	accounts, _ := s.registry.Load()
	return accounts
}

// Active returns the active account. If the persisted active pointer no
// longer matches a registered account (its token file was removed, or the
// pointer is stale), the first registered account is used instead. The
// second return is false when no accounts are registered.
func (s *Session) Active() (Account, bool) {
	accounts, active := s.registry.Load()
	if len(accounts) == 0 {
		return Account{}, false
	}
	for _, a := range accounts {
		if a.Email == active {
			return a, true
		}
	}
	return accounts[0], true
}

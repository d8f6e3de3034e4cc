package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/teemow/mailsweep/internal/logging"
)

// Account is one registry entry: an identity and the token file holding its
// credential.
type Account struct {
	Email     string `json:"email"`
	TokenFile string `json:"token_file"`
}

// registryFile is the persisted form of the registry.
type registryFile struct {
	Accounts []Account `json:"accounts"`
	Active   string    `json:"active,omitempty"`
}

// Registry is the persisted mapping of known accounts to their token files,
// plus which one is active. It is re-read on every access because external
// processes may mutate the file, and rewritten atomically on every mutation.
type Registry struct {
	dir    string
	path   string
	logger *slog.Logger
}

// NewRegistry creates a registry backed by file under dir.
func NewRegistry(dir, file string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		dir:    dir,
		path:   filepath.Join(dir, file),
		logger: logger,
	}
}

// Load returns the known accounts and the persisted active email.
//
// A missing, empty, or unparseable registry degrades to an empty registry;
// corruption is never fatal to the caller. Entries whose token file is
// missing or empty are filtered out, self-healing stale registry state such
// as a token file deleted out-of-band.
func (r *Registry) Load() ([]Account, string) {
	data, err := os.ReadFile(r.path)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return nil, ""
	}

	var reg registryFile
	if err := json.Unmarshal(data, &reg); err != nil {
		r.logger.Warn("account registry unreadable, treating as empty",
			logging.Err(err))
		return nil, ""
	}

	accounts := make([]Account, 0, len(reg.Accounts))
	for _, a := range reg.Accounts {
		if a.TokenFile == "" || !fileHasContent(filepath.Join(r.dir, a.TokenFile)) {
			r.logger.Debug("dropping registry entry with missing token file",
				logging.UserHash(a.Email))
			continue
		}
		accounts = append(accounts, a)
	}
	return accounts, reg.Active
}

// Save writes the full registry atomically. A concurrent Load observes
// either the previous or the new state, never a partial write.
func (r *Registry) Save(accounts []Account, active string) error {
	data, err := json.MarshalIndent(registryFile{Accounts: accounts, Active: active}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode account registry: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write account registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace account registry: %w", err)
	}
	return nil
}

// fileHasContent reports whether path exists and contains non-whitespace
// bytes.
func fileHasContent(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 0
}

package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultCallbackPort is the local port the authorization redirect
	// listener binds to.
	DefaultCallbackPort = 8080

	// DefaultFlowTimeout bounds an interactive sign-in. If the user has not
	// completed authorization by then, the flow fails and the listener is
	// torn down.
	DefaultFlowTimeout = 5 * time.Minute

	// DefaultCredentialsFile holds the OAuth client secrets.
	DefaultCredentialsFile = "credentials.json"

	// DefaultLegacyTokenFile is the pre-multi-account token location,
	// consulted only for migration.
	DefaultLegacyTokenFile = "token.json"

	// DefaultRegistryFile is the persisted account registry.
	DefaultRegistryFile = "accounts.json"
)

// Config holds the settings for the credential lifecycle manager.
type Config struct {
	// Dir is the base directory for the registry, token files, and client
	// secrets. Defaults to MAILSWEEP_DIR or the working directory.
	Dir string

	// CredentialsFile is the client secrets file name, relative to Dir.
	CredentialsFile string

	// LegacyTokenFile is the single-account token file name, relative to Dir.
	LegacyTokenFile string

	// RegistryFile is the account registry file name, relative to Dir.
	RegistryFile string

	// Scopes are the OAuth scopes requested and required of stored tokens.
	Scopes []string

	// CallbackHost is the hostname used in the redirect URI (default
	// "localhost").
	CallbackHost string

	// CallbackPort is the port the local redirect listener binds to.
	CallbackPort int

	// ExternalPort is the externally visible redirect port when the
	// deployment forwards a public port to CallbackPort (e.g. Docker port
	// mapping). Zero means same as CallbackPort.
	ExternalPort int

	// WebAuth enables headless/server mode: the listener binds all
	// interfaces and no browser is opened; the authorization URL is exposed
	// via Status for a UI to surface.
	WebAuth bool

	// FlowTimeout bounds the interactive sign-in flow.
	FlowTimeout time.Duration

	// OnFlowResult, when set, observes every completed sign-in flow with
	// "success" or the failure classification. Used to feed metrics without
	// making this package depend on the instrumentation stack.
	OnFlowResult func(result string)

	// OnTokenRefresh, when set, observes every token refresh attempt with
	// "success", "failure", or "expired" (credential unusable and not
	// refreshable).
	OnTokenRefresh func(result string)

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config populated from environment variables where
// set: MAILSWEEP_DIR, MAILSWEEP_WEB_AUTH, MAILSWEEP_CALLBACK_HOST,
// MAILSWEEP_CALLBACK_PORT, MAILSWEEP_EXTERNAL_PORT.
func DefaultConfig() Config {
	cfg := Config{
		Dir:             envOrDefault("MAILSWEEP_DIR", "."),
		CredentialsFile: DefaultCredentialsFile,
		LegacyTokenFile: DefaultLegacyTokenFile,
		RegistryFile:    DefaultRegistryFile,
		Scopes:          DefaultScopes,
		CallbackHost:    envOrDefault("MAILSWEEP_CALLBACK_HOST", "localhost"),
		CallbackPort:    envIntOrDefault("MAILSWEEP_CALLBACK_PORT", DefaultCallbackPort),
		ExternalPort:    envIntOrDefault("MAILSWEEP_EXTERNAL_PORT", 0),
		WebAuth:         envBoolOrDefault("MAILSWEEP_WEB_AUTH", false),
		FlowTimeout:     DefaultFlowTimeout,
	}
	return cfg
}

// withDefaults fills in zero values so that a partially populated Config
// (common in tests) behaves sensibly.
func (c Config) withDefaults() Config {
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = DefaultCredentialsFile
	}
	if c.LegacyTokenFile == "" {
		c.LegacyTokenFile = DefaultLegacyTokenFile
	}
	if c.RegistryFile == "" {
		c.RegistryFile = DefaultRegistryFile
	}
	if len(c.Scopes) == 0 {
		c.Scopes = DefaultScopes
	}
	if c.CallbackHost == "" {
		c.CallbackHost = "localhost"
	}
	if c.CallbackPort == 0 {
		c.CallbackPort = DefaultCallbackPort
	}
	if c.FlowTimeout == 0 {
		c.FlowTimeout = DefaultFlowTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) credentialsPath() string {
	return filepath.Join(c.Dir, c.CredentialsFile)
}

// redirectURL builds the redirect URI the authorization server sends the
// user back to. The externally visible port may differ from the local
// listener port behind a port mapping.
func (c Config) redirectURL() string {
	port := c.CallbackPort
	if c.ExternalPort > 0 {
		port = c.ExternalPort
	}
	return fmt.Sprintf("http://%s:%d/", c.CallbackHost, port)
}

// resolveCredentials returns the client secrets path, materializing the
// GOOGLE_CREDENTIALS environment variable into the credentials file when the
// file itself is absent.
func (c Config) resolveCredentials() (string, error) {
	path := c.credentialsPath()
	if data, err := os.ReadFile(path); err == nil {
		if len(strings.TrimSpace(string(data))) == 0 {
			return "", fmt.Errorf("credentials file %s is empty", c.CredentialsFile)
		}
		if !json.Valid(data) {
			return "", fmt.Errorf("credentials file %s contains invalid JSON", c.CredentialsFile)
		}
		return path, nil
	}

	if env := os.Getenv("GOOGLE_CREDENTIALS"); env != "" {
		if !json.Valid([]byte(env)) {
			return "", fmt.Errorf("GOOGLE_CREDENTIALS contains invalid JSON")
		}
		if err := os.WriteFile(path, []byte(env), 0600); err != nil {
			return "", fmt.Errorf("failed to write credentials file: %w", err)
		}
		return path, nil
	}

	return "", fmt.Errorf("credentials file %s not found", c.CredentialsFile)
}

// oauthConfig parses the client secrets into an oauth2.Config bound to the
// configured redirect URL.
func (c Config) oauthConfig() (*oauth2.Config, error) {
	path, err := c.resolveCredentials()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secrets: %w", err)
	}
	conf, err := google.ConfigFromJSON(data, c.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets: %w", err)
	}
	conf.RedirectURL = c.redirectURL()
	return conf, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

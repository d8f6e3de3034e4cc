package auth

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestMigrator(t *testing.T, dir string, id fakeIdentity) *Migrator {
	t.Helper()
	cfg := Config{Dir: dir}
	store := NewStore(dir, nil)
	registry := NewRegistry(dir, DefaultRegistryFile, nil)
	m := NewMigrator(cfg, store, registry)
	m.identity = id
	m.newExchanger = func() (Exchanger, error) { return &fakeExchanger{}, nil }
	return m
}

func saveLegacyToken(t *testing.T, dir string, tok *oauth2.Token) {
	t.Helper()
	s := NewStore(dir, nil)
	require.NoError(t, s.Save(DefaultLegacyTokenFile, &Credential{Token: tok}))
}

func TestMigrateNothingToMigrate(t *testing.T) {
	m := newTestMigrator(t, t.TempDir(), fakeIdentity{email: "jane@example.com"})
	email, ok := m.Migrate(context.Background())
	assert.False(t, ok)
	assert.Empty(t, email)
}

func TestMigrateValidLegacyToken(t *testing.T) {
	dir := t.TempDir()
	saveLegacyToken(t, dir, &oauth2.Token{
		AccessToken: "at",
		Expiry:      time.Now().Add(time.Hour),
	})

	m := newTestMigrator(t, dir, fakeIdentity{email: "jane@example.com"})
	email, ok := m.Migrate(context.Background())
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", email)

	// The legacy file moved into the account slot.
	_, err := os.Stat(filepath.Join(dir, DefaultLegacyTokenFile))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, SlotForEmail("jane@example.com")))
	assert.NoError(t, err)

	accounts, active := m.registry.Load()
	require.Len(t, accounts, 1)
	assert.Equal(t, "jane@example.com", accounts[0].Email)
	assert.Equal(t, "jane@example.com", active)
}

func TestMigrateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	saveLegacyToken(t, dir, &oauth2.Token{
		AccessToken: "at",
		Expiry:      time.Now().Add(time.Hour),
	})

	m := newTestMigrator(t, dir, fakeIdentity{email: "jane@example.com"})
	_, ok := m.Migrate(context.Background())
	require.True(t, ok)

	_, ok = m.Migrate(context.Background())
	assert.False(t, ok, "second migration must find nothing")

	accounts, _ := m.registry.Load()
	assert.Len(t, accounts, 1)
}

func TestMigrateUnusableLegacyTokenRemoved(t *testing.T) {
	dir := t.TempDir()
	// Expired and no refresh token: nothing can be done with it.
	saveLegacyToken(t, dir, &oauth2.Token{
		AccessToken: "at",
		Expiry:      time.Now().Add(-time.Hour),
	})

	m := newTestMigrator(t, dir, fakeIdentity{email: "jane@example.com"})
	_, ok := m.Migrate(context.Background())
	assert.False(t, ok)

	_, err := os.Stat(filepath.Join(dir, DefaultLegacyTokenFile))
	assert.True(t, os.IsNotExist(err))
}

func TestMigrateIdentityFailureKeepsLegacyFile(t *testing.T) {
	dir := t.TempDir()
	saveLegacyToken(t, dir, &oauth2.Token{
		AccessToken: "at",
		Expiry:      time.Now().Add(time.Hour),
	})

	m := newTestMigrator(t, dir, fakeIdentity{err: errors.New("profile unavailable")})
	_, ok := m.Migrate(context.Background())
	assert.False(t, ok)

	// A transient failure must be retryable; the legacy token stays put.
	_, err := os.Stat(filepath.Join(dir, DefaultLegacyTokenFile))
	assert.NoError(t, err)

	accounts, _ := m.registry.Load()
	assert.Empty(t, accounts)
}

func TestMigrateWorksWithoutClientSecrets(t *testing.T) {
	dir := t.TempDir()
	saveLegacyToken(t, dir, &oauth2.Token{
		AccessToken: "at",
		Expiry:      time.Now().Add(time.Hour),
	})

	m := newTestMigrator(t, dir, fakeIdentity{email: "jane@example.com"})
	m.newExchanger = func() (Exchanger, error) {
		return nil, errors.New("credentials.json not found")
	}

	// Identity resolution falls back to a static client built from the
	// token itself.
	email, ok := m.Migrate(context.Background())
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", email)
}

type captureIdentity struct {
	client *http.Client
	email  string
}

func (c *captureIdentity) ResolveEmail(_ context.Context, client *http.Client) (string, error) {
	c.client = client
	return c.email, nil
}

func TestMigratePassesAuthorizedClient(t *testing.T) {
	dir := t.TempDir()
	saveLegacyToken(t, dir, &oauth2.Token{
		AccessToken: "at",
		Expiry:      time.Now().Add(time.Hour),
	})

	cap := &captureIdentity{email: "jane@example.com"}
	m := newTestMigrator(t, dir, fakeIdentity{})
	m.identity = cap

	_, ok := m.Migrate(context.Background())
	require.True(t, ok)
	assert.NotNil(t, cap.client)
}

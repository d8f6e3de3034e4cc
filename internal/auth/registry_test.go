package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSlot(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func TestRegistryLoadMissingFile(t *testing.T) {
	r := NewRegistry(t.TempDir(), DefaultRegistryFile, nil)
	accounts, active := r.Load()
	assert.Empty(t, accounts)
	assert.Empty(t, active)
}

func TestRegistryLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	writeSlot(t, dir, DefaultRegistryFile, "{not json")

	r := NewRegistry(dir, DefaultRegistryFile, nil)
	accounts, active := r.Load()
	assert.Empty(t, accounts)
	assert.Empty(t, active)
}

func TestRegistryLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeSlot(t, dir, DefaultRegistryFile, "   \n")

	r := NewRegistry(dir, DefaultRegistryFile, nil)
	accounts, _ := r.Load()
	assert.Empty(t, accounts)
}

func TestRegistryFiltersEntriesWithoutTokenFile(t *testing.T) {
	dir := t.TempDir()
	writeSlot(t, dir, "token_good.json", `{"access_token":"at"}`)
	writeSlot(t, dir, "token_empty.json", "  ")
	writeSlot(t, dir, DefaultRegistryFile, `{
		"accounts": [
			{"email": "good@example.com", "token_file": "token_good.json"},
			{"email": "gone@example.com", "token_file": "token_gone.json"},
			{"email": "empty@example.com", "token_file": "token_empty.json"},
			{"email": "blank@example.com", "token_file": ""}
		],
		"active": "good@example.com"
	}`)

	r := NewRegistry(dir, DefaultRegistryFile, nil)
	accounts, active := r.Load()
	require.Len(t, accounts, 1)
	assert.Equal(t, "good@example.com", accounts[0].Email)
	assert.Equal(t, "good@example.com", active)
}

func TestRegistrySaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeSlot(t, dir, "token_a.json", `{"access_token":"at"}`)
	writeSlot(t, dir, "token_b.json", `{"access_token":"at"}`)

	r := NewRegistry(dir, DefaultRegistryFile, nil)
	in := []Account{
		{Email: "a@example.com", TokenFile: "token_a.json"},
		{Email: "b@example.com", TokenFile: "token_b.json"},
	}
	require.NoError(t, r.Save(in, "b@example.com"))

	accounts, active := r.Load()
	assert.Equal(t, in, accounts)
	assert.Equal(t, "b@example.com", active)

	// The temp file from the atomic write must not linger.
	_, err := os.Stat(filepath.Join(dir, DefaultRegistryFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestRegistrySaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	writeSlot(t, dir, "token_a.json", `{"access_token":"at"}`)

	r := NewRegistry(dir, DefaultRegistryFile, nil)
	require.NoError(t, r.Save([]Account{{Email: "a@example.com", TokenFile: "token_a.json"}}, "a@example.com"))
	require.NoError(t, r.Save(nil, ""))

	accounts, active := r.Load()
	assert.Empty(t, accounts)
	assert.Empty(t, active)
}

package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payroll/internal/address"
)

func TestNewStore(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "wallets")

		store, err := NewStore(dir)
		require.NoError(t, err)
		assert.NotNil(t, store)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	})

	t.Run("creates empty config", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		cfg, err := store.loadConfig()
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Version)
		assert.Empty(t, cfg.DefaultWallet)
		assert.Empty(t, cfg.Wallets)
	})
}

func TestStore_Create(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	w, err := store.Create("employer")
	require.NoError(t, err)
	assert.Equal(t, "employer", w.Name)
	assert.False(t, w.Address.IsZero())
	assert.True(t, w.Address.IsOnCurve())

	info, err := os.Stat(filepath.Join(dir, "employer.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	key, err := store.LoadPrivateKey("employer")
	require.NoError(t, err)
	addr, err := address.FromPublicKey(key.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, w.Address, addr)

	t.Run("first wallet becomes default", func(t *testing.T) {
		def, err := store.GetDefault()
		require.NoError(t, err)
		assert.Equal(t, "employer", def.Name)

		_, err = store.Create("worker")
		require.NoError(t, err)

		def, err = store.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "employer", def.Name)

		named, err := store.Resolve("worker")
		require.NoError(t, err)
		assert.Equal(t, "worker", named.Name)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := store.Create("employer")
		assert.ErrorIs(t, err, ErrWalletExists)
	})

	t.Run("rejects unsafe names", func(t *testing.T) {
		for _, name := range []string{"", "../escape", "with space", ".hidden"} {
			_, err := store.Create(name)
			assert.ErrorIs(t, err, ErrInvalidName, name)
		}
	})
}

func TestStore_ListDeleteDefault(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetDefault()
	require.ErrorIs(t, err, ErrNoDefaultWallet)

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := store.Create(name)
		require.NoError(t, err)
	}

	wallets, err := store.List()
	require.NoError(t, err)
	require.Len(t, wallets, 3)
	assert.Equal(t, "alice", wallets[0].Name)
	assert.Equal(t, "carol", wallets[2].Name)

	require.NoError(t, store.SetDefault("bob"))
	require.ErrorIs(t, store.SetDefault("dave"), ErrWalletNotFound)

	require.NoError(t, store.Delete("bob"))
	_, err = store.GetDefault()
	require.ErrorIs(t, err, ErrNoDefaultWallet)

	_, err = store.LoadPrivateKey("bob")
	require.ErrorIs(t, err, ErrWalletNotFound)
	require.ErrorIs(t, store.Delete("bob"), ErrWalletNotFound)
}

func TestKeypairFiles(t *testing.T) {
	dir := t.TempDir()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	path := filepath.Join(dir, "id.json")
	require.NoError(t, WriteKeypair(path, key))

	read, err := ReadKeypair(path)
	require.NoError(t, err)
	assert.True(t, key.Equal(read))

	store, err := NewStore(filepath.Join(dir, "wallets"))
	require.NoError(t, err)
	w, err := store.Import("imported", path)
	require.NoError(t, err)
	want, err := address.FromPublicKey(key.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, want, w.Address)

	invalid := map[string]string{
		"not json":       "nope",
		"short":          "[1,2,3]",
		"out of range":   "[" + strings.Repeat("256,", 63) + "256]",
		"mismatched key": mismatched(t, key),
	}
	for name, content := range invalid {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(dir, "bad.json")
			require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
			_, err := ReadKeypair(p)
			assert.ErrorIs(t, err, ErrInvalidKeypair)
		})
	}
}

// mismatched returns a keypair file whose public half belongs to another key.
func mismatched(t *testing.T, key ed25519.PrivateKey) string {
	t.Helper()

	other, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	broken := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(broken, key[:ed25519.SeedSize])
	copy(broken[ed25519.SeedSize:], other)

	path := filepath.Join(t.TempDir(), "k.json")
	require.NoError(t, WriteKeypair(path, broken))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStoreRetrieveDelete(t *testing.T) {
	mem := NewMemoryStore()
	manager := NewManagerWithStores(mem)

	account := &Account{
		Username:  "testuser",
		AuthToken: "0123456789abcdef0123456789abcdef01234567",
		CSRFToken: "csrf_token_67890",
		UserAgent: "TestAgent/1.0",
	}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	retrieved, err := manager.Retrieve("testuser")
	require.NoError(t, err)
	assert.Equal(t, account.AuthToken, retrieved.AuthToken)
	assert.Equal(t, account.CSRFToken, retrieved.CSRFToken)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("testuser"))
	_, err = manager.Retrieve("testuser")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Zero(t, mem.Count())

	err = manager.Delete("testuser")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager := NewManagerWithStores(NewMemoryStore())

	assert.Error(t, manager.Store(&Account{AuthToken: "a", CSRFToken: "b"}))
	assert.Error(t, manager.Store(&Account{Username: "u", CSRFToken: "b"}))
	assert.Error(t, manager.Store(&Account{Username: "u", AuthToken: "a"}))
}

func TestManagerFallsThroughStores(t *testing.T) {
	broken := NewMemoryStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMemoryStore()
	manager := NewManagerWithStores(broken, working)

	require.NoError(t, manager.Store(&Account{Username: "u", AuthToken: "a", CSRFToken: "b"}))
	assert.Zero(t, broken.Count())
	assert.Equal(t, 1, working.Count())

	working.StoreError = errors.New("disk full")
	err := manager.Store(&Account{Username: "v", AuthToken: "a", CSRFToken: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRetrieveDefault(t *testing.T) {
	t.Run("newest stored account", func(t *testing.T) {
		t.Setenv(envAuthToken, "")
		mem := NewMemoryStore()
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, mem.Store(&Account{Username: "old", AuthToken: "a", CSRFToken: "b", LastModified: now}))
		require.NoError(t, mem.Store(&Account{Username: "new", AuthToken: "c", CSRFToken: "d", LastModified: now.Add(time.Hour)}))

		account, err := NewManagerWithStores(mem, NewEnvironmentStore()).RetrieveDefault()
		require.NoError(t, err)
		assert.Equal(t, "new", account.Username)
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv(envAuthToken, "env_token")
		t.Setenv(envCSRFToken, "env_csrf")
		mem := NewMemoryStore()
		require.NoError(t, mem.Store(&Account{Username: "stored", AuthToken: "a", CSRFToken: "b"}))

		account, err := NewManagerWithStores(mem, NewEnvironmentStore()).RetrieveDefault()
		require.NoError(t, err)
		assert.Equal(t, "default", account.Username)
		assert.Equal(t, "env_token", account.AuthToken)
	})

	t.Run("nothing stored", func(t *testing.T) {
		t.Setenv(envAuthToken, "")
		_, err := NewManagerWithStores(NewMemoryStore()).RetrieveDefault()
		assert.ErrorIs(t, err, ErrCredentialsNotFound)
	})
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Username: "u", AuthToken: "0123456789abcdef", CSRFToken: "short"}
	sanitized := SanitizeAccount(account)

	assert.Equal(t, "u", sanitized.Username)
	assert.Equal(t, "0123...cdef", sanitized.AuthToken)
	assert.Equal(t, "********", sanitized.CSRFToken)
	assert.Nil(t, SanitizeAccount(nil))
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")
	store, err := NewEncryptedFileStoreWithPassphrase(path, "test_passphrase_123")
	require.NoError(t, err)

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	account := &Account{Username: "enc_user", AuthToken: "plaintext_auth_token", CSRFToken: "plaintext_ct0"}
	require.NoError(t, store.Store(account))
	require.NoError(t, store.Store(&Account{Username: "second", AuthToken: "x", CSRFToken: "y"}))

	retrieved, err := store.Retrieve("enc_user")
	require.NoError(t, err)
	assert.Equal(t, "plaintext_auth_token", retrieved.AuthToken)
	assert.True(t, store.Exists("second"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("plaintext_auth_token")))
	assert.False(t, bytes.Contains(content, []byte("plaintext_ct0")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	t.Run("wrong passphrase cannot read", func(t *testing.T) {
		other, err := NewEncryptedFileStoreWithPassphrase(path, "wrong")
		require.NoError(t, err)
		_, err = other.Retrieve("enc_user")
		assert.Error(t, err)
	})

	require.NoError(t, store.Delete("second"))
	require.NoError(t, store.Delete("enc_user"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, store.Delete("enc_user"), ErrCredentialsNotFound)
}

func TestEncryptedFileStoreFromEnvironment(t *testing.T) {
	t.Setenv(envPassphrase, "env_passphrase")
	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)
	assert.Equal(t, "env_passphrase", store.passphrase)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(envAuthToken, "env_token")
	t.Setenv(envCSRFToken, "env_csrf")
	t.Setenv(envUserAgent, "EnvAgent/1.0")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env_token", account.AuthToken)
	assert.Equal(t, "env_csrf", account.CSRFToken)
	assert.Equal(t, "EnvAgent/1.0", account.UserAgent)
	assert.True(t, store.Exists(""))

	assert.ErrorIs(t, store.Store(&Account{}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("default"), ErrStoreUnavailable)

	t.Setenv(envCSRFToken, "")
	_, err = store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestMemoryStoreErrorInjection(t *testing.T) {
	store := NewMemoryStore()
	store.ListError = errors.New("injected error")

	_, err := store.List()
	assert.EqualError(t, err, "injected error")
	assert.ErrorIs(t, store.Store(nil), ErrInvalidCredentials)
}

func TestCookieGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowCookieExtractionGuide(&buf)
	assert.True(t, strings.Contains(buf.String(), "auth_token"))
	assert.True(t, strings.Contains(buf.String(), "ct0"))

	buf.Reset()
	ShowQuickExtractGuide(&buf)
	assert.Contains(t, buf.String(), "ct0")
}

package keyring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalVaultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	v := NewLocal(dir)

	_, err := v.Get(GatewayTokenKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, v.Store(GatewayTokenKey, "s3cret"))
	got, err := v.Get(GatewayTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
	assert.True(t, v.Exists(GatewayTokenKey))

	// The file is encrypted and readable by a fresh vault.
	raw, err := os.ReadFile(filepath.Join(dir, ".credentials"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")

	again := NewLocal(dir)
	got, err = again.Get(GatewayTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, again.Delete(GatewayTokenKey))
	assert.False(t, again.Exists(GatewayTokenKey))
}

func TestVaultRejectsEmptyInput(t *testing.T) {
	v := NewLocal(t.TempDir())
	assert.Error(t, v.Store("", "x"))
	assert.Error(t, v.Store("k", ""))
	_, err := v.Get("")
	assert.Error(t, err)
	assert.Error(t, v.Delete(""))
}

func TestDeriveKeyIsStable(t *testing.T) {
	a, err := deriveKey("claw-manager")
	require.NoError(t, err)
	b, err := deriveKey("claw-manager")
	require.NoError(t, err)
	c, err := deriveKey("other")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	v := NewLocal(t.TempDir())
	_, err := v.decrypt([]byte("not base64!"))
	assert.Error(t, err)
	_, err = v.decrypt([]byte("AAAA"))
	assert.Error(t, err)
}

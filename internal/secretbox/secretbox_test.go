package secretbox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexira.key")
	box, err := Open(path)
	require.NoError(t, err)
	require.False(t, box.Degraded())

	enc := box.Encrypt("hello world")
	require.Contains(t, enc, prefix)
	require.Equal(t, "hello world", box.Decrypt(enc))
}

func TestDecryptPlaintextUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexira.key")
	box, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, "plain text", box.Decrypt("plain text"))
}

func TestKeyPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexira.key")
	box1, err := Open(path)
	require.NoError(t, err)
	enc := box1.Encrypt("secret")

	box2, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, "secret", box2.Decrypt(enc))
}

func TestDegradedBoxIsIdentity(t *testing.T) {
	var b Box
	b.degraded = true
	require.True(t, b.Degraded())
	require.Equal(t, "x", b.Encrypt("x"))
	require.Equal(t, "ENC:abc", b.Decrypt("ENC:abc"))
}

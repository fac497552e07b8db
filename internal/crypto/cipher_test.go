package crypto

import (
	"testing"

	"stellarid/internal/model"

	"github.com/stretchr/testify/require"
)

// lightParams keeps scrypt fast enough for tests.
var lightParams = Params{N: 1 << 4, R: 8, P: 1}

func TestPasswordEnvelopeRoundTrip(t *testing.T) {
	plaintext := []byte(`{"keypairs":[]}`)
	env, err := SealWithPassword(plaintext, []byte("user@example.com=correct horse"), lightParams)
	require.NoError(t, err)
	require.NotEmpty(t, env.Salt)
	require.NotEmpty(t, env.Nonce)
	require.NotEqual(t, string(plaintext), env.CipherText)

	restored, err := OpenWithPassword(env, []byte("user@example.com=correct horse"), lightParams)
	require.NoError(t, err)
	require.Equal(t, plaintext, restored)
}

func TestWrongPasswordFailsDeterministically(t *testing.T) {
	env, err := SealWithPassword([]byte("secret"), []byte("right"), lightParams)
	require.NoError(t, err)

	_, err = OpenWithPassword(env, []byte("wrong"), lightParams)
	require.ErrorIs(t, err, model.ErrInvalidPassword)
}

func TestMissingEnvelope(t *testing.T) {
	_, err := OpenWithPassword(nil, []byte("pwd"), lightParams)
	require.ErrorIs(t, err, model.ErrEncryptedDataNotFound)

	_, err = OpenWithKey(&Envelope{}, make([]byte, EncryptionKeyLen))
	require.ErrorIs(t, err, model.ErrEncryptedDataNotFound)
}

func TestKeyEnvelopeRoundTrip(t *testing.T) {
	key, err := NewEncryptionKey()
	require.NoError(t, err)
	require.Len(t, key, EncryptionKeyLen)

	env, err := SealWithKey([]byte("payload"), key)
	require.NoError(t, err)
	require.Empty(t, env.Salt)

	restored, err := OpenWithKey(env, key)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), restored)

	// tampered ciphertext must not decrypt
	other, err := NewEncryptionKey()
	require.NoError(t, err)
	_, err = OpenWithKey(env, other)
	require.Error(t, err)
}

func TestRandomKeysDiffer(t *testing.T) {
	a, err := NewEncryptionKey()
	require.NoError(t, err)
	b, err := NewEncryptionKey()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

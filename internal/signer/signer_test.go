package signer

import (
	"encoding/base64"
	"testing"

	"stellarid/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivationIsDeterministic(t *testing.T) {
	s := New("test-salt")

	first, err := s.DerivePublicKey("correct horse battery staple")
	require.NoError(t, err)
	second, err := s.DerivePublicKey("correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// 32 raw bytes hex-encoded
	assert.Len(t, first, 64)

	// one character difference yields a different key
	other, err := s.DerivePublicKey("correct horse battery stapl3")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	// a different server salt yields a different key too
	otherSalt, err := New("other-salt").DerivePublicKey("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, first, otherSalt)
}

func TestEmptyPassword(t *testing.T) {
	s := New("test-salt")
	_, err := s.DeriveKeyPair("")
	require.ErrorIs(t, err, model.ErrInvalidPasswordFormat)
	_, err = s.Sign("data", "")
	require.ErrorIs(t, err, model.ErrInvalidPasswordFormat)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s := New("test-salt")

	signature, err := s.Sign("hello world", "pwd12345")
	require.NoError(t, err)
	assert.Len(t, signature, 88)

	pubkey, err := s.DerivePublicKey("pwd12345")
	require.NoError(t, err)

	ok, err := s.Verify("hello world", signature, pubkey)
	require.NoError(t, err)
	assert.True(t, ok)

	// flipping the data makes verification false, not an error
	ok, err = s.Verify("hello worle", signature, pubkey)
	require.NoError(t, err)
	assert.False(t, ok)

	// flipping a signature byte makes verification false, not an error
	raw, err := base64.StdEncoding.DecodeString(signature)
	require.NoError(t, err)
	raw[10] ^= 0xff
	ok, err = s.Verify("hello world", base64.StdEncoding.EncodeToString(raw), pubkey)
	require.NoError(t, err)
	assert.False(t, ok)

	// a signature of the wrong length is false as well
	ok, err = s.Verify("hello world", base64.StdEncoding.EncodeToString(raw[:32]), pubkey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyMalformedInput(t *testing.T) {
	s := New("test-salt")

	_, err := s.Verify("", "c2ln", "00")
	require.Error(t, err)

	_, err = s.Verify("data", "%%%not-base64%%%", "00")
	require.Error(t, err)

	_, err = s.Verify("data", "c2ln", "not-hex")
	require.Error(t, err)

	_, err = s.Verify("data", "c2ln", "00ff") // too short for a public key
	require.Error(t, err)
}

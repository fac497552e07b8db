// Package signer derives deterministic ed25519 signing keys from a user
// password and produces detached signatures. Determinism is load-bearing:
// a relying party that knows the derivation scheme can recompute the public
// key from the same password and verify signatures independently.
package signer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"stellarid/internal/model"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
)

// Signer derives signing keypairs from (salt, password). The salt is a
// server-wide constant, not a per-user value.
type Signer struct {
	salt string
}

// New creates a Signer with the given server salt.
func New(salt string) *Signer {
	return &Signer{salt: salt}
}

// DeriveKeyPair derives a signing keypair from the plain password.
func (s *Signer) DeriveKeyPair(password string) (*keypair.Full, error) {
	if password == "" {
		return nil, model.ErrInvalidPasswordFormat
	}
	seed := sha256.Sum256([]byte(s.salt + password))
	kp, err := keypair.FromRawSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keypair: %w", err)
	}
	return kp, nil
}

// DerivePublicKey derives the hex-encoded raw public key from the password.
func (s *Signer) DerivePublicKey(password string) (string, error) {
	kp, err := s.DeriveKeyPair(password)
	if err != nil {
		return "", err
	}
	raw, err := strkey.Decode(strkey.VersionByteAccountID, kp.Address())
	if err != nil {
		return "", fmt.Errorf("failed to extract public key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Sign produces a detached signature over data with a key derived from the
// password. The result is base64-encoded (64 raw bytes, 88 characters).
func (s *Signer) Sign(data, password string) (string, error) {
	if data == "" {
		return "", model.Validationf("Invalid data")
	}
	kp, err := s.DeriveKeyPair(password)
	if err != nil {
		return "", err
	}
	signature, err := kp.Sign([]byte(data))
	if err != nil {
		return "", fmt.Errorf("failed to sign data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// Verify checks a detached base64 signature against a hex public key.
// Malformed input is an error; an invalid signature is a normal false.
func (s *Signer) Verify(data, signature, publicKey string) (bool, error) {
	if data == "" {
		return false, model.Validationf("Invalid data")
	}
	rawSignature, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}
	rawPublicKey, err := hex.DecodeString(publicKey)
	if err != nil {
		return false, fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(rawPublicKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("unexpected public key size, want %d, got %d",
			ed25519.PublicKeySize, len(rawPublicKey))
	}
	if len(rawSignature) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(ed25519.PublicKey(rawPublicKey), []byte(data), rawSignature), nil
}

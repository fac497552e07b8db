// Package crypto implements the encrypted-data envelope used by the vault:
// scrypt password derivation plus AES-GCM. The GCM tag makes a wrong
// password fail deterministically instead of yielding garbage plaintext.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"stellarid/internal/model"

	"golang.org/x/crypto/scrypt"
)

const (
	// scrypt parameters, security prioritized over performance.
	//
	// N=2^18 (~256MB RAM, 0.5-2s) - optimal balance:
	//   - Works on phones (4-16GB RAM) and desktops alike
	//   - Brute-force attacks remain extremely expensive
	scryptN      = 1 << 18
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12

	// EncryptionKeyLen is the size of account encryption keys.
	EncryptionKeyLen = 32
)

// Params controls the scrypt work factor. The zero value is unusable; use
// DefaultParams. Tests may substitute lighter parameters.
type Params struct {
	N, R, P int
}

// DefaultParams is the production scrypt configuration.
var DefaultParams = Params{N: scryptN, R: scryptR, P: scryptP}

// Envelope is the serialized form of an encrypted blob. Salt is present only
// for password-derived envelopes; key-encrypted envelopes omit it.
type Envelope struct {
	Salt       string `json:"salt,omitempty"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipherText"`
}

// NewEncryptionKey generates a fresh high-entropy symmetric key.
func NewEncryptionKey() ([]byte, error) {
	key := make([]byte, EncryptionKeyLen)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, nil
}

// SealWithPassword encrypts plaintext under a key derived from password.
// password must be []byte for security (caller should zero it after use)
func SealWithPassword(plaintext, password []byte, p Params) (*Envelope, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key(password, salt, p.N, p.R, p.P, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	env, err := sealWithKey(plaintext, key)
	if err != nil {
		return nil, err
	}
	env.Salt = base64.StdEncoding.EncodeToString(salt)
	return env, nil
}

// OpenWithPassword decrypts an envelope sealed by SealWithPassword. A GCM
// authentication failure is reported as an invalid-password credential error.
func OpenWithPassword(env *Envelope, password []byte, p Params) ([]byte, error) {
	if env == nil || env.CipherText == "" {
		return nil, model.ErrEncryptedDataNotFound
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	key, err := scrypt.Key(password, salt, p.N, p.R, p.P, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	plaintext, err := openWithKey(env, key)
	if err != nil {
		return nil, model.ErrInvalidPassword
	}
	return plaintext, nil
}

// SealWithKey encrypts plaintext directly under a 32-byte symmetric key.
func SealWithKey(plaintext, key []byte) (*Envelope, error) {
	if len(key) != EncryptionKeyLen {
		return nil, fmt.Errorf("unexpected key size, want %d, got %d", EncryptionKeyLen, len(key))
	}
	return sealWithKey(plaintext, key)
}

// OpenWithKey decrypts an envelope sealed by SealWithKey.
func OpenWithKey(env *Envelope, key []byte) ([]byte, error) {
	if env == nil || env.CipherText == "" {
		return nil, model.ErrEncryptedDataNotFound
	}
	if len(key) != EncryptionKeyLen {
		return nil, fmt.Errorf("unexpected key size, want %d, got %d", EncryptionKeyLen, len(key))
	}
	plaintext, err := openWithKey(env, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func sealWithKey(plaintext, key []byte) (*Envelope, error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)
	return &Envelope{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

func openWithKey(env *Envelope, key []byte) ([]byte, error) {
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.CipherText)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aesGCM.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// Package vault manages account records: key material derivation, encrypted
// persistence and password-free session restoration. No other component may
// construct or mutate accessCode/encryptedData.
package vault

import (
	"fmt"
	"sync"

	"stellarid/internal/crypto"
	"stellarid/internal/model"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
)

// Keypair is a single ledger secret key with a user-assigned name. The secret
// is always kept in its network-native seed encoding; the address is derived
// on demand and never stored independently.
type Keypair struct {
	Secret       string `json:"secret"`
	FriendlyName string `json:"friendlyName,omitempty"`
}

// Address derives the public key from the secret. Empty for invalid secrets.
func (k *Keypair) Address() string {
	kp, err := keypair.ParseFull(k.Secret)
	if err != nil {
		return ""
	}
	return kp.Address()
}

// Validate checks the secret key format.
func (k *Keypair) Validate() error {
	if k.Secret == "" {
		return model.ErrEmptySecretKey
	}
	if !strkey.IsValidEd25519SecretSeed(k.Secret) {
		return model.ErrInvalidSecretKey
	}
	return nil
}

// DisplayName is the human-readable label for account lists.
func (k *Keypair) DisplayName() string {
	if k.FriendlyName != "" {
		return fmt.Sprintf("%s (%s)", k.FriendlyName, shortenAddress(k.Address(), 8))
	}
	return shortenAddress(k.Address(), 16)
}

func shortenAddress(address string, visible int) string {
	if len(address) <= visible {
		return address
	}
	half := visible / 2
	return address[:half] + "…" + address[len(address)-half:]
}

// Account is a namespace of key material for one user identity. The presence
// of encryptionKey is the sole discriminator of the unlocked state; keypairs
// may be populated only while encryptionKey is set.
type Account struct {
	Email         string
	Avatar        string
	UseMultiLogin bool

	// mu serializes every transition between the locked and unlocked states
	// and every keypair mutation; concurrent requests may share one account.
	mu sync.Mutex

	// accessCode is the encryption key encrypted under a password-derived
	// value; always persisted.
	accessCode *crypto.Envelope
	// encryptedData is the keypair list encrypted under encryptionKey.
	encryptedData *crypto.Envelope
	// authPublicKey is the password-derived signing public key, set while the
	// multi-login feature is enabled.
	authPublicKey string

	encryptionKey []byte
	keypairs      []*Keypair
}

// Unlocked reports whether the account's sensitive data is decrypted in
// memory. Mutation operations are allowed only on unlocked accounts.
func (a *Account) Unlocked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unlocked()
}

// unlocked is the lock-free variant for callers already holding a.mu.
func (a *Account) unlocked() bool {
	return a.encryptionKey != nil
}

// Keypairs returns a snapshot of the decrypted keypair list, nil while locked.
func (a *Account) Keypairs() []*Keypair {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.unlocked() {
		return nil
	}
	keypairs := make([]*Keypair, len(a.keypairs))
	copy(keypairs, a.keypairs)
	return keypairs
}

// KeypairFor finds a keypair by derived address; nil when absent or locked.
func (a *Account) KeypairFor(address string) *Keypair {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.unlocked() {
		return nil
	}
	for _, kp := range a.keypairs {
		if kp.Address() == address {
			return kp
		}
	}
	return nil
}

// Info returns the public view of the account.
func (a *Account) Info() model.AccountInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return model.AccountInfo{
		Email:         a.Email,
		Avatar:        a.Avatar,
		UseMultiLogin: a.UseMultiLogin,
		Unlocked:      a.unlocked(),
	}
}

// toRecord expects a.mu to be held.
func (a *Account) toRecord() *record {
	return &record{
		Email:         a.Email,
		Avatar:        a.Avatar,
		UseMultiLogin: a.UseMultiLogin,
		EncryptedData: a.encryptedData,
		AccessCode:    a.accessCode,
	}
}

func accountFromRecord(rec *record) *Account {
	return &Account{
		Email:         rec.Email,
		Avatar:        rec.Avatar,
		UseMultiLogin: rec.UseMultiLogin,
		encryptedData: rec.EncryptedData,
		accessCode:    rec.AccessCode,
	}
}

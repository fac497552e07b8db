package vault

import (
	"time"

	"stellarid/internal/crypto"
)

// saveSession persists a password-free re-entry credential: the account's
// encryption key sealed under the session master key, which never leaves the
// device. The session record itself contains no key material in the clear.
// Expects a.mu to be held.
func (m *Manager) saveSession(a *Account, duration time.Duration) error {
	if err := requireUnlocked(a); err != nil {
		return err
	}
	masterKey, err := m.store.SessionMasterKey()
	if err != nil {
		return err
	}
	defer clear(masterKey)
	env, err := crypto.SealWithKey(a.encryptionKey, masterKey)
	if err != nil {
		return err
	}
	return m.store.PutSession(a.Email, env, duration)
}

// restoreSession attempts to recover the encryption key from an unexpired
// session and unlock the account without a password. Best-effort: any
// failure leaves the account locked.
func (m *Manager) restoreSession(a *Account) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	env, err := m.store.GetSession(a.Email)
	if err != nil || env == nil {
		return false
	}
	masterKey, err := m.store.SessionMasterKey()
	if err != nil {
		return false
	}
	defer clear(masterKey)
	key, err := crypto.OpenWithKey(env, masterKey)
	if err != nil || len(key) != crypto.EncryptionKeyLen {
		return false
	}
	a.encryptionKey = key
	if err := m.decryptSensitiveData(a); err != nil {
		a.encryptionKey = nil
		return false
	}
	return true
}

// expireSession removes the session marker for the account.
func (m *Manager) expireSession(a *Account) error {
	return m.store.DeleteSession(a.Email)
}

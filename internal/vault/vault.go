package vault

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"stellarid/internal/crypto"
	"stellarid/internal/model"
	"stellarid/internal/signer"

	"github.com/stellar/go/keypair"
)

const demoEmail = "demo@demo.com"

// demoSessionDuration keeps the demo account unlocked for all practical
// purposes; the value must stay representable as a time.Duration.
const demoSessionDuration = 100 * 365 * 24 * time.Hour

// RemoteRecord is the payload mirrored to the server-side store when the
// multi-login feature is enabled.
type RemoteRecord struct {
	Email         string           `json:"email"`
	Avatar        string           `json:"avatar,omitempty"`
	UseMultiLogin bool             `json:"useMultiLogin"`
	EncryptedData *crypto.Envelope `json:"encryptedData"`
	AccessCode    *crypto.Envelope `json:"accessCode"`
	// AuthPublicKey lets the server verify password-derived signatures
	// without ever seeing the password.
	AuthPublicKey string `json:"authPublicKey,omitempty"`
}

// RemoteStore mirrors account records server-side. Out of scope for the
// local vault; implementations live behind this interface.
type RemoteStore interface {
	Persist(ctx context.Context, rec RemoteRecord) error
}

// Options configures a Manager.
type Options struct {
	// CipherParams overrides the scrypt work factor (tests use light values).
	CipherParams crypto.Params
	// MinPasswordLength defaults to 8.
	MinPasswordLength int
	// Remote receives account mirrors when useMultiLogin is set.
	Remote RemoteStore
	// Signer derives authentication public keys for multi-login.
	Signer *signer.Signer
}

// Manager owns every account mutation. All reads and writes of accessCode
// and encryptedData go through it.
type Manager struct {
	mu             sync.Mutex
	store          *Store
	params         crypto.Params
	minPasswordLen int
	remote         RemoteStore
	signer         *signer.Signer
	accounts       map[string]*Account
}

// NewManager creates a Manager on top of the given store.
func NewManager(store *Store, opts Options) *Manager {
	params := opts.CipherParams
	if params.N == 0 {
		params = crypto.DefaultParams
	}
	minLen := opts.MinPasswordLength
	if minLen == 0 {
		minLen = 8
	}
	return &Manager{
		store:          store,
		params:         params,
		minPasswordLen: minLen,
		remote:         opts.Remote,
		signer:         opts.Signer,
		accounts:       map[string]*Account{},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *Manager) validatePassword(password string) error {
	if len(password) < m.minPasswordLen {
		return model.ErrInvalidPasswordFormat
	}
	return nil
}

// credential is the value the access code is encrypted under.
func credential(email, password string) []byte {
	return []byte(email + password)
}

// requireUnlocked expects a.mu to be held.
func requireUnlocked(a *Account) error {
	if !a.unlocked() {
		return model.Credentialf("Account is encrypted.")
	}
	return nil
}

// Create builds a new unlocked account from credentials. Nothing is
// persisted until Save.
func (m *Manager) Create(email, password string) (*Account, error) {
	email = normalizeEmail(email)
	if len(email) < 5 || !strings.Contains(email, "@") {
		return nil, model.Validationf("Invalid account email %q.", email)
	}
	if err := m.validatePassword(password); err != nil {
		return nil, err
	}

	key, err := crypto.NewEncryptionKey()
	if err != nil {
		return nil, err
	}
	accessCode, err := crypto.SealWithPassword(key, credential(email, password), m.params)
	if err != nil {
		return nil, fmt.Errorf("failed to seal access code: %w", err)
	}

	return &Account{
		Email:         email,
		accessCode:    accessCode,
		encryptionKey: key,
		keypairs:      []*Keypair{},
	}, nil
}

// Unlock decrypts the account's encryption key and sensitive data with the
// password. When sessionDuration > 0 a session is persisted so future loads
// auto-unlock without a password until expiry.
func (m *Manager) Unlock(a *Account, password string, sessionDuration time.Duration) error {
	if err := m.validatePassword(password); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key, err := crypto.OpenWithPassword(a.accessCode, credential(a.Email, password), m.params)
	if err != nil {
		return err
	}
	if len(key) != crypto.EncryptionKeyLen {
		return model.ErrInvalidPassword
	}
	a.encryptionKey = key
	if err := m.decryptSensitiveData(a); err != nil {
		a.encryptionKey = nil
		return err
	}
	if sessionDuration > 0 {
		if err := m.saveSession(a, sessionDuration); err != nil {
			return err
		}
	}
	return nil
}

type sensitiveData struct {
	Keypairs []*Keypair `json:"keypairs"`
}

func (m *Manager) decryptSensitiveData(a *Account) error {
	if a.encryptedData == nil {
		a.keypairs = []*Keypair{}
		return nil
	}
	plaintext, err := crypto.OpenWithKey(a.encryptedData, a.encryptionKey)
	if err != nil {
		return model.ErrInvalidPassword
	}
	defer clear(plaintext)
	var data sensitiveData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return fmt.Errorf("failed to unmarshal account data: %w", err)
	}
	if data.Keypairs == nil {
		data.Keypairs = []*Keypair{}
	}
	a.keypairs = data.Keypairs
	return nil
}

func (m *Manager) encryptSensitiveData(a *Account) error {
	plaintext, err := json.Marshal(sensitiveData{Keypairs: a.keypairs})
	if err != nil {
		return fmt.Errorf("failed to marshal account data: %w", err)
	}
	defer clear(plaintext)
	env, err := crypto.SealWithKey(plaintext, a.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt account data: %w", err)
	}
	a.encryptedData = env
	return nil
}

// Save re-encrypts the keypair list under the current encryption key and
// persists the account record; mirrors it remotely when multi-login is on.
func (m *Manager) Save(ctx context.Context, a *Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return m.saveLocked(ctx, a)
}

// saveLocked expects a.mu to be held.
func (m *Manager) saveLocked(ctx context.Context, a *Account) error {
	if err := requireUnlocked(a); err != nil {
		return err
	}
	if err := m.encryptSensitiveData(a); err != nil {
		return err
	}
	if len(a.keypairs) > 0 {
		avatar, err := avatarQR(a.keypairs[0].Address())
		if err != nil {
			return err
		}
		a.Avatar = avatar
	} else {
		a.Avatar = ""
	}
	if err := m.store.PutAccount(a.toRecord()); err != nil {
		return err
	}

	m.mu.Lock()
	m.accounts[a.Email] = a
	m.mu.Unlock()

	if a.UseMultiLogin && m.remote != nil {
		rec := RemoteRecord{
			Email:         a.Email,
			Avatar:        a.Avatar,
			UseMultiLogin: a.UseMultiLogin,
			EncryptedData: a.encryptedData,
			AccessCode:    a.accessCode,
			AuthPublicKey: a.authPublicKey,
		}
		if err := m.remote.Persist(ctx, rec); err != nil {
			return fmt.Errorf("failed to persist account remotely: %w", err)
		}
	}
	return nil
}

// AddKeypair associates a new keypair with an unlocked account and saves it.
// A keypair whose derived address duplicates an existing one is rejected.
func (m *Manager) AddKeypair(ctx context.Context, a *Account, kp *Keypair) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := requireUnlocked(a); err != nil {
		return err
	}
	if err := kp.Validate(); err != nil {
		return err
	}
	address := kp.Address()
	for _, existing := range a.keypairs {
		if existing.Address() == address {
			return model.Validationf("Account with the same address has been already added.")
		}
	}
	a.keypairs = append(a.keypairs, kp)
	return m.saveLocked(ctx, a)
}

// RemoveKeypair detaches the keypair with the given address and saves.
func (m *Manager) RemoveKeypair(ctx context.Context, a *Account, address string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := requireUnlocked(a); err != nil {
		return err
	}
	kept := make([]*Keypair, 0, len(a.keypairs))
	for _, kp := range a.keypairs {
		if kp.Address() != address {
			kept = append(kept, kp)
		}
	}
	a.keypairs = kept
	return m.saveLocked(ctx, a)
}

// ChangePassword rotates the encryption key and re-seals both envelopes.
// Requires the account to be unlocked; the caller should Save afterwards.
func (m *Manager) ChangePassword(a *Account, newPassword string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := requireUnlocked(a); err != nil {
		return err
	}
	if err := m.validatePassword(newPassword); err != nil {
		return err
	}
	key, err := crypto.NewEncryptionKey()
	if err != nil {
		return err
	}
	accessCode, err := crypto.SealWithPassword(key, credential(a.Email, newPassword), m.params)
	if err != nil {
		return fmt.Errorf("failed to seal access code: %w", err)
	}
	clear(a.encryptionKey)
	a.encryptionKey = key
	a.accessCode = accessCode
	return m.encryptSensitiveData(a)
}

// EnableMultiLogin turns on server-side mirroring. The password is needed to
// derive the authentication public key the server verifies against.
func (m *Manager) EnableMultiLogin(ctx context.Context, a *Account, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := requireUnlocked(a); err != nil {
		return err
	}
	if m.signer == nil {
		return model.Protocolf("Multi-login is not available.")
	}
	authPublicKey, err := m.signer.DerivePublicKey(password)
	if err != nil {
		return err
	}
	a.authPublicKey = authPublicKey
	a.UseMultiLogin = true
	return m.saveLocked(ctx, a)
}

// SignOut clears decrypted material from memory and expires the session.
// This is the only sanctioned way to leave the unlocked state early.
func (m *Manager) SignOut(a *Account) error {
	a.mu.Lock()
	clear(a.encryptionKey)
	a.encryptionKey = nil
	a.keypairs = nil
	a.mu.Unlock()
	return m.expireSession(a)
}

// Delete removes the account and its session from the local store.
func (m *Manager) Delete(a *Account) error {
	if err := m.store.DeleteAccount(a.Email); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.accounts, a.Email)
	m.mu.Unlock()
	return nil
}

// Get returns a previously loaded account by email.
func (m *Manager) Get(email string) *Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[normalizeEmail(email)]
}

// List returns all loaded accounts sorted by email.
func (m *Manager) List() []*Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	accounts := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	return accounts
}

// LoadAccounts reads every persisted account and attempts a best-effort
// session restoration for each. Run once at process start.
func (m *Manager) LoadAccounts() error {
	records, err := m.store.ListAccounts()
	if err != nil {
		return err
	}
	for _, rec := range records {
		a := accountFromRecord(rec)
		m.restoreSession(a)
		m.mu.Lock()
		m.accounts[a.Email] = a
		m.mu.Unlock()
	}
	return nil
}

// EnsureDemoAccount creates (or recreates, if undecryptable) the permanently
// unlocked demo account.
func (m *Manager) EnsureDemoAccount(ctx context.Context) (*Account, error) {
	if existing := m.Get(demoEmail); existing != nil {
		if existing.Unlocked() {
			return existing, nil
		}
		// something went wrong, have to recreate it
		if err := m.Delete(existing); err != nil {
			return nil, err
		}
	}

	password, err := randomPassword()
	if err != nil {
		return nil, err
	}
	demo, err := m.Create(demoEmail, password)
	if err != nil {
		return nil, err
	}
	if err := m.AddKeypair(ctx, demo, &Keypair{
		Secret:       keypair.MustRandom().Seed(),
		FriendlyName: "Demo account",
	}); err != nil {
		return nil, err
	}
	demo.mu.Lock()
	err = m.saveSession(demo, demoSessionDuration)
	demo.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return demo, nil
}

func randomPassword() (string, error) {
	raw := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

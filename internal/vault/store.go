package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stellarid/internal/crypto"

	"github.com/dgraph-io/badger/v3"
)

const (
	accountPrefix    = "account/"
	sessionPrefix    = "session/"
	sessionMasterKey = "session-master-key"
)

// record is the persisted account shape. It never contains plaintext
// keypairs or the encryption key.
type record struct {
	Email         string           `json:"email"`
	Avatar        string           `json:"avatar,omitempty"`
	UseMultiLogin bool             `json:"useMultiLogin"`
	EncryptedData *crypto.Envelope `json:"encryptedData"`
	AccessCode    *crypto.Envelope `json:"accessCode"`
}

// Store is the durable local account/session store.
type Store struct {
	db *badger.DB
}

// OpenStore opens (creating if necessary) the store in the given directory.
func OpenStore(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemoryStore opens a non-persistent store, used by tests.
func OpenInMemoryStore() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutAccount persists an account record keyed by email.
func (s *Store) PutAccount(rec *record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(accountPrefix+rec.Email), data)
	})
}

// GetAccount loads one account record; returns (nil, nil) when absent.
func (s *Store) GetAccount(email string) (*record, error) {
	var rec *record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(accountPrefix + email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec = &record{}
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return rec, nil
}

// DeleteAccount removes the account record and its session.
func (s *Store) DeleteAccount(email string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(accountPrefix + email)); err != nil {
			return err
		}
		return txn.Delete([]byte(sessionPrefix + email))
	})
}

// ListAccounts returns every persisted account record.
func (s *Store) ListAccounts() ([]*record, error) {
	var records []*record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(accountPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec := &record{}
				if err := json.Unmarshal(val, rec); err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate accounts: %w", err)
	}
	return records, nil
}

// PutSession stores a session envelope with the given lifetime. Badger's TTL
// prunes expired sessions on its own.
func (s *Store) PutSession(email string, env *crypto.Envelope, duration time.Duration) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(sessionPrefix+email), data).WithTTL(duration)
		return txn.SetEntry(entry)
	})
}

// GetSession loads an unexpired session envelope; (nil, nil) when absent.
func (s *Store) GetSession(email string) (*crypto.Envelope, error) {
	var env *crypto.Envelope
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionPrefix + email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			env = &crypto.Envelope{}
			return json.Unmarshal(val, env)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return env, nil
}

// DeleteSession removes a session marker.
func (s *Store) DeleteSession(email string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionPrefix + email))
	})
}

// SessionMasterKey returns the locally generated session master key, creating
// and persisting it on first use. The key never leaves the device.
func (s *Store) SessionMasterKey() ([]byte, error) {
	var key []byte
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionMasterKey))
		if err == nil {
			key, err = item.ValueCopy(nil)
			return err
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		key, err = crypto.NewEncryptionKey()
		if err != nil {
			return err
		}
		return txn.Set([]byte(sessionMasterKey), key)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load session master key: %w", err)
	}
	return key, nil
}

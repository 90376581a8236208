package state

import (
	"errors"

	"github.com/ethereum/go-ethereum/rlp"
	bolt "go.etcd.io/bbolt"
)

var (
	errNilManager = errors.New("state: manager not initialised")

	stateBucket = []byte("ledger")
)

// Manager is the key-value persistence layer shared by the accounting
// engines. Values round-trip through RLP; each engine's state binding owns
// its key prefixes.
type Manager struct {
	db *bolt.DB
}

// Open opens (creating if needed) the backing database at path.
func Open(path string) (*Manager, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Manager{db: db}, nil
}

// Close releases the backing database.
func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// KVPut stores the RLP encoding of value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put(key, encoded)
	})
}

// KVGet decodes the value stored under key into out, reporting whether the
// key was present.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errNilManager
	}
	var encoded []byte
	err := m.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(stateBucket).Get(key); data != nil {
			encoded = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if encoded == nil {
		return false, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key if present.
func (m *Manager) KVDelete(key []byte) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Delete(key)
	})
}

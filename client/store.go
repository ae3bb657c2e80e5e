package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// MemoryStore keeps the credentials for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[Namespace]Credentials
}

var _ TokenStore = (*MemoryStore)(nil) // interface compliance check

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[Namespace]Credentials)}
}

func (s *MemoryStore) Load(ns Namespace) (Credentials, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.slots[ns]
	return creds, ok, nil
}

func (s *MemoryStore) Save(ns Namespace, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[ns] = creds
	return nil
}

func (s *MemoryStore) Delete(ns Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, ns)
	return nil
}

var sessionBucket = []byte("Session")

// BoltStore keeps the credentials in a bbolt file, one JSON value per namespace, so a terminal
// session survives restarts.
type BoltStore struct {
	db *bbolt.DB
}

var _ TokenStore = (*BoltStore)(nil) // interface compliance check

// OpenBoltStore opens (or creates) the session file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "creating session directory")
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening session file")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating session bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Load reports a slot whose value no longer decodes as empty and removes it, so a damaged session
// file logs the namespace out instead of failing every request.
func (s *BoltStore) Load(ns Namespace) (Credentials, bool, error) {
	var creds Credentials
	var found, corrupt bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(sessionBucket).Get([]byte(ns))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &creds); err != nil {
			corrupt = true
			return nil
		}
		found = true
		return nil
	})
	if err != nil {
		return Credentials{}, false, err
	}
	if corrupt {
		if err = s.Delete(ns); err != nil {
			return Credentials{}, false, errors.Wrap(err, "removing unreadable session")
		}
		return Credentials{}, false, nil
	}
	return creds, found, nil
}

func (s *BoltStore) Save(ns Namespace, creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(ns), data)
	})
}

func (s *BoltStore) Delete(ns Namespace) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete([]byte(ns))
	})
}

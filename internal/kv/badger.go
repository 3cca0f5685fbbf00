package kv

import (
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rotisserie/eris"
)

// BadgerStore implements Store on an embedded badger database.
type BadgerStore struct {
	db *badger.DB
}

// NewBadger opens (or creates) a badger database at the given directory.
func NewBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, eris.Wrapf(err, "kv: open badger at %s", dir)
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the entry for key, or ErrNotFound.
func (s *BadgerStore) Get(key string) (*Entry, error) {
	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if eris.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return eris.Wrapf(err, "kv: get %s", key)
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entry); err != nil {
				return eris.Wrapf(err, "kv: decode entry %s", key)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put stores the entry under key, replacing any existing value.
func (s *BadgerStore) Put(key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrapf(err, "kv: encode entry %s", key)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return eris.Wrapf(err, "kv: put %s", key)
	}
	return nil
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (s *BadgerStore) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return eris.Wrapf(err, "kv: delete %s", key)
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

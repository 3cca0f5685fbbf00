// Package kv is the persisted key-value store behind the client data
// cache. Entries survive process restarts; TTL policy lives with the
// caller, which deletes entries it considers expired.
package kv

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a key has no entry.
var ErrNotFound = eris.New("kv: key not found")

// Entry is the stored value shape: an opaque payload plus the write time
// the cache layer validates against its TTL.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Store is a persisted string-keyed entry store.
type Store interface {
	Get(key string) (*Entry, error)
	Put(key string, entry *Entry) error
	Delete(key string) error
	Close() error
}

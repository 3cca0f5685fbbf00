// Package store persists geocoding results so repeated address lookups
// skip the rate-limited upstream geocoder. SQLite is the default backend;
// Postgres is available for shared deployments.
package store

import (
	"context"
	"time"
)

// GeocodeRecord is one cached geocoding result. Candidates holds the
// serialized candidate list exactly as the geocode client produced it.
type GeocodeRecord struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Query      string    `json:"query"`
	Candidates []byte    `json:"candidates"`
	CachedAt   time.Time `json:"cached_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Store defines the geocode cache persistence interface.
type Store interface {
	// GetGeocode returns the freshest unexpired record for a normalized
	// key, or nil with no error on a miss.
	GetGeocode(ctx context.Context, key string) (*GeocodeRecord, error)
	SetGeocode(ctx context.Context, key, query string, candidates []byte, ttl time.Duration) error
	DeleteExpiredGeocodes(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

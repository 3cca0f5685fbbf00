package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Geocode_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	candidates := []byte(`[{"lon":-94.57,"lat":39.1,"label":"123 Main St, Springfield"}]`)
	err := st.SetGeocode(ctx, "123 main st springfield", "123 Main St, Springfield", candidates, time.Hour)
	require.NoError(t, err)

	rec, err := st.GetGeocode(ctx, "123 main st springfield")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "123 Main St, Springfield", rec.Query)
	assert.JSONEq(t, string(candidates), string(rec.Candidates))
	assert.NotEmpty(t, rec.ID)
}

func TestSQLite_Geocode_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	rec, err := st.GetGeocode(context.Background(), "never seen")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_Geocode_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.SetGeocode(ctx, "old key", "Old Query", []byte(`[]`), -time.Hour)
	require.NoError(t, err)

	rec, err := st.GetGeocode(ctx, "old key")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_Geocode_FreshestWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetGeocode(ctx, "k", "q", []byte(`["first"]`), time.Hour))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, st.SetGeocode(ctx, "k", "q", []byte(`["second"]`), time.Hour))

	rec, err := st.GetGeocode(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.JSONEq(t, `["second"]`, string(rec.Candidates))
}

func TestSQLite_DeleteExpiredGeocodes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetGeocode(ctx, "live", "q1", []byte(`[]`), time.Hour))
	require.NoError(t, st.SetGeocode(ctx, "dead1", "q2", []byte(`[]`), -time.Hour))
	require.NoError(t, st.SetGeocode(ctx, "dead2", "q3", []byte(`[]`), -time.Minute))

	n, err := st.DeleteExpiredGeocodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, err := st.GetGeocode(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

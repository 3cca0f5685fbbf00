package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/dataset"
	"github.com/movewise/opportunity-cli/internal/geocode"
	"github.com/movewise/opportunity-cli/internal/kv"
	"github.com/movewise/opportunity-cli/internal/objectstore"
	"github.com/movewise/opportunity-cli/internal/store"
)

// appEnv holds the initialized backends shared by the serve, resolve, and
// preload commands.
type appEnv struct {
	Store    store.Store
	KV       kv.Store
	Gateway  *objectstore.Gateway
	Data     *dataset.Cache
	Geocoder geocode.Client
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.KV != nil {
		_ = e.KV.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the geocode store, the persisted dataset cache, the
// object store gateway, and the geocoding client. Callers should defer
// env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	kvStore, err := kv.NewBadger(cfg.Cache.Dir)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "open dataset cache")
	}

	gateway := objectstore.NewGateway(
		cfg.ObjectStore.Endpoint,
		cfg.ObjectStore.PreferredRegion,
		cfg.ObjectStore.FallbackRegions,
		objectstore.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.ObjectStore.TimeoutSecs) * time.Second}),
		objectstore.WithCache(objectstore.NewCache(
			cfg.ObjectStore.CacheMaxEntries,
			time.Duration(cfg.ObjectStore.CacheTTLSecs)*time.Second,
		)),
	)

	data := dataset.NewCache(gateway, kvStore,
		dataset.WithTTL(time.Duration(cfg.Cache.TTLHours)*time.Hour),
	)

	geocoder := geocode.NewCachedClient(
		geocode.NewClient(
			geocode.WithBaseURL(cfg.Geocode.BaseURL),
			geocode.WithCountry(cfg.Geocode.CountryCodes),
			geocode.WithRateLimit(cfg.Geocode.RateLimit),
			geocode.WithUserAgent(cfg.Geocode.UserAgent),
		),
		st,
		geocode.WithCacheTTL(time.Duration(cfg.Geocode.CacheTTLDays)*24*time.Hour),
	)

	return &appEnv{
		Store:    st,
		KV:       kvStore,
		Gateway:  gateway,
		Data:     data,
		Geocoder: geocoder,
	}, nil
}

// initStore opens the geocode cache backend named by store.driver.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		zap.L().Debug("using postgres store")
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		zap.L().Debug("using sqlite store", zap.String("path", cfg.Store.DatabaseURL))
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/enrich"
	"github.com/movewise/opportunity-cli/internal/feature"
	"github.com/movewise/opportunity-cli/internal/maprender"
	"github.com/movewise/opportunity-cli/internal/overlay"
	"github.com/movewise/opportunity-cli/internal/tract"
)

const (
	tractsSourceID = "tracts"
	tractsLayerID  = "tracts-fill"
)

var (
	resolveAddress     string
	resolveLon         float64
	resolveLat         float64
	resolveZoom        float64
	resolveIDColumn    string
	resolveValueColumn string
	resolveBandsPath   string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve an address or coordinate to a scored census tract",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if resolveAddress == "" && (resolveLon == 0 || resolveLat == 0) {
			return eris.New("either --address or both --lon and --lat are required")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enricher, err := loadEnricher()
		if err != nil {
			return err
		}

		fc, err := loadEnrichedTracts(ctx, env, enricher)
		if err != nil {
			return err
		}

		renderer := maprender.NewHeadless(maprender.WithMoveDelay(10 * time.Millisecond))
		if err := renderer.AddSource(tractsSourceID, fc); err != nil {
			return eris.Wrap(err, "add tract source")
		}
		if err := renderer.AddLayer(maprender.Layer{
			ID:     tractsLayerID,
			Source: tractsSourceID,
			Type:   "fill",
		}); err != nil {
			return eris.Wrap(err, "add tract layer")
		}

		resolver := tract.NewResolver(
			env.Geocoder, env.Data, renderer, enricher.Scale(),
			cfg.Datasets.Bucket, cfg.Datasets.TractsKey,
			tract.WithLayerIDs(tractsLayerID),
			tract.WithZoom(resolveZoom),
		)

		var sel *tract.SelectionState
		if resolveAddress != "" {
			sel, err = resolver.ResolveAddress(ctx, resolveAddress)
		} else {
			point := maprender.Point{Lon: resolveLon, Lat: resolveLat}
			sel, err = resolver.ResolveClick(ctx, point, resolveAddress)
		}
		if err != nil {
			return err
		}
		if sel == nil {
			zap.L().Info("nothing to resolve")
			return nil
		}

		highlightSelection(renderer, fc, sel)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sel)
	},
}

// loadEnricher builds the metric enricher from the embedded band config or
// an override file.
func loadEnricher() (*enrich.Enricher, error) {
	ecfg := enrich.DefaultConfig()
	if resolveBandsPath != "" {
		var err error
		ecfg, err = enrich.LoadConfig(resolveBandsPath)
		if err != nil {
			return nil, err
		}
	}
	return enrich.NewEnricher(ecfg)
}

// loadEnrichedTracts fetches the tract boundaries and the metric table,
// then joins metric values onto the boundary features. The collection is
// the same one the resolver will read from the dataset cache.
func loadEnrichedTracts(ctx context.Context, env *appEnv, enricher *enrich.Enricher) (*feature.Collection, error) {
	table, err := env.Data.Table(ctx, cfg.Datasets.Bucket, cfg.Datasets.MetricsKey, true)
	if err != nil {
		return nil, eris.Wrap(err, "load metric table")
	}
	index := enrich.BuildIndex(table, resolveIDColumn, resolveValueColumn)

	fc, err := env.Data.FeatureCollection(ctx, cfg.Datasets.Bucket, cfg.Datasets.TractsKey, true)
	if err != nil {
		return nil, eris.Wrap(err, "load tract boundaries")
	}

	result := enricher.Enrich(fc, index)
	zap.L().Info("tract enrichment complete",
		zap.Int("matched", result.Matched),
		zap.Int("synthesized", result.Synthesized),
		zap.Int("skipped", result.Skipped),
	)
	return fc, nil
}

// highlightSelection draws the selection outline over the matched tract.
// Synthetic matches have no boundary feature to outline.
func highlightSelection(renderer maprender.Renderer, fc *feature.Collection, sel *tract.SelectionState) {
	if sel.TractID == "" {
		return
	}
	for _, f := range fc.Features {
		if f.TractID == sel.TractID || f.Properties[enrich.TractIDProperty] == sel.TractID {
			ov := overlay.NewManager(renderer)
			if err := ov.Highlight(f); err != nil {
				zap.L().Warn("highlight failed", zap.Error(err))
			}
			return
		}
	}
}

func init() {
	resolveCmd.Flags().StringVar(&resolveAddress, "address", "", "street address or place to resolve")
	resolveCmd.Flags().Float64Var(&resolveLon, "lon", 0, "longitude of a map click")
	resolveCmd.Flags().Float64Var(&resolveLat, "lat", 0, "latitude of a map click")
	resolveCmd.Flags().Float64Var(&resolveZoom, "zoom", 12, "viewport zoom after centering")
	resolveCmd.Flags().StringVar(&resolveIDColumn, "id-column", "GEOID", "metric table tract identifier column")
	resolveCmd.Flags().StringVar(&resolveValueColumn, "value-column", "income", "metric table value column")
	resolveCmd.Flags().StringVar(&resolveBandsPath, "bands", "", "override color band config file")
	rootCmd.AddCommand(resolveCmd)
}

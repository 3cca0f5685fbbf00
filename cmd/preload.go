package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var preloadCmd = &cobra.Command{
	Use:   "preload",
	Short: "Warm the dataset cache with the tract boundaries and metric table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			fc, err := env.Data.FeatureCollection(gctx, cfg.Datasets.Bucket, cfg.Datasets.TractsKey, true)
			if err != nil {
				return eris.Wrapf(err, "preload %s", cfg.Datasets.TractsKey)
			}
			zap.L().Info("tract boundaries cached",
				zap.String("key", cfg.Datasets.TractsKey),
				zap.Int("features", len(fc.Features)),
			)
			return nil
		})

		g.Go(func() error {
			table, err := env.Data.Table(gctx, cfg.Datasets.Bucket, cfg.Datasets.MetricsKey, true)
			if err != nil {
				return eris.Wrapf(err, "preload %s", cfg.Datasets.MetricsKey)
			}
			zap.L().Info("metric table cached",
				zap.String("key", cfg.Datasets.MetricsKey),
				zap.Int("rows", len(table.Rows)),
			)
			return nil
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(preloadCmd)
}

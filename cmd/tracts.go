package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/fetch"
	"github.com/movewise/opportunity-cli/internal/tiger"
)

var (
	tractsYear  int
	tractsState string
	tractsURL   string
	tractsDir   string
	tractsOut   string
)

var tractsCmd = &cobra.Command{
	Use:   "tracts",
	Short: "Download TIGER/Line tract boundaries and emit GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		url := tractsURL
		if url == "" {
			url = tiger.TractsURL(tractsYear, tractsState)
		}

		var fetcher fetch.Fetcher
		if strings.HasPrefix(url, "ftp://") {
			fetcher = fetch.NewFTPFetcher(fetch.FTPOptions{})
		} else {
			fetcher = fetch.NewHTTPFetcher(fetch.HTTPOptions{
				RateLimiters: fetch.DefaultRateLimiters(),
			})
		}

		shpPath, err := tiger.Download(ctx, fetcher, url, tractsDir)
		if err != nil {
			return err
		}

		col, err := tiger.ConvertTracts(shpPath)
		if err != nil {
			return err
		}
		zap.L().Info("converted tract boundaries",
			zap.String("shapefile", shpPath),
			zap.Int("features", len(col.Features)),
		)

		data, err := tiger.MarshalCollection(col)
		if err != nil {
			return err
		}

		if tractsOut == "" || tractsOut == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(tractsOut, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", tractsOut)
		}
		zap.L().Info("wrote GeoJSON", zap.String("path", tractsOut))
		return nil
	},
}

func init() {
	tractsCmd.Flags().IntVar(&tractsYear, "year", 2024, "TIGER vintage year")
	tractsCmd.Flags().StringVar(&tractsState, "state", "29", "state FIPS code")
	tractsCmd.Flags().StringVar(&tractsURL, "url", "", "explicit archive URL (http or ftp), overrides --year/--state")
	tractsCmd.Flags().StringVar(&tractsDir, "dir", ".movewise-tiger", "download and extraction directory")
	tractsCmd.Flags().StringVar(&tractsOut, "out", "-", "output GeoJSON path, - for stdout")
	rootCmd.AddCommand(tractsCmd)
}

// Package tiger downloads TIGER/Line census tract archives and converts
// the shapefiles inside them to GeoJSON feature collections that the rest
// of the pipeline understands.
package tiger

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/fetch"
)

// TractsURL returns the Census Bureau URL for a state's tract boundary
// archive for the given TIGER vintage year.
func TractsURL(year int, stateFIPS string) string {
	return fmt.Sprintf("https://www2.census.gov/geo/tiger/TIGER%d/TRACT/tl_%d_%s_tract.zip", year, year, stateFIPS)
}

// TractsFTPURL is the ftp2.census.gov mirror of TractsURL. The FTP site
// sometimes serves archives the HTTPS front end throttles.
func TractsFTPURL(year int, stateFIPS string) string {
	return fmt.Sprintf("ftp://ftp2.census.gov/geo/tiger/TIGER%d/TRACT/tl_%d_%s_tract.zip", year, year, stateFIPS)
}

// Download fetches a TIGER/Line ZIP with the given fetcher and extracts it.
// Returns the path to the extracted .shp file. A ZIP already present in
// destDir is reused rather than re-downloaded.
func Download(ctx context.Context, f fetch.Fetcher, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "tiger.download"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create dest dir")
	}

	parts := strings.Split(url, "/")
	zipName := parts[len(parts)-1]
	zipPath := filepath.Join(destDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading TIGER archive")
		if _, err := f.DownloadToFile(ctx, url, zipPath); err != nil {
			return "", eris.Wrap(err, "tiger: download archive")
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create extract dir")
	}

	if err := extractZIP(zipPath, extractDir); err != nil {
		return "", eris.Wrap(err, "tiger: extract ZIP")
	}

	shpPath, err := findFileByExt(extractDir, ".shp")
	if err != nil {
		return "", eris.Wrap(err, "tiger: find .shp file")
	}

	return shpPath, nil
}

// extractZIP extracts a ZIP archive to the destination directory. Entries
// are flattened to their base names; TIGER archives have no subdirectories.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}

		outFile, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}

		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return eris.Wrapf(err, "extract %s", f.Name)
		}
		_ = outFile.Close()
		_ = rc.Close()
	}

	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}

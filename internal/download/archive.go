package download

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractCSV unpacks the first .csv entry of zipPath next to the archive and
// returns its path. Entry directories are discarded.
func ExtractCSV(zipPath string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			continue
		}

		dest := filepath.Join(filepath.Dir(zipPath), filepath.Base(f.Name))
		if err := extractFile(f, dest); err != nil {
			return "", err
		}
		return dest, nil
	}

	return "", fmt.Errorf("archive %s contains no csv file", filepath.Base(zipPath))
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(dest) //nolint:gosec // dest is a base name joined to the archive's directory
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // exports are trusted public data
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

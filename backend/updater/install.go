package updater

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Install extracts a zipped extension bundle into dir and records its
// version. Entries that would escape dir are skipped.
func Install(dir string, archive []byte, bundleVersion string) error {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("unable to open extension bundle: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create install dir %s: %w", dir, err)
	}

	for _, f := range r.File {
		name := filepath.FromSlash(f.Name)
		if !filepath.IsLocal(name) {
			log.Warnf("skipping bundle entry outside install dir: %s", f.Name)
			continue
		}
		destName := filepath.Join(dir, name)

		if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
			if err := os.MkdirAll(destName, 0o755); err != nil {
				return fmt.Errorf("failed to mkdir %s: %w", destName, err)
			}
			continue
		}

		if err := extractFile(f, destName); err != nil {
			return err
		}
	}

	versionFile := filepath.Join(dir, versionFileName)
	if err := os.WriteFile(versionFile, []byte(bundleVersion), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", versionFile, err)
	}

	log.Infof("extension %s installed in %s", bundleVersion, dir)
	return nil
}

func extractFile(f *zip.File, destName string) error {
	if err := os.MkdirAll(filepath.Dir(destName), 0o755); err != nil {
		return fmt.Errorf("failed to mkdir %s: %w", filepath.Dir(destName), err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open bundle file %s: %w", f.Name, err)
	}
	defer src.Close()

	destFile, err := os.OpenFile(destName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destName, err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", destName, err)
	}
	return nil
}

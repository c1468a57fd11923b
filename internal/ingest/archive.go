package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ZipAndRemove compresses rawPath into a sibling .zip archive (the file is
// stored under its base name, without directories) and deletes the original.
func ZipAndRemove(rawPath string) error {
	zipPath := strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + ".zip"

	src, err := os.Open(rawPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", rawPath, err)
	}
	defer src.Close()

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", zipPath, err)
	}

	zw := zip.NewWriter(out)
	entry, err := zw.Create(filepath.Base(rawPath))
	if err != nil {
		out.Close()
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		zw.Close()
		out.Close()
		return fmt.Errorf("compress %s: %w", rawPath, err)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalize %s: %w", zipPath, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	if err := os.Remove(rawPath); err != nil {
		return fmt.Errorf("remove %s: %w", rawPath, err)
	}
	return nil
}

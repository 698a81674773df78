package main

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// buildArchive zips every file under srcDir carrying the wanted
// extension. Entry names are kept relative to baseDir so the archive
// unpacks into the dated playlist folder. Returns the number of files
// written.
func buildArchive(zipPath, srcDir, baseDir, wantExt string) (int, error) {
	out, err := os.Create(zipPath)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	count := 0

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), wantExt) {
			return nil
		}
		arcname, err := filepath.Rel(baseDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(arcname))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(w, f); err != nil {
			return err
		}
		count++
		return nil
	})
	if walkErr != nil {
		zw.Close()
		return 0, walkErr
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	if count == 0 {
		os.Remove(zipPath)
		return 0, fmt.Errorf("no files matched %s in %s", wantExt, srcDir)
	}
	return count, nil
}

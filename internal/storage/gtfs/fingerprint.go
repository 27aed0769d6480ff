package gtfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/xxh3"
)

// Fingerprint hashes the extract at path. A directory is hashed file by file
// in name order, so renaming or touching files without changing their
// content keeps the same value.
func Fingerprint(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("gtfs: fingerprint: %w", err)
	}
	h := xxh3.New()
	if !info.IsDir() {
		if err := hashFile(h, path); err != nil {
			return 0, err
		}
		return h.Sum64(), nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("gtfs: fingerprint: %w", err)
	}
	sort.Strings(files)
	for _, f := range files {
		rel, _ := filepath.Rel(path, f)
		_, _ = io.WriteString(h, rel)
		if err := hashFile(h, f); err != nil {
			return 0, err
		}
	}
	return h.Sum64(), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("gtfs: fingerprint: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("gtfs: fingerprint %s: %w", path, err)
	}
	return nil
}

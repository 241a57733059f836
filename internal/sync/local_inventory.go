package sync

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalScanner builds the inventory of the local root.
type LocalScanner struct {
	fs           afero.Fs
	root         string
	ignore       *IgnoreList
	fingerprints *Fingerprinter
}

func NewLocalScanner(afs afero.Fs, root string, ignore *IgnoreList, fingerprints *Fingerprinter) *LocalScanner {
	return &LocalScanner{
		fs:           afs,
		root:         root,
		ignore:       ignore,
		fingerprints: fingerprints,
	}
}

// Scan walks the root. Directories are descended but not recorded, symlinks are skipped,
// and a missing root is an empty inventory.
func (s *LocalScanner) Scan() (Inventory, error) {
	inv := make(Inventory)

	exists, err := afero.DirExists(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("local scan: %w", err)
	}
	if !exists {
		slog.Debug("local root missing", "root", s.root)
		return inv, nil
	}

	err = afero.Walk(s.fs, s.root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if path == s.root {
				return walkErr
			}
			slog.Warn("local scan", "path", path, "error", walkErr)
			return nil
		}
		if path == s.root {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("rel path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if s.ignore.ShouldIgnoreDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode()&fs.ModeSymlink != 0 || !info.Mode().IsRegular() {
			return nil
		}
		if s.ignore.ShouldIgnore(rel) {
			return nil
		}

		sum, err := s.fingerprints.Fingerprint(path, info.Size(), info.ModTime())
		if err != nil {
			slog.Warn("fingerprint", "path", path, "error", err)
			return nil
		}

		inv[rel] = &FileRecord{
			RelPath:     rel,
			Path:        path,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Fingerprint: sum,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local scan failed: %w", err)
	}

	return inv, nil
}

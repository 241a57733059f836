package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
)

const defaultFingerprintCacheSize = 4096

type fingerprintKey struct {
	path  string
	size  int64
	mtime int64
}

// Fingerprinter hashes local files and remembers the digest for as long as the
// path, size and mtime stay the same. Safe for concurrent use.
type Fingerprinter struct {
	fs    afero.Fs
	cache *lru.Cache[fingerprintKey, string]
}

func NewFingerprinter(afs afero.Fs, size int) (*Fingerprinter, error) {
	if size <= 0 {
		size = defaultFingerprintCacheSize
	}
	cache, err := lru.New[fingerprintKey, string](size)
	if err != nil {
		return nil, fmt.Errorf("fingerprint cache: %w", err)
	}
	return &Fingerprinter{fs: afs, cache: cache}, nil
}

func (f *Fingerprinter) Fingerprint(path string, size int64, mtime time.Time) (string, error) {
	key := fingerprintKey{path: path, size: size, mtime: mtime.UnixNano()}
	if sum, ok := f.cache.Get(key); ok {
		return sum, nil
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	f.cache.Add(key, sum)
	return sum, nil
}

// FingerprintFile stats path and fingerprints it.
func (f *Fingerprinter) FingerprintFile(path string) (string, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return "", err
	}
	return f.Fingerprint(path, info.Size(), info.ModTime())
}

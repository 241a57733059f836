package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/astra-nvim/astra/internal/config"
	"github.com/astra-nvim/astra/internal/utils"
	"github.com/gofrs/flock"
)

var errSyncRunning = errors.New("another sync of this project is running")

// lockPath names one lock per (local root, endpoint) pair under dataDir, so the
// project tree itself is never touched.
func lockPath(dataDir string, cfg *config.Config) string {
	sum := sha256.Sum256([]byte(cfg.LocalPath + "\x00" + cfg.Endpoint()))
	return filepath.Join(dataDir, "locks", hex.EncodeToString(sum[:8])+".lock")
}

// acquireSyncLock takes the lock without waiting. The returned func releases it.
func acquireSyncLock(path string) (func(), error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, err
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, errSyncRunning
	}
	return func() { lock.Unlock() }, nil
}

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/astra-nvim/astra/internal/utils"
)

const tokenLength = 32

func tokenPath(dataDir string) string {
	return filepath.Join(dataDir, "token")
}

// ensureToken returns the token serve should require, generating and persisting one
// when none was configured.
func ensureToken(dataDir, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	token, err := utils.RandBase34(tokenLength)
	if err != nil {
		return "", err
	}

	path := tokenPath(dataDir)
	if err := utils.EnsureParent(path); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", err
	}
	return token, nil
}

// readToken returns the configured token or the one the last serve wrote.
// No token file means the server runs without auth.
func readToken(dataDir, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	data, err := os.ReadFile(tokenPath(dataDir))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

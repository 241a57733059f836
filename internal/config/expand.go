package config

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
)

// homeDir is swapped out in tests.
var homeDir = homedir.Dir

// ExpandLocal expands a leading "~" or "~/" to the home directory of the current
// process, falling back to the working directory when no home can be determined.
// "~user" forms and tildes elsewhere in the path are left alone.
func ExpandLocal(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}

	base, err := homeDir()
	if err != nil || base == "" {
		if base, err = os.Getwd(); err != nil {
			return p
		}
	}

	if p == "~" {
		return base
	}
	return filepath.Join(base, filepath.FromSlash(p[2:]))
}

// RemoteHome is the home directory assumed for username on the remote host.
func RemoteHome(username string) string {
	if username == "root" {
		return "/root"
	}
	return "/home/" + username
}

// ExpandRemote expands a leading "~" or "~/" in a remote path. The file transfer
// protocols do not expand tildes themselves, so the path is computed client side:
// root maps to /root and everyone else to /home/<username>.
func ExpandRemote(p, username string) string {
	if p == "~" {
		return RemoteHome(username)
	}
	if strings.HasPrefix(p, "~/") {
		return path.Join(RemoteHome(username), p[2:])
	}
	return p
}

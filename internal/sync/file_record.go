package sync

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

// FileRecord describes one file on either side of a sync. Records are built by a
// scanner and never modified afterwards.
type FileRecord struct {
	// RelPath is slash-separated and relative to the inventory root.
	RelPath string
	// Path is absolute on the side the record came from.
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
	// Fingerprint is the SHA-256 of the contents. Remote records only carry one when the
	// journal recorded it for the same size and mtime.
	Fingerprint string
}

// Inventory maps RelPath to record for one side.
type Inventory map[string]*FileRecord

// Roots pairs the local and remote directories being reconciled.
type Roots struct {
	Local  string
	Remote string
}

func (r Roots) LocalPath(rel string) string {
	return filepath.Join(r.Local, filepath.FromSlash(rel))
}

func (r Roots) RemotePath(rel string) string {
	return path.Join(r.Remote, rel)
}

// LocalRel returns p relative to the local root, or false when p lies outside it.
func (r Roots) LocalRel(p string) (string, bool) {
	rel, err := filepath.Rel(r.Local, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// RemoteRel returns p relative to the remote root, or false when p lies outside it.
func (r Roots) RemoteRel(p string) (string, bool) {
	root := path.Clean(r.Remote)
	p = path.Clean(p)
	if root == "/" {
		rel := strings.TrimPrefix(p, "/")
		return rel, rel != ""
	}
	if !strings.HasPrefix(p, root+"/") {
		return "", false
	}
	return p[len(root)+1:], true
}

// sameSecond and newer compare at second precision, the resolution SFTP and FTP report.
func sameSecond(a, b time.Time) bool {
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}

func newer(a, b time.Time) bool {
	return a.Truncate(time.Second).After(b.Truncate(time.Second))
}

package remote

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrConnection means the endpoint could not be reached or the session broke.
	ErrConnection = errors.New("remote: connection failed")
	// ErrAuthentication means the endpoint rejected the configured credential.
	ErrAuthentication = errors.New("remote: authentication failed")
	// ErrNotFound is returned by Stat and Open for paths that do not exist.
	ErrNotFound = errors.New("remote: no such file")
)

// FileInfo describes one entry of a remote listing. Path is absolute on the remote side.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Store is an authenticated session against a remote file tree. Paths are slash-separated
// and absolute. Implementations are not required to be safe for concurrent use.
type Store interface {
	// List returns the direct children of dir. A missing dir yields an empty listing.
	List(ctx context.Context, dir string) ([]FileInfo, error)
	Stat(ctx context.Context, path string) (FileInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Write creates or truncates path. The parent directory must exist.
	Write(ctx context.Context, path string, r io.Reader) error
	Mkdir(ctx context.Context, dir string) error
	MkdirAll(ctx context.Context, dir string) error
	Remove(ctx context.Context, path string) error
	Close() error
}

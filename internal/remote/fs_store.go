package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/spf13/afero"
)

// FsStore serves a remote tree out of an afero filesystem. It backs the "file" protocol
// (mirroring into another local directory) and stands in for a server in tests.
type FsStore struct {
	fs afero.Fs
}

var _ Store = (*FsStore)(nil)

func NewFsStore(afs afero.Fs) *FsStore {
	return &FsStore{fs: afs}
}

func (s *FsStore) List(ctx context.Context, dir string) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, toFileInfo(path.Join(dir, e.Name()), e))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (s *FsStore) Stat(ctx context.Context, p string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}

	info, err := s.fs.Stat(p)
	if err != nil {
		return FileInfo{}, wrapNotExist(p, err)
	}
	return toFileInfo(p, info), nil
}

func (s *FsStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(p)
	if err != nil {
		return nil, wrapNotExist(p, err)
	}
	return f, nil
}

func (s *FsStore) Write(ctx context.Context, p string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", p, err)
	}
	return f.Close()
}

func (s *FsStore) Mkdir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Mkdir(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

func (s *FsStore) MkdirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fs.MkdirAll(dir, 0o755)
}

func (s *FsStore) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		return wrapNotExist(p, err)
	}
	return nil
}

func (s *FsStore) Close() error {
	return nil
}

func toFileInfo(p string, info fs.FileInfo) FileInfo {
	return FileInfo{
		Path:    p,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}

func wrapNotExist(p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", p, err)
}

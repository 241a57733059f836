package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"path"
	"sort"

	"github.com/jlaffaye/ftp"
)

// FTPStore talks to a plain FTP server. Only password authentication is supported.
type FTPStore struct {
	conn *ftp.ServerConn
}

var _ Store = (*FTPStore)(nil)

func dialFTP(ctx context.Context, addr, username, password string) (*FTPStore, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, addr, err)
	}

	if err := conn.Login(username, password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("%w: %s@%s: %w", ErrAuthentication, username, addr, err)
	}

	slog.Debug("ftp connected", "addr", addr, "user", username)
	return &FTPStore{conn: conn}, nil
}

func (s *FTPStore) List(ctx context.Context, dir string) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.conn.List(dir)
	if err != nil {
		if isFileUnavailable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." || e.Type == ftp.EntryTypeLink {
			continue
		}
		infos = append(infos, FileInfo{
			Path:    path.Join(dir, e.Name),
			Name:    e.Name,
			Size:    int64(e.Size),
			ModTime: e.Time,
			IsDir:   e.Type == ftp.EntryTypeFolder,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// Stat lists the parent directory, which every server supports, instead of relying on MLST.
func (s *FTPStore) Stat(ctx context.Context, p string) (FileInfo, error) {
	infos, err := s.List(ctx, path.Dir(p))
	if err != nil {
		return FileInfo{}, err
	}

	name := path.Base(p)
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return FileInfo{}, fmt.Errorf("%s: %w", p, ErrNotFound)
}

func (s *FTPStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := s.conn.Retr(p)
	if err != nil {
		if isFileUnavailable(err) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return resp, nil
}

func (s *FTPStore) Write(ctx context.Context, p string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.conn.Stor(p, r); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func (s *FTPStore) Mkdir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.conn.MakeDir(dir); err != nil {
		if info, statErr := s.Stat(ctx, dir); statErr == nil && info.IsDir {
			return nil
		}
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

func (s *FTPStore) MkdirAll(ctx context.Context, dir string) error {
	dir = path.Clean(dir)
	if dir == "/" || dir == "." {
		return nil
	}
	if err := s.MkdirAll(ctx, path.Dir(dir)); err != nil {
		return err
	}
	return s.Mkdir(ctx, dir)
}

func (s *FTPStore) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.conn.Delete(p); err != nil {
		if isFileUnavailable(err) {
			return fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

func (s *FTPStore) Close() error {
	return s.conn.Quit()
}

func isFileUnavailable(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable
}

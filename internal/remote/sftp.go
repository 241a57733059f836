package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPStore talks to an SSH server's sftp subsystem.
type SFTPStore struct {
	conn   *ssh.Client
	client *sftp.Client
}

var _ Store = (*SFTPStore)(nil)

type sftpOptions struct {
	Addr           string
	Username       string
	Password       string
	PrivateKeyPath string
	KnownHostsPath string
}

func dialSFTP(ctx context.Context, opts sftpOptions) (*SFTPStore, error) {
	auth, err := sshAuth(opts)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            opts.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback(opts.KnownHostsPath),
	}

	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, opts.Addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, opts.Addr, clientConfig)
	if err != nil {
		netConn.Close()
		if isAuthFailure(err) {
			return nil, fmt.Errorf("%w: %s@%s: %w", ErrAuthentication, opts.Username, opts.Addr, err)
		}
		return nil, fmt.Errorf("%w: ssh handshake with %s: %w", ErrConnection, opts.Addr, err)
	}
	conn := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: sftp subsystem on %s: %w", ErrConnection, opts.Addr, err)
	}

	slog.Debug("sftp connected", "addr", opts.Addr, "user", opts.Username)
	return &SFTPStore{conn: conn, client: client}, nil
}

func sshAuth(opts sftpOptions) ([]ssh.AuthMethod, error) {
	if opts.PrivateKeyPath == "" {
		return []ssh.AuthMethod{
			ssh.Password(opts.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = opts.Password
				}
				return answers, nil
			}),
		}, nil
	}

	key, err := os.ReadFile(opts.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read private key: %w", ErrAuthentication, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key %s: %w", ErrAuthentication, opts.PrivateKeyPath, err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

// hostKeyCallback verifies against known_hosts when the file exists and accepts any key otherwise.
func hostKeyCallback(knownHostsPath string) ssh.HostKeyCallback {
	if knownHostsPath != "" {
		if cb, err := knownhosts.New(knownHostsPath); err == nil {
			return cb
		} else if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("known_hosts unreadable, host key not verified", "path", knownHostsPath, "error", err)
		}
	}
	return ssh.InsecureIgnoreHostKey()
}

func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

func (s *SFTPStore) List(ctx context.Context, dir string) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.client.ReadDir(dir)
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

func (s *SFTPStore) Stat(ctx context.Context, p string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}

	info, err := s.client.Stat(p)
	if err != nil {
		return FileInfo{}, wrapNotExist(p, err)
	}
	return toFileInfo(p, info), nil
}

func (s *SFTPStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.client.Open(p)
	if err != nil {
		return nil, wrapNotExist(p, err)
	}
	return f, nil
}

func (s *SFTPStore) Write(ctx context.Context, p string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := s.client.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}

	if _, err := f.ReadFrom(r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", p, err)
	}
	return f.Close()
}

func (s *SFTPStore) Mkdir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.client.Mkdir(dir); err != nil {
		if info, statErr := s.client.Stat(dir); statErr == nil && info.IsDir() {
			return nil
		}
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

func (s *SFTPStore) MkdirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.MkdirAll(dir); err != nil {
		return fmt.Errorf("mkdir -p %s: %w", dir, err)
	}
	return nil
}

func (s *SFTPStore) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Remove(p); err != nil {
		return wrapNotExist(p, err)
	}
	return nil
}

func (s *SFTPStore) Close() error {
	return errors.Join(s.client.Close(), s.conn.Close())
}

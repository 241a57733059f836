package remote

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/astra-nvim/astra/internal/config"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

// Dialer opens a Store for a resolved config.
type Dialer interface {
	Dial(ctx context.Context, cfg *config.Config) (Store, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context, cfg *config.Config) (Store, error)

func (f DialFunc) Dial(ctx context.Context, cfg *config.Config) (Store, error) {
	return f(ctx, cfg)
}

// NetDialer picks a transport from cfg.Protocol.
type NetDialer struct {
	// KnownHostsPath is checked for SFTP host keys. Defaults to ~/.ssh/known_hosts.
	KnownHostsPath string
}

func NewDialer() *NetDialer {
	d := &NetDialer{}
	if home, err := homedir.Dir(); err == nil {
		d.KnownHostsPath = filepath.Join(home, ".ssh", "known_hosts")
	}
	return d
}

func (d *NetDialer) Dial(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Protocol {
	case config.ProtocolSFTP, "":
		return dialSFTP(ctx, sftpOptions{
			Addr:           cfg.Addr(),
			Username:       cfg.Username,
			Password:       cfg.Password,
			PrivateKeyPath: cfg.PrivateKeyPath,
			KnownHostsPath: d.KnownHostsPath,
		})
	case config.ProtocolFTP:
		if cfg.PrivateKeyPath != "" {
			return nil, fmt.Errorf("%w: ftp does not support key authentication", ErrAuthentication)
		}
		return dialFTP(ctx, cfg.Addr(), cfg.Username, cfg.Password)
	case config.ProtocolLocal:
		return NewFsStore(afero.NewOsFs()), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedProtocol, cfg.Protocol)
	}
}

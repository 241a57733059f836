package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"
)

const (
	ToolName      = "astra"
	SettingsDir   = "." + ToolName + "-settings"
	SettingsFile  = "settings.toml"
	EditorDir     = ".vscode"
	EditorFile    = "sftp.json"
	LegacyFile    = ToolName + ".json"
	DefaultPort   = 22
	ProtocolSFTP  = "sftp"
	ProtocolFTP   = "ftp"
	ProtocolLocal = "file"
)

// Format identifies which on-disk layout a Config was read from.
type Format string

const (
	FormatSettings Format = "settings.toml"
	FormatEditor   Format = "vscode-sftp.json"
	FormatLegacy   Format = "astra.json"
)

// Config is the canonical description of one remote endpoint and the local tree it mirrors.
type Config struct {
	Name           string   `json:"-"`
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	Username       string   `json:"username"`
	Password       string   `json:"password,omitempty"`
	PrivateKeyPath string   `json:"private_key_path,omitempty"`
	RemotePath     string   `json:"remote_path"`
	LocalPath      string   `json:"local_path"`
	Language       Language `json:"language,omitempty"`
	Protocol       string   `json:"-"`
	UploadOnSave   bool     `json:"-"`

	// Source is the file the config was read from and Format its layout.
	Source string `json:"-"`
	Format Format `json:"-"`
}

// Validate checks the invariants every resolved config must hold.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	hasPassword := c.Password != ""
	hasKey := c.PrivateKeyPath != ""
	if hasPassword && hasKey {
		return errors.New("password and private key path are mutually exclusive")
	}
	if !hasPassword && !hasKey && c.Protocol != ProtocolLocal {
		return errors.New("either password or private key path is required")
	}

	if c.RemotePath == "" {
		return errors.New("remote path is required")
	}
	if !strings.HasPrefix(c.RemotePath, "/") {
		return fmt.Errorf("remote path %q is not absolute", c.RemotePath)
	}
	if c.LocalPath == "" {
		return errors.New("local path is required")
	}
	if !filepath.IsAbs(c.LocalPath) {
		return fmt.Errorf("local path %q is not absolute", c.LocalPath)
	}

	switch c.Protocol {
	case ProtocolSFTP, ProtocolFTP, ProtocolLocal:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedProtocol, c.Protocol)
	}
	return nil
}

// Addr is the host:port pair to dial.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Endpoint identifies the remote side for bookkeeping, e.g. sftp://alice@example.com:22/srv/www
func (c *Config) Endpoint() string {
	return fmt.Sprintf("%s://%s@%s%s", c.Protocol, c.Username, c.Addr(), c.RemotePath)
}

// Redacted returns a copy safe for printing.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.Password != "" {
		cp.Password = "***"
	}
	return cp
}

// Save writes the config in the legacy astra.json layout.
func (c *Config) Save(fs afero.Fs, path string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return afero.WriteFile(fs, path, data, 0o600)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// markers identify a project root, checked in order.
var markers = []string{SettingsDir, EditorDir, LegacyFile}

// Resolver turns an optional path into a validated Config by walking the format cascade.
type Resolver struct {
	// Fs is the filesystem config files are read from.
	Fs afero.Fs
	// WorkDir is the discovery start point and the default local root.
	WorkDir string
}

type ResolverOption func(*Resolver)

func WithFs(afs afero.Fs) ResolverOption {
	return func(r *Resolver) {
		r.Fs = afs
	}
}

func WithWorkDir(dir string) ResolverOption {
	return func(r *Resolver) {
		r.WorkDir = dir
	}
}

// NewResolver returns a resolver over the OS filesystem rooted at the process working directory.
func NewResolver(opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{Fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(r)
	}

	if r.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("config: working directory: %w", err)
		}
		r.WorkDir = wd
	}

	wd, err := filepath.Abs(r.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("config: working directory: %w", err)
	}
	r.WorkDir = wd
	return r, nil
}

// Resolve loads the config named by explicit, which may be a .toml or .json file, a
// directory, or empty to discover from the working directory.
func (r *Resolver) Resolve(explicit string) (*Config, error) {
	base := r.WorkDir

	if explicit != "" {
		p := ExpandLocal(explicit)
		if !filepath.IsAbs(p) {
			p = filepath.Join(r.WorkDir, p)
		}

		switch strings.ToLower(filepath.Ext(p)) {
		case ".toml":
			return r.resolveFile(p, parseSettingsAt)
		case ".json":
			return r.resolveFile(p, parseEditorAt, parseLegacyAt)
		}

		info, err := r.Fs.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigNotFound, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is neither a .toml/.json file nor a directory", ErrConfigNotFound, p)
		}
		base = p
	}

	var errs []error

	root, found := r.FindProjectRoot(base)
	if found {
		cfg, attemptErrs := r.resolveDir(root)
		if cfg != nil {
			return cfg, nil
		}
		errs = append(errs, attemptErrs...)
		slog.Debug("config cascade failed in project root", "root", root, "base", base)
	}

	if !found || root != base {
		cfg, attemptErrs := r.resolveDir(base)
		if cfg != nil {
			return cfg, nil
		}
		errs = append(errs, attemptErrs...)
	}

	return nil, notFound(base, errs)
}

// FindProjectRoot walks from start towards the filesystem root and returns the first
// directory holding a settings dir, an editor dir or a legacy config file.
func (r *Resolver) FindProjectRoot(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}

	for {
		for _, marker := range markers {
			if _, err := r.Fs.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, true
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type parseFunc func(r *Resolver, path string) (*Config, error)

func parseSettingsAt(r *Resolver, path string) (*Config, error) {
	return parseSettings(r.Fs, path, r.WorkDir)
}

func parseEditorAt(r *Resolver, path string) (*Config, error) {
	return parseEditor(r.Fs, path, r.WorkDir)
}

func parseLegacyAt(r *Resolver, path string) (*Config, error) {
	return parseLegacy(r.Fs, path)
}

// resolveDir tries the three layouts inside dir. It returns the attempt errors that were
// not plain "file absent" results.
func (r *Resolver) resolveDir(dir string) (*Config, []error) {
	attempts := []struct {
		path  string
		parse parseFunc
	}{
		{filepath.Join(dir, SettingsDir, SettingsFile), parseSettingsAt},
		{filepath.Join(dir, EditorDir, EditorFile), parseEditorAt},
		{filepath.Join(dir, LegacyFile), parseLegacyAt},
	}

	var errs []error
	for _, a := range attempts {
		cfg, err := r.load(a.path, a.parse)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return nil, errs
}

func (r *Resolver) resolveFile(path string, parsers ...parseFunc) (*Config, error) {
	var errs []error
	for _, parse := range parsers {
		cfg, err := r.load(path, parse)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return nil, notFound(path, errs)
}

func (r *Resolver) load(path string, parse parseFunc) (*Config, error) {
	cfg, err := parse(r, path)
	if err != nil {
		return nil, err
	}

	cfg.expand(projectDir(path))
	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{Path: path, Format: cfg.Format, Err: err}
	}

	slog.Debug("config resolved", "path", path, "format", cfg.Format, "endpoint", cfg.Endpoint())
	return cfg, nil
}

// expand applies tilde expansion and anchors a relative local root at dir.
func (c *Config) expand(dir string) {
	if c.PrivateKeyPath != "" {
		c.PrivateKeyPath = ExpandLocal(c.PrivateKeyPath)
	}

	c.LocalPath = ExpandLocal(c.LocalPath)
	if c.LocalPath != "" && !filepath.IsAbs(c.LocalPath) {
		c.LocalPath = filepath.Join(dir, c.LocalPath)
	}
	if c.LocalPath != "" {
		c.LocalPath = filepath.Clean(c.LocalPath)
	}

	c.RemotePath = ExpandRemote(c.RemotePath, c.Username)
}

// projectDir is the directory a config file belongs to: the parent of the settings or
// editor dir, or the file's own directory for the legacy layout.
func projectDir(path string) string {
	dir := filepath.Dir(path)
	switch filepath.Base(dir) {
	case SettingsDir, EditorDir:
		return filepath.Dir(dir)
	}
	return dir
}

func notFound(where string, errs []error) error {
	if len(errs) == 0 {
		return fmt.Errorf("%w in %s", ErrConfigNotFound, where)
	}
	return fmt.Errorf("%w in %s: %w", ErrConfigNotFound, where, errors.Join(errs...))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/astra-nvim/astra/internal/config"
	"github.com/astra-nvim/astra/internal/remote"
	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/astra-nvim/astra/internal/utils"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// app carries what every command shares. Tests swap the dialer and working directory.
type app struct {
	v       *viper.Viper
	dataDir string
	dialer  remote.Dialer
	workDir string
	localFs afero.Fs
}

func newApp() *app {
	return &app{
		v:       viper.New(),
		dataDir: appDir,
		dialer:  remote.NewDialer(),
		localFs: afero.NewOsFs(),
	}
}

func (a *app) loadConfig() (*config.Config, error) {
	resolver, err := config.NewResolver(config.WithFs(a.localFs), config.WithWorkDir(a.workDir))
	if err != nil {
		return nil, err
	}

	cfg, err := resolver.Resolve(a.v.GetString("config"))
	if err != nil {
		return nil, err
	}
	slog.Debug("config resolved", "source", cfg.Source, "format", cfg.Format, "endpoint", cfg.Endpoint())
	return cfg, nil
}

// openJournal returns nil without error when the journal is turned off.
func (a *app) openJournal() (*astrasync.Journal, error) {
	if a.v.GetBool("no-journal") {
		return nil, nil
	}

	path, err := utils.ResolvePath(a.v.GetString("journal"))
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureParent(path); err != nil {
		return nil, err
	}
	return astrasync.OpenJournal(path)
}

// session is one dialed store with an engine on top. Close releases both.
type session struct {
	cfg     *config.Config
	store   remote.Store
	journal *astrasync.Journal
	engine  *astrasync.Engine
}

func (a *app) openSession(ctx context.Context) (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	journal, err := a.openJournal()
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	store, err := a.dialer.Dial(ctx, cfg)
	if err != nil {
		closeJournal(journal)
		return nil, err
	}

	opts := []astrasync.EngineOption{astrasync.WithLocalFs(a.localFs)}
	if journal != nil {
		opts = append(opts, astrasync.WithJournal(journal))
	}
	engine, err := astrasync.NewEngine(cfg, store, opts...)
	if err != nil {
		store.Close()
		closeJournal(journal)
		return nil, err
	}

	return &session{cfg: cfg, store: store, journal: journal, engine: engine}, nil
}

func (s *session) Close() error {
	err := s.store.Close()
	if s.journal != nil {
		err = errors.Join(err, s.journal.Close())
	}
	return err
}

func closeJournal(j *astrasync.Journal) {
	if j != nil {
		j.Close()
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func (a *app) dir() (string, error) {
	if a.workDir != "" {
		return a.workDir, nil
	}
	return os.Getwd()
}

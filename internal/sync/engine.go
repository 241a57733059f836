package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/astra-nvim/astra/internal/config"
	"github.com/astra-nvim/astra/internal/remote"
	"github.com/spf13/afero"
)

var ErrOutsideRoot = errors.New("path is outside the sync root")

// Engine reconciles one local root with one remote root. It holds no locks; running two
// engines over the same roots at once is the caller's problem.
type Engine struct {
	roots        Roots
	endpoint     string
	localFs      afero.Fs
	store        remote.Store
	journal      *Journal
	ignore       *IgnoreList
	fingerprints *Fingerprinter
}

type EngineOption func(*Engine)

// WithLocalFs replaces the OS filesystem for the local side.
func WithLocalFs(afs afero.Fs) EngineOption {
	return func(e *Engine) {
		e.localFs = afs
	}
}

// WithJournal enables fingerprint tracking across runs.
func WithJournal(j *Journal) EngineOption {
	return func(e *Engine) {
		e.journal = j
	}
}

func WithFingerprinter(f *Fingerprinter) EngineOption {
	return func(e *Engine) {
		e.fingerprints = f
	}
}

func NewEngine(cfg *config.Config, store remote.Store, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		roots:    Roots{Local: cfg.LocalPath, Remote: cfg.RemotePath},
		endpoint: cfg.Endpoint(),
		localFs:  afero.NewOsFs(),
		store:    store,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.fingerprints == nil {
		fp, err := NewFingerprinter(e.localFs, 0)
		if err != nil {
			return nil, err
		}
		e.fingerprints = fp
	}

	e.ignore = NewIgnoreList(e.localFs, e.roots.Local)
	e.ignore.Load()
	return e, nil
}

func (e *Engine) Roots() Roots {
	return e.roots
}

// Plan scans both sides and diffs them.
func (e *Engine) Plan(ctx context.Context) (*Plan, error) {
	local, err := NewLocalScanner(e.localFs, e.roots.Local, e.ignore, e.fingerprints).Scan()
	if err != nil {
		return nil, err
	}

	remoteInv, err := NewRemoteScanner(e.store, e.roots.Remote, e.ignore, e.journal, e.endpoint).Scan(ctx)
	if err != nil {
		return nil, err
	}

	plan := Diff(local, remoteInv, e.roots)
	slog.Debug("sync plan", "local", len(local), "remote", len(remoteInv), "ops", len(plan.Operations), "skipped", len(plan.Skipped))
	return plan, nil
}

// Run plans and applies. Only scan failures are returned as errors; transfer failures
// end up in the result.
func (e *Engine) Run(ctx context.Context) (*SyncResult, error) {
	plan, err := e.Plan(ctx)
	if err != nil {
		return nil, err
	}

	result := e.apply(ctx, plan.Operations)
	result.Skipped = append(result.Skipped, plan.Skipped...)
	result.finish()

	slog.Info("sync", "transferred", len(result.Transferred), "skipped", len(result.Skipped), "errors", len(result.Errors))
	return result, nil
}

// Upload sends a single file. An empty remotePath maps localPath under the remote root.
func (e *Engine) Upload(ctx context.Context, localPath, remotePath string) error {
	rel, inRoot := e.roots.LocalRel(localPath)
	if remotePath == "" {
		if !inRoot {
			return fmt.Errorf("%s: %w", localPath, ErrOutsideRoot)
		}
		remotePath = e.roots.RemotePath(rel)
	}

	info, err := e.localFs.Stat(localPath)
	if err != nil {
		return &TransferError{Op: OpUpload, Path: localPath, Err: err}
	}
	if info.IsDir() {
		return &TransferError{Op: OpUpload, Path: localPath, Err: errors.New("is a directory")}
	}

	return e.execute(ctx, SyncOperation{
		Type:       OpUpload,
		RelPath:    e.journalKey(rel, inRoot, remotePath),
		LocalPath:  localPath,
		RemotePath: remotePath,
		Size:       info.Size(),
	})
}

// Download fetches a single file. An empty localPath maps remotePath under the local root.
func (e *Engine) Download(ctx context.Context, remotePath, localPath string) error {
	rel, inRoot := e.roots.RemoteRel(remotePath)
	if localPath == "" {
		if !inRoot {
			return fmt.Errorf("%s: %w", remotePath, ErrOutsideRoot)
		}
		localPath = e.roots.LocalPath(rel)
	}

	key := ""
	if inRoot {
		if lrel, ok := e.roots.LocalRel(localPath); ok && lrel == rel {
			key = rel
		}
	}

	return e.execute(ctx, SyncOperation{
		Type:       OpDownload,
		RelPath:    key,
		LocalPath:  localPath,
		RemotePath: remotePath,
	})
}

// journalKey returns rel only when the pair of paths is the one a full sync would use, so
// ad-hoc transfers to other locations never pollute the journal.
func (e *Engine) journalKey(rel string, inRoot bool, remotePath string) string {
	if inRoot && e.roots.RemotePath(rel) == remotePath {
		return rel
	}
	return ""
}

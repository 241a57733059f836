package tasks

import (
	"context"
	"fmt"

	"github.com/astra-nvim/astra/internal/config"
	"github.com/astra-nvim/astra/internal/remote"
	"github.com/astra-nvim/astra/internal/sync"
	"github.com/spf13/afero"
)

// SyncExecutor runs requests against the endpoint in cfg. Every task dials its own
// session; the journal and the fingerprint cache are shared.
type SyncExecutor struct {
	cfg          *config.Config
	dialer       remote.Dialer
	journal      *sync.Journal
	localFs      afero.Fs
	fingerprints *sync.Fingerprinter
}

type SyncExecutorOption func(*SyncExecutor)

func WithExecutorJournal(j *sync.Journal) SyncExecutorOption {
	return func(x *SyncExecutor) {
		x.journal = j
	}
}

func WithExecutorLocalFs(afs afero.Fs) SyncExecutorOption {
	return func(x *SyncExecutor) {
		x.localFs = afs
	}
}

func NewSyncExecutor(cfg *config.Config, dialer remote.Dialer, opts ...SyncExecutorOption) *SyncExecutor {
	x := &SyncExecutor{
		cfg:     cfg,
		dialer:  dialer,
		localFs: afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(x)
	}

	// a failed cache leaves each engine to build its own
	if fp, err := sync.NewFingerprinter(x.localFs, 0); err == nil {
		x.fingerprints = fp
	}
	return x
}

// Execute maps each request type onto the engine. Batch requests report per-file
// failures in the result; single-file requests fail outright.
func (x *SyncExecutor) Execute(ctx context.Context, req Request) (*sync.SyncResult, error) {
	store, err := x.dialer.Dial(ctx, x.cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	opts := []sync.EngineOption{sync.WithLocalFs(x.localFs)}
	if x.journal != nil {
		opts = append(opts, sync.WithJournal(x.journal))
	}
	if x.fingerprints != nil {
		opts = append(opts, sync.WithFingerprinter(x.fingerprints))
	}
	engine, err := sync.NewEngine(x.cfg, store, opts...)
	if err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case FullSyncRequest:
		return engine.Run(ctx)
	case FileUploadRequest:
		if err := engine.Upload(ctx, r.LocalPath, r.RemotePath); err != nil {
			return nil, err
		}
		return sync.TransferResult(r.LocalPath), nil
	case FileDownloadRequest:
		if err := engine.Download(ctx, r.RemotePath, r.LocalPath); err != nil {
			return nil, err
		}
		return sync.TransferResult(r.RemotePath), nil
	case OperationsRequest:
		return engine.Apply(ctx, r.Operations), nil
	default:
		return nil, fmt.Errorf("%w: unsupported request %T", ErrInvalidRequest, req)
	}
}

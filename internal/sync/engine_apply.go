package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// Apply runs ops in order. A failing operation is recorded and the rest still run.
func (e *Engine) Apply(ctx context.Context, ops []SyncOperation) *SyncResult {
	result := e.apply(ctx, ops)
	result.finish()
	return result
}

func (e *Engine) apply(ctx context.Context, ops []SyncOperation) *SyncResult {
	result := newSyncResult()

	for _, op := range ops {
		name := op.RelPath
		if name == "" {
			name = op.LocalPath
		}

		if err := e.execute(ctx, op); err != nil {
			slog.Error("sync", "op", op.Type, "path", name, "error", err)
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		slog.Info("sync", "op", op.Type, "path", name)
		result.Transferred = append(result.Transferred, name)
	}

	return result
}

// execute runs a single operation and wraps any failure in a TransferError.
func (e *Engine) execute(ctx context.Context, op SyncOperation) error {
	var err error
	switch op.Type {
	case OpUpload:
		err = e.upload(ctx, op)
	case OpDownload:
		err = e.download(ctx, op)
	case OpDelete:
		err = e.remove(ctx, op)
	case OpCreateDirectory:
		err = e.store.MkdirAll(ctx, op.RemotePath)
	default:
		err = fmt.Errorf("unknown operation %q", op.Type)
	}

	if err != nil {
		p := op.RelPath
		if p == "" {
			p = op.RemotePath
		}
		return &TransferError{Op: op.Type, Path: p, Err: err}
	}
	return nil
}

// upload writes optimistically and creates the remote parent only when the first write fails.
func (e *Engine) upload(ctx context.Context, op SyncOperation) error {
	f, err := e.localFs.Open(op.LocalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := e.store.Write(ctx, op.RemotePath, f); err != nil {
		parent := path.Dir(op.RemotePath)
		slog.Debug("upload failed, creating remote parent", "dir", parent, "error", err)

		if mkErr := e.store.MkdirAll(ctx, parent); mkErr != nil {
			return fmt.Errorf("%w (mkdir %s: %w)", err, parent, mkErr)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := e.store.Write(ctx, op.RemotePath, f); err != nil {
			return err
		}
	}

	e.record(ctx, op)
	return nil
}

func (e *Engine) download(ctx context.Context, op SyncOperation) error {
	rc, err := e.store.Open(ctx, op.RemotePath)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := e.localFs.MkdirAll(filepath.Dir(op.LocalPath), 0o755); err != nil {
		return err
	}

	f, err := e.localFs.OpenFile(op.LocalPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	// match the remote mtime so the next diff sees the pair as unchanged
	info, err := e.store.Stat(ctx, op.RemotePath)
	if err != nil {
		slog.Warn("stat after download", "path", op.RemotePath, "error", err)
		return nil
	}
	if err := e.localFs.Chtimes(op.LocalPath, info.ModTime, info.ModTime); err != nil {
		slog.Warn("set local mtime", "path", op.LocalPath, "error", err)
	}

	e.record(ctx, op)
	return nil
}

func (e *Engine) remove(ctx context.Context, op SyncOperation) error {
	if err := e.store.Remove(ctx, op.RemotePath); err != nil {
		return err
	}
	if e.journal != nil && op.RelPath != "" {
		if err := e.journal.Delete(e.endpoint, op.RelPath); err != nil {
			slog.Warn("journal delete", "path", op.RelPath, "error", err)
		}
	}
	return nil
}

// record stores the local fingerprint against the remote size and mtime as they are now.
// Journal problems never fail a transfer that already happened.
func (e *Engine) record(ctx context.Context, op SyncOperation) {
	if e.journal == nil || op.RelPath == "" {
		return
	}

	info, err := e.store.Stat(ctx, op.RemotePath)
	if err != nil {
		slog.Warn("journal stat", "path", op.RemotePath, "error", err)
		return
	}

	sum, err := e.fingerprints.FingerprintFile(op.LocalPath)
	if err != nil {
		slog.Warn("journal fingerprint", "path", op.LocalPath, "error", err)
		return
	}

	if err := e.journal.Set(&JournalEntry{
		Endpoint:    e.endpoint,
		Path:        op.RelPath,
		Fingerprint: sum,
		Size:        info.Size,
		ModTime:     info.ModTime,
	}); err != nil {
		slog.Warn("journal set", "path", op.RelPath, "error", err)
	}
}

package watcher

import (
	"log/slog"
	"path/filepath"
	"strings"

	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/astra-nvim/astra/internal/tasks"
	"github.com/spf13/afero"
)

// Submitter queues a task without waiting for it.
type Submitter interface {
	Submit(req tasks.Request) (string, error)
}

// IgnoreFilter drops paths outside root and paths the ignore list excludes.
func IgnoreFilter(root string, ignore *astrasync.IgnoreList) FilterFunc {
	return func(path string) bool {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
		return ignore.ShouldIgnore(filepath.ToSlash(rel))
	}
}

// UploadOnSave submits a single-file upload for every regular file the watcher reports.
// It returns when the watcher's event channel closes.
func UploadOnSave(w *Watcher, afs afero.Fs, submitter Submitter) {
	for path := range w.Events() {
		info, err := afs.Stat(path)
		if err != nil || info.IsDir() {
			// removed or renamed away before the debounce fired
			continue
		}

		id, err := submitter.Submit(tasks.FileUploadRequest{LocalPath: path})
		if err != nil {
			slog.Error("upload on save", "path", path, "error", err)
			continue
		}
		slog.Info("upload on save", "path", path, "task", id)
	}
}

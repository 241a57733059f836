package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/astra-nvim/astra/internal/tasks"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func tempRoot(t *testing.T) string {
	t.Helper()
	// macOS temp dirs live behind a /var -> /private/var symlink
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func startWatcher(t *testing.T, root string, opts ...Option) *Watcher {
	t.Helper()
	w := New(root, append([]Option{WithDebounce(20 * time.Millisecond)}, opts...)...)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func next(t *testing.T, w *Watcher) string {
	t.Helper()
	select {
	case p := <-w.Events():
		return p
	case <-time.After(waitFor):
		require.FailNow(t, "timeout waiting for file event")
		return ""
	}
}

func TestWatcher_ReportsWrite(t *testing.T) {
	root := tempRoot(t)
	w := startWatcher(t, root)

	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main"), 0o644))

	assert.Equal(t, file, next(t, w))
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := tempRoot(t)
	w := startWatcher(t, root, WithDebounce(100*time.Millisecond))

	file := filepath.Join(root, "burst.txt")
	f, err := os.Create(file)
	require.NoError(t, err)
	for range 5 {
		_, err := f.WriteString("chunk\n")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	assert.Equal(t, file, next(t, w))
	select {
	case p := <-w.Events():
		assert.Failf(t, "unexpected second event", "path %s", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoreOnce(t *testing.T) {
	root := tempRoot(t)
	w := startWatcher(t, root, WithDebounce(50*time.Millisecond))

	ignored := filepath.Join(root, "downloaded.txt")
	w.IgnoreOnce(ignored)
	require.NoError(t, os.WriteFile(ignored, []byte("from remote"), 0o644))

	time.Sleep(200 * time.Millisecond)
	other := filepath.Join(root, "edited.txt")
	require.NoError(t, os.WriteFile(other, []byte("by hand"), 0o644))
	assert.Equal(t, other, next(t, w))

	// only the first event is swallowed
	require.NoError(t, os.WriteFile(ignored, []byte("edited later"), 0o644))
	assert.Equal(t, ignored, next(t, w))
}

func TestWatcher_IgnoreOnceExpires(t *testing.T) {
	root := tempRoot(t)
	w := startWatcher(t, root, WithIgnoreTimeout(10*time.Millisecond))

	file := filepath.Join(root, "late.txt")
	w.IgnoreOnce(file)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.Equal(t, file, next(t, w))
}

func TestWatcher_FilterDropsIgnoredPaths(t *testing.T) {
	root := tempRoot(t)
	ignore := astrasync.NewIgnoreList(afero.NewOsFs(), root)
	ignore.Load()
	w := startWatcher(t, root, WithFilter(IgnoreFilter(root, ignore)))

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.swp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "astra.json"), []byte("{}"), 0o644))
	kept := filepath.Join(root, "kept.txt")
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0o644))

	assert.Equal(t, kept, next(t, w))
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	w := New(tempRoot(t))
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestIgnoreFilter(t *testing.T) {
	ignore := astrasync.NewIgnoreList(afero.NewMemMapFs(), "/work")
	ignore.Load()
	filter := IgnoreFilter("/work", ignore)

	assert.True(t, filter("/elsewhere/a.txt"))
	assert.True(t, filter("/work"))
	assert.True(t, filter("/work/.git/HEAD"))
	assert.True(t, filter("/work/.vscode/sftp.json"))
	assert.False(t, filter("/work/src/main.go"))
	assert.False(t, filter("/work/..hidden"))
}

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []tasks.Request
}

func (r *recordingSubmitter) Submit(req tasks.Request) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return "id", nil
}

func (r *recordingSubmitter) Requests() []tasks.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tasks.Request{}, r.reqs...)
}

func TestUploadOnSave_SubmitsFileUploads(t *testing.T) {
	root := tempRoot(t)
	w := New(root, WithDebounce(20*time.Millisecond))
	require.NoError(t, w.Start(context.Background()))

	sub := &recordingSubmitter{}
	done := make(chan struct{})
	go func() {
		UploadOnSave(w, afero.NewOsFs(), sub)
		close(done)
	}()

	file := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main"), 0o644))

	require.Eventually(t, func() bool { return len(sub.Requests()) > 0 }, waitFor, 10*time.Millisecond)
	w.Stop()
	<-done

	assert.Equal(t, tasks.FileUploadRequest{LocalPath: file}, sub.Requests()[0])
}

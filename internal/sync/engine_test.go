package sync

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/astra-nvim/astra/internal/config"
	"github.com/astra-nvim/astra/internal/remote"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	localRoot  = "/home/me/proj"
	remoteRoot = "/srv/www"
)

type harness struct {
	localFs  afero.Fs
	remoteFs afero.Fs
	store    remote.Store
	journal  *Journal
	engine   *Engine
}

func testConfig() *config.Config {
	return &config.Config{
		Host:       "localhost",
		Port:       22,
		Username:   "me",
		RemotePath: remoteRoot,
		LocalPath:  localRoot,
		Protocol:   config.ProtocolLocal,
	}
}

func newHarness(t *testing.T, withJournal bool) *harness {
	t.Helper()

	h := &harness{
		localFs:  afero.NewMemMapFs(),
		remoteFs: afero.NewMemMapFs(),
	}
	require.NoError(t, h.localFs.MkdirAll(localRoot, 0o755))
	require.NoError(t, h.remoteFs.MkdirAll(remoteRoot, 0o755))
	h.store = remote.NewFsStore(h.remoteFs)

	if withJournal {
		j, err := OpenJournal(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { j.Close() })
		h.journal = j
	}

	h.rebuild(t)
	return h
}

// rebuild recreates the engine so it picks up a new store or ignore file.
func (h *harness) rebuild(t *testing.T) {
	t.Helper()
	opts := []EngineOption{WithLocalFs(h.localFs)}
	if h.journal != nil {
		opts = append(opts, WithJournal(h.journal))
	}
	e, err := NewEngine(testConfig(), h.store, opts...)
	require.NoError(t, err)
	h.engine = e
}

func writeFile(t *testing.T, afs afero.Fs, p, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, afs.MkdirAll(path.Dir(p), 0o755))
	require.NoError(t, afero.WriteFile(afs, p, []byte(content), 0o644))
	if !mtime.IsZero() {
		require.NoError(t, afs.Chtimes(p, mtime, mtime))
	}
}

func readFile(t *testing.T, afs afero.Fs, p string) string {
	t.Helper()
	data, err := afero.ReadFile(afs, p)
	require.NoError(t, err)
	return string(data)
}

func opsOf(plan *Plan) map[string]OpType {
	ops := map[string]OpType{}
	for _, op := range plan.Operations {
		ops[op.RelPath] = op.Type
	}
	return ops
}

func TestEngine_UploadAndDownloadScenario(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	writeFile(t, h.localFs, localRoot+"/a.txt", "local a", time.Time{})
	writeFile(t, h.remoteFs, remoteRoot+"/b.txt", "remote b", time.Time{})

	plan, err := h.engine.Plan(ctx)
	require.NoError(t, err)
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, OpUpload, plan.Operations[0].Type)
	assert.Equal(t, "a.txt", plan.Operations[0].RelPath)
	assert.Equal(t, remoteRoot+"/a.txt", plan.Operations[0].RemotePath)
	assert.Equal(t, OpDownload, plan.Operations[1].Type)
	assert.Equal(t, "b.txt", plan.Operations[1].RelPath)
	assert.Equal(t, localRoot+"/b.txt", plan.Operations[1].LocalPath)

	result, err := h.engine.Run(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, result.Transferred)
	assert.Empty(t, result.Errors)

	assert.Equal(t, "local a", readFile(t, h.remoteFs, remoteRoot+"/a.txt"))
	assert.Equal(t, "remote b", readFile(t, h.localFs, localRoot+"/b.txt"))
}

func TestEngine_Idempotent(t *testing.T) {
	for _, withJournal := range []bool{false, true} {
		name := "timestamps only"
		if withJournal {
			name = "with journal"
		}

		t.Run(name, func(t *testing.T) {
			h := newHarness(t, withJournal)
			ctx := context.Background()

			writeFile(t, h.localFs, localRoot+"/a.txt", "a", time.Time{})
			writeFile(t, h.localFs, localRoot+"/nested/deep/c.txt", "c", time.Time{})
			writeFile(t, h.remoteFs, remoteRoot+"/b.txt", "b", time.Now().Add(-time.Hour))
			writeFile(t, h.remoteFs, remoteRoot+"/lib/d.txt", "d", time.Now().Add(-time.Hour))

			first, err := h.engine.Run(ctx)
			require.NoError(t, err)
			require.True(t, first.Success, first.Errors)
			assert.Len(t, first.Transferred, 4)

			plan, err := h.engine.Plan(ctx)
			require.NoError(t, err)
			assert.Empty(t, plan.Operations)
			assert.ElementsMatch(t, []string{"a.txt", "b.txt", "lib/d.txt", "nested/deep/c.txt"}, plan.Skipped)

			second, err := h.engine.Run(ctx)
			require.NoError(t, err)
			assert.Empty(t, second.Transferred)
			assert.Equal(t, "Everything up to date", second.Message)
		})
	}
}

func TestEngine_LocalNewerUploads(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	writeFile(t, h.remoteFs, remoteRoot+"/a.txt", "stale", old)
	writeFile(t, h.localFs, localRoot+"/a.txt", "fresh", time.Time{})

	plan, err := h.engine.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]OpType{"a.txt": OpUpload}, opsOf(plan))

	_, err = h.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", readFile(t, h.remoteFs, remoteRoot+"/a.txt"))
}

func TestEngine_JournalCatchesOlderLocalEdit(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	writeFile(t, h.localFs, localRoot+"/a.txt", "v1", time.Time{})
	_, err := h.engine.Run(ctx)
	require.NoError(t, err)

	// restored from an old checkout: different content, older mtime
	writeFile(t, h.localFs, localRoot+"/a.txt", "v0", time.Now().Add(-24*time.Hour))

	plan, err := h.engine.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]OpType{"a.txt": OpUpload}, opsOf(plan))

	// without the journal the older mtime wins and nothing happens
	noJournal, err := NewEngine(testConfig(), h.store, WithLocalFs(h.localFs))
	require.NoError(t, err)
	plan, err = noJournal.Plan(ctx)
	require.NoError(t, err)
	assert.Empty(t, plan.Operations)
}

func TestEngine_IgnoredPaths(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	writeFile(t, h.localFs, localRoot+"/.git/HEAD", "ref", time.Time{})
	writeFile(t, h.localFs, localRoot+"/.astra-settings/settings.toml", "x", time.Time{})
	writeFile(t, h.localFs, localRoot+"/astra.json", "{}", time.Time{})
	writeFile(t, h.localFs, localRoot+"/main.go.swp", "x", time.Time{})
	writeFile(t, h.localFs, localRoot+"/build/out.bin", "x", time.Time{})
	writeFile(t, h.localFs, localRoot+"/.astraignore", "build/\n", time.Time{})
	writeFile(t, h.localFs, localRoot+"/main.go", "package main", time.Time{})
	writeFile(t, h.remoteFs, remoteRoot+"/.vscode/settings.json", "{}", time.Time{})
	h.rebuild(t)

	plan, err := h.engine.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]OpType{"main.go": OpUpload}, opsOf(plan))
	assert.Empty(t, plan.Skipped)
}

func TestEngine_EmptyRoots(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.localFs.RemoveAll(localRoot))
	require.NoError(t, h.remoteFs.RemoveAll(remoteRoot))

	result, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Transferred)
	assert.Empty(t, result.Skipped)
}

// parentCheckingStore refuses writes into missing directories like a real server does.
type parentCheckingStore struct {
	*remote.FsStore
	afs    afero.Fs
	failOn string
	writes int
}

func (s *parentCheckingStore) Write(ctx context.Context, p string, r io.Reader) error {
	s.writes++
	if p == s.failOn {
		return errors.New("permission denied")
	}
	if ok, _ := afero.DirExists(s.afs, path.Dir(p)); !ok {
		return errors.New("no such file")
	}
	return s.FsStore.Write(ctx, p, r)
}

func TestEngine_ApplyCreatesParentsAndContinuesOnError(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	store := &parentCheckingStore{
		FsStore: remote.NewFsStore(h.remoteFs),
		afs:     h.remoteFs,
		failOn:  remoteRoot + "/bad.txt",
	}
	h.store = store
	h.rebuild(t)

	writeFile(t, h.localFs, localRoot+"/bad.txt", "x", time.Time{})
	writeFile(t, h.localFs, localRoot+"/new/dir/good.txt", "good", time.Time{})

	result, err := h.engine.Run(ctx)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, []string{"new/dir/good.txt"}, result.Transferred)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad.txt")
	assert.Equal(t, "Synced 1 file(s), 1 failed", result.Message)
	assert.Equal(t, "good", readFile(t, h.remoteFs, remoteRoot+"/new/dir/good.txt"))
}

func TestEngine_ApplyExplicitOperations(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	writeFile(t, h.remoteFs, remoteRoot+"/old.txt", "x", time.Time{})

	result := h.engine.Apply(ctx, []SyncOperation{
		{Type: OpCreateDirectory, RelPath: "assets", RemotePath: remoteRoot + "/assets"},
		{Type: OpDelete, RelPath: "old.txt", RemotePath: remoteRoot + "/old.txt"},
		{Type: OpDelete, RelPath: "missing.txt", RemotePath: remoteRoot + "/missing.txt"},
		{Type: OpType("Rename"), RelPath: "x"},
	})

	assert.Equal(t, []string{"assets", "old.txt"}, result.Transferred)
	require.Len(t, result.Errors, 2)
	assert.True(t, strings.Contains(result.Errors[1], "unknown operation"))

	isDir, err := afero.DirExists(h.remoteFs, remoteRoot+"/assets")
	require.NoError(t, err)
	assert.True(t, isDir)

	exists, err := afero.Exists(h.remoteFs, remoteRoot+"/old.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEngine_SingleFileTransfers(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	writeFile(t, h.localFs, localRoot+"/src/app.js", "app", time.Time{})
	require.NoError(t, h.engine.Upload(ctx, localRoot+"/src/app.js", ""))
	assert.Equal(t, "app", readFile(t, h.remoteFs, remoteRoot+"/src/app.js"))

	entry, err := h.journal.Get(h.engine.endpoint, "src/app.js")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(3), entry.Size)

	mtime := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	writeFile(t, h.remoteFs, remoteRoot+"/docs/readme.md", "docs", mtime)
	require.NoError(t, h.engine.Download(ctx, remoteRoot+"/docs/readme.md", ""))
	assert.Equal(t, "docs", readFile(t, h.localFs, localRoot+"/docs/readme.md"))

	info, err := h.localFs.Stat(localRoot + "/docs/readme.md")
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime), "local mtime follows the remote")

	err = h.engine.Upload(ctx, "/tmp/elsewhere.txt", "")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	err = h.engine.Download(ctx, remoteRoot+"/nope.txt", "")
	var terr *TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, OpDownload, terr.Op)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

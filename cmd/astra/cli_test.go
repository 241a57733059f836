package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/astra-nvim/astra/internal/config"
	"github.com/astra-nvim/astra/internal/controlplane"
	"github.com/astra-nvim/astra/internal/controlplane/middleware"
	"github.com/astra-nvim/astra/internal/remote"
	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/astra-nvim/astra/internal/taskclient"
	"github.com/astra-nvim/astra/internal/tasks"
	"github.com/astra-nvim/astra/internal/version"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteRoot = "/srv/www"

const legacyConfig = `{
  "host": "example.com",
  "port": 22,
  "username": "me",
  "password": "hunter2",
  "remote_path": "/srv/www",
  "local_path": "."
}`

type testEnv struct {
	a         *app
	project   string
	remoteDir string
	dataDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		project:   t.TempDir(),
		remoteDir: t.TempDir(),
		dataDir:   t.TempDir(),
	}
	require.NoError(t, os.MkdirAll(env.remotePath(""), 0o755))

	remoteFs := afero.NewBasePathFs(afero.NewOsFs(), env.remoteDir)
	env.a = newApp()
	env.a.workDir = env.project
	env.a.dataDir = env.dataDir
	env.a.dialer = remote.DialFunc(func(ctx context.Context, cfg *config.Config) (remote.Store, error) {
		return remote.NewFsStore(remoteFs), nil
	})
	return env
}

func (e *testEnv) remotePath(rel string) string {
	return filepath.Join(e.remoteDir, filepath.FromSlash(testRemoteRoot), filepath.FromSlash(rel))
}

func (e *testEnv) writeConfig(t *testing.T) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.project, config.LegacyFile), []byte(legacyConfig), 0o600))
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	e.a.v = viper.New()
	cmd := newRootCmd(e.a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--journal", filepath.Join(e.dataDir, "journal.db")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func decodeResult(t *testing.T, out string) astrasync.SyncResult {
	t.Helper()
	var result astrasync.SyncResult
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	return result
}

func TestSyncCommand_UploadsThenIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t)
	writeFile(t, filepath.Join(env.project, "a.txt"), "local a")
	writeFile(t, filepath.Join(env.project, "src", "main.go"), "package main")
	writeFile(t, env.remotePath("b.txt"), "remote b")

	out, err := env.run(t, "sync")
	require.NoError(t, err, out)

	result := decodeResult(t, out)
	assert.True(t, result.Success)
	assert.ElementsMatch(t, []string{"a.txt", "src/main.go", "b.txt"}, result.Transferred)
	assert.Empty(t, result.Errors)

	assert.Equal(t, "local a", readFile(t, env.remotePath("a.txt")))
	assert.Equal(t, "package main", readFile(t, env.remotePath("src/main.go")))
	assert.Equal(t, "remote b", readFile(t, filepath.Join(env.project, "b.txt")))
	assert.NoFileExists(t, env.remotePath(config.LegacyFile), "the config file is never uploaded")

	out, err = env.run(t, "sync")
	require.NoError(t, err, out)
	result = decodeResult(t, out)
	assert.Equal(t, "Everything up to date", result.Message)
	assert.Empty(t, result.Transferred)
	assert.ElementsMatch(t, []string{"a.txt", "src/main.go", "b.txt"}, result.Skipped)
}

func TestSyncCommand_RefusesWhileLocked(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t)

	env.a.v = viper.New()
	cfg, err := env.a.loadConfig()
	require.NoError(t, err)

	unlock, err := acquireSyncLock(lockPath(env.dataDir, cfg))
	require.NoError(t, err)

	_, err = env.run(t, "sync")
	assert.ErrorIs(t, err, errSyncRunning)

	unlock()
	_, err = env.run(t, "sync")
	assert.NoError(t, err)
}

func TestSyncCommand_NoConfig(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "sync")
	assert.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestStatusCommand(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t)
	writeFile(t, filepath.Join(env.project, "a.txt"), "local a")
	writeFile(t, env.remotePath("docs/b.txt"), "remote b")

	out, err := env.run(t, "status", "--json")
	require.NoError(t, err, out)

	var plan astrasync.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, astrasync.OpUpload, plan.Operations[0].Type)
	assert.Equal(t, "a.txt", plan.Operations[0].RelPath)
	assert.Equal(t, astrasync.OpDownload, plan.Operations[1].Type)
	assert.Equal(t, "docs/b.txt", plan.Operations[1].RelPath)

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "docs/b.txt")
	assert.Contains(t, out, "to upload")

	assert.NoFileExists(t, env.remotePath("a.txt"), "status never transfers")
}

func TestUploadAndDownloadCommands(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t)
	writeFile(t, filepath.Join(env.project, "notes", "todo.md"), "- ship")
	writeFile(t, env.remotePath("data/seed.sql"), "insert")

	out, err := env.run(t, "upload", "-l", "notes/todo.md")
	require.NoError(t, err, out)
	assert.Equal(t, "- ship", readFile(t, env.remotePath("notes/todo.md")))

	out, err = env.run(t, "download", "-r", "data/seed.sql")
	require.NoError(t, err, out)
	assert.Equal(t, "insert", readFile(t, filepath.Join(env.project, "data", "seed.sql")))

	remoteInfo, err := os.Stat(env.remotePath("data/seed.sql"))
	require.NoError(t, err)
	localInfo, err := os.Stat(filepath.Join(env.project, "data", "seed.sql"))
	require.NoError(t, err)
	assert.Equal(t, remoteInfo.ModTime().Unix(), localInfo.ModTime().Unix())

	_, err = env.run(t, "upload")
	assert.Error(t, err)

	_, err = env.run(t, "upload", "-l", filepath.Join(t.TempDir(), "outside.txt"))
	assert.ErrorIs(t, err, astrasync.ErrOutsideRoot)
}

func TestConfigTestCommand(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t)
	writeFile(t, env.remotePath("index.html"), "<h1>hi</h1>")

	out, err := env.run(t, "config-test")
	require.NoError(t, err, out)
	assert.Contains(t, out, "example.com:22")
	assert.Contains(t, out, env.project)
	assert.Contains(t, out, "1 entries")
	assert.NotContains(t, out, "hunter2")

	env.a.dialer = remote.DialFunc(func(context.Context, *config.Config) (remote.Store, error) {
		return nil, remote.ErrAuthentication
	})
	_, err = env.run(t, "config-test")
	assert.ErrorIs(t, err, remote.ErrAuthentication)

	_, err = env.run(t, "config-test", "--offline")
	assert.NoError(t, err)
}

func TestInitCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "init", "--host", "example.com", "-u", "me", "--password", "pw", "-r", "~/app")
	require.NoError(t, err, out)
	assert.Contains(t, out, "/home/me/app")

	env.a.v = viper.New()
	cfg, err := env.a.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.FormatLegacy, cfg.Format)
	assert.Equal(t, "/home/me/app", cfg.RemotePath)
	assert.Equal(t, env.project, cfg.LocalPath)

	_, err = env.run(t, "init", "--host", "other", "-u", "me", "--password", "pw", "-r", "/x")
	assert.ErrorContains(t, err, "already exists")

	_, err = env.run(t, "init", "--force", "--host", "other", "-u", "me", "--password", "pw", "--key", "/k", "-r", "/x")
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestVersionCommand(t *testing.T) {
	out, err := newTestEnv(t).run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.Detailed(), strings.TrimSpace(out))
}

func TestTaskCommands(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t)
	writeFile(t, filepath.Join(env.project, "a.txt"), "local a")

	env.a.v = viper.New()
	cfg, err := env.a.loadConfig()
	require.NoError(t, err)

	m := tasks.NewManager(tasks.NewSyncExecutor(cfg, env.a.dialer))
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	srv := httptest.NewServer(controlplane.SetupRoutes(m, &controlplane.RouteConfig{
		Auth:      middleware.TokenAuthConfig{Token: "tok"},
		RateLimit: 1000,
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		m.Wait()
	})

	token, err := ensureToken(env.dataDir, "")
	require.NoError(t, err)
	require.Len(t, token, tokenLength)
	addr := strings.TrimPrefix(srv.URL, "http://")

	_, err = env.run(t, "task", "list", "--addr", addr)
	assert.ErrorIs(t, err, taskclient.ErrUnauthorized, "the generated token does not match this server")

	out, err := env.run(t, "task", "submit", "upload", "a.txt", "--wait", "--addr", addr, "--token", "tok")
	require.NoError(t, err, out)

	var task tasks.Task
	require.NoError(t, json.Unmarshal([]byte(out), &task), out)
	assert.Equal(t, tasks.TaskStatusCompleted, task.Status)
	assert.Equal(t, "local a", readFile(t, env.remotePath("a.txt")))

	out, err = env.run(t, "task", "list", "--addr", addr, "--token", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, task.ID)
	assert.Contains(t, out, "completed")

	out, err = env.run(t, "task", "cancel", task.ID, "--addr", addr, "--token", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, "run to completion")

	_, err = env.run(t, "task", "get", "nope", "--addr", addr, "--token", "tok")
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)

	out, err = env.run(t, "task", "cleanup", "--max-age", "0s", "--addr", addr, "--token", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, "removed")
}

func TestBuildRequest(t *testing.T) {
	env := newTestEnv(t)
	opsFile := filepath.Join(t.TempDir(), "ops.json")
	writeFile(t, opsFile, `[{"type":"CreateDirectory","rel_path":"logs","remote_path":"/srv/www/logs"}]`)

	cases := []struct {
		args []string
		want tasks.Request
	}{
		{[]string{"full"}, tasks.FullSyncRequest{}},
		{[]string{"upload", "a.txt"}, tasks.FileUploadRequest{LocalPath: filepath.Join(env.project, "a.txt")}},
		{[]string{"upload", "a.txt", "/tmp/a.txt"}, tasks.FileUploadRequest{LocalPath: filepath.Join(env.project, "a.txt"), RemotePath: "/tmp/a.txt"}},
		{[]string{"download", "/srv/www/b.txt"}, tasks.FileDownloadRequest{RemotePath: "/srv/www/b.txt"}},
	}
	for _, tc := range cases {
		got, err := env.a.buildRequest(tc.args, "", nil)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.want, got, tc.args)
	}

	got, err := env.a.buildRequest([]string{"ops"}, opsFile, nil)
	require.NoError(t, err)
	ops := got.(tasks.OperationsRequest).Operations
	require.Len(t, ops, 1)
	assert.Equal(t, astrasync.OpCreateDirectory, ops[0].Type)

	got, err = env.a.buildRequest([]string{"ops"}, "-", strings.NewReader(`[{"type":"Upload","rel_path":"x"}]`))
	require.NoError(t, err)
	assert.Len(t, got.(tasks.OperationsRequest).Operations, 1)

	for _, args := range [][]string{{"upload"}, {"download"}, {"ops"}, {"rsync"}} {
		_, err := env.a.buildRequest(args, "", nil)
		assert.Error(t, err, args)
	}
}

func TestTokenFile(t *testing.T) {
	dir := t.TempDir()

	got, err := readToken(dir, "")
	require.NoError(t, err)
	assert.Empty(t, got, "no token file means no auth")

	token, err := ensureToken(dir, "")
	require.NoError(t, err)
	got, err = readToken(dir, "")
	require.NoError(t, err)
	assert.Equal(t, token, got)

	got, err = readToken(dir, "explicit")
	require.NoError(t, err)
	assert.Equal(t, "explicit", got)

	info, err := os.Stat(tokenPath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSweepTasks(t *testing.T) {
	m := tasks.NewManager(tasks.ExecutorFunc(func(context.Context, tasks.Request) (*astrasync.SyncResult, error) {
		return &astrasync.SyncResult{Success: true}, nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	id, err := m.Submit(tasks.FullSyncRequest{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, err := m.Get(id)
		return err == nil && task.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweepTasks(sweepCtx, m, 5*time.Millisecond, 0)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(m.List()) == 0 }, 2*time.Second, 5*time.Millisecond)
	stopSweep()
	<-done
	cancel()
	require.NoError(t, m.Wait())
}

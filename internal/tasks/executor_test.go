package tasks

import (
	"context"
	"fmt"
	"testing"

	"github.com/astra-nvim/astra/internal/config"
	"github.com/astra-nvim/astra/internal/remote"
	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) (*SyncExecutor, afero.Fs, afero.Fs) {
	t.Helper()

	localFs := afero.NewMemMapFs()
	remoteFs := afero.NewMemMapFs()
	require.NoError(t, localFs.MkdirAll("/proj", 0o755))
	require.NoError(t, remoteFs.MkdirAll("/srv", 0o755))

	cfg := &config.Config{
		Host:       "localhost",
		Port:       22,
		Username:   "me",
		LocalPath:  "/proj",
		RemotePath: "/srv",
		Protocol:   config.ProtocolLocal,
	}
	dialer := remote.DialFunc(func(ctx context.Context, cfg *config.Config) (remote.Store, error) {
		return remote.NewFsStore(remoteFs), nil
	})

	return NewSyncExecutor(cfg, dialer, WithExecutorLocalFs(localFs)), localFs, remoteFs
}

func TestSyncExecutor_FullSync(t *testing.T) {
	x, localFs, remoteFs := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, afero.WriteFile(localFs, "/proj/a.txt", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(remoteFs, "/srv/b.txt", []byte("b"), 0o644))

	result, err := x.Execute(ctx, FullSyncRequest{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, result.Transferred)
}

func TestSyncExecutor_SingleFiles(t *testing.T) {
	x, localFs, remoteFs := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, afero.WriteFile(localFs, "/proj/up.txt", []byte("up"), 0o644))
	result, err := x.Execute(ctx, FileUploadRequest{LocalPath: "/proj/up.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/up.txt"}, result.Transferred)

	data, err := afero.ReadFile(remoteFs, "/srv/up.txt")
	require.NoError(t, err)
	assert.Equal(t, "up", string(data))

	_, err = x.Execute(ctx, FileUploadRequest{LocalPath: "/proj/missing.txt"})
	assert.Error(t, err, "single-file failures fail the task")

	_, err = x.Execute(ctx, FileDownloadRequest{RemotePath: "/srv/missing.txt"})
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestSyncExecutor_OperationsReportFailuresInResult(t *testing.T) {
	x, _, remoteFs := newTestExecutor(t)
	require.NoError(t, afero.WriteFile(remoteFs, "/srv/old.txt", []byte("x"), 0o644))

	result, err := x.Execute(context.Background(), OperationsRequest{Operations: []astrasync.SyncOperation{
		{Type: astrasync.OpDelete, RelPath: "old.txt", RemotePath: "/srv/old.txt"},
		{Type: astrasync.OpUpload, RelPath: "gone.txt", LocalPath: "/proj/gone.txt", RemotePath: "/srv/gone.txt"},
	}})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"old.txt"}, result.Transferred)
	assert.Len(t, result.Errors, 1)
}

func TestSyncExecutor_DialErrorFailsTask(t *testing.T) {
	x, _, _ := newTestExecutor(t)
	x.dialer = remote.DialFunc(func(context.Context, *config.Config) (remote.Store, error) {
		return nil, fmt.Errorf("%w: host unreachable", remote.ErrConnection)
	})

	m, _ := startManager(t, x)
	id, err := m.Submit(FullSyncRequest{})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return status(t, m, id) == TaskStatusFailed }, waitFor, waitFor/100)
	task, err := m.Get(id)
	require.NoError(t, err)
	assert.Contains(t, task.Error, "connection failed")
}

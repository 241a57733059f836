package taskclient

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/astra-nvim/astra/internal/controlplane"
	"github.com/astra-nvim/astra/internal/controlplane/middleware"
	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/astra-nvim/astra/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()

	exec := tasks.ExecutorFunc(func(_ context.Context, req tasks.Request) (*astrasync.SyncResult, error) {
		if dl, ok := req.(tasks.FileDownloadRequest); ok {
			return astrasync.TransferResult(dl.RemotePath), nil
		}
		return &astrasync.SyncResult{Success: true, Message: "Everything up to date"}, nil
	})

	m := tasks.NewManager(exec, tasks.WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	srv := httptest.NewServer(controlplane.SetupRoutes(m, &controlplane.RouteConfig{
		Auth:      middleware.TokenAuthConfig{Token: token},
		RateLimit: 1000,
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		require.NoError(t, m.Wait())
	})
	return srv
}

func TestClient_SubmitWaitListCleanup(t *testing.T) {
	srv := newTestServer(t, "tok")
	c := New(srv.URL, "tok")
	ctx := context.Background()

	id, err := c.Submit(ctx, tasks.FileDownloadRequest{RemotePath: "/srv/app/main.go"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	task, err := c.Wait(ctx, id, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, tasks.TaskStatusCompleted, task.Status)
	assert.Equal(t, tasks.FileDownloadRequest{RemotePath: "/srv/app/main.go"}, task.Request)
	require.NotNil(t, task.Result)
	assert.Equal(t, []string{"/srv/app/main.go"}, task.Result.Transferred)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	require.NoError(t, c.Cancel(ctx, id))

	removed, err := c.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestClient_ErrorsMapToSentinels(t *testing.T) {
	srv := newTestServer(t, "tok")
	ctx := context.Background()

	c := New(srv.URL, "tok")
	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)

	err = c.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)

	_, err = c.Submit(ctx, tasks.FileUploadRequest{})
	assert.ErrorIs(t, err, tasks.ErrInvalidRequest)

	_, err = New(srv.URL, "wrong").List(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_ServerDown(t *testing.T) {
	srv := newTestServer(t, "")
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := New(url, "").Submit(ctx, tasks.FullSyncRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http request error")
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:7420", BaseURL("127.0.0.1:7420"))
}

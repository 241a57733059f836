package taskclient

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"time"

	"github.com/astra-nvim/astra/internal/controlplane/handlers"
	"github.com/astra-nvim/astra/internal/tasks"
	"github.com/astra-nvim/astra/internal/version"
	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
)

const (
	v1Tasks       = "/v1/tasks"
	v1TaskByID    = "/v1/tasks/{id}"
	v1TaskCleanup = "/v1/tasks/cleanup"
)

var userAgent = fmt.Sprintf("%s/%s (%s; %s/%s)", version.AppName, version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Client talks to a running control plane.
type Client struct {
	client *req.Client
}

// New returns a client for the control plane at baseURL. An empty token sends no auth header.
func New(baseURL, token string) *Client {
	c := req.C().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetUserAgent(userAgent).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		SetCommonErrorResult(&APIError{})
	if token != "" {
		c.SetCommonBearerAuthToken(token)
	}
	return &Client{client: c}
}

// BaseURL builds the URL for a control plane listening on addr.
func BaseURL(addr string) string {
	return (&url.URL{Scheme: "http", Host: addr}).String()
}

// Submit queues a request and returns the task id.
func (c *Client) Submit(ctx context.Context, r tasks.Request) (string, error) {
	var out handlers.SubmitTaskResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(tasks.Envelope(r)).
		SetSuccessResult(&out).
		Post(v1Tasks)

	if err := handleAPIError(resp, err, "submit task"); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) Get(ctx context.Context, id string) (*tasks.Task, error) {
	var out tasks.Task
	resp, err := c.client.R().
		SetContext(ctx).
		SetRetryCount(2).
		SetPathParam("id", id).
		SetSuccessResult(&out).
		Get(v1TaskByID)

	if err := handleAPIError(resp, err, "get task"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context) ([]*tasks.Task, error) {
	var out handlers.ListTasksResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetRetryCount(2).
		SetSuccessResult(&out).
		Get(v1Tasks)

	if err := handleAPIError(resp, err, "list tasks"); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Cancel asks the server to cancel a task. The server acknowledges but lets it finish.
func (c *Client) Cancel(ctx context.Context, id string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Delete(v1TaskByID)

	return handleAPIError(resp, err, "cancel task")
}

func (c *Client) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	var out handlers.CleanupResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(handlers.CleanupRequest{MaxAge: maxAge.String()}).
		SetSuccessResult(&out).
		Post(v1TaskCleanup)

	if err := handleAPIError(resp, err, "cleanup tasks"); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// Wait polls a task until it reaches a terminal state or ctx is done.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) (*tasks.Task, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.IsTerminal() {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}

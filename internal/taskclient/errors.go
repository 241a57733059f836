package taskclient

import (
	"errors"
	"fmt"

	"github.com/astra-nvim/astra/internal/controlplane/handlers"
	"github.com/astra-nvim/astra/internal/tasks"
	"github.com/imroc/req/v3"
)

var ErrUnauthorized = errors.New("taskclient: unauthorized")

// APIError is an error body returned by the control plane.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// Unwrap maps well-known codes onto the sentinel errors callers already check for.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == handlers.ErrCodeTaskNotFound:
		return tasks.ErrTaskNotFound
	case e.Code == handlers.ErrCodeBadRequest:
		return tasks.ErrInvalidRequest
	case e.Status == 401:
		return ErrUnauthorized
	}
	return nil
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok {
			apiErr.Status = resp.StatusCode
			return fmt.Errorf("%s: %w", operation, apiErr)
		}
		return fmt.Errorf("%s: unexpected status %s", operation, resp.Status)
	}

	return nil
}

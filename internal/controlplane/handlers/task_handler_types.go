package handlers

import "github.com/astra-nvim/astra/internal/tasks"

type SubmitTaskResponse struct {
	ID     string           `json:"id"`
	Status tasks.TaskStatus `json:"status"`
}

type ListTasksResponse struct {
	Tasks []*tasks.Task `json:"tasks"`
}

type CleanupRequest struct {
	// MaxAge is a Go duration string such as "30m". Empty means DefaultCleanupAge.
	MaxAge string `json:"max_age"`
}

type CleanupResponse struct {
	Removed int `json:"removed"`
}

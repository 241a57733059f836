package tasks

import (
	"time"

	"github.com/astra-nvim/astra/internal/sync"
	"github.com/goccy/go-json"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

type TaskType string

const (
	TaskTypeFullSync         TaskType = "full_sync"
	TaskTypeFileUpload       TaskType = "file_upload"
	TaskTypeFileDownload     TaskType = "file_download"
	TaskTypeCustomOperations TaskType = "custom_operations"
)

// Task is one background job. Readers only ever see copies.
type Task struct {
	ID        string
	Type      TaskType
	Status    TaskStatus
	Error     string
	Request   Request
	CreatedAt time.Time
	UpdatedAt time.Time
	Result    *sync.SyncResult
}

func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Copy returns a snapshot that shares nothing mutable with t.
func (t *Task) Copy() *Task {
	cp := *t
	cp.Result = t.Result.Copy()
	if ops, ok := t.Request.(OperationsRequest); ok {
		cp.Request = OperationsRequest{Operations: append([]sync.SyncOperation{}, ops.Operations...)}
	}
	return &cp
}

type taskJSON struct {
	ID        string           `json:"id"`
	Type      TaskType         `json:"type"`
	Status    TaskStatus       `json:"status"`
	Error     string           `json:"error,omitempty"`
	Request   *RequestEnvelope `json:"request,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Result    *sync.SyncResult `json:"result,omitempty"`
}

func (t *Task) MarshalJSON() ([]byte, error) {
	out := taskJSON{
		ID:        t.ID,
		Type:      t.Type,
		Status:    t.Status,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		Result:    t.Result,
	}
	if t.Request != nil {
		env := Envelope(t.Request)
		out.Request = &env
	}
	return json.Marshal(out)
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var in taskJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*t = Task{
		ID:        in.ID,
		Type:      in.Type,
		Status:    in.Status,
		Error:     in.Error,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
		Result:    in.Result,
	}
	if in.Request != nil {
		req, err := in.Request.Request()
		if err != nil {
			return err
		}
		t.Request = req
	}
	return nil
}

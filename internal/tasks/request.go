package tasks

import (
	"errors"
	"fmt"

	"github.com/astra-nvim/astra/internal/sync"
)

var ErrInvalidRequest = errors.New("invalid task request")

// Request is the payload of a task. The set of implementations is closed.
type Request interface {
	TaskType() TaskType
	isRequest()
}

// FullSyncRequest reconciles the whole local root with the remote root.
type FullSyncRequest struct{}

// FileUploadRequest sends one file. An empty RemotePath maps LocalPath under the remote root.
type FileUploadRequest struct {
	LocalPath  string
	RemotePath string
}

// FileDownloadRequest fetches one file. An empty LocalPath maps RemotePath under the local root.
type FileDownloadRequest struct {
	RemotePath string
	LocalPath  string
}

// OperationsRequest applies an explicit list of operations.
type OperationsRequest struct {
	Operations []sync.SyncOperation
}

func (FullSyncRequest) TaskType() TaskType     { return TaskTypeFullSync }
func (FileUploadRequest) TaskType() TaskType   { return TaskTypeFileUpload }
func (FileDownloadRequest) TaskType() TaskType { return TaskTypeFileDownload }
func (OperationsRequest) TaskType() TaskType   { return TaskTypeCustomOperations }

func (FullSyncRequest) isRequest()     {}
func (FileUploadRequest) isRequest()   {}
func (FileDownloadRequest) isRequest() {}
func (OperationsRequest) isRequest()   {}

// priority orders the queue: single files first so upload-on-save stays snappy.
func priority(r Request) int {
	switch r.(type) {
	case FileUploadRequest, FileDownloadRequest:
		return 0
	case OperationsRequest:
		return 1
	default:
		return 2
	}
}

// RequestEnvelope is the wire form of a Request.
type RequestEnvelope struct {
	Type       TaskType             `json:"type"`
	LocalPath  string               `json:"local_path,omitempty"`
	RemotePath string               `json:"remote_path,omitempty"`
	Operations []sync.SyncOperation `json:"operations,omitempty"`
}

func Envelope(r Request) RequestEnvelope {
	switch req := r.(type) {
	case FileUploadRequest:
		return RequestEnvelope{Type: TaskTypeFileUpload, LocalPath: req.LocalPath, RemotePath: req.RemotePath}
	case FileDownloadRequest:
		return RequestEnvelope{Type: TaskTypeFileDownload, LocalPath: req.LocalPath, RemotePath: req.RemotePath}
	case OperationsRequest:
		return RequestEnvelope{Type: TaskTypeCustomOperations, Operations: req.Operations}
	default:
		return RequestEnvelope{Type: TaskTypeFullSync}
	}
}

// Request validates the envelope and returns the typed request.
func (e RequestEnvelope) Request() (Request, error) {
	switch e.Type {
	case TaskTypeFullSync:
		return FullSyncRequest{}, nil
	case TaskTypeFileUpload:
		if e.LocalPath == "" {
			return nil, fmt.Errorf("%w: local_path is required", ErrInvalidRequest)
		}
		return FileUploadRequest{LocalPath: e.LocalPath, RemotePath: e.RemotePath}, nil
	case TaskTypeFileDownload:
		if e.RemotePath == "" {
			return nil, fmt.Errorf("%w: remote_path is required", ErrInvalidRequest)
		}
		return FileDownloadRequest{RemotePath: e.RemotePath, LocalPath: e.LocalPath}, nil
	case TaskTypeCustomOperations:
		if len(e.Operations) == 0 {
			return nil, fmt.Errorf("%w: operations are required", ErrInvalidRequest)
		}
		for i, op := range e.Operations {
			if !op.Type.Valid() {
				return nil, fmt.Errorf("%w: operation %d has unknown type %q", ErrInvalidRequest, i, op.Type)
			}
		}
		return OperationsRequest{Operations: e.Operations}, nil
	default:
		return nil, fmt.Errorf("%w: unknown task type %q", ErrInvalidRequest, e.Type)
	}
}

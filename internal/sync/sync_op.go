package sync

import (
	"time"
)

type OpType string

const (
	OpUpload          OpType = "Upload"
	OpDownload        OpType = "Download"
	OpDelete          OpType = "Delete"
	OpCreateDirectory OpType = "CreateDirectory"
)

func (t OpType) Valid() bool {
	switch t {
	case OpUpload, OpDownload, OpDelete, OpCreateDirectory:
		return true
	}
	return false
}

// SyncOperation is one planned transfer. It is consumed once by Engine.Apply.
type SyncOperation struct {
	Type       OpType    `json:"type"`
	RelPath    string    `json:"rel_path"`
	LocalPath  string    `json:"local_path"`
	RemotePath string    `json:"remote_path"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

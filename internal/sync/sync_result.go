package sync

import (
	"fmt"
)

// SyncResult is the outcome of one sync invocation.
type SyncResult struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	Transferred []string `json:"files_transferred"`
	Skipped     []string `json:"files_skipped"`
	Errors      []string `json:"errors"`
}

func newSyncResult() *SyncResult {
	return &SyncResult{
		Transferred: []string{},
		Skipped:     []string{},
		Errors:      []string{},
	}
}

func (r *SyncResult) finish() {
	r.Success = len(r.Errors) == 0
	switch {
	case len(r.Transferred) == 0 && len(r.Errors) == 0:
		r.Message = "Everything up to date"
	case r.Success:
		r.Message = fmt.Sprintf("Synced %d file(s)", len(r.Transferred))
	default:
		r.Message = fmt.Sprintf("Synced %d file(s), %d failed", len(r.Transferred), len(r.Errors))
	}
}

// TransferError is a failure of a single operation. The rest of the batch still runs.
type TransferError struct {
	Op   OpType
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// TransferResult is the result of a successful single-file transfer.
func TransferResult(path string) *SyncResult {
	r := newSyncResult()
	r.Transferred = append(r.Transferred, path)
	r.finish()
	return r
}

// Copy returns a deep copy.
func (r *SyncResult) Copy() *SyncResult {
	if r == nil {
		return nil
	}
	return &SyncResult{
		Success:     r.Success,
		Message:     r.Message,
		Transferred: append([]string{}, r.Transferred...),
		Skipped:     append([]string{}, r.Skipped...),
		Errors:      append([]string{}, r.Errors...),
	}
}

package sync

import (
	"sort"
	"time"
)

// Plan is the output of Diff: the operations to run and the paths left alone.
type Plan struct {
	Operations []SyncOperation `json:"operations"`
	Skipped    []string        `json:"skipped"`
}

// Diff reconciles local towards remote. Local is the source of truth for updates:
//   - local only: Upload
//   - both: Upload when the local mtime is strictly newer (second precision) or the remote
//     carries a recorded fingerprint different from the local one, otherwise skipped
//   - remote only: Download
//
// Delete is never produced. Uploads come first, then downloads, each sorted by path.
func Diff(local, remote Inventory, roots Roots) *Plan {
	now := time.Now()
	plan := &Plan{
		Operations: []SyncOperation{},
		Skipped:    []string{},
	}

	var uploads, downloads []SyncOperation

	for rel, l := range local {
		r, ok := remote[rel]
		if ok && !needsUpload(l, r) {
			plan.Skipped = append(plan.Skipped, rel)
			continue
		}
		uploads = append(uploads, SyncOperation{
			Type:       OpUpload,
			RelPath:    rel,
			LocalPath:  l.Path,
			RemotePath: roots.RemotePath(rel),
			Size:       l.Size,
			CreatedAt:  now,
		})
	}

	for rel, r := range remote {
		if _, ok := local[rel]; ok {
			continue
		}
		downloads = append(downloads, SyncOperation{
			Type:       OpDownload,
			RelPath:    rel,
			LocalPath:  roots.LocalPath(rel),
			RemotePath: r.Path,
			Size:       r.Size,
			CreatedAt:  now,
		})
	}

	byPath := func(ops []SyncOperation) {
		sort.Slice(ops, func(i, j int) bool { return ops[i].RelPath < ops[j].RelPath })
	}
	byPath(uploads)
	byPath(downloads)
	sort.Strings(plan.Skipped)

	plan.Operations = append(plan.Operations, uploads...)
	plan.Operations = append(plan.Operations, downloads...)
	return plan
}

func needsUpload(local, remote *FileRecord) bool {
	if newer(local.ModTime, remote.ModTime) {
		return true
	}
	// without a recorded remote fingerprint the timestamp is the only signal
	return remote.Fingerprint != "" && remote.Fingerprint != local.Fingerprint
}

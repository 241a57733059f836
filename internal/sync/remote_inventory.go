package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astra-nvim/astra/internal/remote"
)

// RemoteScanner builds the inventory of the remote root. Remote content is never hashed;
// a fingerprint is attached only when the journal still describes the file.
type RemoteScanner struct {
	store    remote.Store
	root     string
	ignore   *IgnoreList
	journal  *Journal
	endpoint string
}

func NewRemoteScanner(store remote.Store, root string, ignore *IgnoreList, journal *Journal, endpoint string) *RemoteScanner {
	return &RemoteScanner{
		store:    store,
		root:     root,
		ignore:   ignore,
		journal:  journal,
		endpoint: endpoint,
	}
}

// Scan lists the root and every directory below it.
func (s *RemoteScanner) Scan(ctx context.Context) (Inventory, error) {
	var recorded map[string]*JournalEntry
	if s.journal != nil {
		state, err := s.journal.State(s.endpoint)
		if err != nil {
			slog.Warn("journal unavailable, comparing timestamps only", "error", err)
		}
		recorded = state
	}

	roots := Roots{Remote: s.root}
	inv := make(Inventory)
	pending := []string{s.root}

	for len(pending) > 0 {
		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		entries, err := s.store.List(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("remote scan %s: %w", dir, err)
		}

		for _, e := range entries {
			rel, ok := roots.RemoteRel(e.Path)
			if !ok {
				continue
			}

			if e.IsDir {
				if !s.ignore.ShouldIgnoreDir(rel) {
					pending = append(pending, e.Path)
				}
				continue
			}
			if s.ignore.ShouldIgnore(rel) {
				continue
			}

			rec := &FileRecord{
				RelPath: rel,
				Path:    e.Path,
				Size:    e.Size,
				ModTime: e.ModTime,
			}
			if je, ok := recorded[rel]; ok && je.Size == e.Size && sameSecond(je.ModTime, e.ModTime) {
				rec.Fingerprint = je.Fingerprint
			}
			inv[rel] = rec
		}
	}

	return inv, nil
}

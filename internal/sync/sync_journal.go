package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/astra-nvim/astra/internal/db"
	"github.com/jmoiron/sqlx"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS sync_journal (
    endpoint TEXT NOT NULL,
    path TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    size INTEGER NOT NULL,
    last_modified TEXT NOT NULL, -- RFC3339, remote mtime
    PRIMARY KEY (endpoint, path)
);
`

// JournalEntry records what was on the remote side right after a transfer.
type JournalEntry struct {
	Endpoint    string
	Path        string
	Fingerprint string
	Size        int64
	ModTime     time.Time
}

type dbJournalEntry struct {
	Endpoint     string `db:"endpoint"`
	Path         string `db:"path"`
	Fingerprint  string `db:"fingerprint"`
	Size         int64  `db:"size"`
	LastModified string `db:"last_modified"`
}

func (e dbJournalEntry) entry() (*JournalEntry, error) {
	modTime, err := time.Parse(time.RFC3339, e.LastModified)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp for %s: %w", e.Path, err)
	}
	return &JournalEntry{
		Endpoint:    e.Endpoint,
		Path:        e.Path,
		Fingerprint: e.Fingerprint,
		Size:        e.Size,
		ModTime:     modTime,
	}, nil
}

// Journal remembers the content fingerprint of files this tool put on (or pulled
// from) a remote, keyed by endpoint and relative path.
type Journal struct {
	db     *sqlx.DB
	dbPath string
}

// OpenJournal opens or creates the journal database. Use ":memory:" for a throwaway journal.
func OpenJournal(dbPath string) (*Journal, error) {
	conn, err := db.NewSqliteDb(db.WithPath(dbPath), db.WithMaxOpenConns(1), db.WithSchema(journalSchema))
	if err != nil {
		return nil, fmt.Errorf("open sync journal: %w", err)
	}
	return &Journal{db: conn, dbPath: dbPath}, nil
}

func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		slog.Error("close sync journal", "path", j.dbPath, "error", err)
		return err
	}
	return nil
}

// Get returns nil, nil when nothing is recorded for the path.
func (j *Journal) Get(endpoint, path string) (*JournalEntry, error) {
	var row dbJournalEntry
	err := j.db.Get(&row, "SELECT endpoint, path, fingerprint, size, last_modified FROM sync_journal WHERE endpoint = ? AND path = ?", endpoint, path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query journal for %s: %w", path, err)
	}
	return row.entry()
}

func (j *Journal) Set(e *JournalEntry) error {
	if e == nil {
		return errors.New("cannot set nil journal entry")
	}

	row := dbJournalEntry{
		Endpoint:     e.Endpoint,
		Path:         e.Path,
		Fingerprint:  e.Fingerprint,
		Size:         e.Size,
		LastModified: e.ModTime.UTC().Format(time.RFC3339),
	}

	query := `INSERT OR REPLACE INTO sync_journal (endpoint, path, fingerprint, size, last_modified)
	          VALUES (:endpoint, :path, :fingerprint, :size, :last_modified)`
	if _, err := j.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("set journal for %s: %w", e.Path, err)
	}
	slog.Debug("sync journal set", "endpoint", e.Endpoint, "path", e.Path, "fingerprint", e.Fingerprint)
	return nil
}

// State returns every entry recorded for endpoint, keyed by path. Corrupt rows are skipped.
func (j *Journal) State(endpoint string) (map[string]*JournalEntry, error) {
	var rows []dbJournalEntry
	err := j.db.Select(&rows, "SELECT endpoint, path, fingerprint, size, last_modified FROM sync_journal WHERE endpoint = ?", endpoint)
	if err != nil {
		return nil, fmt.Errorf("query journal state: %w", err)
	}

	state := make(map[string]*JournalEntry, len(rows))
	for _, row := range rows {
		e, err := row.entry()
		if err != nil {
			slog.Warn("skipping journal entry", "path", row.Path, "error", err)
			continue
		}
		state[e.Path] = e
	}
	return state, nil
}

func (j *Journal) Delete(endpoint, path string) error {
	if _, err := j.db.Exec("DELETE FROM sync_journal WHERE endpoint = ? AND path = ?", endpoint, path); err != nil {
		return fmt.Errorf("delete journal entry %s: %w", path, err)
	}
	return nil
}

func (j *Journal) Count() (int, error) {
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM sync_journal"); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return count, nil
}

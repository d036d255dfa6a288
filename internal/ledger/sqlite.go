package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS posted_media (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	handle TEXT,
	name TEXT,
	tweet_id TEXT,
	posted_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_posted_unique
ON posted_media (source, COALESCE(handle, ''), COALESCE(name, ''));
`

// SQLiteLedger stores posted records in a local SQLite database. All
// mutation is serialized through a process-level mutex in addition to
// the unique index, so concurrent callers sharing one ledger cannot
// race past the insert-if-absent check.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenSQLite(path string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Close() error { return l.db.Close() }

func (l *SQLiteLedger) IsPosted(ctx context.Context, source, handle, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := l.db.QueryRowContext(ctx, `
		SELECT 1 FROM posted_media
		WHERE source = ? AND COALESCE(handle, '') = COALESCE(?, '') AND COALESCE(name, '') = COALESCE(?, '')
		LIMIT 1`,
		source, nullStr(handle), nullStr(name))

	var one int
	switch err := row.Scan(&one); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
}

// MarkPosted inserts a record unless the identity triple already exists.
// A duplicate insert is a no-op, never an update.
func (l *SQLiteLedger) MarkPosted(ctx context.Context, source, handle, name, tweetID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO posted_media (source, handle, name, tweet_id, posted_at)
		VALUES (?, ?, ?, ?, ?)`,
		source, nullStr(handle), nullStr(name), nullStr(tweetID), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("ledger insert: %w", err)
	}
	return nil
}

// nullStr stores absent values as NULL, matching the COALESCE-based
// unique index.
func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

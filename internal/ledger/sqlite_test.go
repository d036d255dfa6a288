package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func (l *SQLiteLedger) rowCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, l.db.QueryRow(`SELECT COUNT(*) FROM posted_media`).Scan(&n))
	return n
}

func TestSQLiteLedger_MarkAndCheck(t *testing.T) {
	l := newTestSQLite(t)
	ctx := context.Background()

	posted, err := l.IsPosted(ctx, "MEGA", "h1", "a.mp4")
	require.NoError(t, err)
	assert.False(t, posted)

	require.NoError(t, l.MarkPosted(ctx, "MEGA", "h1", "a.mp4", "tw-1"))

	posted, err = l.IsPosted(ctx, "MEGA", "h1", "a.mp4")
	require.NoError(t, err)
	assert.True(t, posted)

	// Same name under a different source or handle is a distinct identity.
	posted, err = l.IsPosted(ctx, "GDrive", "h1", "a.mp4")
	require.NoError(t, err)
	assert.False(t, posted)

	posted, err = l.IsPosted(ctx, "MEGA", "h2", "a.mp4")
	require.NoError(t, err)
	assert.False(t, posted)
}

func TestSQLiteLedger_DuplicateMarkIsNoOp(t *testing.T) {
	l := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, l.MarkPosted(ctx, "MEGA", "h1", "a.mp4", "tw-1"))
	require.NoError(t, l.MarkPosted(ctx, "MEGA", "h1", "a.mp4", "tw-2"))
	assert.Equal(t, 1, l.rowCount(t))

	// The original record survives, not the replay.
	var tweetID string
	require.NoError(t, l.db.QueryRow(`SELECT tweet_id FROM posted_media`).Scan(&tweetID))
	assert.Equal(t, "tw-1", tweetID)
}

func TestSQLiteLedger_EmptyComponentsNormalized(t *testing.T) {
	l := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, l.MarkPosted(ctx, "MEGA", "", "a.mp4", ""))

	posted, err := l.IsPosted(ctx, "MEGA", "", "a.mp4")
	require.NoError(t, err)
	assert.True(t, posted)

	// Empty handle is stored as NULL, and the unique index treats it the
	// same as a second empty handle.
	require.NoError(t, l.MarkPosted(ctx, "MEGA", "", "a.mp4", "tw-9"))
	assert.Equal(t, 1, l.rowCount(t))

	var handle any
	require.NoError(t, l.db.QueryRow(`SELECT handle FROM posted_media`).Scan(&handle))
	assert.Nil(t, handle)
}

func TestSQLiteLedger_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")
	ctx := context.Background()

	l, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, l.MarkPosted(ctx, "S3", "key/a.mp4", "a.mp4", "tw-1"))
	require.NoError(t, l.Close())

	l2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer l2.Close()

	posted, err := l2.IsPosted(ctx, "S3", "key/a.mp4", "a.mp4")
	require.NoError(t, err)
	assert.True(t, posted)
}

// Package ledger tracks which remote media items have already been
// posted so runs never post the same item twice.
package ledger

import "context"

// Ledger is a durable (source, handle, name) -> posted record. Handle
// and name may each be empty; a record is identified by the triple with
// empties preserved. MarkPosted is insert-if-absent: marking an already
// posted item is a silent no-op and records are never updated or
// deleted.
type Ledger interface {
	IsPosted(ctx context.Context, source, handle, name string) (bool, error)
	MarkPosted(ctx context.Context, source, handle, name, tweetID string) error
}

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"twiper/internal/logging"
	"twiper/internal/storage"
)

// JSONLedger is a minimal flat-file tracker: a JSON array of posted file
// names. Only the name component of the identity is stored; handle and
// source are ignored. Writes go to a temp file and are renamed into
// place so the file is never observed half-written.
type JSONLedger struct {
	path   string
	mu     sync.Mutex
	posted map[string]bool
}

func OpenJSONFile(path string) (*JSONLedger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	l := &JSONLedger{path: path, posted: map[string]bool{}}
	// A missing or unreadable file starts an empty ledger.
	if names, err := readNames(path); err == nil {
		for _, n := range names {
			l.posted[n] = true
		}
	}
	return l, nil
}

func readNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (l *JSONLedger) IsPosted(ctx context.Context, source, handle, name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.posted[name], nil
}

func (l *JSONLedger) MarkPosted(ctx context.Context, source, handle, name, tweetID string) error {
	if name == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.posted[name] {
		return nil
	}
	l.posted[name] = true
	return l.writeLocked()
}

func (l *JSONLedger) writeLocked() error {
	names := make([]string, 0, len(l.posted))
	for n := range l.posted {
		names = append(names, n)
	}
	sort.Strings(names)

	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

// SyncFromRemote replaces the local state with the copy stored in the
// remote folder. Returns false when no remote copy exists.
func (l *JSONLedger) SyncFromRemote(ctx context.Context, st storage.Storage) (bool, error) {
	name := filepath.Base(l.path)
	local, err := st.DownloadByName(ctx, name, filepath.Dir(l.path))
	if err != nil {
		if err == storage.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("sync ledger from remote: %w", err)
	}

	names, err := readNames(local)
	if err != nil {
		return false, fmt.Errorf("parse remote ledger: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.posted = map[string]bool{}
	for _, n := range names {
		l.posted[n] = true
	}
	return true, nil
}

// SyncToRemote uploads the current state to the remote folder, replacing
// any previous copy. With deleteLocal the local file is removed after,
// keeping the remote as the source of truth.
func (l *JSONLedger) SyncToRemote(ctx context.Context, st storage.Storage, deleteLocal bool, log *logging.Logger) error {
	l.mu.Lock()
	if err := l.writeLocked(); err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	if err := st.UploadOrReplace(ctx, l.path, filepath.Base(l.path)); err != nil {
		return fmt.Errorf("sync ledger to remote: %w", err)
	}
	if deleteLocal {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			log.Warnf("failed to remove local ledger copy: %v", err)
		}
	}
	return nil
}

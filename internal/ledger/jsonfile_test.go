package ledger

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twiper/internal/logging"
	"twiper/internal/storage"
)

func TestJSONLedger_MarkAndCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	l, err := OpenJSONFile(path)
	require.NoError(t, err)
	ctx := context.Background()

	posted, err := l.IsPosted(ctx, "MEGA", "h1", "a.mp4")
	require.NoError(t, err)
	assert.False(t, posted)

	require.NoError(t, l.MarkPosted(ctx, "MEGA", "h1", "a.mp4", "tw-1"))

	// Only the name matters: handle and source are not part of the key.
	posted, err = l.IsPosted(ctx, "GDrive", "other", "a.mp4")
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestJSONLedger_PersistsSortedNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	l, err := OpenJSONFile(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.MarkPosted(ctx, "MEGA", "", "b.mp4", ""))
	require.NoError(t, l.MarkPosted(ctx, "MEGA", "", "a.mp4", ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal(data, &names))
	assert.Equal(t, []string{"a.mp4", "b.mp4"}, names)

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestJSONLedger_EmptyNameIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	l, err := OpenJSONFile(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.MarkPosted(ctx, "MEGA", "h1", "", "tw-1"))
	posted, err := l.IsPosted(ctx, "MEGA", "h1", "")
	require.NoError(t, err)
	assert.False(t, posted)

	// Nothing was written.
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestJSONLedger_ReloadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	require.NoError(t, os.WriteFile(path, []byte(`["old.mp4"]`), 0o644))

	l, err := OpenJSONFile(path)
	require.NoError(t, err)

	posted, err := l.IsPosted(context.Background(), "MEGA", "", "old.mp4")
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestJSONLedger_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	l, err := OpenJSONFile(path)
	require.NoError(t, err)

	posted, err := l.IsPosted(context.Background(), "MEGA", "", "old.mp4")
	require.NoError(t, err)
	assert.False(t, posted)
}

// syncStorage is the minimal fake remote for ledger sync tests: one flat
// name->content map.
type syncStorage struct {
	files    map[string][]byte
	uploaded []string
}

func (s *syncStorage) Source() string { return "Fake" }

func (s *syncStorage) ListByName(ctx context.Context, name string) ([]storage.FileInfo, error) {
	if _, ok := s.files[name]; !ok {
		return nil, nil
	}
	return []storage.FileInfo{{Name: name}}, nil
}

func (s *syncStorage) ListVideos(ctx context.Context, limit int) ([]storage.FileInfo, error) {
	return nil, nil
}

func (s *syncStorage) FindByName(ctx context.Context, name string) (*storage.FileInfo, error) {
	if _, ok := s.files[name]; !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.FileInfo{Name: name}, nil
}

func (s *syncStorage) DownloadByName(ctx context.Context, name, destDir string) (string, error) {
	data, ok := s.files[name]
	if !ok {
		return "", storage.ErrNotFound
	}
	local := filepath.Join(destDir, name)
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return "", err
	}
	return local, nil
}

func (s *syncStorage) DownloadVideo(ctx context.Context, destDir, name string) (string, storage.DeleteToken, error) {
	return "", storage.DeleteToken{}, storage.ErrNotFound
}

func (s *syncStorage) UploadOrReplace(ctx context.Context, localPath, remoteName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	s.files[remoteName] = data
	s.uploaded = append(s.uploaded, remoteName)
	return nil
}

func (s *syncStorage) Delete(ctx context.Context, token storage.DeleteToken) {}

func TestJSONLedger_SyncFromRemote(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "posted.json")
	l, err := OpenJSONFile(path)
	require.NoError(t, err)
	ctx := context.Background()

	st := &syncStorage{files: map[string][]byte{"posted.json": []byte(`["r.mp4"]`)}}
	found, err := l.SyncFromRemote(ctx, st)
	require.NoError(t, err)
	assert.True(t, found)

	posted, err := l.IsPosted(ctx, "Fake", "", "r.mp4")
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestJSONLedger_SyncFromRemote_Missing(t *testing.T) {
	l, err := OpenJSONFile(filepath.Join(t.TempDir(), "posted.json"))
	require.NoError(t, err)

	st := &syncStorage{files: map[string][]byte{}}
	found, err := l.SyncFromRemote(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestJSONLedger_SyncToRemote_DeletesLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	l, err := OpenJSONFile(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, l.MarkPosted(ctx, "Fake", "", "a.mp4", ""))

	st := &syncStorage{files: map[string][]byte{}}
	require.NoError(t, l.SyncToRemote(ctx, st, true, logging.NewDiscard()))

	assert.Equal(t, []string{"posted.json"}, st.uploaded)
	assert.JSONEq(t, `["a.mp4"]`, string(st.files["posted.json"]))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

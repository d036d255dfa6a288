// Package storage abstracts the remote cloud folder media is posted from.
// Concrete adapters (MEGA, Google Drive, S3) are selected once at startup
// by configuration and share this contract.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ErrNotFound is returned when a named file is absent from the remote
// folder.
var ErrNotFound = errors.New("storage: file not found")

// FileInfo describes one remote file. ID is the provider-specific opaque
// handle; either ID or Name may be empty depending on the provider.
type FileInfo struct {
	ID       string
	Name     string
	Size     int64
	Modified time.Time
}

// DeleteToken identifies a remote file for deletion. It is resolved once
// at selection time: by id, by name, or by both.
type DeleteToken struct {
	id   string
	name string
}

func DeleteByID(id string) DeleteToken            { return DeleteToken{id: id} }
func DeleteByName(name string) DeleteToken        { return DeleteToken{name: name} }
func DeleteByIDAndName(id, name string) DeleteToken { return DeleteToken{id: id, name: name} }

func (t DeleteToken) ID() string   { return t.id }
func (t DeleteToken) Name() string { return t.name }
func (t DeleteToken) IsZero() bool { return t.id == "" && t.name == "" }

// Storage lists, downloads, uploads and deletes files in one logical
// remote folder, including nested subfolders. Listings are newest-first.
type Storage interface {
	// Source tags ledger records produced from this backend.
	Source() string

	// ListByName returns files named exactly name, newest first.
	ListByName(ctx context.Context, name string) ([]FileInfo, error)

	// ListVideos returns video files (by extension), newest first.
	// limit <= 0 means no limit.
	ListVideos(ctx context.Context, limit int) ([]FileInfo, error)

	// FindByName returns metadata for a file, or ErrNotFound.
	FindByName(ctx context.Context, name string) (*FileInfo, error)

	// DownloadByName downloads the newest file with the given name into
	// destDir and returns the local path, or ErrNotFound.
	DownloadByName(ctx context.Context, name, destDir string) (string, error)

	// DownloadVideo downloads the named video (or the latest one when
	// name is empty) and returns the local path plus a token for a later
	// delete.
	DownloadVideo(ctx context.Context, destDir, name string) (string, DeleteToken, error)

	// UploadOrReplace uploads localPath as remoteName (basename when
	// empty), removing any same-named remote files first. A failure to
	// remove a duplicate does not block the create.
	UploadOrReplace(ctx context.Context, localPath, remoteName string) error

	// Delete removes the file identified by token. Best-effort: failures
	// are logged, never returned. Soft/hard mode is adapter configuration.
	Delete(ctx context.Context, token DeleteToken)
}

var videoExts = []string{".mp4", ".mov", ".mkv", ".webm"}

// IsVideoName reports whether name has a recognized video extension.
func IsVideoName(name string) bool {
	lower := strings.ToLower(name)
	return lo.SomeBy(videoExts, func(ext string) bool { return strings.HasSuffix(lower, ext) })
}

package poster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTxt(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCaptionForMedia_StemWins(t *testing.T) {
	dir := t.TempDir()
	writeTxt(t, dir, "clip.txt", "stem caption\n")
	writeTxt(t, dir, "caption.txt", "generic caption")
	writeTxt(t, dir, "other.txt", "other")

	got := CaptionForMedia(filepath.Join(dir, "clip.mp4"), dir)
	assert.Equal(t, "stem caption", got)
}

func TestCaptionForMedia_FallsBackToCaptionTxt(t *testing.T) {
	dir := t.TempDir()
	writeTxt(t, dir, "caption.txt", "  generic caption  ")
	writeTxt(t, dir, "other.txt", "other")

	got := CaptionForMedia(filepath.Join(dir, "clip.mp4"), dir)
	assert.Equal(t, "generic caption", got)
}

func TestCaptionForMedia_FallsBackToFirstOtherTxt(t *testing.T) {
	dir := t.TempDir()
	writeTxt(t, dir, "bb.txt", "second")
	writeTxt(t, dir, "aa.txt", "first")

	got := CaptionForMedia(filepath.Join(dir, "clip.mp4"), dir)
	assert.Equal(t, "first", got)
}

func TestCaptionForMedia_NoTextFiles(t *testing.T) {
	assert.Equal(t, "", CaptionForMedia(filepath.Join(t.TempDir(), "clip.mp4"), t.TempDir()))
}

func TestCaptionForMedia_EmptyStemFileFallsThrough(t *testing.T) {
	dir := t.TempDir()
	writeTxt(t, dir, "clip.txt", "   \n")
	writeTxt(t, dir, "caption.txt", "generic")

	got := CaptionForMedia(filepath.Join(dir, "clip.mp4"), dir)
	assert.Equal(t, "generic", got)
}

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVideoName(t *testing.T) {
	cases := map[string]bool{
		"clip.mp4":      true,
		"CLIP.MP4":      true,
		"movie.mov":     true,
		"show.mkv":      true,
		"anim.webm":     true,
		"pic.jpg":       false,
		"clip.mp4.part": false,
		"mp4":           false,
		"":              false,
	}
	for name, want := range cases {
		assert.Equal(t, want, IsVideoName(name), "name %q", name)
	}
}

func TestDeleteToken(t *testing.T) {
	assert.True(t, DeleteToken{}.IsZero())

	tok := DeleteByID("h1")
	assert.False(t, tok.IsZero())
	assert.Equal(t, "h1", tok.ID())
	assert.Equal(t, "", tok.Name())

	tok = DeleteByName("a.mp4")
	assert.Equal(t, "a.mp4", tok.Name())

	tok = DeleteByIDAndName("h1", "a.mp4")
	assert.Equal(t, "h1", tok.ID())
	assert.Equal(t, "a.mp4", tok.Name())
}

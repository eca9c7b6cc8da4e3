package playback

import (
	"testing"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/stretchr/testify/assert"
)

func mediaFile(path string) *models.MediaFile {
	f := &models.MediaFile{Path: path, Artist: "Artist", Title: "Title " + path}
	f.ID = models.NewULID()
	return f
}

func TestPlayQueue_Navigation(t *testing.T) {
	a, b, c := mediaFile("/a.mp3"), mediaFile("/b.mp3"), mediaFile("/c.mp3")
	q := NewPlayQueue(a, b, c)

	assert.Equal(t, QueuePlaying, q.Status())
	assert.Equal(t, 3, q.Len())
	assert.Same(t, a, q.Current())
	assert.Same(t, b, q.Next())
	assert.Same(t, c, q.Next())
	assert.Nil(t, q.Next())
	assert.Nil(t, q.Current())
	assert.Nil(t, q.Next())
	assert.Equal(t, 3, q.Index())

	q.SetIndex(1)
	assert.Same(t, b, q.Current())
	q.SetIndex(-4)
	assert.Same(t, a, q.Current())
	q.SetIndex(99)
	assert.Nil(t, q.Current())
}

func TestPlayQueue_IndexOf(t *testing.T) {
	a, b := mediaFile("/a.mp3"), mediaFile("/b.mp3")
	q := NewPlayQueue(a, b)

	assert.Equal(t, 1, q.IndexOf(b.ID))
	assert.Equal(t, -1, q.IndexOf(models.NewULID()))
}

func TestPlayQueue_Replace(t *testing.T) {
	a, b := mediaFile("/a.mp3"), mediaFile("/b.mp3")
	q := NewPlayQueue(a)

	files := []*models.MediaFile{a, b}
	q.Replace(files, 1)
	files[0] = nil

	assert.Same(t, b, q.Current())
	assert.Same(t, a, q.Files()[0])
}

func TestPlayQueue_Status(t *testing.T) {
	q := NewPlayQueue()
	assert.False(t, q.Stopped())
	q.SetStatus(QueueStopped)
	assert.True(t, q.Stopped())
	assert.Nil(t, q.Current())
}

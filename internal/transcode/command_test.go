package transcode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"ffmpeg -i %s -f mp3 -", []string{"ffmpeg", "-i", "%s", "-f", "mp3", "-"}},
		{"lame  --tt  \"%t\"  -", []string{"lame", "--tt", "%t", "-"}},
		{"echo 'a b' \"c 'd'\"", []string{"echo", "a b", "c 'd'"}},
		{`echo a\ b`, []string{"echo", "a b"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCommand(tt.input))
		})
	}
}

func TestBuildCommand_Placeholders(t *testing.T) {
	file := &models.MediaFile{Path: "/music/My Song.flac", Title: "My Song", Artist: "Band"}

	argv := BuildCommand(`lame -b %b --tt "%t" --ta %a --tl %l %s -`, "", file, 128, nil)
	assert.Equal(t, []string{"lame", "-b", "128", "--tt", "My Song", "--ta", "Band", "--tl", UnknownAlbum, "/music/My Song.flac", "-"}, argv)
}

func TestBuildCommand_VideoPlaceholdersOnlyWithSettings(t *testing.T) {
	file := &models.MediaFile{Path: "/v.mkv"}

	argv := BuildCommand("ffmpeg -ss %o -t %d -s %wx%h", "", file, 0, nil)
	assert.Equal(t, []string{"ffmpeg", "-ss", "%o", "-t", "%d", "-s", "%wx%h"}, argv)

	argv = BuildCommand("ffmpeg -ss %o -t %d -s %wx%h", "", file, 0, &VideoSettings{Width: 480, Height: 270, TimeOffset: 30, Duration: 10})
	assert.Equal(t, []string{"ffmpeg", "-ss", "30", "-t", "10", "-s", "480x270"}, argv)
}

func TestBuildCommand_BinaryFromTranscodeDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte("#!/bin/sh\n"), 0o755))
	file := &models.MediaFile{Path: "/a.flac"}

	argv := BuildCommand("ffmpeg -i %s", dir, file, 0, nil)
	assert.Equal(t, filepath.Join(dir, "ffmpeg"), argv[0])

	argv = BuildCommand("lame -", dir, file, 0, nil)
	assert.Equal(t, "lame", argv[0])

	assert.Nil(t, BuildCommand("   ", dir, file, 0, nil))
}

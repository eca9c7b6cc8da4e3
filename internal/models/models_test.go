package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULID_TextRoundTrip(t *testing.T) {
	id := NewULID()
	require.False(t, id.IsZero())

	text, err := id.MarshalText()
	require.NoError(t, err)

	var parsed ULID
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, id, parsed)
}

func TestULID_Scan(t *testing.T) {
	id := NewULID()

	var fromString ULID
	require.NoError(t, fromString.Scan(id.String()))
	assert.Equal(t, id, fromString)

	var fromBytes ULID
	require.NoError(t, fromBytes.Scan([]byte(id.String())))
	assert.Equal(t, id, fromBytes)

	var empty ULID
	require.NoError(t, empty.Scan(nil))
	assert.True(t, empty.IsZero())

	assert.Error(t, empty.Scan(42))
}

func TestMediaFile_Validate(t *testing.T) {
	folder := NewULID()
	negative := -1

	tests := []struct {
		name    string
		file    MediaFile
		wantErr error
	}{
		{"valid", MediaFile{FolderID: folder, Path: "/music/a.mp3"}, nil},
		{"missing folder", MediaFile{Path: "/music/a.mp3"}, ErrFolderRequired},
		{"missing path", MediaFile{FolderID: folder}, ErrPathRequired},
		{"relative path", MediaFile{FolderID: folder, Path: "music/a.mp3"}, ErrPathNotAbsolute},
		{"negative bit rate", MediaFile{FolderID: folder, Path: "/music/a.mp3", BitRate: &negative}, ErrInvalidBitRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.file.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMediaFile_DisplayTitle(t *testing.T) {
	f := MediaFile{Path: "/music/Artist/01 - Song.flac"}
	assert.Equal(t, "01 - Song", f.DisplayTitle())

	f.Title = "Song"
	assert.Equal(t, "Song", f.DisplayTitle())
}

func TestTranscodingProfile(t *testing.T) {
	p := TranscodingProfile{
		Name:          "mp3 audio",
		SourceFormats: "FLAC ogg  wav",
		TargetFormat:  "mp3",
		Step1:         "ffmpeg -i %s -ab %bk -f mp3 -",
		Step3:         "  ",
	}

	require.NoError(t, p.Validate())
	assert.True(t, p.Accepts("flac"))
	assert.True(t, p.Accepts("WAV"))
	assert.False(t, p.Accepts("mp3"))
	assert.Equal(t, []string{"ffmpeg -i %s -ab %bk -f mp3 -"}, p.Steps())
	assert.True(t, p.IsEnabled())

	p.Enabled = BoolPtr(false)
	assert.False(t, p.IsEnabled())

	p.Step1 = ""
	assert.ErrorIs(t, p.Validate(), ErrStepRequired)
}

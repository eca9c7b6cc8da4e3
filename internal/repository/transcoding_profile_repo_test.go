package repository

import (
	"context"
	"testing"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscodingProfileRepo_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTranscodingProfileRepository(db)
	ctx := context.Background()

	profile := &models.TranscodingProfile{
		Name:          "mp3 audio",
		SourceFormats: "ogg oga aac m4a flac wav wma aif aiff ape mpc shn",
		TargetFormat:  "mp3",
		Step1:         "ffmpeg -i %s -map 0:0 -b:a %bk -v 0 -f mp3 -",
	}
	require.NoError(t, repo.Create(ctx, profile))
	assert.False(t, profile.ID.IsZero())

	found, err := repo.GetByName(ctx, "mp3 audio")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, profile.ID, found.ID)
	assert.True(t, found.IsEnabled())
	assert.True(t, found.Accepts("flac"))
}

func TestTranscodingProfileRepo_Create_Validation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTranscodingProfileRepository(db)
	ctx := context.Background()

	tests := []struct {
		name    string
		profile *models.TranscodingProfile
		wantErr error
	}{
		{
			name:    "missing name",
			profile: &models.TranscodingProfile{TargetFormat: "mp3", Step1: "ffmpeg"},
			wantErr: models.ErrNameRequired,
		},
		{
			name:    "missing target format",
			profile: &models.TranscodingProfile{Name: "x", Step1: "ffmpeg"},
			wantErr: models.ErrTargetFormatRequired,
		},
		{
			name:    "missing step",
			profile: &models.TranscodingProfile{Name: "x", TargetFormat: "mp3", Step1: "  "},
			wantErr: models.ErrStepRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, repo.Create(ctx, tt.profile), tt.wantErr)
		})
	}
}

func TestTranscodingProfileRepo_GetEnabled(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTranscodingProfileRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.TranscodingProfile{
		Name: "b", TargetFormat: "mp3", Step1: "ffmpeg",
	}))
	require.NoError(t, repo.Create(ctx, &models.TranscodingProfile{
		Name: "a", TargetFormat: "ogg", Step1: "ffmpeg",
	}))
	require.NoError(t, repo.Create(ctx, &models.TranscodingProfile{
		Name: "c", TargetFormat: "mkv", Step1: "ffmpeg", Enabled: models.BoolPtr(false),
	}))

	enabled, err := repo.GetEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, "a", enabled[0].Name)
	assert.Equal(t, "b", enabled[1].Name)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTranscodingProfileRepo_UpdateAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTranscodingProfileRepository(db)
	ctx := context.Background()

	profile := &models.TranscodingProfile{Name: "p", TargetFormat: "mp3", Step1: "ffmpeg"}
	require.NoError(t, repo.Create(ctx, profile))

	profile.Enabled = models.BoolPtr(false)
	require.NoError(t, repo.Update(ctx, profile))

	found, err := repo.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.False(t, found.IsEnabled())

	require.NoError(t, repo.Delete(ctx, profile.ID))
	found, err = repo.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	missing, err := repo.GetByName(ctx, "p")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

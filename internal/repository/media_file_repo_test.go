package repository

import (
	"context"
	"testing"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaFileRepo_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMediaFileRepository(db)
	ctx := context.Background()
	folder := createFolder(t, db, "Music", "/music")

	file := &models.MediaFile{
		FolderID: folder.ID,
		Path:     "/music/Artist/Album/01 - Song.MP3",
		Title:    "Song",
	}
	require.NoError(t, repo.Create(ctx, file))
	assert.False(t, file.ID.IsZero())

	found, err := repo.GetByID(ctx, file.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "/music/Artist/Album", found.ParentPath)
	assert.Equal(t, "mp3", found.Format)
	assert.Equal(t, "Song", found.Title)
}

func TestMediaFileRepo_Create_Validation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMediaFileRepository(db)
	ctx := context.Background()
	folder := createFolder(t, db, "Music", "/music")

	err := repo.Create(ctx, &models.MediaFile{Path: "/music/a.mp3"})
	assert.ErrorIs(t, err, models.ErrFolderRequired)

	err = repo.Create(ctx, &models.MediaFile{FolderID: folder.ID, Path: "relative.mp3"})
	assert.ErrorIs(t, err, models.ErrPathNotAbsolute)
}

func TestMediaFileRepo_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMediaFileRepository(db)

	found, err := repo.GetByID(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMediaFileRepo_GetByPath(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMediaFileRepository(db)
	ctx := context.Background()
	folder := createFolder(t, db, "Music", "/music")
	file := createFile(t, db, folder, "a/b.flac")

	found, err := repo.GetByPath(ctx, "/music/a/b.flac")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, file.ID, found.ID)

	missing, err := repo.GetByPath(ctx, "/music/none.flac")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMediaFileRepo_GetByIDs_PreservesOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMediaFileRepository(db)
	ctx := context.Background()
	folder := createFolder(t, db, "Music", "/music")
	a := createFile(t, db, folder, "a.mp3")
	b := createFile(t, db, folder, "b.mp3")
	c := createFile(t, db, folder, "c.mp3")

	files, err := repo.GetByIDs(ctx, []models.ULID{c.ID, a.ID, models.NewULID(), b.ID, a.ID})
	require.NoError(t, err)
	require.Len(t, files, 4)
	assert.Equal(t, c.ID, files[0].ID)
	assert.Equal(t, a.ID, files[1].ID)
	assert.Equal(t, b.ID, files[2].ID)
	assert.Equal(t, a.ID, files[3].ID)

	none, err := repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMediaFileRepo_GetChildren(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMediaFileRepository(db)
	ctx := context.Background()
	folder := createFolder(t, db, "Music", "/music")

	dir := &models.MediaFile{FolderID: folder.ID, Path: "/music/album", IsDirectory: true}
	require.NoError(t, repo.Create(ctx, dir))
	createFile(t, db, folder, "album/02.mp3")
	createFile(t, db, folder, "album/01.mp3")
	createFile(t, db, folder, "album/disc2/01.mp3")
	createFile(t, db, folder, "other.mp3")

	children, err := repo.GetChildren(ctx, "/music/album")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "/music/album/01.mp3", children[0].Path)
	assert.Equal(t, "/music/album/02.mp3", children[1].Path)
	assert.Empty(t, dir.Format)
}

func TestMediaFileRepo_UpdateAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMediaFileRepository(db)
	ctx := context.Background()
	folder := createFolder(t, db, "Music", "/music")
	file := createFile(t, db, folder, "a.mp3")

	file.Title = "Renamed"
	require.NoError(t, repo.Update(ctx, file))

	found, err := repo.GetByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", found.Title)

	require.NoError(t, repo.Delete(ctx, file.ID))
	found, err = repo.GetByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

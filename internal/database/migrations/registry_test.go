package migrations

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every pooled connection would otherwise get its own in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func migratedDB(t *testing.T) (*gorm.DB, *Migrator) {
	t.Helper()
	db := setupTestDB(t)
	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())
	require.NoError(t, migrator.Up(context.Background()))
	return db, migrator
}

func TestAllMigrations_VersionsAreUniqueAndOrdered(t *testing.T) {
	migrations := AllMigrations()
	require.Len(t, migrations, 3)

	seen := make(map[string]bool)
	for i, m := range migrations {
		assert.False(t, seen[m.Version], "duplicate version: %s", m.Version)
		seen[m.Version] = true
		assert.NotNil(t, m.Up)
		assert.NotNil(t, m.Down)
		if i > 0 {
			assert.Less(t, migrations[i-1].Version, m.Version)
		}
	}
}

func TestMigrator_Up_CreatesTables(t *testing.T) {
	db, _ := migratedDB(t)

	for _, table := range []string{
		"music_folders", "folder_access", "media_files", "players",
		"playlists", "playlist_entries", "transcoding_profiles", "schema_migrations",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&models.MediaFile{}, directoryIndex))
}

func TestMigrator_Up_SeedsProfiles(t *testing.T) {
	db, _ := migratedDB(t)

	var profiles []models.TranscodingProfile
	require.NoError(t, db.Order("name").Find(&profiles).Error)
	require.Len(t, profiles, len(DefaultProfiles()))

	byName := make(map[string]*models.TranscodingProfile, len(profiles))
	for i := range profiles {
		byName[profiles[i].Name] = &profiles[i]
	}
	require.Contains(t, byName, "mp3 audio")
	require.Contains(t, byName, "mkv video")
	assert.True(t, byName["mp3 audio"].IsEnabled())
	assert.True(t, byName["mp3 audio"].Accepts("FLAC"))
	assert.Equal(t, "mp3", byName["mp3 audio"].TargetFormat)
	assert.False(t, byName["mkv video"].IsEnabled())
}

func TestMigrator_Up_Idempotent(t *testing.T) {
	db, migrator := migratedDB(t)

	require.NoError(t, migrator.Up(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.TranscodingProfile{}).Count(&count).Error)
	assert.Equal(t, int64(len(DefaultProfiles())), count)
}

func TestMigrator_StatusAndPending(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	for _, s := range statuses {
		assert.False(t, s.Applied)
		assert.Nil(t, s.AppliedAt)
	}

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	require.NoError(t, migrator.Up(ctx))

	statuses, err = migrator.Status(ctx)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.True(t, s.Applied, s.Version)
		assert.NotNil(t, s.AppliedAt)
	}

	pending, err = migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMigrator_Down(t *testing.T) {
	db, migrator := migratedDB(t)
	ctx := context.Background()

	require.NoError(t, migrator.Down(ctx))
	assert.False(t, db.Migrator().HasIndex(&models.MediaFile{}, directoryIndex))

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "003", pending[0].Version)

	require.NoError(t, migrator.Down(ctx))
	var count int64
	require.NoError(t, db.Unscoped().Model(&models.TranscodingProfile{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, migrator.Down(ctx))
	assert.False(t, db.Migrator().HasTable("media_files"))

	// Nothing left to roll back.
	require.NoError(t, migrator.Down(ctx))
}

func TestMigrator_Down_WithoutRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll([]Migration{{
		Version:     "001",
		Description: "one way",
		Up:          func(*gorm.DB) error { return nil },
	}})
	require.NoError(t, migrator.Up(ctx))

	err := migrator.Down(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support rollback")
}

func TestMigrations_CanInsertLibrary(t *testing.T) {
	db, _ := migratedDB(t)

	folder := &models.MusicFolder{Name: "Music", Path: "/music"}
	require.NoError(t, db.Create(folder).Error)
	assert.False(t, folder.ID.IsZero())

	file := &models.MediaFile{FolderID: folder.ID, Path: "/music/Album/01.flac"}
	require.NoError(t, db.Create(file).Error)
	assert.Equal(t, "/music/Album", file.ParentPath)
	assert.Equal(t, "flac", file.Format)

	playlist := &models.Playlist{Name: "Mix", Username: "alice"}
	require.NoError(t, db.Create(playlist).Error)
	require.NoError(t, db.Create(&models.PlaylistEntry{
		PlaylistID:  playlist.ID,
		MediaFileID: file.ID,
		Position:    0,
	}).Error)

	var loaded models.Playlist
	require.NoError(t, db.Preload("Entries.MediaFile").First(&loaded, "id = ?", playlist.ID).Error)
	require.Len(t, loaded.Entries, 1)
	require.NotNil(t, loaded.Entries[0].MediaFile)
	assert.Equal(t, file.Path, loaded.Entries[0].MediaFile.Path)
}

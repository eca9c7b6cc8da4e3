package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/soundrelay/internal/models"
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

	// Each in-memory connection is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func createFolder(t *testing.T, db *gorm.DB, name, path string) *models.MusicFolder {
	t.Helper()
	folder := &models.MusicFolder{Name: name, Path: path}
	require.NoError(t, NewMusicFolderRepository(db).Create(context.Background(), folder))
	return folder
}

func createFile(t *testing.T, db *gorm.DB, folder *models.MusicFolder, rel string) *models.MediaFile {
	t.Helper()
	file := &models.MediaFile{
		FolderID: folder.ID,
		Path:     filepath.Join(folder.Path, rel),
		Size:     1024,
	}
	require.NoError(t, NewMediaFileRepository(db).Create(context.Background(), file))
	return file
}

package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/playback"
	"github.com/jmylchreest/soundrelay/internal/repository"
	"github.com/jmylchreest/soundrelay/internal/signing"
	"github.com/jmylchreest/soundrelay/internal/transcode"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	db        *gorm.DB
	fs        afero.Fs
	registrar *playback.Registrar
	players   *PlayerService
	delivery  *DeliveryService

	folder *models.MusicFolder
	album  *models.MediaFile
	first  *models.MediaFile
	second *models.MediaFile

	firstData  []byte
	secondData []byte
	coverData  []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	f := &fixture{
		db:         db,
		fs:         afero.NewMemMapFs(),
		firstData:  bytes.Repeat([]byte("first-track."), 100),
		secondData: bytes.Repeat([]byte("second."), 50),
		coverData:  []byte("jpeg"),
	}
	require.NoError(t, afero.WriteFile(f.fs, "/music/album/01.mp3", f.firstData, 0o644))
	require.NoError(t, afero.WriteFile(f.fs, "/music/album/02.mp3", f.secondData, 0o644))
	require.NoError(t, afero.WriteFile(f.fs, "/music/album/cover.jpg", f.coverData, 0o644))

	folders := repository.NewMusicFolderRepository(db)
	files := repository.NewMediaFileRepository(db)
	access := repository.NewFolderAccessRepository(db)
	playerRepo := repository.NewPlayerRepository(db)
	playlists := repository.NewPlaylistRepository(db)
	profiles := repository.NewTranscodingProfileRepository(db)

	f.folder = &models.MusicFolder{Name: "Music", Path: "/music"}
	require.NoError(t, folders.Create(ctx, f.folder))
	require.NoError(t, access.Grant(ctx, "alice", f.folder.ID))

	duration := 125.0
	f.album = &models.MediaFile{
		FolderID:     f.folder.ID,
		Path:         "/music/album",
		IsDirectory:  true,
		CoverArtPath: "/music/album/cover.jpg",
	}
	f.first = &models.MediaFile{
		FolderID:        f.folder.ID,
		Path:            "/music/album/01.mp3",
		Title:           "First",
		Artist:          "Band",
		Size:            int64(len(f.firstData)),
		DurationSeconds: &duration,
	}
	f.second = &models.MediaFile{
		FolderID: f.folder.ID,
		Path:     "/music/album/02.mp3",
		Title:    "Second",
		Size:     int64(len(f.secondData)),
	}
	for _, m := range []*models.MediaFile{f.album, f.first, f.second} {
		require.NoError(t, files.Create(ctx, m))
	}

	f.registrar = playback.NewRegistrar(playback.DefaultRegistrarConfig())
	f.players = NewPlayerService(playerRepo, files, access, f.registrar)

	signer, err := signing.NewSigner("test-secret", time.Hour)
	require.NoError(t, err)

	resolver := transcode.NewResolver(profiles, transcode.ResolverConfig{})
	opener := transcode.NewOpener(f.fs, "")
	f.delivery = NewDeliveryService(files, playlists, access, f.players, f.registrar, resolver, opener, DeliveryConfig{
		BufferSize:     256,
		KeepAliveDelay: 10 * time.Millisecond,
	}).WithFilesystem(f.fs).WithSigner(signer)

	return f
}

func (f *fixture) playlist(t *testing.T, owner string, files ...*models.MediaFile) *models.Playlist {
	t.Helper()
	p := &models.Playlist{Name: "Mix", Username: owner}
	for _, file := range files {
		p.Entries = append(p.Entries, models.PlaylistEntry{MediaFileID: file.ID})
	}
	require.NoError(t, repository.NewPlaylistRepository(f.db).Create(context.Background(), p))
	return p
}

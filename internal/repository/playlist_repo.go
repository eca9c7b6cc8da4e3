package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/soundrelay/internal/models"
	"gorm.io/gorm"
)

// playlistRepo implements PlaylistRepository using GORM.
type playlistRepo struct {
	db *gorm.DB
}

// NewPlaylistRepository creates a new PlaylistRepository.
func NewPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &playlistRepo{db: db}
}

// Create creates a new playlist together with its entries.
// Entry positions are assigned from slice order. Entries reference existing
// media files by ID; attached MediaFile values are not written.
func (r *playlistRepo) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validating playlist: %w", err)
	}
	for i := range playlist.Entries {
		playlist.Entries[i].Position = i
		if file := playlist.Entries[i].MediaFile; file != nil {
			playlist.Entries[i].MediaFileID = file.ID
			playlist.Entries[i].MediaFile = nil
		}
		if playlist.Entries[i].MediaFileID.IsZero() {
			return fmt.Errorf("validating playlist entry %d: %w", i, models.ErrFileRequired)
		}
	}
	if err := r.db.WithContext(ctx).Create(playlist).Error; err != nil {
		return fmt.Errorf("creating playlist: %w", err)
	}
	return nil
}

// GetByID retrieves a playlist with its entries ordered by position.
func (r *playlistRepo) GetByID(ctx context.Context, id models.ULID) (*models.Playlist, error) {
	var playlist models.Playlist
	if err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("playlist_entries.position ASC")
		}).
		Preload("Entries.MediaFile").
		Where("id = ?", id).
		First(&playlist).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting playlist by ID: %w", err)
	}
	return &playlist, nil
}

// GetByUsername retrieves a user's playlists ordered by name.
func (r *playlistRepo) GetByUsername(ctx context.Context, username string) ([]*models.Playlist, error) {
	var playlists []*models.Playlist
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("name ASC").
		Find(&playlists).Error; err != nil {
		return nil, fmt.Errorf("getting playlists by username: %w", err)
	}
	return playlists, nil
}

// Delete deletes a playlist and its entries.
func (r *playlistRepo) Delete(ctx context.Context, id models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("playlist_id = ?", id).Delete(&models.PlaylistEntry{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Playlist{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("deleting playlist: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/soundrelay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// folderAccessRepo implements FolderAccessRepository using GORM.
type folderAccessRepo struct {
	db *gorm.DB
}

// NewFolderAccessRepository creates a new FolderAccessRepository.
func NewFolderAccessRepository(db *gorm.DB) FolderAccessRepository {
	return &folderAccessRepo{db: db}
}

// Grant gives a user access to a folder.
func (r *folderAccessRepo) Grant(ctx context.Context, username string, folderID models.ULID) error {
	if username == "" {
		return fmt.Errorf("granting folder access: %w", models.ErrUsernameRequired)
	}
	if folderID.IsZero() {
		return fmt.Errorf("granting folder access: %w", models.ErrFolderRequired)
	}

	access := &models.FolderAccess{Username: username, FolderID: folderID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(access).Error; err != nil {
		return fmt.Errorf("granting folder access: %w", err)
	}
	return nil
}

// Revoke removes a user's access to a folder.
func (r *folderAccessRepo) Revoke(ctx context.Context, username string, folderID models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().
		Where("username = ? AND folder_id = ?", username, folderID).
		Delete(&models.FolderAccess{}).Error; err != nil {
		return fmt.Errorf("revoking folder access: %w", err)
	}
	return nil
}

// GetFolderIDs returns the folders a user may read.
func (r *folderAccessRepo) GetFolderIDs(ctx context.Context, username string) ([]models.ULID, error) {
	var ids []models.ULID
	if err := r.db.WithContext(ctx).
		Model(&models.FolderAccess{}).
		Where("username = ?", username).
		Pluck("folder_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("getting folder access: %w", err)
	}
	return ids, nil
}

// IsFolderAccessAllowed reports whether the user may read the file's folder.
func (r *folderAccessRepo) IsFolderAccessAllowed(ctx context.Context, file *models.MediaFile, username string) (bool, error) {
	if file == nil || username == "" {
		return false, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.FolderAccess{}).
		Joins("JOIN music_folders ON music_folders.id = folder_access.folder_id").
		Where("folder_access.username = ? AND folder_access.folder_id = ?", username, file.FolderID).
		Where("music_folders.enabled = ?", true).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking folder access: %w", err)
	}
	return count > 0, nil
}

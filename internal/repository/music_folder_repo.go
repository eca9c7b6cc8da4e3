package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/soundrelay/internal/models"
	"gorm.io/gorm"
)

// musicFolderRepo implements MusicFolderRepository using GORM.
type musicFolderRepo struct {
	db *gorm.DB
}

// NewMusicFolderRepository creates a new MusicFolderRepository.
func NewMusicFolderRepository(db *gorm.DB) MusicFolderRepository {
	return &musicFolderRepo{db: db}
}

// Create creates a new music folder.
func (r *musicFolderRepo) Create(ctx context.Context, folder *models.MusicFolder) error {
	if err := folder.Validate(); err != nil {
		return fmt.Errorf("validating music folder: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(folder).Error; err != nil {
		return fmt.Errorf("creating music folder: %w", err)
	}
	return nil
}

// GetByID retrieves a music folder by ID.
func (r *musicFolderRepo) GetByID(ctx context.Context, id models.ULID) (*models.MusicFolder, error) {
	var folder models.MusicFolder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting music folder by ID: %w", err)
	}
	return &folder, nil
}

// GetAll retrieves all music folders ordered by name.
func (r *musicFolderRepo) GetAll(ctx context.Context) ([]*models.MusicFolder, error) {
	var folders []*models.MusicFolder
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("getting all music folders: %w", err)
	}
	return folders, nil
}

// GetEnabled retrieves all enabled music folders ordered by name.
func (r *musicFolderRepo) GetEnabled(ctx context.Context) ([]*models.MusicFolder, error) {
	var folders []*models.MusicFolder
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("name ASC").
		Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("getting enabled music folders: %w", err)
	}
	return folders, nil
}

// Update updates an existing music folder.
func (r *musicFolderRepo) Update(ctx context.Context, folder *models.MusicFolder) error {
	if err := folder.Validate(); err != nil {
		return fmt.Errorf("validating music folder: %w", err)
	}
	if err := r.db.WithContext(ctx).Save(folder).Error; err != nil {
		return fmt.Errorf("updating music folder: %w", err)
	}
	return nil
}

// Delete deletes a music folder by ID.
func (r *musicFolderRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Delete(&models.MusicFolder{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting music folder: %w", err)
	}
	return nil
}

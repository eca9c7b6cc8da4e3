package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/soundrelay/internal/models"
	"gorm.io/gorm"
)

// mediaFileRepo implements MediaFileRepository using GORM.
type mediaFileRepo struct {
	db *gorm.DB
}

// NewMediaFileRepository creates a new MediaFileRepository.
func NewMediaFileRepository(db *gorm.DB) MediaFileRepository {
	return &mediaFileRepo{db: db}
}

// Create creates a new media file.
func (r *mediaFileRepo) Create(ctx context.Context, file *models.MediaFile) error {
	if err := file.Validate(); err != nil {
		return fmt.Errorf("validating media file: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("creating media file: %w", err)
	}
	return nil
}

// GetByID retrieves a media file by ID.
func (r *mediaFileRepo) GetByID(ctx context.Context, id models.ULID) (*models.MediaFile, error) {
	var file models.MediaFile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting media file by ID: %w", err)
	}
	return &file, nil
}

// GetByPath retrieves a media file by its absolute path.
func (r *mediaFileRepo) GetByPath(ctx context.Context, path string) (*models.MediaFile, error) {
	var file models.MediaFile
	if err := r.db.WithContext(ctx).Where("path = ?", path).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting media file by path: %w", err)
	}
	return &file, nil
}

// GetByIDs retrieves media files in the order of the given IDs.
// Repeated IDs yield repeated entries.
func (r *mediaFileRepo) GetByIDs(ctx context.Context, ids []models.ULID) ([]*models.MediaFile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []*models.MediaFile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("getting media files by IDs: %w", err)
	}

	byID := make(map[models.ULID]*models.MediaFile, len(found))
	for _, f := range found {
		byID[f.ID] = f
	}

	files := make([]*models.MediaFile, 0, len(ids))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			files = append(files, f)
		}
	}
	return files, nil
}

// GetChildren retrieves the direct children of a directory, ordered by path.
func (r *mediaFileRepo) GetChildren(ctx context.Context, parentPath string) ([]*models.MediaFile, error) {
	var files []*models.MediaFile
	if err := r.db.WithContext(ctx).
		Where("parent_path = ?", parentPath).
		Order("path ASC").
		Find(&files).Error; err != nil {
		return nil, fmt.Errorf("getting media file children: %w", err)
	}
	return files, nil
}

// Update updates an existing media file.
func (r *mediaFileRepo) Update(ctx context.Context, file *models.MediaFile) error {
	if err := file.Validate(); err != nil {
		return fmt.Errorf("validating media file: %w", err)
	}
	if err := r.db.WithContext(ctx).Save(file).Error; err != nil {
		return fmt.Errorf("updating media file: %w", err)
	}
	return nil
}

// Delete deletes a media file by ID.
func (r *mediaFileRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Delete(&models.MediaFile{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting media file: %w", err)
	}
	return nil
}

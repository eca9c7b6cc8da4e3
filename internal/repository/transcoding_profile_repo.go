package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/soundrelay/internal/models"
	"gorm.io/gorm"
)

// transcodingProfileRepo implements TranscodingProfileRepository using GORM.
type transcodingProfileRepo struct {
	db *gorm.DB
}

// NewTranscodingProfileRepository creates a new TranscodingProfileRepository.
func NewTranscodingProfileRepository(db *gorm.DB) TranscodingProfileRepository {
	return &transcodingProfileRepo{db: db}
}

// Create creates a new profile.
func (r *transcodingProfileRepo) Create(ctx context.Context, profile *models.TranscodingProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validating transcoding profile: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return fmt.Errorf("creating transcoding profile: %w", err)
	}
	return nil
}

// GetByID retrieves a profile by ID.
func (r *transcodingProfileRepo) GetByID(ctx context.Context, id models.ULID) (*models.TranscodingProfile, error) {
	var profile models.TranscodingProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting transcoding profile by ID: %w", err)
	}
	return &profile, nil
}

// GetByName retrieves a profile by name.
func (r *transcodingProfileRepo) GetByName(ctx context.Context, name string) (*models.TranscodingProfile, error) {
	var profile models.TranscodingProfile
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting transcoding profile by name: %w", err)
	}
	return &profile, nil
}

// GetAll retrieves all profiles ordered by name.
func (r *transcodingProfileRepo) GetAll(ctx context.Context) ([]*models.TranscodingProfile, error) {
	var profiles []*models.TranscodingProfile
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("getting all transcoding profiles: %w", err)
	}
	return profiles, nil
}

// GetEnabled retrieves enabled profiles ordered by name.
func (r *transcodingProfileRepo) GetEnabled(ctx context.Context) ([]*models.TranscodingProfile, error) {
	var profiles []*models.TranscodingProfile
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("name ASC").
		Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("getting enabled transcoding profiles: %w", err)
	}
	return profiles, nil
}

// Update updates an existing profile.
func (r *transcodingProfileRepo) Update(ctx context.Context, profile *models.TranscodingProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validating transcoding profile: %w", err)
	}
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return fmt.Errorf("updating transcoding profile: %w", err)
	}
	return nil
}

// Delete deletes a profile by ID.
func (r *transcodingProfileRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Delete(&models.TranscodingProfile{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting transcoding profile: %w", err)
	}
	return nil
}

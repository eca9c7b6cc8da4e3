package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/soundrelay/internal/models"
	"gorm.io/gorm"
)

// playerRepo implements PlayerRepository using GORM.
type playerRepo struct {
	db *gorm.DB
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &playerRepo{db: db}
}

// Create creates a new player.
func (r *playerRepo) Create(ctx context.Context, player *models.Player) error {
	if err := player.Validate(); err != nil {
		return fmt.Errorf("validating player: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(player).Error; err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	return nil
}

// GetByID retrieves a player by ID.
func (r *playerRepo) GetByID(ctx context.Context, id models.ULID) (*models.Player, error) {
	var player models.Player
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting player by ID: %w", err)
	}
	return &player, nil
}

// GetByUsername retrieves all players owned by a user, oldest first.
func (r *playerRepo) GetByUsername(ctx context.Context, username string) ([]*models.Player, error) {
	var players []*models.Player
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at ASC").
		Find(&players).Error; err != nil {
		return nil, fmt.Errorf("getting players by username: %w", err)
	}
	return players, nil
}

// GetOrCreate returns the user's player for a client, creating it on first use.
func (r *playerRepo) GetOrCreate(ctx context.Context, username, clientID string) (*models.Player, error) {
	if username == "" {
		return nil, fmt.Errorf("validating player: %w", models.ErrUsernameRequired)
	}

	var player models.Player
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("username = ? AND client_id = ?", username, clientID).
			Order("created_at ASC").
			First(&player).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		name := clientID
		if name == "" {
			name = username
		}
		player = models.Player{
			Name:     name,
			Username: username,
			ClientID: clientID,
		}
		return tx.Create(&player).Error
	})
	if err != nil {
		return nil, fmt.Errorf("getting or creating player: %w", err)
	}
	return &player, nil
}

// Update updates an existing player.
func (r *playerRepo) Update(ctx context.Context, player *models.Player) error {
	if err := player.Validate(); err != nil {
		return fmt.Errorf("validating player: %w", err)
	}
	if err := r.db.WithContext(ctx).Save(player).Error; err != nil {
		return fmt.Errorf("updating player: %w", err)
	}
	return nil
}

// Delete deletes a player by ID.
func (r *playerRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Delete(&models.Player{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting player: %w", err)
	}
	return nil
}

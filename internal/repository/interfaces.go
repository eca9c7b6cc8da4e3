// Package repository defines data access interfaces for soundrelay entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"

	"github.com/jmylchreest/soundrelay/internal/models"
)

// MediaFileRepository defines operations for library file persistence.
type MediaFileRepository interface {
	// Create creates a new media file.
	Create(ctx context.Context, file *models.MediaFile) error
	// GetByID retrieves a media file by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.MediaFile, error)
	// GetByPath retrieves a media file by its absolute path.
	GetByPath(ctx context.Context, path string) (*models.MediaFile, error)
	// GetByIDs retrieves media files in the order of the given IDs, skipping unknown IDs.
	GetByIDs(ctx context.Context, ids []models.ULID) ([]*models.MediaFile, error)
	// GetChildren retrieves the direct children of a directory, ordered by path.
	GetChildren(ctx context.Context, parentPath string) ([]*models.MediaFile, error)
	// Update updates an existing media file.
	Update(ctx context.Context, file *models.MediaFile) error
	// Delete deletes a media file by ID.
	Delete(ctx context.Context, id models.ULID) error
}

// MusicFolderRepository defines operations for library root persistence.
type MusicFolderRepository interface {
	// Create creates a new music folder.
	Create(ctx context.Context, folder *models.MusicFolder) error
	// GetByID retrieves a music folder by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.MusicFolder, error)
	// GetAll retrieves all music folders.
	GetAll(ctx context.Context) ([]*models.MusicFolder, error)
	// GetEnabled retrieves all enabled music folders.
	GetEnabled(ctx context.Context) ([]*models.MusicFolder, error)
	// Update updates an existing music folder.
	Update(ctx context.Context, folder *models.MusicFolder) error
	// Delete deletes a music folder by ID.
	Delete(ctx context.Context, id models.ULID) error
}

// FolderAccessRepository defines operations for per-user folder grants.
type FolderAccessRepository interface {
	// Grant gives a user access to a folder. Granting twice is a no-op.
	Grant(ctx context.Context, username string, folderID models.ULID) error
	// Revoke removes a user's access to a folder.
	Revoke(ctx context.Context, username string, folderID models.ULID) error
	// GetFolderIDs returns the folders a user may read.
	GetFolderIDs(ctx context.Context, username string) ([]models.ULID, error)
	// IsFolderAccessAllowed reports whether the user may read the file's folder.
	// Disabled folders are never readable.
	IsFolderAccessAllowed(ctx context.Context, file *models.MediaFile, username string) (bool, error)
}

// PlayerRepository defines operations for player persistence.
type PlayerRepository interface {
	// Create creates a new player.
	Create(ctx context.Context, player *models.Player) error
	// GetByID retrieves a player by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Player, error)
	// GetByUsername retrieves all players owned by a user.
	GetByUsername(ctx context.Context, username string) ([]*models.Player, error)
	// GetOrCreate returns the user's player for a client, creating it on first use.
	GetOrCreate(ctx context.Context, username, clientID string) (*models.Player, error)
	// Update updates an existing player.
	Update(ctx context.Context, player *models.Player) error
	// Delete deletes a player by ID.
	Delete(ctx context.Context, id models.ULID) error
}

// PlaylistRepository defines operations for playlist persistence.
type PlaylistRepository interface {
	// Create creates a new playlist together with its entries.
	Create(ctx context.Context, playlist *models.Playlist) error
	// GetByID retrieves a playlist with its entries ordered by position
	// and each entry's media file preloaded.
	GetByID(ctx context.Context, id models.ULID) (*models.Playlist, error)
	// GetByUsername retrieves a user's playlists without entries.
	GetByUsername(ctx context.Context, username string) ([]*models.Playlist, error)
	// Delete deletes a playlist and its entries.
	Delete(ctx context.Context, id models.ULID) error
}

// TranscodingProfileRepository defines operations for transcoding profile persistence.
type TranscodingProfileRepository interface {
	// Create creates a new profile.
	Create(ctx context.Context, profile *models.TranscodingProfile) error
	// GetByID retrieves a profile by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.TranscodingProfile, error)
	// GetByName retrieves a profile by name.
	GetByName(ctx context.Context, name string) (*models.TranscodingProfile, error)
	// GetAll retrieves all profiles ordered by name.
	GetAll(ctx context.Context) ([]*models.TranscodingProfile, error)
	// GetEnabled retrieves enabled profiles ordered by name.
	GetEnabled(ctx context.Context) ([]*models.TranscodingProfile, error)
	// Update updates an existing profile.
	Update(ctx context.Context, profile *models.TranscodingProfile) error
	// Delete deletes a profile by ID.
	Delete(ctx context.Context, id models.ULID) error
}

package models

import (
	"path/filepath"
	"strings"

	"gorm.io/gorm"
)

// MusicFolder is a library root. Every MediaFile belongs to exactly one folder.
type MusicFolder struct {
	BaseModel

	Name    string `gorm:"not null;size:255" json:"name"`
	Path    string `gorm:"not null;size:1024;uniqueIndex" json:"path"`
	Enabled *bool  `gorm:"default:true" json:"enabled"`
}

// TableName returns the table name for MusicFolder.
func (MusicFolder) TableName() string {
	return "music_folders"
}

// Validate performs basic validation on the folder.
func (f *MusicFolder) Validate() error {
	if f.Name == "" {
		return ErrNameRequired
	}
	if f.Path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(f.Path) {
		return ErrPathNotAbsolute
	}
	return nil
}

// IsEnabled reports whether the folder is served.
func (f *MusicFolder) IsEnabled() bool {
	return BoolVal(f.Enabled)
}

// FolderAccess grants a user read access to a music folder.
type FolderAccess struct {
	BaseModel

	Username string `gorm:"not null;size:255;uniqueIndex:idx_folder_access_user_folder" json:"username"`
	FolderID ULID   `gorm:"not null;type:varchar(26);uniqueIndex:idx_folder_access_user_folder" json:"folder_id"`
}

// TableName returns the table name for FolderAccess.
func (FolderAccess) TableName() string {
	return "folder_access"
}

// MediaFile is a file or directory in the library.
type MediaFile struct {
	BaseModel

	FolderID        ULID     `gorm:"not null;type:varchar(26);index" json:"folder_id"`
	Path            string   `gorm:"not null;size:1024;uniqueIndex" json:"path"`
	ParentPath      string   `gorm:"size:1024;index" json:"parent_path"`
	IsDirectory     bool     `gorm:"default:false" json:"is_directory"`
	Title           string   `gorm:"size:512" json:"title,omitempty"`
	Artist          string   `gorm:"size:512" json:"artist,omitempty"`
	Album           string   `gorm:"size:512" json:"album,omitempty"`
	Genre           string   `gorm:"size:255" json:"genre,omitempty"`
	Format          string   `gorm:"size:32" json:"format,omitempty"`
	Size            int64    `json:"size"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	BitRate         *int     `json:"bit_rate,omitempty"`
	VariableBitRate bool     `gorm:"default:false" json:"variable_bit_rate"`
	IsVideo         bool     `gorm:"default:false" json:"is_video"`
	Width           int      `json:"width,omitempty"`
	Height          int      `json:"height,omitempty"`
	CoverArtPath    string   `gorm:"size:1024" json:"cover_art_path,omitempty"`
}

// TableName returns the table name for MediaFile.
func (MediaFile) TableName() string {
	return "media_files"
}

// Validate performs basic validation on the media file.
func (m *MediaFile) Validate() error {
	if m.FolderID.IsZero() {
		return ErrFolderRequired
	}
	if m.Path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(m.Path) {
		return ErrPathNotAbsolute
	}
	if m.BitRate != nil && *m.BitRate < 0 {
		return ErrInvalidBitRate
	}
	return nil
}

// BeforeCreate is a GORM hook that derives the parent path and format.
func (m *MediaFile) BeforeCreate(tx *gorm.DB) error {
	if err := m.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ParentPath == "" {
		m.ParentPath = filepath.Dir(m.Path)
	}
	if m.Format == "" && !m.IsDirectory {
		m.Format = strings.TrimPrefix(strings.ToLower(filepath.Ext(m.Path)), ".")
	}
	return nil
}

// Name returns the base name of the file.
func (m *MediaFile) Name() string {
	return filepath.Base(m.Path)
}

// Duration returns the duration in seconds, or zero when unknown.
func (m *MediaFile) Duration() float64 {
	if m.DurationSeconds == nil {
		return 0
	}
	return *m.DurationSeconds
}

// DisplayTitle returns the title, falling back to the file name.
func (m *MediaFile) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return strings.TrimSuffix(m.Name(), filepath.Ext(m.Path))
}

package models

// Playlist is a named, ordered list of media files.
type Playlist struct {
	BaseModel

	Name     string          `gorm:"not null;size:255" json:"name"`
	Username string          `gorm:"not null;size:255;index" json:"username"`
	Entries  []PlaylistEntry `gorm:"foreignKey:PlaylistID;constraint:OnDelete:CASCADE" json:"entries,omitempty"`
}

// TableName returns the table name for Playlist.
func (Playlist) TableName() string {
	return "playlists"
}

// Validate performs basic validation on the playlist.
func (p *Playlist) Validate() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if p.Username == "" {
		return ErrUsernameRequired
	}
	return nil
}

// PlaylistEntry places a media file at a position within a playlist.
type PlaylistEntry struct {
	BaseModel

	PlaylistID  ULID       `gorm:"not null;type:varchar(26);index" json:"playlist_id"`
	MediaFileID ULID       `gorm:"not null;type:varchar(26)" json:"media_file_id"`
	Position    int        `gorm:"not null" json:"position"`
	MediaFile   *MediaFile `gorm:"foreignKey:MediaFileID" json:"media_file,omitempty"`
}

// TableName returns the table name for PlaylistEntry.
func (PlaylistEntry) TableName() string {
	return "playlist_entries"
}

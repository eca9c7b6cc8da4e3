package models

// Player is a playback endpoint. Each player owns one in-memory play queue.
type Player struct {
	BaseModel

	Name               string `gorm:"size:255" json:"name"`
	Username           string `gorm:"not null;size:255;index" json:"username"`
	ClientID           string `gorm:"size:255" json:"client_id,omitempty"`
	MaxBitRate         int    `gorm:"default:0" json:"max_bit_rate"` // kbps, 0 = unlimited
	TranscodingEnabled *bool  `gorm:"default:true" json:"transcoding_enabled"`
}

// TableName returns the table name for Player.
func (Player) TableName() string {
	return "players"
}

// Validate performs basic validation on the player.
func (p *Player) Validate() error {
	if p.Username == "" {
		return ErrUsernameRequired
	}
	if p.MaxBitRate < 0 {
		return ErrInvalidBitRate
	}
	return nil
}

// CanTranscode reports whether transcoding profiles apply to this player.
func (p *Player) CanTranscode() bool {
	return BoolVal(p.TranscodingEnabled)
}

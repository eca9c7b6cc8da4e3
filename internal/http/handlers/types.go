package handlers

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/service"
	"github.com/jmylchreest/soundrelay/internal/streaming"
)

// Common response types

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Transfer types

// TransferResponse represents one stream or download in API responses.
type TransferResponse struct {
	ID               string             `json:"id"`
	Kind             string             `json:"kind"`
	PlayerID         string             `json:"player_id"`
	Username         string             `json:"username"`
	Path             string             `json:"path,omitempty"`
	Active           bool               `json:"active"`
	BytesTransferred int64              `json:"bytes_transferred"`
	BytesSkipped     int64              `json:"bytes_skipped"`
	BytesTotal       int64              `json:"bytes_total"`
	Transferred      string             `json:"transferred" doc:"Human readable transferred size"`
	CurrentBps       int64              `json:"current_bps"`
	StartedAt        time.Time          `json:"started_at"`
	EndedAt          *time.Time         `json:"ended_at,omitempty"`
	History          []streaming.Sample `json:"history,omitempty"`
}

// TransferFromStatus converts a transfer status to a response.
func TransferFromStatus(s *streaming.TransferStatus, withHistory bool) TransferResponse {
	resp := TransferResponse{
		ID:               s.ID,
		Kind:             string(s.Kind),
		PlayerID:         s.PlayerID,
		Username:         s.Username,
		Path:             s.Path(),
		Active:           s.Active(),
		BytesTransferred: s.BytesTransferred(),
		BytesSkipped:     s.BytesSkipped(),
		BytesTotal:       s.BytesTotal(),
		Transferred:      humanize.IBytes(uint64(max(s.BytesTransferred(), 0))),
		StartedAt:        s.Started(),
	}
	if resp.Active {
		resp.CurrentBps = s.CurrentBps()
	} else {
		ended := s.Ended()
		resp.EndedAt = &ended
	}
	if withHistory {
		resp.History = s.History()
	}
	return resp
}

// TransfersResponse lists active and recent transfers.
type TransfersResponse struct {
	Streams   []TransferResponse `json:"streams"`
	Downloads []TransferResponse `json:"downloads"`
	History   []TransferResponse `json:"history"`
}

// Player types

// QueueEntryResponse is one file of a play queue.
type QueueEntryResponse struct {
	ID     models.ULID `json:"id"`
	Path   string      `json:"path"`
	Title  string      `json:"title"`
	Artist string      `json:"artist,omitempty"`
	Album  string      `json:"album,omitempty"`
}

// QueueResponse represents a player's play queue.
type QueueResponse struct {
	PlayerID string               `json:"player_id"`
	Status   string               `json:"status" enum:"PLAYING,STOPPED"`
	Index    int                  `json:"index"`
	Entries  []QueueEntryResponse `json:"entries"`
}

// QueueFromState converts a queue snapshot to a response.
func QueueFromState(s *service.QueueState) QueueResponse {
	resp := QueueResponse{
		PlayerID: s.PlayerID,
		Status:   string(s.Status),
		Index:    s.Index,
		Entries:  make([]QueueEntryResponse, 0, len(s.Files)),
	}
	for _, f := range s.Files {
		resp.Entries = append(resp.Entries, QueueEntryResponse{
			ID:     f.ID,
			Path:   f.Path,
			Title:  f.DisplayTitle(),
			Artist: f.Artist,
			Album:  f.Album,
		})
	}
	return resp
}

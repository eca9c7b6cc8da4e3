package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/soundrelay/internal/streaming"
	"github.com/jmylchreest/soundrelay/internal/transcode"
)

// ErrSigningDisabled is returned when HLS links cannot be signed.
var ErrSigningDisabled = errors.New("url signing is not configured")

// HLSRequest is a parsed HLS playlist request.
type HLSRequest struct {
	Username string
	ClientID string
	PlayerID string
	FileID   string
	Bitrates []string
}

// Playlist returns the HLS playlist of a file. Segment and variant links are
// signed for the requesting user.
func (s *DeliveryService) Playlist(ctx context.Context, req HLSRequest) (string, error) {
	specs, err := streaming.ParseBitrates(req.Bitrates)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	file, err := s.lookupFile(ctx, req.FileID, req.Username)
	if err != nil {
		return "", err
	}
	if file.IsDirectory {
		return "", invalidf("%s is a directory", req.FileID)
	}

	player, err := s.players.Resolve(ctx, req.PlayerID, req.Username, req.ClientID)
	if err != nil {
		return "", err
	}
	if s.signer == nil {
		return "", ErrSigningDisabled
	}

	if len(specs) == 0 {
		kbps := player.MaxBitRate
		if kbps == 0 {
			kbps = transcode.DefaultVideoBitRate
		}
		specs = []streaming.BitrateSpec{{Kbps: kbps}}
	}

	playlist, err := streaming.BuildPlaylist(streaming.PlaylistRequest{
		FileID:          file.ID.String(),
		PlayerID:        player.ID.String(),
		DurationSeconds: file.Duration(),
		Bitrates:        specs,
		Expires:         s.signer.Expires(),
	}, s.signer.ForUser(req.Username))
	if err != nil {
		return "", fmt.Errorf("building playlist: %w", err)
	}
	return playlist, nil
}

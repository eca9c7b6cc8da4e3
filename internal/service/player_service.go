package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/playback"
	"github.com/jmylchreest/soundrelay/internal/repository"
)

// QueueState is a snapshot of a player's canonical play queue.
type QueueState struct {
	PlayerID string
	Status   playback.QueueStatus
	Index    int
	Files    []*models.MediaFile
}

// PlayerService resolves players and controls their play queues.
type PlayerService struct {
	players   repository.PlayerRepository
	files     repository.MediaFileRepository
	access    repository.FolderAccessRepository
	registrar *playback.Registrar
	logger    *slog.Logger
}

// NewPlayerService creates a new player service.
func NewPlayerService(
	players repository.PlayerRepository,
	files repository.MediaFileRepository,
	access repository.FolderAccessRepository,
	registrar *playback.Registrar,
) *PlayerService {
	return &PlayerService{
		players:   players,
		files:     files,
		access:    access,
		registrar: registrar,
		logger:    slog.Default().With(slog.String("component", "player_service")),
	}
}

// WithLogger sets the logger for the service.
func (s *PlayerService) WithLogger(logger *slog.Logger) *PlayerService {
	s.logger = logger.With(slog.String("component", "player_service"))
	return s
}

// Resolve returns the player a request addresses. Without a player id the
// user's player for clientID is used, and created on first use.
func (s *PlayerService) Resolve(ctx context.Context, playerID, username, clientID string) (*models.Player, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: no user", ErrForbidden)
	}
	if playerID == "" {
		player, err := s.players.GetOrCreate(ctx, username, clientID)
		if err != nil {
			return nil, fmt.Errorf("resolving player: %w", err)
		}
		return player, nil
	}

	id, err := parseID("player", playerID)
	if err != nil {
		return nil, err
	}
	player, err := s.players.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	if player == nil {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if player.Username != username {
		return nil, fmt.Errorf("%w: player %s belongs to another user", ErrForbidden, playerID)
	}
	return player, nil
}

// Stop stops every stream of the player that follows a queue.
func (s *PlayerService) Stop(ctx context.Context, playerID, username string) (*QueueState, error) {
	player, err := s.Resolve(ctx, playerID, username, "")
	if err != nil {
		return nil, err
	}
	s.registrar.StopPlayer(player.ID.String())
	return s.state(player), nil
}

// Start resumes the player's queues.
func (s *PlayerService) Start(ctx context.Context, playerID, username string) (*QueueState, error) {
	player, err := s.Resolve(ctx, playerID, username, "")
	if err != nil {
		return nil, err
	}
	s.registrar.StartPlayer(player.ID.String())
	return s.state(player), nil
}

// Queue returns the player's canonical queue.
func (s *PlayerService) Queue(ctx context.Context, playerID, username string) (*QueueState, error) {
	player, err := s.Resolve(ctx, playerID, username, "")
	if err != nil {
		return nil, err
	}
	return s.state(player), nil
}

// SetQueue replaces the player's canonical queue. Every file must exist and
// be readable by the user.
func (s *PlayerService) SetQueue(ctx context.Context, playerID, username string, fileIDs []string, index int) (*QueueState, error) {
	player, err := s.Resolve(ctx, playerID, username, "")
	if err != nil {
		return nil, err
	}

	ids := make([]models.ULID, 0, len(fileIDs))
	for _, raw := range fileIDs {
		id, err := parseID("file", raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	files, err := s.files.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("getting queue files: %w", err)
	}
	if len(files) != len(ids) {
		return nil, fmt.Errorf("%w: unknown file in queue", ErrNotFound)
	}
	for _, f := range files {
		if f.IsDirectory {
			return nil, invalidf("%s is a directory", f.ID)
		}
		allowed, err := s.access.IsFolderAccessAllowed(ctx, f, username)
		if err != nil {
			return nil, fmt.Errorf("checking folder access: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: file %s", ErrForbidden, f.ID)
		}
	}

	s.registrar.Queue(player.ID.String()).Replace(files, index)
	s.logger.InfoContext(ctx, "replaced play queue",
		slog.String("player_id", player.ID.String()),
		slog.Int("files", len(files)),
		slog.Int("index", index),
	)
	return s.state(player), nil
}

func (s *PlayerService) state(player *models.Player) *QueueState {
	q := s.registrar.Queue(player.ID.String())
	return &QueueState{
		PlayerID: player.ID.String(),
		Status:   q.Status(),
		Index:    q.Index(),
		Files:    q.Files(),
	}
}

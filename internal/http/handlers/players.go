package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/soundrelay/internal/http/middleware"
	"github.com/jmylchreest/soundrelay/internal/service"
)

// PlayerHandler handles player queue endpoints.
type PlayerHandler struct {
	players *service.PlayerService
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(players *service.PlayerService) *PlayerHandler {
	return &PlayerHandler{players: players}
}

// PlayerIDInput identifies a player.
type PlayerIDInput struct {
	ID string `path:"id" doc:"Player ID"`
}

// SetQueueInput replaces a player's queue.
type SetQueueInput struct {
	ID   string `path:"id" doc:"Player ID"`
	Body struct {
		FileIDs []string `json:"file_ids" doc:"Media file IDs in play order"`
		Index   int      `json:"index,omitempty" minimum:"0" doc:"Position to start playing from"`
	}
}

// QueueOutput is the output of the queue endpoints.
type QueueOutput struct {
	Body QueueResponse
}

// Register registers the player routes with the API.
func (h *PlayerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "stopPlayer",
		Method:      "POST",
		Path:        "/api/v1/players/{id}/stop",
		Summary:     "Stop a player",
		Description: "Stops the player's queue. Queue streams send keep-alive data until the player is started again; single file and playlist streams end.",
		Tags:        []string{"Players"},
	}, h.Stop)

	huma.Register(api, huma.Operation{
		OperationID: "startPlayer",
		Method:      "POST",
		Path:        "/api/v1/players/{id}/start",
		Summary:     "Start a player",
		Description: "Resumes the player's queue",
		Tags:        []string{"Players"},
	}, h.Start)

	huma.Register(api, huma.Operation{
		OperationID: "getPlayerQueue",
		Method:      "GET",
		Path:        "/api/v1/players/{id}/queue",
		Summary:     "Get a player's queue",
		Tags:        []string{"Players"},
	}, h.GetQueue)

	huma.Register(api, huma.Operation{
		OperationID: "setPlayerQueue",
		Method:      "PUT",
		Path:        "/api/v1/players/{id}/queue",
		Summary:     "Replace a player's queue",
		Description: "Replaces the queue with the given files. Queue streams switch to the new current file at their next read.",
		Tags:        []string{"Players"},
	}, h.SetQueue)
}

// Stop stops a player.
func (h *PlayerHandler) Stop(ctx context.Context, input *PlayerIDInput) (*QueueOutput, error) {
	state, err := h.players.Stop(ctx, input.ID, middleware.GetUser(ctx))
	return queueOutput(state, err)
}

// Start starts a player.
func (h *PlayerHandler) Start(ctx context.Context, input *PlayerIDInput) (*QueueOutput, error) {
	state, err := h.players.Start(ctx, input.ID, middleware.GetUser(ctx))
	return queueOutput(state, err)
}

// GetQueue returns a player's queue.
func (h *PlayerHandler) GetQueue(ctx context.Context, input *PlayerIDInput) (*QueueOutput, error) {
	state, err := h.players.Queue(ctx, input.ID, middleware.GetUser(ctx))
	return queueOutput(state, err)
}

// SetQueue replaces a player's queue.
func (h *PlayerHandler) SetQueue(ctx context.Context, input *SetQueueInput) (*QueueOutput, error) {
	state, err := h.players.SetQueue(ctx, input.ID, middleware.GetUser(ctx), input.Body.FileIDs, input.Body.Index)
	return queueOutput(state, err)
}

func queueOutput(state *service.QueueState, err error) (*QueueOutput, error) {
	if err != nil {
		return nil, toHumaError(err)
	}
	return &QueueOutput{Body: QueueFromState(state)}, nil
}

// toHumaError maps service errors to huma status errors.
func toHumaError(err error) error {
	switch service.StatusCode(err) {
	case http.StatusBadRequest:
		return huma.Error400BadRequest(err.Error())
	case http.StatusForbidden:
		return huma.Error403Forbidden(err.Error())
	case http.StatusNotFound:
		return huma.Error404NotFound(err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return huma.Error503ServiceUnavailable("request canceled")
	}
	return huma.Error500InternalServerError("internal error", err)
}

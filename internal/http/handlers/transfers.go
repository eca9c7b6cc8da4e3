package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/soundrelay/internal/streaming"
)

// TransferSource lists transfers known to the playback registrar.
type TransferSource interface {
	ActiveStreams() []*streaming.TransferStatus
	ActiveDownloads() []*streaming.TransferStatus
	History() []*streaming.TransferStatus
}

// TransferHandler handles transfer status endpoints.
type TransferHandler struct {
	source TransferSource
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(source TransferSource) *TransferHandler {
	return &TransferHandler{source: source}
}

// ListTransfersInput is the input for listing transfers.
type ListTransfersInput struct {
	Samples bool `query:"samples" doc:"Include the bit rate samples of active transfers"`
}

// ListTransfersOutput is the output for listing transfers.
type ListTransfersOutput struct {
	Body TransfersResponse
}

// Register registers the transfer routes with the API.
func (h *TransferHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listTransfers",
		Method:      "GET",
		Path:        "/api/v1/transfers",
		Summary:     "List transfers",
		Description: "Returns active streams and downloads with their current bit rate, and the history of ended streams",
		Tags:        []string{"Transfers"},
	}, h.List)
}

// List returns active and recent transfers.
func (h *TransferHandler) List(ctx context.Context, input *ListTransfersInput) (*ListTransfersOutput, error) {
	return &ListTransfersOutput{
		Body: TransfersResponse{
			Streams:   toTransfers(h.source.ActiveStreams(), input.Samples),
			Downloads: toTransfers(h.source.ActiveDownloads(), input.Samples),
			History:   toTransfers(h.source.History(), false),
		},
	}, nil
}

func toTransfers(list []*streaming.TransferStatus, withHistory bool) []TransferResponse {
	out := make([]TransferResponse, 0, len(list))
	for _, s := range list {
		out = append(out, TransferFromStatus(s, withHistory))
	}
	return out
}

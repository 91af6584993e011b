package service

import (
	"errors"

	"github.com/mfarrag/ragline/internal/models"
)

var (
	// ErrNoAssets means the project has no files to process.
	ErrNoAssets = errors.New("no files found for project")

	// ErrAssetNotFound means the requested file ID resolved to nothing.
	ErrAssetNotFound = errors.New("file not found in project")

	// ErrInFlight means another attempt for the same logical job is still
	// running and this submission must back off.
	ErrInFlight = errors.New("task already in flight")

	// ErrValidation covers bad chunking parameters and similar input errors.
	ErrValidation = errors.New("invalid ingestion parameters")
)

// classifySignal maps a processing error to the outcome signal recorded in
// the ledger and returned to the caller.
func classifySignal(err error) models.Signal {
	switch {
	case errors.Is(err, ErrNoAssets):
		return models.SignalNoFiles
	case errors.Is(err, ErrAssetNotFound):
		return models.SignalFileIDError
	default:
		return models.SignalProcessingFailed
	}
}

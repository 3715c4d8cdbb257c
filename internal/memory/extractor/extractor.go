package extractor

import (
	"context"

	"mnemochat/internal/models"
)

// Extractor defines the interface for extracting facts from a conversation turn.
type Extractor interface {
	Extract(ctx context.Context, event *models.TurnEvent) ([]*models.Fact, error)
}

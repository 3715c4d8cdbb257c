package store

import (
	"context"

	"mnemochat/internal/models"
)

// Store defines the interface for storing and retrieving facts.
// All operations are scoped to a single user; implementations must
// never return facts belonging to another user.
type Store interface {
	AddFacts(ctx context.Context, facts []*models.Fact) error
	Search(ctx context.Context, userID, query string, topK int) ([]*models.Fact, error)
	List(ctx context.Context, userID string, limit int) ([]*models.Fact, error)
	DeleteFact(ctx context.Context, userID, factID string) error
}

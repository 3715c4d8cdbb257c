package service

import (
	"context"
	"fmt"

	"mnemochat/internal/config"
	"mnemochat/internal/memory/extractor"
	"mnemochat/internal/memory/store"
	"mnemochat/internal/models"
	"mnemochat/pkg/logger"
)

// MemoryService owns the long-term memory of the assistant: it turns
// finished conversation turns into durable facts and answers retrieval
// queries against them.
type MemoryService struct {
	factExtractor extractor.Extractor
	factStore     store.Store
	cfg           config.MemoryConfig
	logger        *logger.Logger
}

// NewMemoryService creates a new MemoryService.
func NewMemoryService(factExtractor extractor.Extractor, factStore store.Store, cfg config.MemoryConfig, log *logger.Logger) *MemoryService {
	return &MemoryService{
		factExtractor: factExtractor,
		factStore:     factStore,
		cfg:           cfg,
		logger:        log,
	}
}

// Remember extracts facts from a finished turn and stores the novel ones.
// A fact is novel when the user's closest stored fact is farther away
// than the configured threshold, or when the user has no facts yet.
// Re-processing the same turn is harmless: extraction is deterministic
// and fact IDs are stable, so duplicates collapse on upsert.
func (s *MemoryService) Remember(ctx context.Context, event *models.TurnEvent) error {
	candidates, err := s.factExtractor.Extract(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to extract facts: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	var novel []*models.Fact
	for _, fact := range candidates {
		isNew, err := s.isNewInfo(ctx, event.UserID, fact.Content)
		if err != nil {
			return fmt.Errorf("novelty check failed: %w", err)
		}
		if isNew {
			novel = append(novel, fact)
		}
	}
	if len(novel) == 0 {
		s.logger.WithUser(event.UserID).Debug("no novel facts in turn")
		return nil
	}

	if err := s.factStore.AddFacts(ctx, novel); err != nil {
		return fmt.Errorf("failed to store facts: %w", err)
	}

	s.logger.WithUser(event.UserID).WithPayload(map[string]interface{}{
		"extracted": len(candidates),
		"stored":    len(novel),
	}).Info("stored facts from conversation turn")
	return nil
}

// isNewInfo compares a candidate statement against the user's closest
// stored fact. Scores are distances, so a score above the threshold
// means nothing similar is stored yet.
func (s *MemoryService) isNewInfo(ctx context.Context, userID, content string) (bool, error) {
	hits, err := s.factStore.Search(ctx, userID, content, 1)
	if err != nil {
		return false, err
	}
	if len(hits) == 0 {
		return true, nil
	}
	return hits[0].Score > s.cfg.NoveltyThreshold, nil
}

// Search returns the facts most relevant to the query, never more than
// the configured top-K.
func (s *MemoryService) Search(ctx context.Context, userID, query string) ([]*models.Fact, error) {
	return s.factStore.Search(ctx, userID, query, s.cfg.TopK)
}

// List returns the user's stored facts, capped at the configured maximum.
func (s *MemoryService) List(ctx context.Context, userID string) ([]*models.Fact, error) {
	return s.factStore.List(ctx, userID, s.cfg.MaxFactsPerUser)
}

// Forget removes a single fact from the user's memory.
func (s *MemoryService) Forget(ctx context.Context, userID, factID string) error {
	return s.factStore.DeleteFact(ctx, userID, factID)
}

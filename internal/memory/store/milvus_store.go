package store

import (
	"context"
	"fmt"
	"time"

	"mnemochat/internal/database/milvus"
	"mnemochat/internal/embedding"
	"mnemochat/internal/models"
)

// MilvusStore is an implementation of the Store interface that uses Milvus
// as the backend. Facts live in one collection partitioned per user, so a
// search or listing can never cross user boundaries.
type MilvusStore struct {
	client   *milvus.MilvusClient
	embedder embedding.Embedding
}

// NewMilvusStore creates a new MilvusStore.
func NewMilvusStore(client *milvus.MilvusClient, embedder embedding.Embedding) *MilvusStore {
	return &MilvusStore{
		client:   client,
		embedder: embedder,
	}
}

// AddFacts embeds and upserts a batch of facts. Facts carrying a vector
// already are written as-is. All facts in a batch must belong to the
// same user.
func (s *MilvusStore) AddFacts(ctx context.Context, facts []*models.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	userID := facts[0].UserID
	for _, f := range facts[1:] {
		if f.UserID != userID {
			return fmt.Errorf("mixed user IDs in fact batch")
		}
	}

	var missing []string
	var missingIdx []int
	for i, f := range facts {
		if len(f.Vector) == 0 {
			missing = append(missing, f.Content)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missing) > 0 {
		vectors, err := s.embedder.EmbedBatch(ctx, missing)
		if err != nil {
			return fmt.Errorf("failed to embed facts: %w", err)
		}
		if len(vectors) != len(missing) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missing))
		}
		for j, i := range missingIdx {
			facts[i].Vector = vectors[j]
		}
	}

	partition := milvus.PartitionName(userID)
	if err := s.client.EnsurePartition(ctx, partition); err != nil {
		return err
	}

	ids := make([]string, len(facts))
	userIDs := make([]string, len(facts))
	contents := make([]string, len(facts))
	sources := make([]string, len(facts))
	createdAt := make([]int64, len(facts))
	vectors := make([][]float32, len(facts))
	for i, f := range facts {
		if f.ID == "" {
			f.ID = models.FactID(f.UserID, f.Content)
		}
		if f.CreatedAt.IsZero() {
			f.CreatedAt = time.Now()
		}
		ids[i] = f.ID
		userIDs[i] = f.UserID
		contents[i] = f.Content
		sources[i] = f.Source
		createdAt[i] = f.CreatedAt.Unix()
		vectors[i] = f.Vector
	}

	return s.client.Upsert(ctx, partition, ids, userIDs, contents, sources, createdAt, vectors)
}

// Search retrieves the topK facts most similar to the query, restricted
// to the user's partition. Each returned fact carries its distance score.
func (s *MilvusStore) Search(ctx context.Context, userID, query string, topK int) ([]*models.Fact, error) {
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	partition := milvus.PartitionName(userID)
	if err := s.client.EnsurePartition(ctx, partition); err != nil {
		return nil, err
	}

	searchResult, err := s.client.Search(ctx, partition, topK, queryVector)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var facts []*models.Fact
	for _, result := range searchResult {
		for i := 0; i < result.ResultCount; i++ {
			id, _ := result.IDs.GetAsString(i)
			owner, _ := result.Fields.GetColumn("user_id").GetAsString(i)
			content, _ := result.Fields.GetColumn("content").GetAsString(i)
			source, _ := result.Fields.GetColumn("source").GetAsString(i)
			createdAt, _ := result.Fields.GetColumn("created_at").GetAsInt64(i)

			facts = append(facts, &models.Fact{
				ID:        id,
				UserID:    owner,
				Content:   content,
				Source:    source,
				Score:     result.Scores[i],
				CreatedAt: time.Unix(createdAt, 0),
			})
		}
	}

	return facts, nil
}

// List returns up to limit facts stored for the user, without ranking.
func (s *MilvusStore) List(ctx context.Context, userID string, limit int) ([]*models.Fact, error) {
	partition := milvus.PartitionName(userID)
	if err := s.client.EnsurePartition(ctx, partition); err != nil {
		return nil, err
	}

	rs, err := s.client.QueryByUser(ctx, partition, userID, limit)
	if err != nil {
		return nil, err
	}

	idCol := rs.GetColumn("id")
	if idCol == nil {
		return nil, nil
	}

	facts := make([]*models.Fact, 0, idCol.Len())
	for i := 0; i < idCol.Len(); i++ {
		id, _ := idCol.GetAsString(i)
		owner, _ := rs.GetColumn("user_id").GetAsString(i)
		content, _ := rs.GetColumn("content").GetAsString(i)
		source, _ := rs.GetColumn("source").GetAsString(i)
		createdAt, _ := rs.GetColumn("created_at").GetAsInt64(i)

		facts = append(facts, &models.Fact{
			ID:        id,
			UserID:    owner,
			Content:   content,
			Source:    source,
			CreatedAt: time.Unix(createdAt, 0),
		})
	}

	return facts, nil
}

// DeleteFact removes a single fact from the user's partition.
func (s *MilvusStore) DeleteFact(ctx context.Context, userID, factID string) error {
	return s.client.Delete(ctx, milvus.PartitionName(userID), factID)
}

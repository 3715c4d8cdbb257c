package store

import (
	"context"
	"fmt"
	"time"

	"mnemochat/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationStore defines the interface for conversation persistence.
// Every operation is scoped to the owning user; a conversation ID alone
// never grants access.
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	Get(ctx context.Context, userID, convID string) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	AppendMessages(ctx context.Context, userID, convID string, messages []models.Message) error
}

// NewConversationID builds a conversation ID prefixed with the owning
// user, so IDs are globally unique and trivially attributable.
func NewConversationID(userID string) string {
	return fmt.Sprintf("%s_%s", userID, uuid.New().String())
}

// MongoConversationStore is an implementation of ConversationStore using MongoDB.
type MongoConversationStore struct {
	collection *mongo.Collection
}

// NewMongoConversationStore creates a new MongoConversationStore.
func NewMongoConversationStore(db *mongo.Database, collectionName string) *MongoConversationStore {
	return &MongoConversationStore{
		collection: db.Collection(collectionName),
	}
}

// Create inserts a new conversation document.
func (s *MongoConversationStore) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	_, err := s.collection.InsertOne(ctx, conv)
	return err
}

// Get retrieves a conversation by ID, restricted to the owning user.
// Returns (nil, nil) when no such conversation exists for the user.
func (s *MongoConversationStore) Get(ctx context.Context, userID, convID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.collection.FindOne(ctx, bson.M{"_id": convID, "user_id": userID}).Decode(&conv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// ListByUser returns the user's conversations ordered by most recent
// activity. Message bodies are omitted; the listing is for history
// panels, not replay.
func (s *MongoConversationStore) ListByUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	opts := options.Find()
	opts.SetSort(bson.D{{Key: "updated_at", Value: -1}})
	opts.SetProjection(bson.M{"messages": 0})

	cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var convs []*models.Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// AppendMessages appends messages to a conversation and bumps its
// updated_at. Appending to a conversation the user does not own is a
// no-op reported as an error.
func (s *MongoConversationStore) AppendMessages(ctx context.Context, userID, convID string, messages []models.Message) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": convID, "user_id": userID},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": messages}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("conversation %s not found for user", convID)
	}
	return nil
}

package store

import (
	"context"
	"time"

	"mnemochat/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserStore 定义了用户持久化的接口。
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, t time.Time) error
	UpdateSettings(ctx context.Context, id string, settings models.ChatSettings) error
}

// MongoUserStore 是基于 MongoDB 的 UserStore 实现。
type MongoUserStore struct {
	collection *mongo.Collection
}

// NewMongoUserStore 创建一个新的 MongoUserStore。
func NewMongoUserStore(db *mongo.Database, collectionName string) *MongoUserStore {
	return &MongoUserStore{
		collection: db.Collection(collectionName),
	}
}

// Create 在数据库中创建一个新用户。
func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	_, err := s.collection.InsertOne(ctx, user)
	return err
}

// GetByEmail 通过邮箱地址查找用户。未找到时返回 (nil, nil)。
func (s *MongoUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByID 通过 ID 查找用户。未找到时返回 (nil, nil)。
func (s *MongoUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin 更新用户的最近登录时间。
func (s *MongoUserStore) UpdateLastLogin(ctx context.Context, id string, t time.Time) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_login": t}},
	)
	return err
}

// UpdateSettings 整体覆盖用户的模型调用参数。
func (s *MongoUserStore) UpdateSettings(ctx context.Context, id string, settings models.ChatSettings) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"settings": settings}},
	)
	return err
}

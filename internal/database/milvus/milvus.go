package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"mnemochat/internal/config"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
type MilvusClient struct {
	Client client.Client        // Milvus 客户端实例。
	Config *config.MilvusConfig // Milvus 配置。
}

// GetClient 使用单例模式创建并返回一个 Milvus 客户端实例。
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 Milvus: %w", err)
			return
		}
		instance = &MilvusClient{Client: c, Config: cfg}
	})
	return instance, initErr
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	_, err := c.Client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// PartitionName 将用户 ID 规范化为合法的分区名。
// 每个用户一个分区，检索永远不会跨分区。
func PartitionName(userID string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, userID)
	return "user_" + sanitized
}

// EnsureCollection 创建配置中声明的集合、索引并加载。
// 集合已存在时不做任何修改。
func (c *MilvusClient) EnsureCollection(ctx context.Context) error {
	collName := c.Config.Schema.CollectionName

	has, err := c.Client.HasCollection(ctx, collName)
	if err != nil {
		return fmt.Errorf("检查集合 '%s' 是否存在失败: %w", collName, err)
	}

	if !has {
		schema, err := c.buildSchema()
		if err != nil {
			return err
		}
		if err := c.Client.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("创建集合 '%s' 失败: %w", collName, err)
		}

		idxCfg := c.Config.Schema.Index
		nlist := idxCfg.Nlist
		if nlist <= 0 {
			nlist = 128
		}
		idx, err := entity.NewIndexIvfFlat(entity.MetricType(idxCfg.MetricType), nlist)
		if err != nil {
			return fmt.Errorf("构建索引配置失败: %w", err)
		}
		if err := c.Client.CreateIndex(ctx, collName, idxCfg.FieldName, idx, false); err != nil {
			return fmt.Errorf("为集合 '%s' 创建索引失败: %w", collName, err)
		}
	}

	if err := c.Client.LoadCollection(ctx, collName, false); err != nil {
		return fmt.Errorf("加载集合 '%s' 失败: %w", collName, err)
	}
	return nil
}

// buildSchema 根据配置构建集合 Schema。
func (c *MilvusClient) buildSchema() (*entity.Schema, error) {
	sc := c.Config.Schema
	fields := make([]*entity.Field, 0, len(sc.Fields))
	for _, f := range sc.Fields {
		field := &entity.Field{
			Name:       f.Name,
			PrimaryKey: f.IsPrimaryKey,
			TypeParams: map[string]string{},
		}
		switch f.DataType {
		case "VarChar":
			field.DataType = entity.FieldTypeVarChar
			maxLength := f.MaxLength
			if maxLength <= 0 {
				maxLength = 256
			}
			field.TypeParams[entity.TypeParamMaxLength] = strconv.Itoa(maxLength)
		case "Int64":
			field.DataType = entity.FieldTypeInt64
		case "FloatVector":
			field.DataType = entity.FieldTypeFloatVector
			if f.Dim <= 0 {
				return nil, fmt.Errorf("向量字段 '%s' 未配置维度", f.Name)
			}
			field.TypeParams[entity.TypeParamDim] = strconv.Itoa(f.Dim)
		default:
			return nil, fmt.Errorf("不支持的字段类型: %s", f.DataType)
		}
		fields = append(fields, field)
	}

	return &entity.Schema{
		CollectionName: sc.CollectionName,
		Description:    sc.Description,
		Fields:         fields,
	}, nil
}

// EnsurePartition 为指定分区创建（如果不存在）。
func (c *MilvusClient) EnsurePartition(ctx context.Context, partitionName string) error {
	collName := c.Config.Schema.CollectionName
	has, err := c.Client.HasPartition(ctx, collName, partitionName)
	if err != nil {
		return fmt.Errorf("无法检查分区 '%s': %w", partitionName, err)
	}
	if has {
		return nil
	}
	if err := c.Client.CreatePartition(ctx, collName, partitionName); err != nil {
		return fmt.Errorf("为集合 '%s' 创建分区 '%s' 失败: %w", collName, partitionName, err)
	}
	return nil
}

// Upsert 在指定分区中写入（或按主键覆盖）一批记录。
func (c *MilvusClient) Upsert(ctx context.Context, partitionName string, ids, userIDs, contents, sources []string, createdAt []int64, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(vectors) != len(ids) {
		return fmt.Errorf("记录数 (%d) 与向量数 (%d) 不一致", len(ids), len(vectors))
	}
	collName := c.Config.Schema.CollectionName

	cols := []entity.Column{
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("user_id", userIDs),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnInt64("created_at", createdAt),
		entity.NewColumnFloatVector(c.Config.Schema.VectorField, len(vectors[0]), vectors),
	}

	if _, err := c.Client.Upsert(ctx, collName, partitionName, cols...); err != nil {
		return fmt.Errorf("写入 Milvus 失败: %w", err)
	}
	return nil
}

// Search 在指定的分区中执行向量相似度搜索。
func (c *MilvusClient) Search(ctx context.Context, partitionName string, topK int, vector []float32) ([]client.SearchResult, error) {
	collName := c.Config.Schema.CollectionName

	sp, err := entity.NewIndexIvfFlatSearchParam(10)
	if err != nil {
		return nil, fmt.Errorf("构建搜索参数失败: %w", err)
	}

	results, err := c.Client.Search(
		ctx,
		collName,
		[]string{partitionName},
		"",
		[]string{"id", "user_id", "content", "source", "created_at"},
		[]entity.Vector{entity.FloatVector(vector)},
		c.Config.Schema.VectorField,
		entity.MetricType(c.Config.Schema.Index.MetricType),
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("在分区 '%s' 中搜索失败: %w", partitionName, err)
	}
	return results, nil
}

// QueryByUser 列出指定分区中的记录，最多 limit 条。
func (c *MilvusClient) QueryByUser(ctx context.Context, partitionName, userID string, limit int) (client.ResultSet, error) {
	collName := c.Config.Schema.CollectionName
	expr := fmt.Sprintf("user_id == %q", userID)

	rs, err := c.Client.Query(
		ctx,
		collName,
		[]string{partitionName},
		expr,
		[]string{"id", "user_id", "content", "source", "created_at"},
		client.WithLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("在分区 '%s' 中查询失败: %w", partitionName, err)
	}
	return rs, nil
}

// Delete 按主键从指定分区删除记录。
func (c *MilvusClient) Delete(ctx context.Context, partitionName, id string) error {
	collName := c.Config.Schema.CollectionName
	expr := fmt.Sprintf("id == %q", id)
	if err := c.Client.Delete(ctx, collName, partitionName, expr); err != nil {
		return fmt.Errorf("从 Milvus 删除失败: %w", err)
	}
	return nil
}

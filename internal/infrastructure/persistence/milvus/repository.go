// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"adcraft-api/pkg/metrics"
)

// AssetVectorRepository 素材向量仓储，实现 repository.AssetVectorRepository
type AssetVectorRepository struct {
	client *Client
	dim    int
}

// NewAssetVectorRepository 创建素材向量仓储
func NewAssetVectorRepository(client *Client, dim int) *AssetVectorRepository {
	return &AssetVectorRepository{client: client, dim: dim}
}

// EnsureCollection 确保集合与索引可用（不存在则创建），不做破坏性操作
func (r *AssetVectorRepository) EnsureCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionAssetVectors)
	if err != nil {
		return err
	}
	if !exists {
		collName := r.client.CollectionName(CollectionAssetVectors)
		schema := AssetVectorsSchema(r.dim)
		schema.CollectionName = collName

		if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		if err := r.createIndex(ctx); err != nil {
			return err
		}
	}

	return r.client.LoadCollection(ctx, CollectionAssetVectors)
}

func (r *AssetVectorRepository) createIndex(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.AssetVectorRepository.createIndex")
	defer span.End()

	collName := r.client.CollectionName(CollectionAssetVectors)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Upsert 写入或更新素材向量，一个素材对应一条向量
func (r *AssetVectorRepository) Upsert(ctx context.Context, tenantID, assetID string, vector []float32) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.AssetVectorRepository.Upsert",
		trace.WithAttributes(
			attribute.String("tenant_id", tenantID),
			attribute.String("asset_id", assetID),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionAssetVectors)
	partitionName := PartitionName(tenantID)

	has, err := r.client.milvus.HasPartition(ctx, collName, partitionName)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check partition: %w", err)
	}
	if !has {
		if err := r.client.milvus.CreatePartition(ctx, collName, partitionName); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create partition: %w", err)
		}
	}

	// 覆盖写：先删除旧向量再插入
	filter := fmt.Sprintf(`id == "%s"`, assetID)
	if err := r.client.milvus.Delete(ctx, collName, partitionName, filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete stale vector: %w", err)
	}

	idCol := entity.NewColumnVarChar("id", []string{assetID})
	vectorCol := entity.NewColumnFloatVector("vector", r.dim, [][]float32{vector})
	tenantCol := entity.NewColumnVarChar("tenant_id", []string{tenantID})
	assetCol := entity.NewColumnVarChar("asset_id", []string{assetID})

	_, err = r.client.milvus.Insert(ctx, collName, partitionName, idCol, vectorCol, tenantCol, assetCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert asset vector: %w", err)
	}
	return nil
}

// SearchMaxSimilarity 在租户素材向量中检索与给定向量的最大余弦相似度
// 分区不存在（租户尚无已索引素材）时返回 0
func (r *AssetVectorRepository) SearchMaxSimilarity(ctx context.Context, tenantID string, vector []float32) (float32, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return 0, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.AssetVectorRepository.SearchMaxSimilarity",
		trace.WithAttributes(attribute.String("tenant_id", tenantID)))
	defer span.End()

	start := time.Now()
	collName := r.client.CollectionName(CollectionAssetVectors)
	partitionName := PartitionName(tenantID)

	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(CollectionAssetVectors, "error").Inc()
		return 0, fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		metrics.MilvusSearchTotal.WithLabelValues(CollectionAssetVectors, "empty").Inc()
		return 0, nil
	}

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to create search param: %w", err)
	}

	filter := fmt.Sprintf(`tenant_id == "%s"`, tenantID)
	results, err := r.client.milvus.Search(ctx,
		collName,
		[]string{partitionName},
		filter,
		[]string{"id"},
		[]entity.Vector{entity.FloatVector(vector)},
		"vector",
		entity.COSINE,
		1,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(CollectionAssetVectors).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(CollectionAssetVectors, "error").Inc()
		return 0, fmt.Errorf("failed to search: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionAssetVectors, "ok").Inc()

	var best float32
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			if result.Scores[i] > best {
				best = result.Scores[i]
			}
		}
	}

	span.SetAttributes(attribute.Float64("max_similarity", float64(best)))
	return best, nil
}

// Delete 删除素材向量
func (r *AssetVectorRepository) Delete(ctx context.Context, assetID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.AssetVectorRepository.Delete",
		trace.WithAttributes(attribute.String("asset_id", assetID)))
	defer span.End()

	collName := r.client.CollectionName(CollectionAssetVectors)
	filter := fmt.Sprintf(`id == "%s"`, assetID)

	if err := r.client.milvus.Delete(ctx, collName, "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete asset vector: %w", err)
	}
	return nil
}

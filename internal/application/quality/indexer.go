package quality

import (
	"context"
	"fmt"

	"adcraft-api/internal/domain/repository"
	"adcraft-api/pkg/logger"
)

// ImageEmbedder 图像向量化服务抽象
type ImageEmbedder interface {
	// EmbedImages 批量生成图像向量，返回顺序与输入一致
	EmbedImages(ctx context.Context, urls []string) ([][]float32, error)
}

// Indexer 素材向量预热器
// 在计划校验通过时把选中素材的向量写入向量库，渲染完成后产品出镜检查直接检索
type Indexer struct {
	assetRepo  repository.AssetRepository
	vectorRepo repository.AssetVectorRepository
	embedder   ImageEmbedder
}

// NewIndexer 创建素材向量预热器
func NewIndexer(assetRepo repository.AssetRepository, vectorRepo repository.AssetVectorRepository, embedder ImageEmbedder) *Indexer {
	return &Indexer{
		assetRepo:  assetRepo,
		vectorRepo: vectorRepo,
		embedder:   embedder,
	}
}

// EnsureIndexed 保证给定素材的向量已入库，已入库的素材跳过
func (ix *Indexer) EnsureIndexed(ctx context.Context, tenantID string, assetIDs []string) error {
	ctx, span := tracer.Start(ctx, "quality.Indexer.EnsureIndexed")
	defer span.End()

	assets, err := ix.assetRepo.GetByIDs(ctx, assetIDs)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}

	var pending []string
	var pendingIdx []int
	for i, a := range assets {
		if a.TenantID != tenantID || a.Indexed {
			continue
		}
		pending = append(pending, a.URL)
		pendingIdx = append(pendingIdx, i)
	}
	if len(pending) == 0 {
		return nil
	}

	vectors, err := ix.embedder.EmbedImages(ctx, pending)
	if err != nil {
		return fmt.Errorf("embed assets: %w", err)
	}
	if len(vectors) != len(pending) {
		return fmt.Errorf("embedder returned %d vectors for %d assets", len(vectors), len(pending))
	}

	for i, vec := range vectors {
		asset := assets[pendingIdx[i]]
		if err := ix.vectorRepo.Upsert(ctx, tenantID, asset.ID, vec); err != nil {
			return fmt.Errorf("upsert vector for asset %s: %w", asset.ID, err)
		}
		asset.MarkIndexed()
		if err := ix.assetRepo.Update(ctx, asset); err != nil {
			logger.Warn(ctx, "更新素材索引状态失败", "asset_id", asset.ID, "error", err)
		}
	}
	return nil
}

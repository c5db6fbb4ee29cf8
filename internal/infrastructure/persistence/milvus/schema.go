// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionAssetVectors 素材图像向量集合
	CollectionAssetVectors = "asset_vectors"
)

// AssetVectorsSchema 素材向量 Collection Schema
func AssetVectorsSchema(dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionAssetVectors,
		Description:    "Brand asset image embeddings for product presence checks",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dim),
				},
			},
			{
				Name:     "tenant_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "asset_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
		},
	}
}

// AssetVector 素材向量数据结构
type AssetVector struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	TenantID string    `json:"tenant_id"`
	AssetID  string    `json:"asset_id"`
}

// PartitionName 生成租户分区名称
func PartitionName(tenantID string) string {
	return "tenant_" + tenantID
}

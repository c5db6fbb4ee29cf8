package dto

import (
	"time"

	"adcraft-api/internal/domain/entity"
)

// CreateAssetRequest 上传素材请求
type CreateAssetRequest struct {
	// Kind 素材类型：image 或 clip
	Kind  string `json:"kind" binding:"required,oneof=image clip"`
	URL   string `json:"url" binding:"required,url"`
	Label string `json:"label" binding:"omitempty,max=128"`
}

// ToAssetEntity 转换为素材实体
func (r *CreateAssetRequest) ToAssetEntity(tenantID string) *entity.Asset {
	return entity.NewAsset(tenantID, entity.AssetKind(r.Kind), r.URL, r.Label)
}

// AssetResponse 素材响应
type AssetResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	Label     string    `json:"label,omitempty"`
	Indexed   bool      `json:"indexed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToAssetResponse 转换素材实体为响应
func ToAssetResponse(asset *entity.Asset) *AssetResponse {
	return &AssetResponse{
		ID:        asset.ID,
		TenantID:  asset.TenantID,
		Kind:      string(asset.Kind),
		URL:       asset.URL,
		Label:     asset.Label,
		Indexed:   asset.Indexed,
		CreatedAt: asset.CreatedAt,
		UpdatedAt: asset.UpdatedAt,
	}
}

// AssetListResponse 素材列表响应
type AssetListResponse struct {
	Assets []*AssetResponse `json:"assets"`
}

// ToAssetListResponse 转换素材列表
func ToAssetListResponse(assets []*entity.Asset) *AssetListResponse {
	items := make([]*AssetResponse, 0, len(assets))
	for _, a := range assets {
		items = append(items, ToAssetResponse(a))
	}
	return &AssetListResponse{Assets: items}
}

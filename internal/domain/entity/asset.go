package entity

import (
	"time"
)

// AssetKind 素材类型
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindClip  AssetKind = "clip"
)

// Asset 租户上传的产品素材
type Asset struct {
	ID       string    `json:"id" gorm:"primaryKey"`
	TenantID string    `json:"tenant_id" gorm:"index"`
	Kind     AssetKind `json:"kind"`
	URL      string    `json:"url"`
	Label    string    `json:"label,omitempty"`
	// Indexed 素材向量是否已写入向量库
	Indexed   bool      `json:"indexed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Asset) TableName() string {
	return "assets"
}

// NewAsset 创建素材
func NewAsset(tenantID string, kind AssetKind, url, label string) *Asset {
	now := time.Now()
	return &Asset{
		TenantID:  tenantID,
		Kind:      kind,
		URL:       url,
		Label:     label,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkIndexed 标记向量已入库
func (a *Asset) MarkIndexed() {
	a.Indexed = true
	a.UpdatedAt = time.Now()
}

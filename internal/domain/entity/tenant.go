package entity

import (
	"time"
)

// TenantStatus 租户状态
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusDeleted   TenantStatus = "deleted"
)

// Tenant 租户实体
type Tenant struct {
	ID   string `json:"id" gorm:"primaryKey"`
	Name string `json:"name"`
	Slug string `json:"slug" gorm:"uniqueIndex"`
	// CreditBalance 当前积分余额，与积分流水表保持一致
	CreditBalance int          `json:"credit_balance"`
	Status        TenantStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName 指定表名
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant 创建新租户
func NewTenant(name, slug string, initialCredits int) *Tenant {
	now := time.Now()
	return &Tenant{
		Name:          name,
		Slug:          slug,
		CreditBalance: initialCredits,
		Status:        TenantStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsActive 检查租户是否活跃
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// HasCredits 检查余额是否足以支付指定费用
func (t *Tenant) HasCredits(cost int) bool {
	return t.CreditBalance >= cost
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"adcraft-api/internal/domain/entity"
	apperrors "adcraft-api/pkg/errors"
)

// TenantRepository 租户仓储实现
type TenantRepository struct {
	client *Client
}

// NewTenantRepository 创建租户仓储
func NewTenantRepository(client *Client) *TenantRepository {
	return &TenantRepository{client: client}
}

// Create 创建租户
func (r *TenantRepository) Create(ctx context.Context, tenant *entity.Tenant) error {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(tenant).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取租户，不存在返回 nil
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.GetByID")
	defer span.End()

	var tenant entity.Tenant
	err := getDB(ctx, r.client.db).First(&tenant, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// GetBySlug 根据 slug 获取租户
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*entity.Tenant, error) {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.GetBySlug")
	defer span.End()

	var tenant entity.Tenant
	err := getDB(ctx, r.client.db).First(&tenant, "slug = ?", slug).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get tenant by slug: %w", err)
	}
	return &tenant, nil
}

// Update 更新租户
func (r *TenantRepository) Update(ctx context.Context, tenant *entity.Tenant) error {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.Update")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(tenant).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

// AdjustCredits 原子调整余额并返回调整后的值
// 扣减受余额约束保护，不足时返回 ErrCreditInsufficient
func (r *TenantRepository) AdjustCredits(ctx context.Context, id string, delta int) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.TenantRepository.AdjustCredits")
	defer span.End()

	db := getDB(ctx, r.client.db)

	res := db.Model(&entity.Tenant{}).
		Where("id = ? AND credit_balance + ? >= 0", id, delta).
		Update("credit_balance", gorm.Expr("credit_balance + ?", delta))
	if res.Error != nil {
		span.RecordError(res.Error)
		return 0, fmt.Errorf("failed to adjust credits: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		tenant, err := r.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		if tenant == nil {
			return 0, apperrors.ErrTenantNotFound
		}
		return tenant.CreditBalance, apperrors.ErrCreditInsufficient
	}

	var balance int
	err := db.Model(&entity.Tenant{}).
		Where("id = ?", id).
		Pluck("credit_balance", &balance).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

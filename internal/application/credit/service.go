// Package credit 提供租户积分账本能力
package credit

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
	apperrors "adcraft-api/pkg/errors"
	"adcraft-api/pkg/logger"
	"adcraft-api/pkg/metrics"
)

var tracer = otel.Tracer("credit")

// BalanceCache 租户余额读缓存
type BalanceCache interface {
	// GetTenantBalance 读取余额，未命中时通过 loader 回源
	GetTenantBalance(ctx context.Context, tenantID string, loader func() (int, error)) (int, error)
	// InvalidateTenant 积分变动后使缓存失效
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// Service 积分服务
// 扣费以执行 ID 为幂等键：同一次渲染执行无论回调重放多少次都只扣一次
type Service struct {
	tenantRepo repository.TenantRepository
	creditRepo repository.CreditRepository
	tx         repository.Transactor
	cache      BalanceCache
}

// NewService 创建积分服务，cache 可为 nil
func NewService(tenantRepo repository.TenantRepository, creditRepo repository.CreditRepository, tx repository.Transactor, cache BalanceCache) *Service {
	return &Service{
		tenantRepo: tenantRepo,
		creditRepo: creditRepo,
		tx:         tx,
		cache:      cache,
	}
}

// DeductForRun 为一次渲染执行扣费，重复调用是无操作
func (s *Service) DeductForRun(ctx context.Context, tenantID, runID string, tier entity.RenderTier, amount int) error {
	ctx, span := tracer.Start(ctx, "credit.Service.DeductForRun")
	defer span.End()

	if amount <= 0 {
		return nil
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.creditRepo.GetByRunID(ctx, runID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询扣费记录失败")
		}
		if existing != nil {
			return nil
		}

		balance, err := s.tenantRepo.AdjustCredits(ctx, tenantID, -amount)
		if err != nil {
			return err
		}

		entry := &entity.CreditLedgerEntry{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			Type:         entity.CreditEntryDeduct,
			Amount:       amount,
			RunID:        runID,
			Reason:       "render " + string(tier),
			BalanceAfter: balance,
		}
		if err := s.creditRepo.Create(ctx, entry); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "写入扣费流水失败")
		}

		metrics.CreditsDeductedTotal.WithLabelValues(tenantID, string(tier)).Add(float64(amount))
		s.invalidate(ctx, tenantID)
		return nil
	})
}

// Grant 给租户发放积分
func (s *Service) Grant(ctx context.Context, tenantID string, amount int, reason string) error {
	ctx, span := tracer.Start(ctx, "credit.Service.Grant")
	defer span.End()

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		balance, err := s.tenantRepo.AdjustCredits(ctx, tenantID, amount)
		if err != nil {
			return err
		}
		entry := &entity.CreditLedgerEntry{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			Type:         entity.CreditEntryGrant,
			Amount:       amount,
			Reason:       reason,
			BalanceAfter: balance,
		}
		if err := s.creditRepo.Create(ctx, entry); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "写入发放流水失败")
		}
		s.invalidate(ctx, tenantID)
		return nil
	})
}

// Balance 查询租户余额
func (s *Service) Balance(ctx context.Context, tenantID string) (int, error) {
	ctx, span := tracer.Start(ctx, "credit.Service.Balance")
	defer span.End()

	if s.cache != nil {
		return s.cache.GetTenantBalance(ctx, tenantID, func() (int, error) {
			return s.loadBalance(ctx, tenantID)
		})
	}
	return s.loadBalance(ctx, tenantID)
}

func (s *Service) loadBalance(ctx context.Context, tenantID string) (int, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询租户失败")
	}
	if tenant == nil {
		return 0, apperrors.ErrTenantNotFound.WithDetail("tenant " + strconv.Quote(tenantID))
	}
	return tenant.CreditBalance, nil
}

// invalidate 余额变动后清理缓存，失败仅记录
func (s *Service) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTenant(ctx, tenantID); err != nil {
		logger.Warn(ctx, "清理余额缓存失败", "tenant_id", tenantID, "error", err.Error())
	}
}

// History 查询租户积分流水
func (s *Service) History(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditLedgerEntry], error) {
	ctx, span := tracer.Start(ctx, "credit.Service.History")
	defer span.End()

	result, err := s.creditRepo.ListByTenant(ctx, tenantID, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询积分流水失败")
	}
	return result, nil
}

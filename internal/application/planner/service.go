package planner

import (
	"context"

	"github.com/google/uuid"

	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
	apperrors "adcraft-api/pkg/errors"
	"adcraft-api/pkg/logger"
)

// AssetIndexer 保证素材向量已写入向量库，供质量门禁的产品出镜检查使用
type AssetIndexer interface {
	EnsureIndexed(ctx context.Context, tenantID string, assetIDs []string) error
}

// Service 内容计划应用服务
type Service struct {
	planRepo  repository.PlanRepository
	assetRepo repository.AssetRepository
	validator *Validator
	indexer   AssetIndexer
}

// NewService 创建计划服务
func NewService(planRepo repository.PlanRepository, assetRepo repository.AssetRepository, validator *Validator, indexer AssetIndexer) *Service {
	return &Service{
		planRepo:  planRepo,
		assetRepo: assetRepo,
		validator: validator,
		indexer:   indexer,
	}
}

// Create 创建草稿计划
func (s *Service) Create(ctx context.Context, plan *entity.Plan) (*entity.Plan, error) {
	ctx, span := tracer.Start(ctx, "planner.Service.Create")
	defer span.End()

	plan.ID = uuid.NewString()
	plan.Status = entity.PlanStatusDraft
	if err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "创建计划失败")
	}
	return plan, nil
}

// Get 获取计划
func (s *Service) Get(ctx context.Context, id string) (*entity.Plan, error) {
	ctx, span := tracer.Start(ctx, "planner.Service.Get")
	defer span.End()

	plan, err := s.planRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询计划失败")
	}
	if plan == nil {
		return nil, apperrors.ErrPlanNotFound
	}
	return plan, nil
}

// List 获取租户计划列表
func (s *Service) List(ctx context.Context, tenantID string, filter *repository.PlanFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Plan], error) {
	ctx, span := tracer.Start(ctx, "planner.Service.List")
	defer span.End()

	result, err := s.planRepo.ListByTenant(ctx, tenantID, filter, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询计划列表失败")
	}
	return result, nil
}

// Update 更新草稿计划的内容，渲染中的计划拒绝修改
func (s *Service) Update(ctx context.Context, plan *entity.Plan) (*entity.Plan, error) {
	ctx, span := tracer.Start(ctx, "planner.Service.Update")
	defer span.End()

	existing, err := s.Get(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	if existing.IsFrozen() {
		return nil, apperrors.ErrPlanFrozen
	}

	// 内容变更后回到草稿状态，需要重新校验
	plan.TenantID = existing.TenantID
	plan.Status = entity.PlanStatusDraft
	plan.ValidatedAt = nil
	plan.ValidationWarnings = nil
	plan.CreatedAt = existing.CreatedAt
	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "更新计划失败")
	}
	return plan, nil
}

// Delete 删除计划
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "planner.Service.Delete")
	defer span.End()

	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsFrozen() {
		return apperrors.ErrPlanFrozen
	}
	if err := s.planRepo.Delete(ctx, id); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "删除计划失败")
	}
	return nil
}

// Validate 执行完整校验并持久化规范化结果
func (s *Service) Validate(ctx context.Context, id string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "planner.Service.Validate")
	defer span.End()

	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.IsFrozen() {
		return nil, apperrors.ErrPlanFrozen
	}

	res := s.validator.Validate(ctx, plan)
	if res.Plan != nil {
		if err := s.planRepo.Update(ctx, res.Plan); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "保存校验结果失败")
		}
	}

	// 校验通过后为产品出镜检查预热素材向量，失败不阻断校验结果
	if res.Valid && s.indexer != nil {
		if err := s.indexer.EnsureIndexed(ctx, plan.TenantID, plan.SelectedAssets); err != nil {
			logger.Warn(ctx, "素材向量预热失败",
				"plan_id", plan.ID,
				"error", err,
			)
		}
	}
	return res, nil
}

// QuickValidate 轻量校验，不修改计划
func (s *Service) QuickValidate(ctx context.Context, id string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "planner.Service.QuickValidate")
	defer span.End()

	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.validator.QuickValidate(ctx, plan), nil
}

// SwapHook 替换 hook 节拍，计划回到草稿状态等待重新校验
func (s *Service) SwapHook(ctx context.Context, id string, beat entity.Beat) (*entity.Plan, error) {
	ctx, span := tracer.Start(ctx, "planner.Service.SwapHook")
	defer span.End()

	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := plan.SwapHook(beat); err != nil {
		if plan.IsFrozen() {
			return nil, apperrors.ErrPlanFrozen
		}
		return nil, apperrors.Wrap(err, apperrors.CodePlanInvalid, "替换 hook 失败")
	}
	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "保存计划失败")
	}
	return plan, nil
}

package render

import (
	"context"

	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
	apperrors "adcraft-api/pkg/errors"
)

// Service 渲染执行查询与人工操作
type Service struct {
	runRepo     repository.RunRepository
	qualityRepo repository.QualityRepository
	dispatcher  *Dispatcher
}

// NewService 创建渲染执行服务
func NewService(runRepo repository.RunRepository, qualityRepo repository.QualityRepository, dispatcher *Dispatcher) *Service {
	return &Service{
		runRepo:     runRepo,
		qualityRepo: qualityRepo,
		dispatcher:  dispatcher,
	}
}

// Get 获取渲染执行
func (s *Service) Get(ctx context.Context, id string) (*entity.Run, error) {
	ctx, span := tracer.Start(ctx, "render.Service.Get")
	defer span.End()

	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询渲染执行失败")
	}
	if run == nil {
		return nil, apperrors.ErrRunNotFound
	}
	return run, nil
}

// ListByPlan 获取计划的执行历史
func (s *Service) ListByPlan(ctx context.Context, planID string, filter *repository.RunFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Run], error) {
	ctx, span := tracer.Start(ctx, "render.Service.ListByPlan")
	defer span.End()

	result, err := s.runRepo.ListByPlan(ctx, planID, filter, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询执行历史失败")
	}
	return result, nil
}

// Quality 获取执行的质量门禁结果
func (s *Service) Quality(ctx context.Context, runID string) (*entity.QualityValidation, error) {
	ctx, span := tracer.Start(ctx, "render.Service.Quality")
	defer span.End()

	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}
	validation, err := s.qualityRepo.GetByRunID(ctx, runID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询质量门禁结果失败")
	}
	if validation == nil {
		return nil, apperrors.New(apperrors.CodeValidationNotFound, "质量门禁结果不存在")
	}
	return validation, nil
}

// Reshoot 人工重拍
// 自动重试预算耗尽后的兜底：开启一条全新的付费执行链，不受原链的重试上限约束
func (s *Service) Reshoot(ctx context.Context, runID string) (*entity.Run, error) {
	ctx, span := tracer.Start(ctx, "render.Service.Reshoot")
	defer span.End()

	prev, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if prev.State != entity.RunStateFailed {
		return nil, apperrors.ErrInvalidParam.WithDetail("only failed runs can be reshot")
	}
	return s.dispatcher.Submit(ctx, prev.PlanID, prev.Tier)
}

package render

import (
	"context"
	"time"

	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
	"adcraft-api/pkg/logger"
	"adcraft-api/pkg/metrics"
)

// Reconciler 渲染执行恢复器
// 进程重启会丢失在途的轮询循环；恢复器周期扫描滞留在 running 状态的执行，
// 用持久化的作业句柄向供应商查询并补齐终态
type Reconciler struct {
	runRepo    repository.RunRepository
	provider   Provider
	completion *CompletionService

	// staleAfterSec 执行滞留多少秒后纳入恢复扫描
	staleAfterSec int
	batchSize     int
	interval      time.Duration
}

// NewReconciler 创建恢复器
func NewReconciler(runRepo repository.RunRepository, provider Provider, completion *CompletionService) *Reconciler {
	return &Reconciler{
		runRepo:       runRepo,
		provider:      provider,
		completion:    completion,
		staleAfterSec: 300,
		batchSize:     50,
		interval:      time.Minute,
	}
}

// Run 周期执行恢复扫描，直到上下文取消
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.ReconcileOnce(ctx); err != nil {
				logger.Error(ctx, "恢复扫描失败", err)
			}
		}
	}
}

// ReconcileOnce 执行一轮恢复扫描
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "render.Reconciler.ReconcileOnce")
	defer span.End()

	stale, err := r.runRepo.GetStaleRunning(ctx, r.staleAfterSec, r.batchSize)
	if err != nil {
		return err
	}

	for _, run := range stale {
		if run.ProviderJobID == "" {
			// 提交前就中断的执行没有作业句柄，无从恢复，直接判超时
			run.Fail(entity.FailureTimeout, "run lost before provider submission")
			if err := r.runRepo.Update(ctx, run); err != nil {
				logger.Error(ctx, "标记滞留执行失败", err, "run_id", run.ID)
			}
			continue
		}

		metrics.ProviderPolls.WithLabelValues(run.Engine).Inc()
		status, err := r.provider.Poll(ctx, run.ProviderJobID)
		if err != nil {
			logger.Warn(ctx, "恢复轮询失败", "run_id", run.ID, "job_id", run.ProviderJobID, "error", err)
			continue
		}
		if !status.Done {
			continue
		}
		if _, err := r.completion.Apply(ctx, run, status); err != nil {
			logger.Error(ctx, "应用恢复状态失败", err, "run_id", run.ID)
		} else {
			logger.Info(ctx, "滞留执行已恢复", "run_id", run.ID, "succeeded", status.Succeeded)
		}
	}
	return nil
}

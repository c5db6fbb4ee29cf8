package render

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"adcraft-api/internal/application/credit"
	"adcraft-api/internal/application/retry"
	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
	apperrors "adcraft-api/pkg/errors"
	"adcraft-api/pkg/logger"
	"adcraft-api/pkg/metrics"
)

// webhookPath 供应商回调的固定路径
const webhookPath = "/api/v1/webhooks/provider"

// Dispatcher 渲染派发器
// 把已校验的计划转换为渲染执行：创建 queued 记录、扣费、投递作业队列；
// 工作进程再通过 Dispatch 把作业提交给供应商
type Dispatcher struct {
	planRepo  repository.PlanRepository
	runRepo   repository.RunRepository
	assetRepo repository.AssetRepository
	provider  Provider
	queue     JobQueue
	creditSvc *credit.Service
	tx        repository.Transactor
	cfg       *config.ProviderConfig
}

// NewDispatcher 创建渲染派发器
func NewDispatcher(
	planRepo repository.PlanRepository,
	runRepo repository.RunRepository,
	assetRepo repository.AssetRepository,
	provider Provider,
	queue JobQueue,
	creditSvc *credit.Service,
	tx repository.Transactor,
	cfg *config.ProviderConfig,
) *Dispatcher {
	return &Dispatcher{
		planRepo:  planRepo,
		runRepo:   runRepo,
		assetRepo: assetRepo,
		provider:  provider,
		queue:     queue,
		creditSvc: creditSvc,
		tx:        tx,
		cfg:       cfg,
	}
}

// Submit 为计划创建一次渲染执行
// 前置条件：计划已通过校验；终版档位要求配音就绪。扣费与执行创建在同一事务内。
func (d *Dispatcher) Submit(ctx context.Context, planID string, tier entity.RenderTier) (*entity.Run, error) {
	ctx, span := tracer.Start(ctx, "render.Dispatcher.Submit")
	defer span.End()

	if !tier.IsValid() {
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown render tier %q", tier))
	}

	plan, err := d.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询计划失败")
	}
	if plan == nil {
		return nil, apperrors.ErrPlanNotFound
	}
	if !plan.IsValidated() {
		metrics.RenderSubmissionsTotal.WithLabelValues(string(tier), "rejected").Inc()
		return nil, apperrors.ErrPlanNotValidated
	}
	if tier == entity.TierFinal && !hasVoiceOver(plan) {
		metrics.RenderSubmissionsTotal.WithLabelValues(string(tier), "rejected").Inc()
		return nil, apperrors.ErrPlanInvalid.WithDetail("final tier requires voice-over narration on at least one beat")
	}

	seed := plan.Seed
	if seed == 0 {
		seed = time.Now().UnixNano() % 1_000_000_000
	}

	run := entity.NewRun(plan.TenantID, plan.ID, tier, d.cfg.Engine, seed)
	run.ID = uuid.NewString()

	if err := d.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := d.runRepo.Create(ctx, run); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "创建渲染执行失败")
		}
		if err := d.creditSvc.DeductForRun(ctx, plan.TenantID, run.ID, tier, d.cost(tier)); err != nil {
			return err
		}
		plan.MarkRendering()
		if err := d.planRepo.Update(ctx, plan); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "更新计划状态失败")
		}
		return nil
	}); err != nil {
		metrics.RenderSubmissionsTotal.WithLabelValues(string(tier), "rejected").Inc()
		return nil, err
	}

	d.enqueue(ctx, run, plan, "")
	metrics.RenderSubmissionsTotal.WithLabelValues(string(tier), "submitted").Inc()
	return run, nil
}

// SubmitRetry 基于重试决策创建新的渲染执行
// 免费重试不扣费；付费重试按档位正常扣费
func (d *Dispatcher) SubmitRetry(ctx context.Context, prev *entity.Run, decision retry.Decision, extraInstruction string) (*entity.Run, error) {
	ctx, span := tracer.Start(ctx, "render.Dispatcher.SubmitRetry")
	defer span.End()

	plan, err := d.planRepo.GetByID(ctx, prev.PlanID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询计划失败")
	}
	if plan == nil {
		return nil, apperrors.ErrPlanNotFound
	}

	run := entity.NewRetryRun(prev, decision.Strategy, decision.Seed, decision.FreeRetry)
	run.ID = uuid.NewString()

	if err := d.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := d.runRepo.Create(ctx, run); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "创建重试执行失败")
		}
		if !decision.FreeRetry {
			if err := d.creditSvc.DeductForRun(ctx, run.TenantID, run.ID, run.Tier, d.cost(run.Tier)); err != nil {
				return err
			}
		}
		plan.MarkRendering()
		if err := d.planRepo.Update(ctx, plan); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "更新计划状态失败")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	d.enqueue(ctx, run, plan, extraInstruction)
	metrics.RetryTotal.WithLabelValues(string(decision.Strategy), fmt.Sprintf("%t", decision.FreeRetry)).Inc()
	return run, nil
}

// enqueue 投递作业，失败时把执行标记为失败而不是向上抛错
func (d *Dispatcher) enqueue(ctx context.Context, run *entity.Run, plan *entity.Plan, extra string) {
	job := &QueuedJob{
		RunID:            run.ID,
		PlanID:           plan.ID,
		TenantID:         run.TenantID,
		ExtraInstruction: extra,
	}
	if err := d.queue.EnqueueRender(ctx, job); err != nil {
		logger.Error(ctx, "投递渲染作业失败", err, "run_id", run.ID)
		run.Fail(entity.FailureAPIError, fmt.Sprintf("enqueue render job: %v", err))
		if uerr := d.runRepo.Update(ctx, run); uerr != nil {
			logger.Error(ctx, "更新渲染执行失败", uerr, "run_id", run.ID)
		}
	}
}

// Dispatch 把排队中的执行提交给供应商，由渲染工作进程调用
// 供应商侧的错误落在返回的执行记录上，不向调用方抛出。
// 同步轮询模式下返回终态 JobStatus，异步模式返回 nil 等待回调。
func (d *Dispatcher) Dispatch(ctx context.Context, runID, extraInstruction string) (*entity.Run, *JobStatus, error) {
	ctx, span := tracer.Start(ctx, "render.Dispatcher.Dispatch")
	defer span.End()

	run, err := d.runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询渲染执行失败")
	}
	if run == nil {
		return nil, nil, apperrors.ErrRunNotFound
	}
	if run.State.IsTerminal() {
		return run, nil, nil
	}

	plan, err := d.planRepo.GetByID(ctx, run.PlanID)
	if err != nil || plan == nil {
		d.failRun(ctx, run, entity.FailureUnknown, "plan missing at dispatch time")
		return run, nil, nil
	}

	if run.Start() {
		if err := d.runRepo.Update(ctx, run); err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "更新渲染执行失败")
		}
	}

	req := d.buildRequest(ctx, run, plan, extraInstruction)

	submitCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	result, err := d.provider.Submit(submitCtx, req)
	cancel()
	if err != nil {
		category := retry.CategorizeError(err.Error())
		if category == entity.FailureUnknown {
			category = entity.FailureAPIError
		}
		d.failRun(ctx, run, category, err.Error())
		return run, nil, nil
	}

	run.ProviderJobID = result.JobID
	if err := d.runRepo.Update(ctx, run); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "保存作业句柄失败")
	}

	if d.cfg.Mode != "poll" {
		return run, nil, nil
	}
	status := d.pollUntilDone(ctx, run)
	return run, status, nil
}

// pollUntilDone 有界轮询供应商作业状态
// 超过最大轮询次数后自行终止为超时失败，绝不无限阻塞
func (d *Dispatcher) pollUntilDone(ctx context.Context, run *entity.Run) *JobStatus {
	timer := time.NewTimer(d.cfg.PollInterval)
	defer timer.Stop()

	for i := 0; i < d.cfg.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			d.failRun(ctx, run, entity.FailureTimeout, "dispatch cancelled while polling")
			return nil
		case <-timer.C:
		}
		timer.Reset(d.cfg.PollInterval)

		metrics.ProviderPolls.WithLabelValues(run.Engine).Inc()
		status, err := d.provider.Poll(ctx, run.ProviderJobID)
		if err != nil {
			logger.Warn(ctx, "轮询供应商作业失败", "run_id", run.ID, "job_id", run.ProviderJobID, "error", err)
			continue
		}
		if status.Done {
			return status
		}
	}

	d.failRun(ctx, run, entity.FailureTimeout,
		fmt.Sprintf("provider job %s not done after %d polls", run.ProviderJobID, d.cfg.MaxPolls))
	return nil
}

// buildRequest 构造供应商渲染请求
func (d *Dispatcher) buildRequest(ctx context.Context, run *entity.Run, plan *entity.Plan, extra string) *SubmitRequest {
	duration := plan.TargetDurationSec
	withAudio := true
	if run.Tier == entity.TierPreview {
		// 预览档位缩短时长并去掉音频，降低成本
		if d.cfg.PreviewDuration > 0 && d.cfg.PreviewDuration < duration {
			duration = d.cfg.PreviewDuration
		}
		withAudio = false
	}

	var assetURLs []string
	if assets, err := d.assetRepo.GetByIDs(ctx, plan.SelectedAssets); err == nil {
		for _, a := range assets {
			assetURLs = append(assetURLs, a.URL)
		}
	} else {
		logger.Warn(ctx, "查询参考素材失败", "plan_id", plan.ID, "error", err)
	}

	return &SubmitRequest{
		RunID:       run.ID,
		Engine:      run.Engine,
		Seed:        run.Seed,
		Tier:        run.Tier,
		AspectRatio: plan.AspectRatio,
		DurationSec: duration,
		WithAudio:   withAudio,
		Prompt:      buildPrompt(plan, run.Tier, extra),
		AssetURLs:   assetURLs,
		WebhookURL:  d.cfg.WebhookBaseURL + webhookPath,
	}
}

// failRun 把执行置为失败并持久化
func (d *Dispatcher) failRun(ctx context.Context, run *entity.Run, category entity.FailureCategory, msg string) {
	if !run.Fail(category, msg) {
		return
	}
	if err := d.runRepo.Update(ctx, run); err != nil {
		logger.Error(ctx, "持久化失败状态失败", err, "run_id", run.ID)
	}
}

// cost 档位费用
func (d *Dispatcher) cost(tier entity.RenderTier) int {
	if tier == entity.TierFinal {
		return d.cfg.FinalCost
	}
	return d.cfg.PreviewCost
}

// hasVoiceOver 检查计划是否有任何配音
func hasVoiceOver(plan *entity.Plan) bool {
	for _, beat := range plan.Beats {
		if beat.VoiceOver != nil && beat.VoiceOver.Script != "" {
			return true
		}
	}
	return false
}

package render

import (
	"context"
	"time"

	"adcraft-api/internal/alerting"
	"adcraft-api/internal/application/overlay"
	"adcraft-api/internal/application/quality"
	"adcraft-api/internal/application/retry"
	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
	apperrors "adcraft-api/pkg/errors"
	"adcraft-api/pkg/logger"
	"adcraft-api/pkg/metrics"
)

// CallbackResult 一次回调处理的结论
type CallbackResult struct {
	Run *entity.Run `json:"run"`
	// Duplicate 终态后的重复回调，未产生任何副作用
	Duplicate bool   `json:"duplicate"`
	Message   string `json:"message"`
}

// AuditEvent 渲染结局审计事件
type AuditEvent struct {
	RunID        string  `json:"run_id"`
	PlanID       string  `json:"plan_id"`
	TenantID     string  `json:"tenant_id"`
	Outcome      string  `json:"outcome"`
	OverallScore float64 `json:"overall_score,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// AuditSink 审计事件发布抽象，由消息队列实现
type AuditSink interface {
	PublishAudit(ctx context.Context, event *AuditEvent) error
}

// CompletionService 渲染完成处理
// 消费供应商通知并驱动执行到终态：失败走重试决策，成功同步过质量门禁，
// 门禁失败时先尝试字幕烧录降级，仍不达标则按策略重试或降级接受
type CompletionService struct {
	runRepo    repository.RunRepository
	planRepo   repository.PlanRepository
	assetRepo  repository.AssetRepository
	gate       *quality.Gate
	fallback   *overlay.Fallback
	policy     *retry.Policy
	dispatcher *Dispatcher
	alerts     *alerting.Window
	audits     AuditSink
}

// NewCompletionService 创建完成处理服务
func NewCompletionService(
	runRepo repository.RunRepository,
	planRepo repository.PlanRepository,
	assetRepo repository.AssetRepository,
	gate *quality.Gate,
	fallback *overlay.Fallback,
	policy *retry.Policy,
	dispatcher *Dispatcher,
	alerts *alerting.Window,
	audits AuditSink,
) *CompletionService {
	return &CompletionService{
		runRepo:    runRepo,
		planRepo:   planRepo,
		assetRepo:  assetRepo,
		gate:       gate,
		fallback:   fallback,
		policy:     policy,
		dispatcher: dispatcher,
		alerts:     alerts,
		audits:     audits,
	}
}

// HandleCallback 处理供应商回调
// 对同一执行的乱序或重复回调是无操作，不会重复扣费或重复创建重试执行
func (s *CompletionService) HandleCallback(ctx context.Context, runID string, succeeded bool, artifactURL, errMsg string) (*CallbackResult, error) {
	ctx, span := tracer.Start(ctx, "render.CompletionService.HandleCallback")
	defer span.End()

	run, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询渲染执行失败")
	}
	if run == nil {
		return nil, apperrors.ErrRunNotFound
	}

	if succeeded {
		return s.applySuccess(ctx, run, artifactURL, 0)
	}
	return s.applyFailure(ctx, run, errMsg)
}

// Apply 应用一个轮询得到的终态作业状态，与回调共用同一套幂等处理
func (s *CompletionService) Apply(ctx context.Context, run *entity.Run, status *JobStatus) (*CallbackResult, error) {
	ctx, span := tracer.Start(ctx, "render.CompletionService.Apply")
	defer span.End()

	if status == nil || !status.Done {
		return &CallbackResult{Run: run, Message: "job not done"}, nil
	}
	if status.Succeeded {
		return s.applySuccess(ctx, run, status.ArtifactURL, status.DurationSec)
	}
	return s.applyFailure(ctx, run, status.Error)
}

// applyFailure 失败路径：归类、告警、按策略重试
func (s *CompletionService) applyFailure(ctx context.Context, run *entity.Run, errMsg string) (*CallbackResult, error) {
	category := retry.CategorizeError(errMsg)
	if !run.Fail(category, errMsg) {
		metrics.WebhookCallbacksTotal.WithLabelValues("failed", "duplicate").Inc()
		return &CallbackResult{Run: run, Duplicate: true, Message: "run already terminal"}, nil
	}
	if err := s.runRepo.Update(ctx, run); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "持久化失败状态失败")
	}
	metrics.WebhookCallbacksTotal.WithLabelValues("failed", "applied").Inc()
	s.publishAudit(ctx, run, "failed", 0, errMsg)
	s.alerts.RecordError()
	if s.alerts.Breached() {
		logger.Error(ctx, "回调错误率超过告警阈值", nil, "window_errors", s.alerts.Count())
	}

	s.markPlanErrored(ctx, run.PlanID)

	decision := s.policy.Evaluate(run, errMsg, nil)
	if decision.ShouldRetry {
		if _, err := s.dispatcher.SubmitRetry(ctx, run, decision, ""); err != nil {
			logger.Error(ctx, "创建重试执行失败", err, "run_id", run.ID)
		} else {
			logger.Info(ctx, "提供商故障已自动重试",
				"run_id", run.ID,
				"category", decision.Category,
				"strategy", decision.Strategy,
			)
		}
	} else if decision.MaxRetriesReached {
		logger.Warn(ctx, "重试预算耗尽，等待人工重拍",
			"run_id", run.ID,
			"error", errMsg,
		)
	}

	return &CallbackResult{Run: run, Message: "failure recorded"}, nil
}

// applySuccess 成功路径：记录产物、同步过质量门禁
func (s *CompletionService) applySuccess(ctx context.Context, run *entity.Run, artifactURL string, durationSec float64) (*CallbackResult, error) {
	if durationSec <= 0 && run.StartedAt != nil {
		durationSec = time.Since(*run.StartedAt).Seconds()
	}
	if !run.Succeed(artifactURL, durationSec) {
		metrics.WebhookCallbacksTotal.WithLabelValues("succeeded", "duplicate").Inc()
		return &CallbackResult{Run: run, Duplicate: true, Message: "run already terminal"}, nil
	}
	if err := s.runRepo.Update(ctx, run); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "持久化成功状态失败")
	}
	metrics.WebhookCallbacksTotal.WithLabelValues("succeeded", "applied").Inc()
	metrics.RenderDuration.WithLabelValues(string(run.Tier), run.Engine).Observe(durationSec)

	s.finalize(ctx, run)
	return &CallbackResult{Run: run, Message: "artifact accepted"}, nil
}

// finalize 成功后的质量门禁与降级处理
// 计划缺失或门禁自身不可用时按原样接受产物：可用性优先于完美
func (s *CompletionService) finalize(ctx context.Context, run *entity.Run) {
	plan, err := s.planRepo.GetByID(ctx, run.PlanID)
	if err != nil || plan == nil {
		logger.Warn(ctx, "计划不可用，跳过质量门禁", "run_id", run.ID, "plan_id", run.PlanID)
		return
	}

	eval, err := s.gate.Evaluate(ctx, run, plan)
	if err != nil {
		logger.Warn(ctx, "质量门禁不可用，按原样接受产物", "run_id", run.ID, "error", err)
		s.publishAudit(ctx, run, "accepted_unaudited", 0, err.Error())
		s.markPlanReady(ctx, plan)
		return
	}

	if !eval.OverlayOK {
		s.burnInOverlays(ctx, run, plan)
	}

	if eval.OverallPassed {
		s.publishAudit(ctx, run, "passed", eval.OverallScore, "")
		s.markPlanReady(ctx, plan)
		return
	}

	decision := s.policy.Evaluate(run, "", &retry.QualityEvidence{
		OverallScore:         eval.OverallScore,
		EligibleForFreeRetry: eval.EligibleForFreeRetry,
		MotionDefects:        eval.MotionDefects,
	})
	if decision.ShouldRetry {
		extra := ""
		if decision.Strategy == entity.RetryRevisedInstruction {
			extra = eval.RetryRecommendation
		}
		s.publishAudit(ctx, run, "quality_retry", eval.OverallScore, "")
		if _, err := s.dispatcher.SubmitRetry(ctx, run, decision, extra); err != nil {
			logger.Error(ctx, "创建质量重试失败", err, "run_id", run.ID)
			s.markPlanReady(ctx, plan)
		}
		return
	}

	// 不可改进的平庸结果降级接受，绝不静默丢弃
	logger.Warn(ctx, "产物低于质量阈值但不可改进，降级接受",
		"run_id", run.ID,
		"overall_score", eval.OverallScore,
	)
	s.publishAudit(ctx, run, "degraded_accept", eval.OverallScore, "")
	s.markPlanReady(ctx, plan)
}

// burnInOverlays 字幕烧录降级，失败时保留原产物
func (s *CompletionService) burnInOverlays(ctx context.Context, run *entity.Run, plan *entity.Plan) {
	logoURL := ""
	if plan.Brand.LogoAssetID != "" {
		if logo, err := s.assetRepo.GetByID(ctx, plan.Brand.LogoAssetID); err == nil && logo != nil {
			logoURL = logo.URL
		}
	}

	outputURL, err := s.fallback.BurnIn(ctx, run.ArtifactURL, plan, logoURL)
	if err != nil {
		logger.Warn(ctx, "字幕烧录失败，保留原产物", "run_id", run.ID, "error", err)
		return
	}
	run.SetOutput(outputURL)
	if err := s.runRepo.Update(ctx, run); err != nil {
		logger.Error(ctx, "更新交付地址失败", err, "run_id", run.ID)
	}
}

// publishAudit 发布结局审计事件，失败不阻塞主流程
func (s *CompletionService) publishAudit(ctx context.Context, run *entity.Run, outcome string, score float64, errMsg string) {
	if s.audits == nil {
		return
	}
	event := &AuditEvent{
		RunID:        run.ID,
		PlanID:       run.PlanID,
		TenantID:     run.TenantID,
		Outcome:      outcome,
		OverallScore: score,
		Error:        errMsg,
	}
	if err := s.audits.PublishAudit(ctx, event); err != nil {
		logger.Warn(ctx, "发布审计事件失败", "run_id", run.ID, "error", err.Error())
	}
}

func (s *CompletionService) markPlanReady(ctx context.Context, plan *entity.Plan) {
	plan.MarkReady()
	if err := s.planRepo.Update(ctx, plan); err != nil {
		logger.Error(ctx, "更新计划状态失败", err, "plan_id", plan.ID)
	}
}

func (s *CompletionService) markPlanErrored(ctx context.Context, planID string) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil || plan == nil {
		return
	}
	plan.MarkErrored()
	if err := s.planRepo.Update(ctx, plan); err != nil {
		logger.Error(ctx, "更新计划状态失败", err, "plan_id", plan.ID)
	}
}

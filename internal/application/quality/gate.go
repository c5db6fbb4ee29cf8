// Package quality 实现渲染产物的自动质量门禁
package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
	"adcraft-api/pkg/logger"
	"adcraft-api/pkg/metrics"
)

var tracer = otel.Tracer("quality")

// Evaluation 一次门禁评估的完整结论
type Evaluation struct {
	OverallPassed        bool                `json:"overall_passed"`
	OverallScore         float64             `json:"overall_score"`
	Checks               entity.CheckResults `json:"checks"`
	OverlayConfidence    float64             `json:"overlay_confidence"`
	OverlayOK            bool                `json:"overlay_ok"`
	EligibleForFreeRetry bool                `json:"eligible_for_free_retry"`
	RetryRecommendation  string              `json:"retry_recommendation,omitempty"`
	MotionDefects        bool                `json:"motion_defects"`
}

// Gate 质量门禁
// 对产物运行固定的检查组合（产品出镜、文字可读性、色彩一致性）
// 并做叠加字幕出现率检查，综合得分为检查组合的算术平均
type Gate struct {
	analyzer    VisionAnalyzer
	vectorRepo  repository.AssetVectorRepository
	qualityRepo repository.QualityRepository
	cfg         *config.QualityConfig
}

// NewGate 创建质量门禁
func NewGate(analyzer VisionAnalyzer, vectorRepo repository.AssetVectorRepository, qualityRepo repository.QualityRepository, cfg *config.QualityConfig) *Gate {
	return &Gate{
		analyzer:    analyzer,
		vectorRepo:  vectorRepo,
		qualityRepo: qualityRepo,
		cfg:         cfg,
	}
}

// Evaluate 评估渲染产物并持久化门禁结果
// 单项检查出错时记为不计入均值的失败项；所有检查都不可用时返回错误，由调用方决定是否降级接受
func (g *Gate) Evaluate(ctx context.Context, run *entity.Run, plan *entity.Plan) (*Evaluation, error) {
	ctx, span := tracer.Start(ctx, "quality.Gate.Evaluate")
	defer span.End()

	analysis, err := g.analyzer.AnalyzeArtifact(ctx, run.OutputURL)
	if err != nil {
		metrics.QualityGateTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("analyze artifact: %w", err)
	}

	eval := &Evaluation{MotionDefects: analysis.MotionDefects}

	var (
		battery = make([]entity.CheckResult, 3)
		g2, gCtx = errgroup.WithContext(ctx)
	)
	g2.Go(func() error {
		battery[0] = g.scoreProductPresence(gCtx, plan.TenantID, analysis)
		return nil
	})
	g2.Go(func() error {
		battery[1] = g.scoreTextLegibility(analysis)
		return nil
	})
	g2.Go(func() error {
		battery[2] = g.scoreColorConsistency(entity.Brand(plan.Brand), analysis)
		return nil
	})
	_ = g2.Wait()

	var sum float64
	scored := 0
	for _, check := range battery {
		eval.Checks = append(eval.Checks, check)
		metrics.QualityCheckScore.WithLabelValues(string(check.Type)).Observe(check.Score)
		if strings.HasPrefix(check.Detail, checkUnavailable) {
			continue
		}
		sum += check.Score
		scored++
	}
	if scored == 0 {
		metrics.QualityGateTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("no quality check produced a score for run %s", run.ID)
	}

	eval.OverallScore = sum / float64(scored)
	eval.OverallPassed = eval.OverallScore >= g.cfg.PassScore
	metrics.QualityOverallScore.Observe(eval.OverallScore)

	g.checkOverlayPresence(ctx, run, plan, eval)
	g.deriveRetryEvidence(eval)

	validation := &entity.QualityValidation{
		ID:                   uuid.NewString(),
		RunID:                run.ID,
		TenantID:             run.TenantID,
		OverallScore:         eval.OverallScore,
		Passed:               eval.OverallPassed,
		Checks:               eval.Checks,
		Recommendation:       eval.RetryRecommendation,
		EligibleForFreeRetry: eval.EligibleForFreeRetry,
		MotionDefects:        eval.MotionDefects,
	}
	if err := g.qualityRepo.Create(ctx, validation); err != nil {
		// 门禁结论已经得出，持久化失败只记日志，不影响调用方流程
		logger.Error(ctx, "保存质量门禁结果失败", err, "run_id", run.ID)
	}

	if eval.OverallPassed {
		metrics.QualityGateTotal.WithLabelValues("passed").Inc()
	} else {
		metrics.QualityGateTotal.WithLabelValues("failed").Inc()
	}
	return eval, nil
}

// checkOverlayPresence 比对期望的叠加字幕与检测到的屏幕文字
// confidence = 命中数 / 期望数，没有期望字幕时视为全部命中
func (g *Gate) checkOverlayPresence(ctx context.Context, run *entity.Run, plan *entity.Plan, eval *Evaluation) {
	var expected []entity.Overlay
	for _, beat := range plan.Beats {
		expected = append(expected, beat.Overlays...)
	}
	if len(expected) == 0 {
		eval.OverlayConfidence = 1
		eval.OverlayOK = true
		return
	}

	found := 0
	for _, ov := range expected {
		detected, err := g.analyzer.DetectText(ctx, run.OutputURL, ov.Start, ov.End)
		if err != nil {
			logger.Warn(ctx, "字幕检测失败", "run_id", run.ID, "overlay", ov.Text, "error", err)
			continue
		}
		if overlayDetected(ov.Text, detected) {
			found++
		}
	}
	eval.OverlayConfidence = float64(found) / float64(len(expected))
	eval.OverlayOK = eval.OverlayConfidence >= g.cfg.OverlayConfidenceMin

	eval.Checks = append(eval.Checks, entity.CheckResult{
		Type:   entity.CheckOverlayPresence,
		Score:  eval.OverlayConfidence * 100,
		Passed: eval.OverlayOK,
		Detail: fmt.Sprintf("%d/%d expected overlays detected", found, len(expected)),
	})
}

// deriveRetryEvidence 推导免费重试资格和改进建议
// 只有具体、可改进的维度失败才给免费重试；普遍平庸不给
func (g *Gate) deriveRetryEvidence(eval *Evaluation) {
	if eval.OverallPassed {
		return
	}

	type dim struct {
		check     *entity.CheckResult
		threshold float64
		advice    string
	}
	dims := []dim{
		{nil, g.cfg.ProductPresenceMin, "regenerate with stronger product framing in the instruction"},
		{nil, g.cfg.TextLegibilityMin, "re-render with burned-in overlays for guaranteed legibility"},
		{nil, g.cfg.ColorConsistencyMin, "regenerate with brand colors called out in the instruction"},
	}
	for i := range eval.Checks {
		switch eval.Checks[i].Type {
		case entity.CheckProductPresence:
			dims[0].check = &eval.Checks[i]
		case entity.CheckTextLegibility:
			dims[1].check = &eval.Checks[i]
		case entity.CheckColorConsistency:
			dims[2].check = &eval.Checks[i]
		}
	}

	var lowest *dim
	for i := range dims {
		d := &dims[i]
		if d.check == nil || strings.HasPrefix(d.check.Detail, checkUnavailable) {
			continue
		}
		if d.check.Score < d.threshold {
			eval.EligibleForFreeRetry = true
			if lowest == nil || d.check.Score < lowest.check.Score {
				lowest = d
			}
		}
	}
	if lowest != nil {
		eval.RetryRecommendation = lowest.advice
	}
}

// overlayDetected 在检测到的文字中模糊匹配期望字幕
func overlayDetected(expected string, detected []string) bool {
	want := normalizeText(expected)
	if want == "" {
		return true
	}
	for _, d := range detected {
		got := normalizeText(d)
		if got == "" {
			continue
		}
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return true
		}
	}
	return false
}

// normalizeText 去除大小写和非字母数字字符，用于字幕比对
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package quality

import (
	"context"
	"errors"
	"testing"

	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
)

type fakeAnalyzer struct {
	analysis   *ArtifactAnalysis
	analyzeErr error
	// detected 按时间窗起点索引的检测结果
	detected  map[float64][]string
	detectErr error
}

func (a *fakeAnalyzer) AnalyzeArtifact(ctx context.Context, artifactURL string) (*ArtifactAnalysis, error) {
	if a.analyzeErr != nil {
		return nil, a.analyzeErr
	}
	return a.analysis, nil
}

func (a *fakeAnalyzer) DetectText(ctx context.Context, artifactURL string, start, end float64) ([]string, error) {
	if a.detectErr != nil {
		return nil, a.detectErr
	}
	return a.detected[start], nil
}

type fakeVectorRepo struct {
	similarity float32
	err        error
}

func (r *fakeVectorRepo) Upsert(ctx context.Context, tenantID, assetID string, vector []float32) error {
	return nil
}

func (r *fakeVectorRepo) SearchMaxSimilarity(ctx context.Context, tenantID string, vector []float32) (float32, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.similarity, nil
}

func (r *fakeVectorRepo) Delete(ctx context.Context, assetID string) error { return nil }

type fakeQualityRepo struct {
	saved []*entity.QualityValidation
	err   error
}

func (r *fakeQualityRepo) Create(ctx context.Context, v *entity.QualityValidation) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, v)
	return nil
}

func (r *fakeQualityRepo) GetByRunID(ctx context.Context, runID string) (*entity.QualityValidation, error) {
	return nil, nil
}

func (r *fakeQualityRepo) ListByTenant(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.QualityValidation], error) {
	return nil, nil
}

func testQualityConfig() *config.QualityConfig {
	return &config.QualityConfig{
		PassScore:            70,
		ProductPresenceMin:   60,
		TextLegibilityMin:    50,
		ColorConsistencyMin:  60,
		OverlayConfidenceMin: 0.9,
	}
}

func gatePlan() *entity.Plan {
	return &entity.Plan{
		ID:       "plan-1",
		TenantID: "tenant-1",
		Brand:    entity.BrandSpec{Name: "Glow", PrimaryColor: "#FF2D75"},
		Beats: entity.Beats{
			{Type: entity.BeatTypeHook, StartSec: 0, EndSec: 5, DurationSec: 5},
			{Type: entity.BeatTypeDemo, StartSec: 5, EndSec: 10, DurationSec: 5},
			{Type: entity.BeatTypeProof, StartSec: 10, EndSec: 15, DurationSec: 5},
			{Type: entity.BeatTypeCTA, StartSec: 15, EndSec: 20, DurationSec: 5},
		},
	}
}

func gateRun() *entity.Run {
	return &entity.Run{
		ID:        "run-1",
		TenantID:  "tenant-1",
		PlanID:    "plan-1",
		State:     entity.RunStateSucceeded,
		OutputURL: "https://cdn.example.com/out.mp4",
	}
}

func goodAnalysis() *ArtifactAnalysis {
	return &ArtifactAnalysis{
		FrameEmbeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		LegibilityScore: 85,
		DominantColors:  []string{"#FF2D75", "#111111"},
	}
}

func TestEvaluate_PassingArtifact(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: goodAnalysis()}
	qualityRepo := &fakeQualityRepo{}
	gate := NewGate(analyzer, &fakeVectorRepo{similarity: 0.92}, qualityRepo, testQualityConfig())

	eval, err := gate.Evaluate(context.Background(), gateRun(), gatePlan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eval.OverallPassed {
		t.Fatalf("expected pass, got score %.1f", eval.OverallScore)
	}
	// 出镜 92 + 可读性 85 + 色彩 100 的均值
	if eval.OverallScore < 90 || eval.OverallScore > 93 {
		t.Fatalf("unexpected overall score %.1f", eval.OverallScore)
	}
	if len(eval.Checks) != 3 {
		t.Fatalf("expected 3 checks without overlays, got %d", len(eval.Checks))
	}
	if eval.EligibleForFreeRetry {
		t.Fatalf("passing artifact must not be retry-eligible")
	}
	if len(qualityRepo.saved) != 1 {
		t.Fatalf("expected persisted validation, got %d", len(qualityRepo.saved))
	}
	saved := qualityRepo.saved[0]
	if saved.RunID != "run-1" || saved.TenantID != "tenant-1" || !saved.Passed {
		t.Fatalf("unexpected persisted validation: %+v", saved)
	}
}

func TestEvaluate_NoOverlaysCountAsPresent(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: goodAnalysis()}
	gate := NewGate(analyzer, &fakeVectorRepo{similarity: 0.9}, &fakeQualityRepo{}, testQualityConfig())

	eval, err := gate.Evaluate(context.Background(), gateRun(), gatePlan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eval.OverlayOK || eval.OverlayConfidence != 1 {
		t.Fatalf("no expected overlays must count as full confidence, got %.2f", eval.OverlayConfidence)
	}
}

func TestEvaluate_OverlayPresence(t *testing.T) {
	plan := gatePlan()
	plan.Beats[0].Overlays = []entity.Overlay{
		{Text: "Only $9!", Position: entity.PositionTopCenter, Start: 0.5, End: 2},
	}
	plan.Beats[3].Overlays = []entity.Overlay{
		{Text: "tap to shop", Position: entity.PositionBottomCenter, Start: 16, End: 19},
	}

	analyzer := &fakeAnalyzer{
		analysis: goodAnalysis(),
		detected: map[float64][]string{
			0.5: {"ONLY $9"},
			// CTA 字幕未检出
		},
	}
	gate := NewGate(analyzer, &fakeVectorRepo{similarity: 0.9}, &fakeQualityRepo{}, testQualityConfig())

	eval, err := gate.Evaluate(context.Background(), gateRun(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.OverlayConfidence != 0.5 {
		t.Fatalf("expected confidence 0.5, got %.2f", eval.OverlayConfidence)
	}
	if eval.OverlayOK {
		t.Fatalf("confidence 0.5 must fail threshold 0.9")
	}
	last := eval.Checks[len(eval.Checks)-1]
	if last.Type != entity.CheckOverlayPresence || last.Score != 50 {
		t.Fatalf("unexpected overlay check: %+v", last)
	}
}

func TestEvaluate_FailingDimensionGrantsFreeRetry(t *testing.T) {
	analysis := goodAnalysis()
	analysis.LegibilityScore = 20

	analyzer := &fakeAnalyzer{analysis: analysis}
	gate := NewGate(analyzer, &fakeVectorRepo{similarity: 0.6}, &fakeQualityRepo{}, testQualityConfig())

	eval, err := gate.Evaluate(context.Background(), gateRun(), gatePlan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.OverallPassed {
		t.Fatalf("expected fail, got score %.1f", eval.OverallScore)
	}
	if !eval.EligibleForFreeRetry {
		t.Fatalf("specific dimension failure must grant a free retry")
	}
	// 可读性 20 为最低维度，建议应针对可读性
	if eval.RetryRecommendation == "" || eval.RetryRecommendation != "re-render with burned-in overlays for guaranteed legibility" {
		t.Fatalf("unexpected recommendation %q", eval.RetryRecommendation)
	}
}

func TestEvaluate_UniformMediocrityNoFreeRetry(t *testing.T) {
	analysis := goodAnalysis()
	analysis.LegibilityScore = 55
	analysis.DominantColors = []string{"#CC4466"}

	// 出镜 62、可读性 55、色彩约 87，全部高于各自下限但均值低于 70
	analyzer := &fakeAnalyzer{analysis: analysis}
	gate := NewGate(analyzer, &fakeVectorRepo{similarity: 0.62}, &fakeQualityRepo{}, testQualityConfig())

	eval, err := gate.Evaluate(context.Background(), gateRun(), gatePlan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.OverallPassed {
		t.Fatalf("expected fail, got score %.1f", eval.OverallScore)
	}
	if eval.EligibleForFreeRetry {
		t.Fatalf("uniform mediocrity must not grant a free retry")
	}
	if eval.RetryRecommendation != "" {
		t.Fatalf("no recommendation expected, got %q", eval.RetryRecommendation)
	}
}

func TestEvaluate_UnavailableChecksExcludedFromAverage(t *testing.T) {
	analysis := goodAnalysis()
	analysis.FrameEmbeddings = nil // 出镜检查不可用

	analyzer := &fakeAnalyzer{analysis: analysis}
	gate := NewGate(analyzer, &fakeVectorRepo{}, &fakeQualityRepo{}, testQualityConfig())

	eval, err := gate.Evaluate(context.Background(), gateRun(), gatePlan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 均值只含可读性 85 和色彩 100
	if eval.OverallScore < 90 || eval.OverallScore > 93 {
		t.Fatalf("unavailable check leaked into average: %.1f", eval.OverallScore)
	}
}

func TestEvaluate_AnalyzerFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{analyzeErr: errors.New("vision service down")}
	gate := NewGate(analyzer, &fakeVectorRepo{}, &fakeQualityRepo{}, testQualityConfig())

	if _, err := gate.Evaluate(context.Background(), gateRun(), gatePlan()); err == nil {
		t.Fatalf("expected error when analysis is unavailable")
	}
}

func TestEvaluate_PersistFailureDoesNotBlock(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: goodAnalysis()}
	gate := NewGate(analyzer, &fakeVectorRepo{similarity: 0.9}, &fakeQualityRepo{err: errors.New("db down")}, testQualityConfig())

	eval, err := gate.Evaluate(context.Background(), gateRun(), gatePlan())
	if err != nil {
		t.Fatalf("persistence failure must not fail evaluation: %v", err)
	}
	if !eval.OverallPassed {
		t.Fatalf("expected pass despite persistence failure")
	}
}

func TestOverlayDetected(t *testing.T) {
	tests := []struct {
		expected string
		detected []string
		want     bool
	}{
		{"Only $9!", []string{"only 9"}, true},
		{"tap to shop", []string{"TAP TO SHOP NOW"}, true},
		{"tap to shop", []string{"something else"}, false},
		{"tap to shop", nil, false},
		{"!!!", []string{"anything"}, true},
	}
	for _, tt := range tests {
		if got := overlayDetected(tt.expected, tt.detected); got != tt.want {
			t.Fatalf("overlayDetected(%q, %v) = %v, want %v", tt.expected, tt.detected, got, tt.want)
		}
	}
}

func TestScoreColorConsistency(t *testing.T) {
	gate := NewGate(&fakeAnalyzer{}, &fakeVectorRepo{}, &fakeQualityRepo{}, testQualityConfig())

	t.Run("exact match scores full", func(t *testing.T) {
		res := gate.scoreColorConsistency(
			entity.Brand{PrimaryColor: "#FF2D75"},
			&ArtifactAnalysis{DominantColors: []string{"#FF2D75"}},
		)
		if res.Score != 100 || !res.Passed {
			t.Fatalf("expected perfect score, got %+v", res)
		}
	})

	t.Run("no palette is unavailable", func(t *testing.T) {
		res := gate.scoreColorConsistency(
			entity.Brand{},
			&ArtifactAnalysis{DominantColors: []string{"#FF2D75"}},
		)
		if res.Score != 0 || res.Passed {
			t.Fatalf("expected unavailable result, got %+v", res)
		}
	})

	t.Run("distant colors score low", func(t *testing.T) {
		res := gate.scoreColorConsistency(
			entity.Brand{PrimaryColor: "#FFFFFF"},
			&ArtifactAnalysis{DominantColors: []string{"#000000"}},
		)
		if res.Score != 0 {
			t.Fatalf("expected zero score for opposite colors, got %.1f", res.Score)
		}
	})
}

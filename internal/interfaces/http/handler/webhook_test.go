package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"adcraft-api/internal/alerting"
	"adcraft-api/internal/application/credit"
	"adcraft-api/internal/application/overlay"
	"adcraft-api/internal/application/quality"
	"adcraft-api/internal/application/render"
	"adcraft-api/internal/application/retry"
	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
)

type whRunRepo struct{ runs map[string]*entity.Run }

func (r *whRunRepo) Create(ctx context.Context, run *entity.Run) error {
	r.runs[run.ID] = run
	return nil
}
func (r *whRunRepo) GetByID(ctx context.Context, id string) (*entity.Run, error) {
	return r.runs[id], nil
}
func (r *whRunRepo) GetByProviderJobID(ctx context.Context, jobID string) (*entity.Run, error) {
	return nil, nil
}
func (r *whRunRepo) Update(ctx context.Context, run *entity.Run) error {
	r.runs[run.ID] = run
	return nil
}
func (r *whRunRepo) ListByPlan(ctx context.Context, planID string, filter *repository.RunFilter, p repository.Pagination) (*repository.PagedResult[*entity.Run], error) {
	return repository.NewPagedResult([]*entity.Run{}, 0, p), nil
}
func (r *whRunRepo) GetActiveByPlan(ctx context.Context, planID string) ([]*entity.Run, error) {
	return nil, nil
}
func (r *whRunRepo) GetStaleRunning(ctx context.Context, olderThanSec, limit int) ([]*entity.Run, error) {
	return nil, nil
}
func (r *whRunRepo) CountActiveByTenant(ctx context.Context, tenantID string) (int64, error) {
	return 0, nil
}

type whPlanRepo struct{ plans map[string]*entity.Plan }

func (r *whPlanRepo) Create(ctx context.Context, plan *entity.Plan) error { return nil }
func (r *whPlanRepo) GetByID(ctx context.Context, id string) (*entity.Plan, error) {
	return r.plans[id], nil
}
func (r *whPlanRepo) Update(ctx context.Context, plan *entity.Plan) error { return nil }
func (r *whPlanRepo) Delete(ctx context.Context, id string) error         { return nil }
func (r *whPlanRepo) ListByTenant(ctx context.Context, tenantID string, f *repository.PlanFilter, p repository.Pagination) (*repository.PagedResult[*entity.Plan], error) {
	return repository.NewPagedResult([]*entity.Plan{}, 0, p), nil
}
func (r *whPlanRepo) UpdateStatus(ctx context.Context, id string, status entity.PlanStatus) error {
	return nil
}

type whAssetRepo struct{}

func (r *whAssetRepo) Create(ctx context.Context, a *entity.Asset) error { return nil }
func (r *whAssetRepo) GetByID(ctx context.Context, id string) (*entity.Asset, error) {
	return nil, nil
}
func (r *whAssetRepo) GetByIDs(ctx context.Context, ids []string) ([]*entity.Asset, error) {
	return nil, nil
}
func (r *whAssetRepo) Update(ctx context.Context, a *entity.Asset) error { return nil }
func (r *whAssetRepo) ListByTenant(ctx context.Context, tenantID string, p repository.Pagination) (*repository.PagedResult[*entity.Asset], error) {
	return repository.NewPagedResult([]*entity.Asset{}, 0, p), nil
}

type whTenantRepo struct{}

func (r *whTenantRepo) Create(ctx context.Context, t *entity.Tenant) error { return nil }
func (r *whTenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	return &entity.Tenant{ID: id, CreditBalance: 100}, nil
}
func (r *whTenantRepo) GetBySlug(ctx context.Context, slug string) (*entity.Tenant, error) {
	return nil, nil
}
func (r *whTenantRepo) Update(ctx context.Context, t *entity.Tenant) error { return nil }
func (r *whTenantRepo) AdjustCredits(ctx context.Context, id string, delta int) (int, error) {
	return 100 + delta, nil
}

type whCreditRepo struct{}

func (r *whCreditRepo) Create(ctx context.Context, e *entity.CreditLedgerEntry) error { return nil }
func (r *whCreditRepo) GetByRunID(ctx context.Context, runID string) (*entity.CreditLedgerEntry, error) {
	return nil, nil
}
func (r *whCreditRepo) ListByTenant(ctx context.Context, tenantID string, p repository.Pagination) (*repository.PagedResult[*entity.CreditLedgerEntry], error) {
	return repository.NewPagedResult([]*entity.CreditLedgerEntry{}, 0, p), nil
}

type whQualityRepo struct{}

func (r *whQualityRepo) Create(ctx context.Context, v *entity.QualityValidation) error { return nil }
func (r *whQualityRepo) GetByRunID(ctx context.Context, runID string) (*entity.QualityValidation, error) {
	return nil, nil
}
func (r *whQualityRepo) ListByTenant(ctx context.Context, tenantID string, p repository.Pagination) (*repository.PagedResult[*entity.QualityValidation], error) {
	return repository.NewPagedResult([]*entity.QualityValidation{}, 0, p), nil
}

type whVectorRepo struct{}

func (r *whVectorRepo) Upsert(ctx context.Context, tenantID, assetID string, v []float32) error {
	return nil
}
func (r *whVectorRepo) SearchMaxSimilarity(ctx context.Context, tenantID string, v []float32) (float32, error) {
	return 0.95, nil
}
func (r *whVectorRepo) Delete(ctx context.Context, assetID string) error { return nil }

type whAnalyzer struct{}

func (a *whAnalyzer) AnalyzeArtifact(ctx context.Context, url string) (*quality.ArtifactAnalysis, error) {
	return &quality.ArtifactAnalysis{
		FrameEmbeddings: [][]float32{{0.1, 0.2}},
		LegibilityScore: 90,
		DominantColors:  []string{"#FF2D75"},
	}, nil
}
func (a *whAnalyzer) DetectText(ctx context.Context, url string, start, end float64) ([]string, error) {
	return nil, nil
}

type whRenderer struct{}

func (r *whRenderer) Render(ctx context.Context, inputURL string, specs []overlay.BurnSpec, logoURL string) (string, error) {
	return inputURL, nil
}

type whProvider struct{}

func (p *whProvider) Submit(ctx context.Context, req *render.SubmitRequest) (*render.SubmitResult, error) {
	return &render.SubmitResult{JobID: "job-1"}, nil
}
func (p *whProvider) Poll(ctx context.Context, jobID string) (*render.JobStatus, error) {
	return &render.JobStatus{}, nil
}

type whQueue struct{}

func (q *whQueue) EnqueueRender(ctx context.Context, job *render.QueuedJob) error { return nil }

type whTx struct{}

func (t *whTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newWebhookRouter(t *testing.T, runRepo *whRunRepo, planRepo *whPlanRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tx := &whTx{}
	creditSvc := credit.NewService(&whTenantRepo{}, &whCreditRepo{}, tx, nil)
	dispatcher := render.NewDispatcher(planRepo, runRepo, &whAssetRepo{}, &whProvider{}, &whQueue{}, creditSvc, tx, &config.ProviderConfig{
		Engine:         "veo-3",
		WebhookBaseURL: "https://api.example.com",
		Mode:           "async",
		RequestTimeout: time.Second,
		PreviewCost:    1,
		FinalCost:      5,
	})
	gate := quality.NewGate(&whAnalyzer{}, &whVectorRepo{}, &whQualityRepo{}, &config.QualityConfig{
		PassScore:            70,
		ProductPresenceMin:   60,
		TextLegibilityMin:    50,
		ColorConsistencyMin:  60,
		OverlayConfidenceMin: 0.9,
	})
	fallback := overlay.NewFallback(&whRenderer{}, &config.OverlayConfig{
		SafeMarginRatio:    0.05,
		BaseFontRatio:      0.045,
		CriticalFontScale:  1.25,
		BoxOpacity:         0.4,
		CriticalBoxOpacity: 0.85,
		FadeDuration:       0.25,
		CriticalHookWindow: 1.0,
	})
	policy := retry.NewPolicy(&config.RetryConfig{MaxRetries: 3, LowScoreThreshold: 60})
	alerts := alerting.NewWindow(&config.AlertingConfig{Window: time.Minute, ErrorThreshold: 1000})
	completion := render.NewCompletionService(runRepo, planRepo, &whAssetRepo{}, gate, fallback, policy, dispatcher, alerts, nil)

	router := gin.New()
	router.POST("/api/v1/webhooks/provider", NewWebhookHandler(completion).ProviderCallback)
	return router
}

func postCallback(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/provider", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func webhookFixtures() (*whRunRepo, *whPlanRepo) {
	plan := &entity.Plan{
		ID:                "plan-1",
		TenantID:          "tenant-1",
		Status:            entity.PlanStatusRendering,
		AspectRatio:       entity.AspectRatio9x16,
		TargetDurationSec: 20,
		Seed:              42,
		Brand:             entity.BrandSpec{Name: "Glow", ProductName: "Glow Serum", PrimaryColor: "#FF2D75"},
		Beats: entity.Beats{
			{Type: entity.BeatTypeHook, StartSec: 0, EndSec: 5, DurationSec: 5, Instruction: "open on the product"},
			{Type: entity.BeatTypeDemo, StartSec: 5, EndSec: 10, DurationSec: 5, Instruction: "apply the serum"},
			{Type: entity.BeatTypeProof, StartSec: 10, EndSec: 15, DurationSec: 5, Instruction: "show the result"},
			{Type: entity.BeatTypeCTA, StartSec: 15, EndSec: 20, DurationSec: 5, Instruction: "call to action"},
		},
	}
	run := entity.NewRun("tenant-1", "plan-1", entity.TierPreview, "veo-3", 42)
	run.ID = "run-1"
	run.Start()

	return &whRunRepo{runs: map[string]*entity.Run{run.ID: run}},
		&whPlanRepo{plans: map[string]*entity.Plan{plan.ID: plan}}
}

func TestProviderCallback_MalformedBody(t *testing.T) {
	runRepo, planRepo := webhookFixtures()
	router := newWebhookRouter(t, runRepo, planRepo)

	w := postCallback(t, router, `{"runId": `)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestProviderCallback_MissingRunID(t *testing.T) {
	runRepo, planRepo := webhookFixtures()
	router := newWebhookRouter(t, runRepo, planRepo)

	w := postCallback(t, router, `{"status":"succeeded","artifactUrl":"https://cdn.example.com/a.mp4"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "runId is required") {
		t.Fatalf("body = %s, want runId is required", w.Body.String())
	}
}

func TestProviderCallback_UnknownRun(t *testing.T) {
	runRepo, planRepo := webhookFixtures()
	router := newWebhookRouter(t, runRepo, planRepo)

	w := postCallback(t, router, `{"runId":"ghost","status":"succeeded","artifactUrl":"https://cdn.example.com/a.mp4"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestProviderCallback_SuccessPayload(t *testing.T) {
	runRepo, planRepo := webhookFixtures()
	router := newWebhookRouter(t, runRepo, planRepo)

	w := postCallback(t, router, `{"runId":"run-1","status":"succeeded","artifactUrl":"https://cdn.example.com/a.mp4","durationSec":19.8}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			RunID     string `json:"run_id"`
			State     string `json:"state"`
			Duplicate bool   `json:"duplicate"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data.RunID != "run-1" || resp.Data.State != "succeeded" || resp.Data.Duplicate {
		t.Fatalf("unexpected ack: %+v", resp.Data)
	}
}

func TestProviderCallback_FailurePayloadStillAcks(t *testing.T) {
	runRepo, planRepo := webhookFixtures()
	router := newWebhookRouter(t, runRepo, planRepo)

	// 已识别的失败回调也返回 200，避免供应商无意义重发
	w := postCallback(t, router, `{"runId":"run-1","status":"failed","error":"render node crashed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if runRepo.runs["run-1"].State != entity.RunStateFailed {
		t.Fatalf("run state = %s, want failed", runRepo.runs["run-1"].State)
	}
}

func TestProviderCallback_DuplicateAcksWithFlag(t *testing.T) {
	runRepo, planRepo := webhookFixtures()
	router := newWebhookRouter(t, runRepo, planRepo)

	first := postCallback(t, router, `{"runId":"run-1","status":"succeeded","artifactUrl":"https://cdn.example.com/a.mp4"}`)
	if first.Code != http.StatusOK {
		t.Fatalf("first callback status = %d, want 200", first.Code)
	}

	second := postCallback(t, router, `{"runId":"run-1","status":"failed","error":"late duplicate"}`)
	if second.Code != http.StatusOK {
		t.Fatalf("duplicate callback status = %d, want 200", second.Code)
	}
	var resp struct {
		Data struct {
			Duplicate bool `json:"duplicate"`
		} `json:"data"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Data.Duplicate {
		t.Fatal("out-of-order callback must be acked with duplicate=true")
	}
}

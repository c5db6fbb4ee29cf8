package render

import (
	"context"
	"time"

	"adcraft-api/internal/alerting"
	"adcraft-api/internal/application/credit"
	"adcraft-api/internal/application/overlay"
	"adcraft-api/internal/application/quality"
	"adcraft-api/internal/application/retry"
	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
	apperrors "adcraft-api/pkg/errors"
)

type fakeRunRepo struct {
	runs      map[string]*entity.Run
	createErr error
	updateErr error
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: map[string]*entity.Run{}}
}

func (r *fakeRunRepo) Create(ctx context.Context, run *entity.Run) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.runs[run.ID] = run
	return nil
}

func (r *fakeRunRepo) GetByID(ctx context.Context, id string) (*entity.Run, error) {
	return r.runs[id], nil
}

func (r *fakeRunRepo) GetByProviderJobID(ctx context.Context, jobID string) (*entity.Run, error) {
	for _, run := range r.runs {
		if run.ProviderJobID == jobID {
			return run, nil
		}
	}
	return nil, nil
}

func (r *fakeRunRepo) Update(ctx context.Context, run *entity.Run) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.runs[run.ID] = run
	return nil
}

func (r *fakeRunRepo) ListByPlan(ctx context.Context, planID string, filter *repository.RunFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Run], error) {
	var items []*entity.Run
	for _, run := range r.runs {
		if run.PlanID == planID {
			items = append(items, run)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), pagination), nil
}

func (r *fakeRunRepo) GetActiveByPlan(ctx context.Context, planID string) ([]*entity.Run, error) {
	var items []*entity.Run
	for _, run := range r.runs {
		if run.PlanID == planID && !run.State.IsTerminal() {
			items = append(items, run)
		}
	}
	return items, nil
}

func (r *fakeRunRepo) GetStaleRunning(ctx context.Context, olderThanSec int, limit int) ([]*entity.Run, error) {
	return nil, nil
}

func (r *fakeRunRepo) CountActiveByTenant(ctx context.Context, tenantID string) (int64, error) {
	return 0, nil
}

// retryRuns 返回指向给定执行的重试执行
func (r *fakeRunRepo) retryRuns(prevID string) []*entity.Run {
	var items []*entity.Run
	for _, run := range r.runs {
		if run.RetryOfID == prevID {
			items = append(items, run)
		}
	}
	return items
}

type fakePlanRepo struct {
	plans map[string]*entity.Plan
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: map[string]*entity.Plan{}}
}

func (r *fakePlanRepo) Create(ctx context.Context, plan *entity.Plan) error {
	r.plans[plan.ID] = plan
	return nil
}

func (r *fakePlanRepo) GetByID(ctx context.Context, id string) (*entity.Plan, error) {
	return r.plans[id], nil
}

func (r *fakePlanRepo) Update(ctx context.Context, plan *entity.Plan) error {
	r.plans[plan.ID] = plan
	return nil
}

func (r *fakePlanRepo) Delete(ctx context.Context, id string) error {
	delete(r.plans, id)
	return nil
}

func (r *fakePlanRepo) ListByTenant(ctx context.Context, tenantID string, filter *repository.PlanFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Plan], error) {
	return repository.NewPagedResult([]*entity.Plan{}, 0, pagination), nil
}

func (r *fakePlanRepo) UpdateStatus(ctx context.Context, id string, status entity.PlanStatus) error {
	if plan, ok := r.plans[id]; ok {
		plan.Status = status
	}
	return nil
}

type fakeAssetRepo struct {
	assets map[string]*entity.Asset
}

func newFakeAssetRepo() *fakeAssetRepo {
	return &fakeAssetRepo{assets: map[string]*entity.Asset{}}
}

func (r *fakeAssetRepo) Create(ctx context.Context, asset *entity.Asset) error {
	r.assets[asset.ID] = asset
	return nil
}

func (r *fakeAssetRepo) GetByID(ctx context.Context, id string) (*entity.Asset, error) {
	return r.assets[id], nil
}

func (r *fakeAssetRepo) GetByIDs(ctx context.Context, ids []string) ([]*entity.Asset, error) {
	var items []*entity.Asset
	for _, id := range ids {
		if a, ok := r.assets[id]; ok {
			items = append(items, a)
		}
	}
	return items, nil
}

func (r *fakeAssetRepo) Update(ctx context.Context, asset *entity.Asset) error {
	r.assets[asset.ID] = asset
	return nil
}

func (r *fakeAssetRepo) ListByTenant(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Asset], error) {
	return repository.NewPagedResult([]*entity.Asset{}, 0, pagination), nil
}

type fakeTx struct{}

func (t *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeTenantRepo struct {
	balance int
}

func (r *fakeTenantRepo) Create(ctx context.Context, tenant *entity.Tenant) error { return nil }

func (r *fakeTenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	return &entity.Tenant{ID: id, CreditBalance: r.balance}, nil
}

func (r *fakeTenantRepo) GetBySlug(ctx context.Context, slug string) (*entity.Tenant, error) {
	return nil, nil
}

func (r *fakeTenantRepo) Update(ctx context.Context, tenant *entity.Tenant) error { return nil }

func (r *fakeTenantRepo) AdjustCredits(ctx context.Context, id string, delta int) (int, error) {
	if r.balance+delta < 0 {
		return 0, apperrors.ErrCreditInsufficient
	}
	r.balance += delta
	return r.balance, nil
}

type fakeCreditRepo struct {
	entries []*entity.CreditLedgerEntry
}

func (r *fakeCreditRepo) Create(ctx context.Context, entry *entity.CreditLedgerEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeCreditRepo) GetByRunID(ctx context.Context, runID string) (*entity.CreditLedgerEntry, error) {
	for _, e := range r.entries {
		if e.RunID == runID {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeCreditRepo) ListByTenant(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditLedgerEntry], error) {
	return repository.NewPagedResult(r.entries, int64(len(r.entries)), pagination), nil
}

type fakeProvider struct {
	submitted []*SubmitRequest
	submitErr error
	jobID     string

	pollStatuses []*JobStatus
	pollCalls    int
}

func (p *fakeProvider) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	if p.submitErr != nil {
		return nil, p.submitErr
	}
	p.submitted = append(p.submitted, req)
	return &SubmitResult{JobID: p.jobID}, nil
}

func (p *fakeProvider) Poll(ctx context.Context, jobID string) (*JobStatus, error) {
	if p.pollCalls < len(p.pollStatuses) {
		status := p.pollStatuses[p.pollCalls]
		p.pollCalls++
		return status, nil
	}
	p.pollCalls++
	return &JobStatus{}, nil
}

type fakeQueue struct {
	jobs []*QueuedJob
	err  error
}

func (q *fakeQueue) EnqueueRender(ctx context.Context, job *QueuedJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeAuditSink struct {
	events []*AuditEvent
}

func (s *fakeAuditSink) PublishAudit(ctx context.Context, event *AuditEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *fakeAuditSink) lastOutcome() string {
	if len(s.events) == 0 {
		return ""
	}
	return s.events[len(s.events)-1].Outcome
}

type stubAnalyzer struct {
	analysis   *quality.ArtifactAnalysis
	analyzeErr error
	detected   []string
}

func (a *stubAnalyzer) AnalyzeArtifact(ctx context.Context, artifactURL string) (*quality.ArtifactAnalysis, error) {
	if a.analyzeErr != nil {
		return nil, a.analyzeErr
	}
	return a.analysis, nil
}

func (a *stubAnalyzer) DetectText(ctx context.Context, artifactURL string, start, end float64) ([]string, error) {
	return a.detected, nil
}

type stubVectorRepo struct {
	similarity float32
}

func (r *stubVectorRepo) Upsert(ctx context.Context, tenantID, assetID string, vector []float32) error {
	return nil
}

func (r *stubVectorRepo) SearchMaxSimilarity(ctx context.Context, tenantID string, vector []float32) (float32, error) {
	return r.similarity, nil
}

func (r *stubVectorRepo) Delete(ctx context.Context, assetID string) error { return nil }

type stubQualityRepo struct {
	saved []*entity.QualityValidation
}

func (r *stubQualityRepo) Create(ctx context.Context, v *entity.QualityValidation) error {
	r.saved = append(r.saved, v)
	return nil
}

func (r *stubQualityRepo) GetByRunID(ctx context.Context, runID string) (*entity.QualityValidation, error) {
	for _, v := range r.saved {
		if v.RunID == runID {
			return v, nil
		}
	}
	return nil, nil
}

func (r *stubQualityRepo) ListByTenant(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.QualityValidation], error) {
	return repository.NewPagedResult(r.saved, int64(len(r.saved)), pagination), nil
}

type stubRenderer struct {
	output string
	err    error
	calls  int
}

func (r *stubRenderer) Render(ctx context.Context, inputURL string, specs []overlay.BurnSpec, logoURL string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.output, nil
}

// testEnv 装配一套全内存依赖的派发与完成处理服务
type testEnv struct {
	runRepo    *fakeRunRepo
	planRepo   *fakePlanRepo
	assetRepo  *fakeAssetRepo
	tenantRepo *fakeTenantRepo
	creditRepo *fakeCreditRepo
	provider   *fakeProvider
	queue      *fakeQueue
	audits     *fakeAuditSink
	analyzer   *stubAnalyzer
	vectors    *stubVectorRepo
	renderer   *stubRenderer

	providerCfg *config.ProviderConfig
	dispatcher  *Dispatcher
	completion  *CompletionService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		runRepo:    newFakeRunRepo(),
		planRepo:   newFakePlanRepo(),
		assetRepo:  newFakeAssetRepo(),
		tenantRepo: &fakeTenantRepo{balance: 100},
		creditRepo: &fakeCreditRepo{},
		provider:   &fakeProvider{jobID: "job-1"},
		queue:      &fakeQueue{},
		audits:     &fakeAuditSink{},
		vectors:    &stubVectorRepo{similarity: 0.92},
		renderer:   &stubRenderer{output: "https://cdn.example.com/burned.mp4"},
		analyzer: &stubAnalyzer{
			analysis: &quality.ArtifactAnalysis{
				FrameEmbeddings: [][]float32{{0.1, 0.2}},
				LegibilityScore: 85,
				DominantColors:  []string{"#FF2D75"},
			},
		},
	}
	env.providerCfg = &config.ProviderConfig{
		Engine:          "veo-3",
		WebhookBaseURL:  "https://api.adcraft.example.com",
		Mode:            "async",
		MaxPolls:        3,
		PollInterval:    time.Millisecond,
		RequestTimeout:  time.Second,
		PreviewDuration: 8,
		PreviewCost:     1,
		FinalCost:       5,
	}

	tx := &fakeTx{}
	creditSvc := credit.NewService(env.tenantRepo, env.creditRepo, tx, nil)
	env.dispatcher = NewDispatcher(env.planRepo, env.runRepo, env.assetRepo, env.provider, env.queue, creditSvc, tx, env.providerCfg)

	gate := quality.NewGate(env.analyzer, env.vectors, &stubQualityRepo{}, &config.QualityConfig{
		PassScore:            70,
		ProductPresenceMin:   60,
		TextLegibilityMin:    50,
		ColorConsistencyMin:  60,
		OverlayConfidenceMin: 0.9,
	})
	fallback := overlay.NewFallback(env.renderer, &config.OverlayConfig{
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

	env.completion = NewCompletionService(env.runRepo, env.planRepo, env.assetRepo, gate, fallback, policy, env.dispatcher, alerts, env.audits)
	return env
}

// seedPlan 写入一个已通过校验的四节拍计划
func (env *testEnv) seedPlan() *entity.Plan {
	plan := &entity.Plan{
		ID:                "plan-1",
		TenantID:          "tenant-1",
		Title:             "test plan",
		Status:            entity.PlanStatusValidated,
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
		SelectedAssets: []string{"asset-1"},
	}
	env.planRepo.plans[plan.ID] = plan
	return plan
}

// seedRunningRun 写入一个 running 状态的执行
func (env *testEnv) seedRunningRun(plan *entity.Plan) *entity.Run {
	run := entity.NewRun(plan.TenantID, plan.ID, entity.TierPreview, "veo-3", plan.Seed)
	run.ID = "run-1"
	run.Start()
	env.runRepo.runs[run.ID] = run
	return run
}

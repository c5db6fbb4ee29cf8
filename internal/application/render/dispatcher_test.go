package render

import (
	"context"
	"errors"
	"testing"

	"adcraft-api/internal/application/retry"
	"adcraft-api/internal/domain/entity"
	apperrors "adcraft-api/pkg/errors"
)

func TestSubmit_CreatesRunDeductsAndEnqueues(t *testing.T) {
	env := newTestEnv()
	plan := env.seedPlan()

	run, err := env.dispatcher.Submit(context.Background(), plan.ID, entity.TierPreview)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if run.State != entity.RunStateQueued {
		t.Fatalf("run state = %s, want queued", run.State)
	}
	if run.Seed != 42 {
		t.Fatalf("run seed = %d, want plan seed 42", run.Seed)
	}
	if env.runRepo.runs[run.ID] == nil {
		t.Fatal("run was not persisted")
	}
	if plan.Status != entity.PlanStatusRendering {
		t.Fatalf("plan status = %s, want rendering", plan.Status)
	}
	if env.tenantRepo.balance != 99 {
		t.Fatalf("tenant balance = %d, want 99 after preview deduction", env.tenantRepo.balance)
	}
	if len(env.creditRepo.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(env.creditRepo.entries))
	}
	entry := env.creditRepo.entries[0]
	if entry.Type != entity.CreditEntryDeduct || entry.Amount != 1 || entry.RunID != run.ID {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
	if len(env.queue.jobs) != 1 || env.queue.jobs[0].RunID != run.ID {
		t.Fatalf("expected one queued job for run %s, got %+v", run.ID, env.queue.jobs)
	}
}

func TestSubmit_RejectsInvalidTier(t *testing.T) {
	env := newTestEnv()
	plan := env.seedPlan()

	if _, err := env.dispatcher.Submit(context.Background(), plan.ID, entity.RenderTier("draft")); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestSubmit_RejectsUnvalidatedPlan(t *testing.T) {
	env := newTestEnv()
	plan := env.seedPlan()
	plan.Status = entity.PlanStatusDraft

	_, err := env.dispatcher.Submit(context.Background(), plan.ID, entity.TierPreview)
	if !errors.Is(err, apperrors.ErrPlanNotValidated) {
		t.Fatalf("err = %v, want ErrPlanNotValidated", err)
	}
}

func TestSubmit_UnknownPlan(t *testing.T) {
	env := newTestEnv()

	_, err := env.dispatcher.Submit(context.Background(), "missing", entity.TierPreview)
	if !errors.Is(err, apperrors.ErrPlanNotFound) {
		t.Fatalf("err = %v, want ErrPlanNotFound", err)
	}
}

func TestSubmit_FinalTierRequiresVoiceOver(t *testing.T) {
	env := newTestEnv()
	plan := env.seedPlan()

	if _, err := env.dispatcher.Submit(context.Background(), plan.ID, entity.TierFinal); err == nil {
		t.Fatal("expected error for final tier without voice-over")
	}

	plan.Beats[0].VoiceOver = &entity.VoiceOver{Script: "meet the serum everyone is talking about"}
	run, err := env.dispatcher.Submit(context.Background(), plan.ID, entity.TierFinal)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if run.Tier != entity.TierFinal {
		t.Fatalf("run tier = %s, want final", run.Tier)
	}
	if env.tenantRepo.balance != 95 {
		t.Fatalf("tenant balance = %d, want 95 after final deduction", env.tenantRepo.balance)
	}
}

func TestSubmit_InsufficientCredits(t *testing.T) {
	env := newTestEnv()
	env.tenantRepo.balance = 0
	plan := env.seedPlan()

	_, err := env.dispatcher.Submit(context.Background(), plan.ID, entity.TierPreview)
	if !errors.Is(err, apperrors.ErrCreditInsufficient) {
		t.Fatalf("err = %v, want ErrCreditInsufficient", err)
	}
	if len(env.queue.jobs) != 0 {
		t.Fatal("job must not be enqueued when deduction fails")
	}
}

func TestSubmit_EnqueueFailureMarksRunFailed(t *testing.T) {
	env := newTestEnv()
	env.queue.err = errors.New("stream unavailable")
	plan := env.seedPlan()

	run, err := env.dispatcher.Submit(context.Background(), plan.ID, entity.TierPreview)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if run.State != entity.RunStateFailed {
		t.Fatalf("run state = %s, want failed after enqueue failure", run.State)
	}
	if run.FailureCategory != entity.FailureAPIError {
		t.Fatalf("failure category = %s, want api_error", run.FailureCategory)
	}
}

func TestSubmitRetry_FreeSkipsDeduction(t *testing.T) {
	env := newTestEnv()
	plan := env.seedPlan()
	prev := env.seedRunningRun(plan)
	prev.Fail(entity.FailureAPIError, "provider returned 503")

	decision := retry.Decision{
		ShouldRetry: true,
		FreeRetry:   true,
		Category:    entity.FailureAPIError,
		Strategy:    entity.RetrySameSeed,
		Seed:        prev.Seed,
	}
	retryRun, err := env.dispatcher.SubmitRetry(context.Background(), prev, decision, "")
	if err != nil {
		t.Fatalf("SubmitRetry returned error: %v", err)
	}
	if retryRun.RetryOfID != prev.ID {
		t.Fatalf("retry run does not point at previous run: %+v", retryRun)
	}
	if !retryRun.FreeRetry {
		t.Fatal("retry run should be marked free")
	}
	if retryRun.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", retryRun.RetryCount)
	}
	if env.tenantRepo.balance != 100 {
		t.Fatalf("tenant balance = %d, free retry must not deduct", env.tenantRepo.balance)
	}
	if len(env.queue.jobs) != 1 {
		t.Fatalf("expected retry job enqueued, got %d jobs", len(env.queue.jobs))
	}
}

func TestSubmitRetry_PaidDeducts(t *testing.T) {
	env := newTestEnv()
	plan := env.seedPlan()
	prev := env.seedRunningRun(plan)
	prev.Fail(entity.FailureQuality, "score below threshold")

	decision := retry.Decision{
		ShouldRetry: true,
		FreeRetry:   false,
		Category:    entity.FailureQuality,
		Strategy:    entity.RetryNewSeed,
		Seed:        prev.Seed + 1000,
	}
	if _, err := env.dispatcher.SubmitRetry(context.Background(), prev, decision, ""); err != nil {
		t.Fatalf("SubmitRetry returned error: %v", err)
	}
	if env.tenantRepo.balance != 99 {
		t.Fatalf("tenant balance = %d, want 99 after paid retry", env.tenantRepo.balance)
	}
}

func TestDispatch_AsyncStoresJobHandle(t *testing.T) {
	env := newTestEnv()
	plan := env.seedPlan()
	run := entity.NewRun(plan.TenantID, plan.ID, entity.TierPreview, "veo-3", 42)
	run.ID = "run-q"
	env.runRepo.runs[run.ID] = run

	got, status, err := env.dispatcher.Dispatch(context.Background(), run.ID, "")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if status != nil {
		t.Fatal("async mode must not return a job status")
	}
	if got.State != entity.RunStateRunning {
		t.Fatalf("run state = %s, want running", got.State)
	}
	if got.ProviderJobID != "job-1" {
		t.Fatalf("provider job id = %q, want job-1", got.ProviderJobID)
	}
	if len(env.provider.submitted) != 1 {
		t.Fatalf("provider submissions = %d, want 1", len(env.provider.submitted))
	}
	req := env.provider.submitted[0]
	if req.WebhookURL != "https://api.adcraft.example.com/api/v1/webhooks/provider" {
		t.Fatalf("webhook url = %q", req.WebhookURL)
	}
	// 预览档位缩短时长并关闭音频
	if req.DurationSec != 8 || req.WithAudio {
		t.Fatalf("preview request duration=%v withAudio=%v, want 8/false", req.DurationSec, req.WithAudio)
	}
}

func TestDispatch_FinalKeepsDurationAndAudio(t *testing.T) {
	env := newTestEnv()
	plan := env.seedPlan()
	plan.Beats[0].VoiceOver = &entity.VoiceOver{Script: "voice"}
	run := entity.NewRun(plan.TenantID, plan.ID, entity.TierFinal, "veo-3", 42)
	run.ID = "run-f"
	env.runRepo.runs[run.ID] = run

	if _, _, err := env.dispatcher.Dispatch(context.Background(), run.ID, ""); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	req := env.provider.submitted[0]
	if req.DurationSec != 20 || !req.WithAudio {
		t.Fatalf("final request duration=%v withAudio=%v, want 20/true", req.DurationSec, req.WithAudio)
	}
}

func TestDispatch_ProviderErrorFailsRunWithoutThrowing(t *testing.T) {
	env := newTestEnv()
	env.provider.submitErr = errors.New("connection refused")
	plan := env.seedPlan()
	run := entity.NewRun(plan.TenantID, plan.ID, entity.TierPreview, "veo-3", 42)
	run.ID = "run-e"
	env.runRepo.runs[run.ID] = run

	got, _, err := env.dispatcher.Dispatch(context.Background(), run.ID, "")
	if err != nil {
		t.Fatalf("Dispatch must not return provider errors, got %v", err)
	}
	if got.State != entity.RunStateFailed {
		t.Fatalf("run state = %s, want failed", got.State)
	}
	if got.FailureCategory != entity.FailureAPIError {
		t.Fatalf("failure category = %s, want api_error", got.FailureCategory)
	}
}

func TestDispatch_TerminalRunIsNoop(t *testing.T) {
	env := newTestEnv()
	plan := env.seedPlan()
	run := env.seedRunningRun(plan)
	run.Fail(entity.FailureTimeout, "timed out")

	got, status, err := env.dispatcher.Dispatch(context.Background(), run.ID, "")
	if err != nil || status != nil {
		t.Fatalf("Dispatch = (%v, %v), want terminal no-op", status, err)
	}
	if got.ID != run.ID {
		t.Fatalf("unexpected run returned: %+v", got)
	}
	if len(env.provider.submitted) != 0 {
		t.Fatal("provider must not be called for a terminal run")
	}
}

func TestDispatch_UnknownRun(t *testing.T) {
	env := newTestEnv()

	_, _, err := env.dispatcher.Dispatch(context.Background(), "missing", "")
	if !errors.Is(err, apperrors.ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestDispatch_PollModeReturnsTerminalStatus(t *testing.T) {
	env := newTestEnv()
	env.providerCfg.Mode = "poll"
	env.provider.pollStatuses = []*JobStatus{
		{Done: false},
		{Done: true, Succeeded: true, ArtifactURL: "https://cdn.example.com/out.mp4"},
	}
	plan := env.seedPlan()
	run := entity.NewRun(plan.TenantID, plan.ID, entity.TierPreview, "veo-3", 42)
	run.ID = "run-p"
	env.runRepo.runs[run.ID] = run

	_, status, err := env.dispatcher.Dispatch(context.Background(), run.ID, "")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if status == nil || !status.Done || !status.Succeeded {
		t.Fatalf("status = %+v, want terminal success", status)
	}
	if status.ArtifactURL != "https://cdn.example.com/out.mp4" {
		t.Fatalf("artifact url = %q", status.ArtifactURL)
	}
}

func TestDispatch_PollExhaustionTimesOut(t *testing.T) {
	env := newTestEnv()
	env.providerCfg.Mode = "poll"
	env.providerCfg.MaxPolls = 2
	plan := env.seedPlan()
	run := entity.NewRun(plan.TenantID, plan.ID, entity.TierPreview, "veo-3", 42)
	run.ID = "run-t"
	env.runRepo.runs[run.ID] = run

	got, status, err := env.dispatcher.Dispatch(context.Background(), run.ID, "")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if status != nil {
		t.Fatalf("status = %+v, want nil after poll exhaustion", status)
	}
	if got.State != entity.RunStateFailed || got.FailureCategory != entity.FailureTimeout {
		t.Fatalf("run = %s/%s, want failed/timeout", got.State, got.FailureCategory)
	}
	if env.provider.pollCalls != 2 {
		t.Fatalf("poll calls = %d, want bounded at 2", env.provider.pollCalls)
	}
}

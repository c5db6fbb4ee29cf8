package retry

import (
	"testing"

	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
)

func testPolicy() *Policy {
	return NewPolicy(&config.RetryConfig{MaxRetries: 3, LowScoreThreshold: 60})
}

func failedRun(retryCount int) *entity.Run {
	return &entity.Run{
		ID:         "run-1",
		TenantID:   "tenant-1",
		PlanID:     "plan-1",
		State:      entity.RunStateFailed,
		Tier:       entity.TierPreview,
		Seed:       42,
		RetryCount: retryCount,
	}
}

func TestEvaluate_TransientErrorRetriesSameSeed(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		errMsg   string
		category entity.FailureCategory
	}{
		{"provider returned 503 service unavailable", entity.FailureAPIError},
		{"connection refused", entity.FailureAPIError},
		{"request timed out after 30s", entity.FailureTimeout},
		{"context deadline exceeded", entity.FailureTimeout},
	}
	for _, tt := range tests {
		d := p.Evaluate(failedRun(0), tt.errMsg, nil)
		if !d.ShouldRetry || !d.FreeRetry {
			t.Fatalf("%q: expected free retry, got %+v", tt.errMsg, d)
		}
		if d.Category != tt.category {
			t.Fatalf("%q: expected category %s, got %s", tt.errMsg, tt.category, d.Category)
		}
		if d.Strategy != entity.RetrySameSeed || d.Seed != 42 {
			t.Fatalf("%q: transient failures must reuse the seed, got %+v", tt.errMsg, d)
		}
	}
}

func TestEvaluate_MaxRetriesWinsOverEverything(t *testing.T) {
	p := testPolicy()

	d := p.Evaluate(failedRun(3), "connection refused", &QualityEvidence{EligibleForFreeRetry: true})
	if d.ShouldRetry {
		t.Fatalf("expected no retry at limit, got %+v", d)
	}
	if !d.MaxRetriesReached {
		t.Fatalf("expected max_retries_reached flag")
	}
}

func TestEvaluate_QualityDefectStrategies(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		name       string
		retryCount int
		evidence   QualityEvidence
		strategy   entity.RetryStrategy
		seed       int64
	}{
		{
			name:       "motion defects always reseed",
			retryCount: 0,
			evidence:   QualityEvidence{OverallScore: 75, EligibleForFreeRetry: true, MotionDefects: true},
			strategy:   entity.RetryNewSeed,
			seed:       1042,
		},
		{
			name:       "low score first retry reseeds",
			retryCount: 0,
			evidence:   QualityEvidence{OverallScore: 45, EligibleForFreeRetry: true},
			strategy:   entity.RetryNewSeed,
			seed:       1042,
		},
		{
			name:       "low score second retry revises instruction",
			retryCount: 1,
			evidence:   QualityEvidence{OverallScore: 45, EligibleForFreeRetry: true},
			strategy:   entity.RetryRevisedInstruction,
			seed:       2042,
		},
		{
			name:       "near-pass defect keeps seed",
			retryCount: 1,
			evidence:   QualityEvidence{OverallScore: 68, EligibleForFreeRetry: true},
			strategy:   entity.RetrySameSeed,
			seed:       42,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Evaluate(failedRun(tt.retryCount), "", &tt.evidence)
			if !d.ShouldRetry || !d.FreeRetry {
				t.Fatalf("expected free quality retry, got %+v", d)
			}
			if d.Category != entity.FailureQuality {
				t.Fatalf("expected quality category, got %s", d.Category)
			}
			if d.Strategy != tt.strategy {
				t.Fatalf("expected strategy %s, got %s", tt.strategy, d.Strategy)
			}
			if d.Seed != tt.seed {
				t.Fatalf("expected seed %d, got %d", tt.seed, d.Seed)
			}
		})
	}
}

func TestEvaluate_IneligibleFailureDoesNotRetry(t *testing.T) {
	p := testPolicy()

	d := p.Evaluate(failedRun(0), "content policy violation", nil)
	if d.ShouldRetry {
		t.Fatalf("unknown failures must not auto-retry, got %+v", d)
	}
	d = p.Evaluate(failedRun(0), "", &QualityEvidence{OverallScore: 30, EligibleForFreeRetry: false})
	if d.ShouldRetry {
		t.Fatalf("ineligible quality failures must not auto-retry, got %+v", d)
	}
}

func TestEvaluate_IsPure(t *testing.T) {
	p := testPolicy()
	run := failedRun(1)
	evidence := &QualityEvidence{OverallScore: 45, EligibleForFreeRetry: true}

	first := p.Evaluate(run, "", evidence)
	second := p.Evaluate(run, "", evidence)
	if first != second {
		t.Fatalf("same inputs must produce the same decision: %+v vs %+v", first, second)
	}
	if run.RetryCount != 1 || run.Seed != 42 {
		t.Fatalf("evaluate must not mutate the run")
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		msg  string
		want entity.FailureCategory
	}{
		{"upstream timeout", entity.FailureTimeout},
		{"network unreachable", entity.FailureAPIError},
		{"HTTP 502 bad gateway", entity.FailureAPIError},
		{"failed to fetch asset", entity.FailureAPIError},
		{"something odd", entity.FailureUnknown},
		{"", entity.FailureUnknown},
	}
	for _, tt := range tests {
		if got := CategorizeError(tt.msg); got != tt.want {
			t.Fatalf("CategorizeError(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
}

func TestDeriveSeed(t *testing.T) {
	if got := DeriveSeed(42, 0); got != 1042 {
		t.Fatalf("DeriveSeed(42, 0) = %d, want 1042", got)
	}
	if got := DeriveSeed(42, 2); got != 3042 {
		t.Fatalf("DeriveSeed(42, 2) = %d, want 3042", got)
	}
	if DeriveSeed(42, 1) != DeriveSeed(42, 1) {
		t.Fatalf("derived seed must be deterministic")
	}
}

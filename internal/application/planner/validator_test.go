package planner

import (
	"context"
	"strings"
	"testing"

	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
)

func testValidator() *Validator {
	return NewValidator(&config.ConstraintsConfig{
		MaxOverlayWords: 6,
		MaxVoiceOverWPS: 2.5,
		MinBeatDuration: 4.0,
		MaxBeatDuration: 8.0,
		MinAssets:       3,
		ForbiddenClaims: []string{"cure", "guaranteed", "miracle", "100%", "scientifically proven"},
	})
}

// validPlan 构造一个满足全部约束的四节拍计划
func validPlan() *entity.Plan {
	beats := entity.Beats{}
	types := []entity.BeatType{entity.BeatTypeHook, entity.BeatTypeDemo, entity.BeatTypeProof, entity.BeatTypeCTA}
	for i, t := range types {
		start := float64(i) * 5
		beats = append(beats, entity.Beat{
			Type:        t,
			StartSec:    start,
			EndSec:      start + 5,
			DurationSec: 5,
			Instruction: "show the product in use",
			AssetRefs:   []string{"asset-1"},
		})
	}
	return &entity.Plan{
		ID:                "plan-1",
		TenantID:          "tenant-1",
		Title:             "test plan",
		Status:            entity.PlanStatusDraft,
		AspectRatio:       entity.AspectRatio9x16,
		TargetDurationSec: 20,
		Beats:             beats,
		SelectedAssets:    []string{"asset-1", "asset-2", "asset-3"},
	}
}

func TestValidate_ValidPlanPasses(t *testing.T) {
	v := testValidator()
	plan := validPlan()

	res := v.Validate(context.Background(), plan)
	if !res.Valid {
		t.Fatalf("expected valid, got errors: %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", res.Warnings)
	}
	if plan.Status != entity.PlanStatusValidated {
		t.Fatalf("expected status validated, got %s", plan.Status)
	}
	if plan.ValidatedAt == nil {
		t.Fatalf("expected validated_at to be set")
	}
}

func TestValidate_StructuralFailureStopsEarly(t *testing.T) {
	v := testValidator()

	tests := []struct {
		name   string
		mutate func(*entity.Plan)
		substr string
	}{
		{
			name:   "missing beat",
			mutate: func(p *entity.Plan) { p.Beats = p.Beats[:3] },
			substr: "exactly 4 beats",
		},
		{
			name: "duplicate beat type",
			mutate: func(p *entity.Plan) {
				p.Beats[1].Type = entity.BeatTypeHook
			},
			substr: "exactly one",
		},
		{
			name: "unknown beat type",
			mutate: func(p *entity.Plan) {
				p.Beats[2].Type = "outro"
			},
			substr: "unknown type",
		},
		{
			name: "empty instruction",
			mutate: func(p *entity.Plan) {
				p.Beats[0].Instruction = ""
			},
			substr: "no generation instruction",
		},
		{
			name: "too many asset refs",
			mutate: func(p *entity.Plan) {
				p.Beats[0].AssetRefs = []string{"a", "b", "c", "d"}
			},
			substr: "1-3 assets",
		},
		{
			name:   "bad aspect ratio",
			mutate: func(p *entity.Plan) { p.AspectRatio = "4:3" },
			substr: "unsupported aspect ratio",
		},
		{
			name: "invalid overlay position",
			mutate: func(p *entity.Plan) {
				p.Beats[0].Overlays = []entity.Overlay{{Text: "hi", Position: "center", Start: 0, End: 2}}
			},
			substr: "invalid position",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := validPlan()
			tt.mutate(plan)
			res := v.Validate(context.Background(), plan)
			if res.Valid {
				t.Fatalf("expected invalid")
			}
			if res.Plan != nil {
				t.Fatalf("structural failure must not return a normalized plan")
			}
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tt.substr) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected error containing %q, got %v", tt.substr, res.Errors)
			}
			if plan.Status == entity.PlanStatusValidated {
				t.Fatalf("invalid plan must not be marked validated")
			}
		})
	}
}

func TestValidate_ReordersBeatsAndShiftsWindows(t *testing.T) {
	v := testValidator()
	plan := validPlan()

	// demo 排在 hook 前且占据时间轴开头，重排后时间窗和字幕窗随节拍平移
	plan.Beats[0], plan.Beats[1] = plan.Beats[1], plan.Beats[0]
	plan.Beats[0].StartSec, plan.Beats[0].EndSec = 0, 5
	plan.Beats[1].StartSec, plan.Beats[1].EndSec = 5, 10
	plan.Beats[0].Overlays = []entity.Overlay{
		{Text: "see it work", Position: entity.PositionBottomCenter, Start: 1, End: 4},
	}

	res := v.Validate(context.Background(), plan)
	if !res.Valid {
		t.Fatalf("expected valid after reorder, got errors: %v", res.Errors)
	}
	if plan.Beats[0].Type != entity.BeatTypeHook || plan.Beats[1].Type != entity.BeatTypeDemo {
		t.Fatalf("beats not reordered: %s, %s", plan.Beats[0].Type, plan.Beats[1].Type)
	}
	demo := plan.BeatByType(entity.BeatTypeDemo)
	if demo.StartSec != 5 || demo.EndSec != 10 {
		t.Fatalf("demo window not shifted, got [%.1f, %.1f]", demo.StartSec, demo.EndSec)
	}
	ov := demo.Overlays[0]
	if ov.Start != 6 || ov.End != 9 {
		t.Fatalf("overlay window not shifted with beat, got [%.1f, %.1f]", ov.Start, ov.End)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "reordered") {
		t.Fatalf("expected reorder warning, got %v", res.Warnings)
	}
}

func TestValidate_TruncatesLongOverlay(t *testing.T) {
	v := testValidator()
	plan := validPlan()
	plan.Beats[0].Overlays = []entity.Overlay{
		{Text: "one two three four five six seven eight", Position: entity.PositionTopCenter, Start: 0, End: 3},
	}

	res := v.Validate(context.Background(), plan)
	if !res.Valid {
		t.Fatalf("expected valid, got errors: %v", res.Errors)
	}
	got := plan.Beats[0].Overlays[0].Text
	if got != "one two three four five six..." {
		t.Fatalf("unexpected truncated text: %q", got)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "truncated") {
		t.Fatalf("expected truncation warning, got %v", res.Warnings)
	}
}

func TestValidate_TruncatesFastVoiceOver(t *testing.T) {
	v := testValidator()
	plan := validPlan()
	// 5 秒窗口内 20 词，4 wps 超出 2.5 上限，应截断到 12 词
	script := strings.TrimSpace(strings.Repeat("word ", 20))
	plan.Beats[1].VoiceOver = &entity.VoiceOver{Script: script}

	res := v.Validate(context.Background(), plan)
	if !res.Valid {
		t.Fatalf("expected valid, got errors: %v", res.Errors)
	}
	got := plan.Beats[1].VoiceOver.WordCount()
	if got != 12 {
		t.Fatalf("expected 12 words after truncation, got %d", got)
	}
}

func TestValidate_SoftensForbiddenClaims(t *testing.T) {
	v := testValidator()
	plan := validPlan()
	plan.Beats[0].Instruction = "Guaranteed results, a true Miracle product"
	plan.Beats[3].Overlays = []entity.Overlay{
		{Text: "100% satisfaction", Position: entity.PositionBottomCenter, Start: 15.5, End: 19},
	}

	res := v.Validate(context.Background(), plan)
	if !res.Valid {
		t.Fatalf("expected valid, got errors: %v", res.Errors)
	}
	if got := plan.Beats[0].Instruction; got != "designed to results, a true remarkable product" {
		t.Fatalf("hook instruction not softened: %q", got)
	}
	if got := plan.Beats[3].Overlays[0].Text; got != "highly satisfaction" {
		t.Fatalf("overlay not softened: %q", got)
	}
	warned := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "forbidden claims softened") &&
			strings.Contains(w, "guaranteed") && strings.Contains(w, "miracle") && strings.Contains(w, "100%") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected single combined softening warning, got %v", res.Warnings)
	}
}

func TestValidate_TimingErrors(t *testing.T) {
	v := testValidator()

	tests := []struct {
		name   string
		mutate func(*entity.Plan)
		substr string
	}{
		{
			name: "window duration mismatch",
			mutate: func(p *entity.Plan) {
				p.Beats[1].EndSec = p.Beats[1].StartSec + 6
				p.Beats[2].StartSec = p.Beats[1].EndSec
				p.Beats[2].EndSec = p.Beats[2].StartSec + 5
				p.Beats[3].StartSec = p.Beats[2].EndSec
				p.Beats[3].EndSec = p.Beats[3].StartSec + 5
				p.TargetDurationSec = 21
			},
			substr: "does not match declared duration",
		},
		{
			name: "gap between beats",
			mutate: func(p *entity.Plan) {
				p.Beats[2].StartSec += 0.5
				p.Beats[2].EndSec += 0.5
				p.Beats[2].DurationSec = 5
				p.Beats[3].StartSec = p.Beats[2].EndSec
				p.Beats[3].EndSec = p.Beats[3].StartSec + 5
				p.TargetDurationSec = 20.5
			},
			substr: "gap between",
		},
		{
			name: "overlay outside beat",
			mutate: func(p *entity.Plan) {
				p.Beats[0].Overlays = []entity.Overlay{
					{Text: "late", Position: entity.PositionTopCenter, Start: 4, End: 7},
				}
			},
			substr: "outside beat window",
		},
		{
			name: "beat duration out of range",
			mutate: func(p *entity.Plan) {
				p.Beats[0].DurationSec = 2
				p.Beats[0].EndSec = 2
				p.Beats[1].StartSec, p.Beats[1].EndSec = 2, 7
				p.Beats[2].StartSec, p.Beats[2].EndSec = 7, 12
				p.Beats[3].StartSec, p.Beats[3].EndSec = 12, 17
				p.TargetDurationSec = 17
			},
			substr: "outside allowed range",
		},
		{
			name: "last beat misses target duration",
			mutate: func(p *entity.Plan) {
				p.TargetDurationSec = 22
			},
			substr: "target duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := validPlan()
			tt.mutate(plan)
			res := v.Validate(context.Background(), plan)
			if res.Valid {
				t.Fatalf("expected timing error")
			}
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tt.substr) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected error containing %q, got %v", tt.substr, res.Errors)
			}
		})
	}
}

func TestValidate_TimingEpsilonTolerated(t *testing.T) {
	v := testValidator()
	plan := validPlan()
	// 0.1 秒内的偏差不应报错
	plan.Beats[3].EndSec = 20.05
	plan.Beats[3].DurationSec = 5.05

	res := v.Validate(context.Background(), plan)
	if !res.Valid {
		t.Fatalf("expected epsilon tolerance, got errors: %v", res.Errors)
	}
}

func TestValidate_AssetChecks(t *testing.T) {
	v := testValidator()

	t.Run("too few selected assets", func(t *testing.T) {
		plan := validPlan()
		plan.SelectedAssets = []string{"asset-1"}
		res := v.Validate(context.Background(), plan)
		if res.Valid {
			t.Fatalf("expected asset error")
		}
	})

	t.Run("unselected reference is a warning", func(t *testing.T) {
		plan := validPlan()
		plan.Beats[2].AssetRefs = []string{"asset-99"}
		res := v.Validate(context.Background(), plan)
		if !res.Valid {
			t.Fatalf("expected valid, got errors: %v", res.Errors)
		}
		found := false
		for _, w := range res.Warnings {
			if strings.Contains(w, "outside the selected set") {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected unselected-reference warning, got %v", res.Warnings)
		}
	})
}

func TestValidate_Idempotent(t *testing.T) {
	v := testValidator()
	plan := validPlan()
	plan.Beats[0], plan.Beats[1] = plan.Beats[1], plan.Beats[0]
	plan.Beats[0].Overlays = []entity.Overlay{
		{Text: "one two three four five six seven", Position: entity.PositionTopCenter, Start: 6, End: 9},
	}

	first := v.Validate(context.Background(), plan)
	if !first.Valid {
		t.Fatalf("first pass invalid: %v", first.Errors)
	}
	second := v.Validate(context.Background(), plan)
	if !second.Valid {
		t.Fatalf("second pass invalid: %v", second.Errors)
	}
	if len(second.Warnings) != 0 {
		t.Fatalf("second pass must not produce new warnings, got %v", second.Warnings)
	}
}

func TestQuickValidate_WarnsWithoutMutating(t *testing.T) {
	v := testValidator()
	plan := validPlan()
	longText := "one two three four five six seven eight"
	plan.Beats[0].Instruction = "guaranteed glow"
	plan.Beats[1].Overlays = []entity.Overlay{
		{Text: longText, Position: entity.PositionTopCenter, Start: 6, End: 9},
	}
	plan.Beats[0], plan.Beats[2] = plan.Beats[2], plan.Beats[0]

	res := v.QuickValidate(context.Background(), plan)
	if !res.Valid {
		t.Fatalf("quick validate never blocks, got invalid")
	}
	if len(res.Warnings) < 3 {
		t.Fatalf("expected order, overlay and claim warnings, got %v", res.Warnings)
	}
	if plan.Beats[1].Overlays[0].Text != longText {
		t.Fatalf("quick validate must not mutate the plan")
	}
	if plan.Status != entity.PlanStatusDraft {
		t.Fatalf("quick validate must not change plan status")
	}
}

func TestSoftenClaims(t *testing.T) {
	terms := []string{"cure", "100%", "scientifically proven"}

	tests := []struct {
		in       string
		want     string
		softened int
	}{
		{"a cure for dull skin", "a support for dull skin", 1},
		{"secure shipping", "secure shipping", 0},
		{"100% Scientifically Proven", "highly research informed", 2},
		{"no claims here", "no claims here", 0},
	}
	for _, tt := range tests {
		got, softened := softenClaims(tt.in, terms)
		if got != tt.want {
			t.Fatalf("softenClaims(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if len(softened) != tt.softened {
			t.Fatalf("softenClaims(%q) softened %d terms, want %d", tt.in, len(softened), tt.softened)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	if got := truncateWords("a b c", 6); got != "a b c" {
		t.Fatalf("short text must be untouched, got %q", got)
	}
	if got := truncateWords("a b c d", 2); got != "a b..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

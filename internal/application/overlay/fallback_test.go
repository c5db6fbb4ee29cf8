package overlay

import (
	"context"
	"errors"
	"testing"

	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
)

func testOverlayConfig() *config.OverlayConfig {
	return &config.OverlayConfig{
		SafeMarginRatio:     0.05,
		BaseFontRatio:       0.045,
		CriticalFontScale:   1.25,
		BoxOpacity:          0.4,
		CriticalBoxOpacity:  0.85,
		FadeDuration:        0.25,
		CriticalHookWindow:  1.0,
	}
}

type fakeRenderer struct {
	specs   []BurnSpec
	logoURL string
	output  string
	err     error
}

func (r *fakeRenderer) Render(ctx context.Context, inputURL string, specs []BurnSpec, logoURL string) (string, error) {
	r.specs = specs
	r.logoURL = logoURL
	if r.err != nil {
		return "", r.err
	}
	return r.output, nil
}

func overlayPlan(overlays ...entity.Overlay) *entity.Plan {
	return &entity.Plan{
		ID:          "plan-1",
		AspectRatio: entity.AspectRatio9x16,
		Beats: entity.Beats{
			{Type: entity.BeatTypeHook, StartSec: 0, EndSec: 5, DurationSec: 5, Overlays: overlays},
			{Type: entity.BeatTypeDemo, StartSec: 5, EndSec: 10, DurationSec: 5},
			{Type: entity.BeatTypeProof, StartSec: 10, EndSec: 15, DurationSec: 5},
			{Type: entity.BeatTypeCTA, StartSec: 15, EndSec: 20, DurationSec: 5},
		},
	}
}

func TestIsCritical(t *testing.T) {
	tests := []struct {
		name string
		ov   entity.Overlay
		want bool
	}{
		{"explicit flag", entity.Overlay{Text: "plain words", Critical: true, Start: 10}, true},
		{"price", entity.Overlay{Text: "only $19.99", Start: 10}, true},
		{"percentage", entity.Overlay{Text: "save twenty %", Start: 10}, true},
		{"digits", entity.Overlay{Text: "3 shades available", Start: 10}, true},
		{"cta keyword", entity.Overlay{Text: "shop the drop", Start: 10}, true},
		{"keyword inside word ignored", entity.Overlay{Text: "together forever", Start: 10}, false},
		{"first hook second", entity.Overlay{Text: "soft matte finish", Start: 0.5}, true},
		{"after hook window", entity.Overlay{Text: "soft matte finish", Start: 1.5}, false},
		{"plain text", entity.Overlay{Text: "gentle on skin", Start: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCritical(tt.ov, 0, 1.0); got != tt.want {
				t.Fatalf("IsCritical(%q) = %v, want %v", tt.ov.Text, got, tt.want)
			}
		})
	}
}

func TestAnchor_NineGrid(t *testing.T) {
	const width, height, margin = 1080, 1920, 54

	tests := []struct {
		pos            entity.OverlayPosition
		x, y           int
		alignH, alignV string
	}{
		{entity.PositionTopLeft, margin, margin, "left", "top"},
		{entity.PositionTopCenter, 540, margin, "center", "top"},
		{entity.PositionMiddleRight, width - margin, 960, "right", "middle"},
		{entity.PositionMiddleCenter, 540, 960, "center", "middle"},
		{entity.PositionBottomCenter, 540, height - margin, "center", "bottom"},
		{entity.PositionBottomRight, width - margin, height - margin, "right", "bottom"},
	}
	for _, tt := range tests {
		x, y, alignH, alignV := anchor(tt.pos, width, height, margin)
		if x != tt.x || y != tt.y || alignH != tt.alignH || alignV != tt.alignV {
			t.Fatalf("anchor(%s) = (%d, %d, %s, %s), want (%d, %d, %s, %s)",
				tt.pos, x, y, alignH, alignV, tt.x, tt.y, tt.alignH, tt.alignV)
		}
	}
}

func TestBurnIn_BuildsSpecsForAllOverlays(t *testing.T) {
	renderer := &fakeRenderer{output: "https://cdn.example.com/burned.mp4"}
	f := NewFallback(renderer, testOverlayConfig())

	plan := overlayPlan(
		entity.Overlay{Text: "only $9", Position: entity.PositionTopCenter, Start: 0.2, End: 2},
		entity.Overlay{Text: "gentle on skin", Position: entity.PositionBottomLeft, Start: 2, End: 4.5},
	)
	plan.Beats[3].Overlays = []entity.Overlay{
		{Text: "tap to shop", Position: entity.PositionBottomCenter, Start: 16, End: 19},
	}

	out, err := f.BurnIn(context.Background(), "https://cdn.example.com/raw.mp4", plan, "https://cdn.example.com/logo.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != renderer.output {
		t.Fatalf("expected renderer output URL, got %q", out)
	}
	if len(renderer.specs) != 3 {
		t.Fatalf("expected 3 burn specs, got %d", len(renderer.specs))
	}
	if renderer.logoURL != "https://cdn.example.com/logo.png" {
		t.Fatalf("logo URL not forwarded")
	}

	// 1080 宽、基准字号 48：关键字幕放大到 60 并使用高不透明度背景框
	price := renderer.specs[0]
	if price.FontSize != 60 {
		t.Fatalf("critical overlay font size = %d, want 60", price.FontSize)
	}
	if price.BoxOpacity != 0.85 {
		t.Fatalf("critical overlay box opacity = %.2f, want 0.85", price.BoxOpacity)
	}
	plain := renderer.specs[1]
	if plain.FontSize != 48 {
		t.Fatalf("plain overlay font size = %d, want 48", plain.FontSize)
	}
	if plain.BoxOpacity != 0.4 {
		t.Fatalf("plain overlay box opacity = %.2f, want 0.4", plain.BoxOpacity)
	}
	if plain.FadeIn != 0.25 || plain.FadeOut != 0.25 {
		t.Fatalf("fade not applied: %+v", plain)
	}
}

func TestBurnIn_NoOverlaysKeepsArtifact(t *testing.T) {
	renderer := &fakeRenderer{output: "unused"}
	f := NewFallback(renderer, testOverlayConfig())

	out, err := f.BurnIn(context.Background(), "https://cdn.example.com/raw.mp4", overlayPlan(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "https://cdn.example.com/raw.mp4" {
		t.Fatalf("expected original artifact URL, got %q", out)
	}
	if renderer.specs != nil {
		t.Fatalf("renderer must not be called without overlays")
	}
}

func TestBurnIn_RendererFailurePropagates(t *testing.T) {
	renderer := &fakeRenderer{err: errors.New("transcode failed")}
	f := NewFallback(renderer, testOverlayConfig())

	plan := overlayPlan(entity.Overlay{Text: "only $9", Position: entity.PositionTopCenter, Start: 0.2, End: 2})
	_, err := f.BurnIn(context.Background(), "https://cdn.example.com/raw.mp4", plan, "")
	if err == nil {
		t.Fatalf("expected error from renderer")
	}
}

func TestBuildSpec_StyleOverrides(t *testing.T) {
	f := NewFallback(&fakeRenderer{}, testOverlayConfig())

	ov := entity.Overlay{
		Text:     "gentle on skin",
		Position: entity.PositionMiddleCenter,
		Start:    10,
		End:      12,
		Style:    &entity.OverlayStyle{Color: "#FF2D75", FontScale: 2, BoxOpacity: 0.6},
	}
	spec := f.buildSpec(ov, 1080, 1920, 0)
	if spec.Color != "#FF2D75" {
		t.Fatalf("style color not applied: %q", spec.Color)
	}
	if spec.FontSize != 96 {
		t.Fatalf("font scale not applied, got %d", spec.FontSize)
	}
	if spec.BoxOpacity != 0.6 {
		t.Fatalf("non-critical style opacity not applied, got %.2f", spec.BoxOpacity)
	}
}

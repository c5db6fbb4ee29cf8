// Package overlay 实现叠加字幕的烧录降级
// 当质量门禁发现屏幕文字缺失或不可读时，把字幕永久合成进视频像素，
// 不再依赖供应商的原生文字渲染
package overlay

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
	"adcraft-api/pkg/metrics"
)

var tracer = otel.Tracer("overlay")

// BurnSpec 发送给烧录服务的单条字幕指令
type BurnSpec struct {
	Text   string  `json:"text"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	AlignH string  `json:"align_h"`
	AlignV string  `json:"align_v"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	// FontSize 像素字号，关键字幕放大
	FontSize   int     `json:"font_size"`
	FontFamily string  `json:"font_family,omitempty"`
	Color      string  `json:"color"`
	BoxOpacity float64 `json:"box_opacity"`
	Shadow     bool    `json:"shadow"`
	FadeIn     float64 `json:"fade_in,omitempty"`
	FadeOut    float64 `json:"fade_out,omitempty"`
}

// Renderer 烧录/转码服务抽象，输入产物地址和字幕指令，返回新产物地址
type Renderer interface {
	Render(ctx context.Context, inputURL string, specs []BurnSpec, logoURL string) (string, error)
}

// Fallback 叠加字幕烧录降级
type Fallback struct {
	renderer Renderer
	cfg      *config.OverlayConfig
}

// NewFallback 创建烧录降级器
func NewFallback(renderer Renderer, cfg *config.OverlayConfig) *Fallback {
	return &Fallback{renderer: renderer, cfg: cfg}
}

// BurnIn 把计划中的全部叠加字幕烧录进产物
// 成功返回新产物地址；失败返回错误，调用方保留原产物而不是丢弃
func (f *Fallback) BurnIn(ctx context.Context, artifactURL string, plan *entity.Plan, logoURL string) (string, error) {
	ctx, span := tracer.Start(ctx, "overlay.Fallback.BurnIn")
	defer span.End()

	width, height := plan.AspectRatio.Dimensions()
	hookStart := hookStartSec(plan)

	var specs []BurnSpec
	for _, beat := range plan.Beats {
		for _, ov := range beat.Overlays {
			specs = append(specs, f.buildSpec(ov, width, height, hookStart))
		}
	}
	if len(specs) == 0 {
		return artifactURL, nil
	}

	outputURL, err := f.renderer.Render(ctx, artifactURL, specs, logoURL)
	if err != nil {
		metrics.OverlayBurnInTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("burn in %d overlays: %w", len(specs), err)
	}
	metrics.OverlayBurnInTotal.WithLabelValues("succeeded").Inc()
	return outputURL, nil
}

// buildSpec 构造单条字幕的烧录指令
// 关键字幕（价格、数字、行动号召、hook 首秒）用更大字号和更不透明的背景框
func (f *Fallback) buildSpec(ov entity.Overlay, width, height int, hookStart float64) BurnSpec {
	critical := IsCritical(ov, hookStart, f.cfg.CriticalHookWindow)

	fontSize := int(f.cfg.BaseFontRatio * float64(width))
	boxOpacity := f.cfg.BoxOpacity
	if critical {
		fontSize = int(float64(fontSize) * f.cfg.CriticalFontScale)
		boxOpacity = f.cfg.CriticalBoxOpacity
	}
	if ov.Style != nil && ov.Style.FontScale > 0 {
		fontSize = int(float64(fontSize) * ov.Style.FontScale)
	}

	color := "#FFFFFF"
	fontFamily := ""
	if ov.Style != nil {
		if ov.Style.Color != "" {
			color = ov.Style.Color
		}
		fontFamily = ov.Style.FontFamily
		if !critical && ov.Style.BoxOpacity > 0 {
			boxOpacity = ov.Style.BoxOpacity
		}
	}

	x, y, alignH, alignV := anchor(ov.Position, width, height, int(f.cfg.SafeMarginRatio*float64(width)))

	return BurnSpec{
		Text:       ov.Text,
		X:          x,
		Y:          y,
		AlignH:     alignH,
		AlignV:     alignV,
		Start:      ov.Start,
		End:        ov.End,
		FontSize:   fontSize,
		FontFamily: fontFamily,
		Color:      color,
		BoxOpacity: boxOpacity,
		Shadow:     true,
		FadeIn:     f.cfg.FadeDuration,
		FadeOut:    f.cfg.FadeDuration,
	}
}

// anchor 计算九宫格位置的锚点坐标和对齐方式
// 安全边距与画面宽度成比例，避免字幕贴边
func anchor(pos entity.OverlayPosition, width, height, margin int) (x, y int, alignH, alignV string) {
	switch pos {
	case entity.PositionTopLeft, entity.PositionMiddleLeft, entity.PositionBottomLeft:
		x, alignH = margin, "left"
	case entity.PositionTopRight, entity.PositionMiddleRight, entity.PositionBottomRight:
		x, alignH = width-margin, "right"
	default:
		x, alignH = width/2, "center"
	}
	switch pos {
	case entity.PositionTopLeft, entity.PositionTopCenter, entity.PositionTopRight:
		y, alignV = margin, "top"
	case entity.PositionBottomLeft, entity.PositionBottomCenter, entity.PositionBottomRight:
		y, alignV = height-margin, "bottom"
	default:
		y, alignV = height/2, "middle"
	}
	return x, y, alignH, alignV
}

// hookStartSec 返回 hook 节拍的起始时间
func hookStartSec(plan *entity.Plan) float64 {
	if beat := plan.BeatByType(entity.BeatTypeHook); beat != nil {
		return beat.StartSec
	}
	return 0
}

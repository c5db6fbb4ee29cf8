// Package planner 提供内容计划的校验、规范化与管理能力
package planner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"

	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
	"adcraft-api/pkg/metrics"
)

var tracer = otel.Tracer("planner")

// timingEpsilon 时间校验允许的误差（秒）
const timingEpsilon = 0.1

// maxOverlaysPerBeat 单个节拍最多允许的叠加字幕数
const maxOverlaysPerBeat = 3

// maxAssetRefsPerBeat 单个节拍最多引用的素材数
const maxAssetRefsPerBeat = 3

// Result 校验结果
// 规范化后的计划随结果一并返回，结构性失败时 Plan 为 nil
type Result struct {
	Valid    bool         `json:"valid"`
	Errors   []string     `json:"errors,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
	Plan     *entity.Plan `json:"plan,omitempty"`
}

// Validator 内容计划校验器
type Validator struct {
	defaults entity.Constraints
}

// NewValidator 创建校验器
func NewValidator(cfg *config.ConstraintsConfig) *Validator {
	return &Validator{
		defaults: entity.Constraints{
			MaxOverlayWords: cfg.MaxOverlayWords,
			MaxVoiceOverWPS: cfg.MaxVoiceOverWPS,
			MinBeatDuration: cfg.MinBeatDuration,
			MaxBeatDuration: cfg.MaxBeatDuration,
			MinAssets:       cfg.MinAssets,
			ForbiddenClaims: cfg.ForbiddenClaims,
		},
	}
}

// Validate 校验并规范化计划
// 结构性失败立即终止；可自动修复的问题修复后记为警告；时间和素材问题记为硬错误。
// 对已规范化的计划重复调用不产生新的警告，也不改变计划内容。
func (v *Validator) Validate(ctx context.Context, plan *entity.Plan) *Result {
	ctx, span := tracer.Start(ctx, "planner.Validator.Validate")
	defer span.End()
	_ = ctx

	res := &Result{}
	cons := entity.Constraints(plan.Constraints).Merge(v.defaults)

	// 结构校验失败是终止性的，不做任何修复
	if errs := v.structural(plan); len(errs) > 0 {
		res.Errors = errs
		metrics.ValidationTotal.WithLabelValues("full", "invalid").Inc()
		return res
	}

	v.normalizeBeatOrder(plan, res)
	v.normalizeOverlays(plan, cons, res)
	v.normalizeVoiceOvers(plan, cons, res)
	v.softenForbiddenClaims(plan, cons, res)
	v.checkTiming(plan, cons, res)
	v.checkAssets(plan, cons, res)

	res.Valid = len(res.Errors) == 0
	res.Plan = plan
	if res.Valid {
		plan.MarkValidated(res.Warnings)
		metrics.ValidationTotal.WithLabelValues("full", "valid").Inc()
	} else {
		metrics.ValidationTotal.WithLabelValues("full", "invalid").Inc()
	}
	return res
}

// QuickValidate 轻量校验，执行顺序、字幕词数、配音语速、违禁词四项检查，不修改计划
// 用于提交前的界面即时反馈
func (v *Validator) QuickValidate(ctx context.Context, plan *entity.Plan) *Result {
	_, span := tracer.Start(ctx, "planner.Validator.QuickValidate")
	defer span.End()

	res := &Result{}
	cons := entity.Constraints(plan.Constraints).Merge(v.defaults)

	if !beatsInOrder(plan.Beats) {
		res.Warnings = append(res.Warnings, "beats are not in hook, demo, proof, cta order")
	}
	for _, beat := range plan.Beats {
		for _, ov := range beat.Overlays {
			if ov.WordCount() > cons.MaxOverlayWords {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("overlay %q exceeds %d words", ov.Text, cons.MaxOverlayWords))
			}
		}
		if beat.VoiceOver != nil {
			start, end := beat.VoiceOver.Window(beat)
			if dur := end - start; dur > 0 {
				wps := float64(beat.VoiceOver.WordCount()) / dur
				if wps > cons.MaxVoiceOverWPS {
					res.Warnings = append(res.Warnings,
						fmt.Sprintf("%s voice-over pace %.2f wps exceeds %.2f", beat.Type, wps, cons.MaxVoiceOverWPS))
				}
			}
		}
		var texts []string
		if beat.Type == entity.BeatTypeHook {
			texts = append(texts, beat.Instruction)
		}
		for _, ov := range beat.Overlays {
			texts = append(texts, ov.Text)
		}
		if beat.VoiceOver != nil {
			texts = append(texts, beat.VoiceOver.Script)
		}
		for _, text := range texts {
			if found := findClaims(text, cons.ForbiddenClaims); len(found) > 0 {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("%s beat contains forbidden claims: %s", beat.Type, strings.Join(found, ", ")))
			}
		}
	}
	res.Valid = true
	res.Plan = plan
	metrics.ValidationTotal.WithLabelValues("quick", "valid").Inc()
	return res
}

// structural 结构校验：类型、枚举、必填字段
func (v *Validator) structural(plan *entity.Plan) []string {
	var errs []string

	if !plan.AspectRatio.IsValid() {
		errs = append(errs, fmt.Sprintf("unsupported aspect ratio %q", plan.AspectRatio))
	}
	if plan.TargetDurationSec <= 0 {
		errs = append(errs, "target duration must be positive")
	}
	if n := len(plan.Beats); n != len(entity.RequiredBeatOrder) {
		errs = append(errs, fmt.Sprintf("plan must have exactly %d beats, got %d", len(entity.RequiredBeatOrder), n))
		return errs
	}

	seen := map[entity.BeatType]int{}
	for i, beat := range plan.Beats {
		if entity.BeatRank(beat.Type) < 0 {
			errs = append(errs, fmt.Sprintf("beat %d has unknown type %q", i, beat.Type))
			continue
		}
		seen[beat.Type]++
		if beat.Instruction == "" {
			errs = append(errs, fmt.Sprintf("%s beat has no generation instruction", beat.Type))
		}
		if len(beat.Instruction) > entity.MaxInstructionLen {
			errs = append(errs, fmt.Sprintf("%s beat instruction exceeds %d characters", beat.Type, entity.MaxInstructionLen))
		}
		if beat.DurationSec <= 0 {
			errs = append(errs, fmt.Sprintf("%s beat duration must be positive", beat.Type))
		}
		if len(beat.Overlays) > maxOverlaysPerBeat {
			errs = append(errs, fmt.Sprintf("%s beat has %d overlays, max %d", beat.Type, len(beat.Overlays), maxOverlaysPerBeat))
		}
		if len(beat.AssetRefs) < 1 || len(beat.AssetRefs) > maxAssetRefsPerBeat {
			errs = append(errs, fmt.Sprintf("%s beat must reference 1-%d assets, got %d", beat.Type, maxAssetRefsPerBeat, len(beat.AssetRefs)))
		}
		for _, ov := range beat.Overlays {
			if ov.Text == "" {
				errs = append(errs, fmt.Sprintf("%s beat has an overlay with empty text", beat.Type))
			}
			if !ov.Position.IsValid() {
				errs = append(errs, fmt.Sprintf("%s beat overlay has invalid position %q", beat.Type, ov.Position))
			}
		}
	}
	for _, t := range entity.RequiredBeatOrder {
		if c := seen[t]; c != 1 {
			errs = append(errs, fmt.Sprintf("plan must have exactly one %s beat, got %d", t, c))
		}
	}
	return errs
}

// normalizeBeatOrder 将节拍按规范顺序稳定重排，顺序改变时平移节拍内的时间窗
func (v *Validator) normalizeBeatOrder(plan *entity.Plan, res *Result) {
	if beatsInOrder(plan.Beats) {
		return
	}
	sort.SliceStable(plan.Beats, func(i, j int) bool {
		return entity.BeatRank(plan.Beats[i].Type) < entity.BeatRank(plan.Beats[j].Type)
	})

	// 重排后按时长重新排布时间窗，节拍内的字幕和配音窗随节拍平移
	cursor := 0.0
	for i := range plan.Beats {
		beat := &plan.Beats[i]
		shift := cursor - beat.StartSec
		beat.StartSec += shift
		beat.EndSec += shift
		for j := range beat.Overlays {
			beat.Overlays[j].Start += shift
			beat.Overlays[j].End += shift
		}
		if vo := beat.VoiceOver; vo != nil && vo.End > vo.Start {
			vo.Start += shift
			vo.End += shift
		}
		cursor = beat.StartSec + beat.DurationSec
	}
	res.Warnings = append(res.Warnings, "beats reordered to hook, demo, proof, cta")
}

// normalizeOverlays 截断超出词数上限的叠加字幕
func (v *Validator) normalizeOverlays(plan *entity.Plan, cons entity.Constraints, res *Result) {
	for i := range plan.Beats {
		for j := range plan.Beats[i].Overlays {
			ov := &plan.Beats[i].Overlays[j]
			if ov.WordCount() <= cons.MaxOverlayWords {
				continue
			}
			original := ov.Text
			ov.Text = truncateWords(ov.Text, cons.MaxOverlayWords)
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("overlay truncated from %q to %q", original, ov.Text))
		}
	}
}

// normalizeVoiceOvers 截断超出语速上限的配音脚本
func (v *Validator) normalizeVoiceOvers(plan *entity.Plan, cons entity.Constraints, res *Result) {
	for i := range plan.Beats {
		beat := &plan.Beats[i]
		if beat.VoiceOver == nil {
			continue
		}
		start, end := beat.VoiceOver.Window(*beat)
		dur := end - start
		if dur <= 0 {
			continue
		}
		words := beat.VoiceOver.WordCount()
		if float64(words)/dur <= cons.MaxVoiceOverWPS {
			continue
		}
		maxWords := int(math.Floor(dur * cons.MaxVoiceOverWPS))
		fields := strings.Fields(beat.VoiceOver.Script)
		if maxWords < len(fields) {
			beat.VoiceOver.Script = strings.Join(fields[:maxWords], " ")
		}
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%s voice-over truncated to %d words to stay under %.2f words per second", beat.Type, maxWords, cons.MaxVoiceOverWPS))
	}
}

// softenForbiddenClaims 软化 hook 文案、所有字幕和配音中的违禁宣称词
// 所有被替换的词合并为一条警告
func (v *Validator) softenForbiddenClaims(plan *entity.Plan, cons entity.Constraints, res *Result) {
	if len(cons.ForbiddenClaims) == 0 {
		return
	}
	seen := map[string]bool{}
	var all []string
	record := func(terms []string) {
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				all = append(all, t)
			}
		}
	}

	for i := range plan.Beats {
		beat := &plan.Beats[i]
		if beat.Type == entity.BeatTypeHook {
			text, terms := softenClaims(beat.Instruction, cons.ForbiddenClaims)
			beat.Instruction = text
			record(terms)
		}
		for j := range beat.Overlays {
			text, terms := softenClaims(beat.Overlays[j].Text, cons.ForbiddenClaims)
			beat.Overlays[j].Text = text
			record(terms)
		}
		if beat.VoiceOver != nil {
			text, terms := softenClaims(beat.VoiceOver.Script, cons.ForbiddenClaims)
			beat.VoiceOver.Script = text
			record(terms)
		}
	}
	if len(all) > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("forbidden claims softened: %s", strings.Join(all, ", ")))
	}
}

// checkTiming 时间一致性校验，全部为硬错误，不做自动修复
func (v *Validator) checkTiming(plan *entity.Plan, cons entity.Constraints, res *Result) {
	addErr := func(format string, args ...interface{}) {
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}

	for i := range plan.Beats {
		beat := &plan.Beats[i]
		if beat.StartSec < 0 {
			addErr("%s beat starts before zero", beat.Type)
		}
		if beat.DurationSec < cons.MinBeatDuration-timingEpsilon || beat.DurationSec > cons.MaxBeatDuration+timingEpsilon {
			addErr("%s beat duration %.2fs outside allowed range [%.1f, %.1f]",
				beat.Type, beat.DurationSec, cons.MinBeatDuration, cons.MaxBeatDuration)
		}
		if math.Abs(beat.Window()-beat.DurationSec) > timingEpsilon {
			addErr("%s beat window %.2fs does not match declared duration %.2fs", beat.Type, beat.Window(), beat.DurationSec)
		}
		if i > 0 {
			prev := plan.Beats[i-1]
			if math.Abs(beat.StartSec-prev.EndSec) > timingEpsilon {
				addErr("gap between %s and %s beats (%.2fs to %.2fs)", prev.Type, beat.Type, prev.EndSec, beat.StartSec)
			}
		}
		for _, ov := range beat.Overlays {
			if ov.End <= ov.Start {
				addErr("%s beat overlay %q has an empty time window", beat.Type, ov.Text)
				continue
			}
			if ov.Start < beat.StartSec-timingEpsilon || ov.End > beat.EndSec+timingEpsilon {
				addErr("%s beat overlay %q window [%.2f, %.2f] outside beat window [%.2f, %.2f]",
					beat.Type, ov.Text, ov.Start, ov.End, beat.StartSec, beat.EndSec)
			}
		}
		if vo := beat.VoiceOver; vo != nil && vo.End > vo.Start {
			if vo.Start < beat.StartSec-timingEpsilon || vo.End > beat.EndSec+timingEpsilon {
				addErr("%s beat voice-over window [%.2f, %.2f] outside beat window [%.2f, %.2f]",
					beat.Type, vo.Start, vo.End, beat.StartSec, beat.EndSec)
			}
		}
	}

	if last := plan.Beats[len(plan.Beats)-1]; math.Abs(last.EndSec-plan.TargetDurationSec) > timingEpsilon {
		addErr("last beat ends at %.2fs but target duration is %.2fs", last.EndSec, plan.TargetDurationSec)
	}
}

// checkAssets 素材数量校验
func (v *Validator) checkAssets(plan *entity.Plan, cons entity.Constraints, res *Result) {
	if len(plan.SelectedAssets) < cons.MinAssets {
		res.Errors = append(res.Errors,
			fmt.Sprintf("plan needs at least %d selected assets, got %d", cons.MinAssets, len(plan.SelectedAssets)))
		return
	}
	selected := map[string]bool{}
	for _, id := range plan.SelectedAssets {
		selected[id] = true
	}
	for _, beat := range plan.Beats {
		for _, ref := range beat.AssetRefs {
			if !selected[ref] {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("%s beat references asset %s outside the selected set", beat.Type, ref))
			}
		}
	}
}

// beatsInOrder 检查节拍是否已按规范顺序排列
func beatsInOrder(beats []entity.Beat) bool {
	for i := 1; i < len(beats); i++ {
		if entity.BeatRank(beats[i-1].Type) > entity.BeatRank(beats[i].Type) {
			return false
		}
	}
	return true
}

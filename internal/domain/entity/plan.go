// Package entity 定义领域实体
package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PlanStatus 内容计划状态
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "draft"
	PlanStatusValidated PlanStatus = "validated"
	PlanStatusRendering PlanStatus = "rendering"
	PlanStatusReady     PlanStatus = "ready"
	PlanStatusErrored   PlanStatus = "errored"
)

// AspectRatio 视频画幅比例
type AspectRatio string

const (
	AspectRatio9x16 AspectRatio = "9:16"
	AspectRatio1x1  AspectRatio = "1:1"
	AspectRatio16x9 AspectRatio = "16:9"
)

// IsValid 检查画幅比例是否受支持
func (a AspectRatio) IsValid() bool {
	switch a {
	case AspectRatio9x16, AspectRatio1x1, AspectRatio16x9:
		return true
	}
	return false
}

// Dimensions 返回画幅对应的像素宽高（以 1080 为短边基准）
func (a AspectRatio) Dimensions() (width, height int) {
	switch a {
	case AspectRatio9x16:
		return 1080, 1920
	case AspectRatio16x9:
		return 1920, 1080
	default:
		return 1080, 1080
	}
}

// BeatType 叙事节拍类型
type BeatType string

const (
	BeatTypeHook  BeatType = "hook"
	BeatTypeDemo  BeatType = "demo"
	BeatTypeProof BeatType = "proof"
	BeatTypeCTA   BeatType = "cta"
)

// RequiredBeatOrder 节拍的规范顺序，计划必须恰好包含这四个节拍各一次
var RequiredBeatOrder = []BeatType{BeatTypeHook, BeatTypeDemo, BeatTypeProof, BeatTypeCTA}

// BeatRank 返回节拍在规范顺序中的序号，未知类型返回 -1
func BeatRank(t BeatType) int {
	for i, b := range RequiredBeatOrder {
		if b == t {
			return i
		}
	}
	return -1
}

// OverlayPosition 叠加字幕的屏幕位置
type OverlayPosition string

const (
	PositionTopLeft      OverlayPosition = "top_left"
	PositionTopCenter    OverlayPosition = "top_center"
	PositionTopRight     OverlayPosition = "top_right"
	PositionMiddleLeft   OverlayPosition = "middle_left"
	PositionMiddleCenter OverlayPosition = "middle_center"
	PositionMiddleRight  OverlayPosition = "middle_right"
	PositionBottomLeft   OverlayPosition = "bottom_left"
	PositionBottomCenter OverlayPosition = "bottom_center"
	PositionBottomRight  OverlayPosition = "bottom_right"
)

// IsValid 检查位置枚举是否合法
func (p OverlayPosition) IsValid() bool {
	switch p {
	case PositionTopLeft, PositionTopCenter, PositionTopRight,
		PositionMiddleLeft, PositionMiddleCenter, PositionMiddleRight,
		PositionBottomLeft, PositionBottomCenter, PositionBottomRight:
		return true
	}
	return false
}

// OverlayStyle 叠加字幕样式
type OverlayStyle struct {
	FontFamily string  `json:"font_family,omitempty"`
	FontScale  float64 `json:"font_scale,omitempty"`
	Color      string  `json:"color,omitempty"`
	BoxOpacity float64 `json:"box_opacity,omitempty"`
}

// Overlay 节拍内的叠加字幕
type Overlay struct {
	Text     string          `json:"text"`
	Position OverlayPosition `json:"position"`
	// Start/End 计划时间轴上的绝对秒数，必须落在所属节拍的时间窗内
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Style *OverlayStyle `json:"style,omitempty"`
	// Critical 标记关键信息字幕（价格、折扣、行动号召），烧录降级时强化展示
	Critical bool `json:"critical,omitempty"`
}

// VoiceOver 节拍配音
type VoiceOver struct {
	Script string `json:"script"`
	Voice  string `json:"voice,omitempty"`
	// Start/End 可选的配音时间窗，零值表示覆盖整个节拍
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
}

// Window 返回配音时间窗，未设置时退回节拍窗口
func (v VoiceOver) Window(beat Beat) (start, end float64) {
	if v.End > v.Start {
		return v.Start, v.End
	}
	return beat.StartSec, beat.EndSec
}

// MaxInstructionLen 生成指令的最大长度
const MaxInstructionLen = 2000

// Beat 叙事节拍
type Beat struct {
	Type BeatType `json:"type"`
	// StartSec/EndSec 计划时间轴上的绝对时间窗
	StartSec    float64    `json:"start_sec"`
	EndSec      float64    `json:"end_sec"`
	DurationSec float64    `json:"duration_sec"`
	Instruction string     `json:"instruction"`
	CameraMove  string     `json:"camera_move,omitempty"`
	Seed        int64      `json:"seed,omitempty"`
	Overlays    []Overlay  `json:"overlays,omitempty"`
	VoiceOver   *VoiceOver `json:"voice_over,omitempty"`
	// AssetRefs 引用计划已选素材的 ID（1-3 个）
	AssetRefs []string `json:"asset_refs,omitempty"`
}

// Window 返回节拍的实际时间窗长度
func (b Beat) Window() float64 {
	return b.EndSec - b.StartSec
}

// WordCount 统计叠加字幕文本的词数
func (o Overlay) WordCount() int {
	return countWords(o.Text)
}

// Brand 品牌规范
type Brand struct {
	Name           string   `json:"name"`
	ProductName    string   `json:"product_name"`
	PrimaryColor   string   `json:"primary_color,omitempty"`
	SecondaryColor string   `json:"secondary_color,omitempty"`
	Tone           string   `json:"tone,omitempty"`
	LogoAssetID    string   `json:"logo_asset_id,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
}

// Constraints 计划级业务约束
type Constraints struct {
	MaxOverlayWords int      `json:"max_overlay_words"`
	MaxVoiceOverWPS float64  `json:"max_voice_over_wps"`
	MinBeatDuration float64  `json:"min_beat_duration"`
	MaxBeatDuration float64  `json:"max_beat_duration"`
	MinAssets       int      `json:"min_assets"`
	ForbiddenClaims []string `json:"forbidden_claims,omitempty"`
}

// Merge 用默认值填充未设置的约束项
func (c Constraints) Merge(defaults Constraints) Constraints {
	if c.MaxOverlayWords <= 0 {
		c.MaxOverlayWords = defaults.MaxOverlayWords
	}
	if c.MaxVoiceOverWPS <= 0 {
		c.MaxVoiceOverWPS = defaults.MaxVoiceOverWPS
	}
	if c.MinBeatDuration <= 0 {
		c.MinBeatDuration = defaults.MinBeatDuration
	}
	if c.MaxBeatDuration <= 0 {
		c.MaxBeatDuration = defaults.MaxBeatDuration
	}
	if c.MinAssets <= 0 {
		c.MinAssets = defaults.MinAssets
	}
	if len(c.ForbiddenClaims) == 0 {
		c.ForbiddenClaims = defaults.ForbiddenClaims
	}
	return c
}

// Beats 节拍列表，以 JSONB 形式持久化
type Beats []Beat

// Value 实现 driver.Valuer
func (b Beats) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan 实现 sql.Scanner
func (b *Beats) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for Beats: %T", value)
	}
	return json.Unmarshal(data, b)
}

// BrandSpec 品牌规范，以 JSONB 形式持久化
type BrandSpec Brand

// Value 实现 driver.Valuer
func (s BrandSpec) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan 实现 sql.Scanner
func (s *BrandSpec) Scan(value interface{}) error {
	if value == nil {
		*s = BrandSpec{}
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for BrandSpec: %T", value)
	}
	return json.Unmarshal(data, s)
}

// ConstraintSpec 业务约束，以 JSONB 形式持久化
type ConstraintSpec Constraints

// Value 实现 driver.Valuer
func (s ConstraintSpec) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan 实现 sql.Scanner
func (s *ConstraintSpec) Scan(value interface{}) error {
	if value == nil {
		*s = ConstraintSpec{}
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for ConstraintSpec: %T", value)
	}
	return json.Unmarshal(data, s)
}

// Plan 竖版短视频广告的内容计划
type Plan struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	TenantID       string         `json:"tenant_id" gorm:"index"`
	Title          string         `json:"title"`
	Status         PlanStatus     `json:"status" gorm:"index"`
	AspectRatio    AspectRatio    `json:"aspect_ratio"`
	// TargetDurationSec 计划总时长，最后一个节拍的结束时间必须与其对齐
	TargetDurationSec float64     `json:"target_duration_sec"`
	// Seed 渲染执行的初始随机种子
	Seed int64 `json:"seed"`
	Brand          BrandSpec      `json:"brand" gorm:"type:jsonb"`
	Beats          Beats          `json:"beats" gorm:"type:jsonb"`
	Constraints    ConstraintSpec `json:"constraints" gorm:"type:jsonb"`
	SelectedAssets pq.StringArray `json:"selected_assets" gorm:"type:text[]"`
	// ValidationWarnings 最近一次校验产生的非阻断警告
	ValidationWarnings pq.StringArray `json:"validation_warnings,omitempty" gorm:"type:text[]"`
	ValidatedAt        *time.Time     `json:"validated_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (Plan) TableName() string {
	return "plans"
}

// NewPlan 创建草稿状态的内容计划
func NewPlan(tenantID, title string, aspectRatio AspectRatio) *Plan {
	now := time.Now()
	return &Plan{
		TenantID:    tenantID,
		Title:       title,
		Status:      PlanStatusDraft,
		AspectRatio: aspectRatio,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TotalDuration 计算计划总时长（秒）
func (p *Plan) TotalDuration() float64 {
	var total float64
	for _, b := range p.Beats {
		total += b.DurationSec
	}
	return total
}

// BeatByType 查找指定类型的节拍，不存在返回 nil
func (p *Plan) BeatByType(t BeatType) *Beat {
	for i := range p.Beats {
		if p.Beats[i].Type == t {
			return &p.Beats[i]
		}
	}
	return nil
}

// MarkValidated 标记计划通过校验
func (p *Plan) MarkValidated(warnings []string) {
	now := time.Now()
	p.Status = PlanStatusValidated
	p.ValidationWarnings = warnings
	p.ValidatedAt = &now
	p.UpdatedAt = now
}

// MarkRendering 标记计划进入渲染中
func (p *Plan) MarkRendering() {
	p.Status = PlanStatusRendering
	p.UpdatedAt = time.Now()
}

// MarkReady 标记计划产出可用
func (p *Plan) MarkReady() {
	p.Status = PlanStatusReady
	p.UpdatedAt = time.Now()
}

// MarkErrored 标记计划渲染失败
func (p *Plan) MarkErrored() {
	p.Status = PlanStatusErrored
	p.UpdatedAt = time.Now()
}

// IsValidated 检查计划是否处于可提交渲染的状态
func (p *Plan) IsValidated() bool {
	return p.Status == PlanStatusValidated || p.Status == PlanStatusReady ||
		p.Status == PlanStatusRendering
}

// IsFrozen 渲染中的计划禁止结构性修改
func (p *Plan) IsFrozen() bool {
	return p.Status == PlanStatusRendering
}

// SwapHook 替换 hook 节拍后计划回到草稿状态，需要重新校验
func (p *Plan) SwapHook(beat Beat) error {
	if p.IsFrozen() {
		return fmt.Errorf("plan %s is rendering and cannot be modified", p.ID)
	}
	if beat.Type != BeatTypeHook {
		return fmt.Errorf("swap requires a hook beat, got %s", beat.Type)
	}
	for i := range p.Beats {
		if p.Beats[i].Type == BeatTypeHook {
			p.Beats[i] = beat
			p.Status = PlanStatusDraft
			p.ValidatedAt = nil
			p.ValidationWarnings = nil
			p.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("plan %s has no hook beat", p.ID)
}

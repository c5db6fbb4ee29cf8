package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CheckType 质量检查维度
type CheckType string

const (
	CheckProductPresence  CheckType = "product_presence"
	CheckTextLegibility   CheckType = "text_legibility"
	CheckColorConsistency CheckType = "color_consistency"
	CheckOverlayPresence  CheckType = "overlay_presence"
)

// CheckResult 单个维度的检查结果
type CheckResult struct {
	Type   CheckType `json:"type"`
	Score  float64   `json:"score"`
	Passed bool      `json:"passed"`
	Detail string    `json:"detail,omitempty"`
}

// CheckResults 检查结果列表，以 JSONB 形式持久化
type CheckResults []CheckResult

// Value 实现 driver.Valuer
func (c CheckResults) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan 实现 sql.Scanner
func (c *CheckResults) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for CheckResults: %T", value)
	}
	return json.Unmarshal(data, c)
}

// QualityValidation 一次渲染产物的质量门禁结果
type QualityValidation struct {
	ID           string       `json:"id" gorm:"primaryKey"`
	RunID        string       `json:"run_id" gorm:"index"`
	TenantID     string       `json:"tenant_id" gorm:"index"`
	OverallScore float64      `json:"overall_score"`
	Passed       bool         `json:"passed"`
	Checks       CheckResults `json:"checks" gorm:"type:jsonb"`
	// Recommendation 未通过时给出的可执行改进建议
	Recommendation string `json:"recommendation,omitempty"`
	// EligibleForFreeRetry 失败原因是否属于可免费重试的质量缺陷
	EligibleForFreeRetry bool `json:"eligible_for_free_retry"`
	// MotionDefects 视觉服务报告的运动伪影（闪烁、扭曲）
	MotionDefects bool      `json:"motion_defects"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (QualityValidation) TableName() string {
	return "quality_validations"
}

// CheckByType 查找指定维度的检查结果
func (q *QualityValidation) CheckByType(t CheckType) *CheckResult {
	for i := range q.Checks {
		if q.Checks[i].Type == t {
			return &q.Checks[i]
		}
	}
	return nil
}

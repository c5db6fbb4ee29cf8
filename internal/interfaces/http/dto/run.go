// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"adcraft-api/internal/domain/entity"
)

// SubmitRenderRequest 提交渲染请求
type SubmitRenderRequest struct {
	// Tier 渲染档位：preview 或 final
	Tier string `json:"tier" binding:"required"`
}

// RunResponse 渲染执行响应
type RunResponse struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	PlanID          string     `json:"plan_id"`
	State           string     `json:"state"`
	Tier            string     `json:"tier"`
	Engine          string     `json:"engine"`
	Seed            int64      `json:"seed"`
	ProviderJobID   string     `json:"provider_job_id,omitempty"`
	ArtifactURL     string     `json:"artifact_url,omitempty"`
	OutputURL       string     `json:"output_url,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	FailureCategory string     `json:"failure_category,omitempty"`
	RetryOfID       string     `json:"retry_of_id,omitempty"`
	RetryCount      int        `json:"retry_count"`
	RetryStrategy   string     `json:"retry_strategy,omitempty"`
	FreeRetry       bool       `json:"free_retry"`
	DurationSec     float64    `json:"duration_sec,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// ToRunResponse 转换执行实体为响应
func ToRunResponse(run *entity.Run) *RunResponse {
	return &RunResponse{
		ID:              run.ID,
		TenantID:        run.TenantID,
		PlanID:          run.PlanID,
		State:           string(run.State),
		Tier:            string(run.Tier),
		Engine:          run.Engine,
		Seed:            run.Seed,
		ProviderJobID:   run.ProviderJobID,
		ArtifactURL:     run.ArtifactURL,
		OutputURL:       run.OutputURL,
		ErrorMessage:    run.ErrorMessage,
		FailureCategory: string(run.FailureCategory),
		RetryOfID:       run.RetryOfID,
		RetryCount:      run.RetryCount,
		RetryStrategy:   string(run.RetryStrategy),
		FreeRetry:       run.FreeRetry,
		DurationSec:     run.DurationSec,
		CreatedAt:       run.CreatedAt,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
	}
}

// RunListResponse 执行列表响应
type RunListResponse struct {
	Runs []*RunResponse `json:"runs"`
}

// ToRunListResponse 转换执行列表
func ToRunListResponse(runs []*entity.Run) *RunListResponse {
	items := make([]*RunResponse, 0, len(runs))
	for _, r := range runs {
		items = append(items, ToRunResponse(r))
	}
	return &RunListResponse{Runs: items}
}

// QualityCheckResponse 单项质量检查响应
type QualityCheckResponse struct {
	Type   string  `json:"type"`
	Score  float64 `json:"score"`
	Passed bool    `json:"passed"`
	Detail string  `json:"detail,omitempty"`
}

// QualityResponse 质量门禁结果响应
type QualityResponse struct {
	RunID                string                  `json:"run_id"`
	OverallScore         float64                 `json:"overall_score"`
	Passed               bool                    `json:"passed"`
	Checks               []*QualityCheckResponse `json:"checks"`
	Recommendation       string                  `json:"recommendation,omitempty"`
	EligibleForFreeRetry bool                    `json:"eligible_for_free_retry"`
	MotionDefects        bool                    `json:"motion_defects"`
	CreatedAt            time.Time               `json:"created_at"`
}

// ToQualityResponse 转换质量门禁结果
func ToQualityResponse(v *entity.QualityValidation) *QualityResponse {
	checks := make([]*QualityCheckResponse, 0, len(v.Checks))
	for _, c := range v.Checks {
		checks = append(checks, &QualityCheckResponse{
			Type:   string(c.Type),
			Score:  c.Score,
			Passed: c.Passed,
			Detail: c.Detail,
		})
	}
	return &QualityResponse{
		RunID:                v.RunID,
		OverallScore:         v.OverallScore,
		Passed:               v.Passed,
		Checks:               checks,
		Recommendation:       v.Recommendation,
		EligibleForFreeRetry: v.EligibleForFreeRetry,
		MotionDefects:        v.MotionDefects,
		CreatedAt:            v.CreatedAt,
	}
}

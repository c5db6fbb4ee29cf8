// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"adcraft-api/internal/application/planner"
	"adcraft-api/internal/domain/entity"
)

// CreatePlanRequest 创建计划请求
type CreatePlanRequest struct {
	Title             string              `json:"title" binding:"required"`
	AspectRatio       string              `json:"aspect_ratio" binding:"required"`
	TargetDurationSec float64             `json:"target_duration_sec" binding:"required,gt=0"`
	Seed              int64               `json:"seed"`
	Brand             entity.Brand        `json:"brand"`
	Beats             []entity.Beat       `json:"beats" binding:"required"`
	Constraints       *entity.Constraints `json:"constraints"`
	SelectedAssets    []string            `json:"selected_assets"`
}

// ToPlanEntity 转换为计划实体
func (r *CreatePlanRequest) ToPlanEntity(tenantID string) *entity.Plan {
	plan := entity.NewPlan(tenantID, r.Title, entity.AspectRatio(r.AspectRatio))
	plan.TargetDurationSec = r.TargetDurationSec
	plan.Seed = r.Seed
	plan.Brand = entity.BrandSpec(r.Brand)
	plan.Beats = entity.Beats(r.Beats)
	plan.SelectedAssets = r.SelectedAssets
	if r.Constraints != nil {
		plan.Constraints = entity.ConstraintSpec(*r.Constraints)
	}
	return plan
}

// UpdatePlanRequest 更新计划请求，未提供的字段保持原值
type UpdatePlanRequest struct {
	Title             *string             `json:"title"`
	AspectRatio       *string             `json:"aspect_ratio"`
	TargetDurationSec *float64            `json:"target_duration_sec"`
	Seed              *int64              `json:"seed"`
	Brand             *entity.Brand       `json:"brand"`
	Beats             []entity.Beat       `json:"beats"`
	Constraints       *entity.Constraints `json:"constraints"`
	SelectedAssets    []string            `json:"selected_assets"`
}

// ApplyToPlan 应用更新到计划实体
func (r *UpdatePlanRequest) ApplyToPlan(plan *entity.Plan) {
	if r.Title != nil {
		plan.Title = *r.Title
	}
	if r.AspectRatio != nil {
		plan.AspectRatio = entity.AspectRatio(*r.AspectRatio)
	}
	if r.TargetDurationSec != nil {
		plan.TargetDurationSec = *r.TargetDurationSec
	}
	if r.Seed != nil {
		plan.Seed = *r.Seed
	}
	if r.Brand != nil {
		plan.Brand = entity.BrandSpec(*r.Brand)
	}
	if r.Beats != nil {
		plan.Beats = entity.Beats(r.Beats)
	}
	if r.Constraints != nil {
		plan.Constraints = entity.ConstraintSpec(*r.Constraints)
	}
	if r.SelectedAssets != nil {
		plan.SelectedAssets = r.SelectedAssets
	}
}

// SwapHookRequest 替换开场钩子请求
type SwapHookRequest struct {
	Beat entity.Beat `json:"beat" binding:"required"`
}

// PlanResponse 计划响应
type PlanResponse struct {
	ID                 string            `json:"id"`
	TenantID           string            `json:"tenant_id"`
	Title              string            `json:"title"`
	Status             string            `json:"status"`
	AspectRatio        string            `json:"aspect_ratio"`
	TargetDurationSec  float64           `json:"target_duration_sec"`
	Seed               int64             `json:"seed"`
	Brand              entity.Brand      `json:"brand"`
	Beats              []entity.Beat     `json:"beats"`
	Constraints        entity.Constraints `json:"constraints"`
	SelectedAssets     []string          `json:"selected_assets"`
	ValidationWarnings []string          `json:"validation_warnings,omitempty"`
	ValidatedAt        *time.Time        `json:"validated_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ToPlanResponse 转换计划实体为响应
func ToPlanResponse(plan *entity.Plan) *PlanResponse {
	return &PlanResponse{
		ID:                 plan.ID,
		TenantID:           plan.TenantID,
		Title:              plan.Title,
		Status:             string(plan.Status),
		AspectRatio:        string(plan.AspectRatio),
		TargetDurationSec:  plan.TargetDurationSec,
		Seed:               plan.Seed,
		Brand:              entity.Brand(plan.Brand),
		Beats:              []entity.Beat(plan.Beats),
		Constraints:        entity.Constraints(plan.Constraints),
		SelectedAssets:     plan.SelectedAssets,
		ValidationWarnings: plan.ValidationWarnings,
		ValidatedAt:        plan.ValidatedAt,
		CreatedAt:          plan.CreatedAt,
		UpdatedAt:          plan.UpdatedAt,
	}
}

// PlanListResponse 计划列表响应
type PlanListResponse struct {
	Plans []*PlanResponse `json:"plans"`
}

// ToPlanListResponse 转换计划列表
func ToPlanListResponse(plans []*entity.Plan) *PlanListResponse {
	items := make([]*PlanResponse, 0, len(plans))
	for _, p := range plans {
		items = append(items, ToPlanResponse(p))
	}
	return &PlanListResponse{Plans: items}
}

// ValidationResponse 校验结果响应
type ValidationResponse struct {
	Valid    bool          `json:"valid"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Plan     *PlanResponse `json:"plan,omitempty"`
}

// ToValidationResponse 转换校验结果
func ToValidationResponse(res *planner.Result) *ValidationResponse {
	resp := &ValidationResponse{
		Valid:    res.Valid,
		Errors:   res.Errors,
		Warnings: res.Warnings,
	}
	if res.Plan != nil {
		resp.Plan = ToPlanResponse(res.Plan)
	}
	return resp
}

// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"adcraft-api/internal/application/planner"
	"adcraft-api/internal/domain/repository"
	"adcraft-api/internal/interfaces/http/dto"
	"adcraft-api/internal/interfaces/http/middleware"
	"adcraft-api/pkg/errors"
	"adcraft-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// PlanHandler 内容计划处理器
type PlanHandler struct {
	planSvc *planner.Service
}

// NewPlanHandler 创建内容计划处理器
func NewPlanHandler(planSvc *planner.Service) *PlanHandler {
	return &PlanHandler{
		planSvc: planSvc,
	}
}

// ListPlans 获取计划列表
// @Summary 获取计划列表
// @Description 获取当前租户的内容计划列表
// @Tags Plans
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Param status query string false "计划状态过滤"
// @Success 200 {object} dto.Response[dto.PlanListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)

	pageReq := dto.BindPage(c)

	var filter *repository.PlanFilter
	if status := c.Query("status"); status != "" {
		filter = &repository.PlanFilter{Status: toPlanStatus(status)}
	}

	result, err := h.planSvc.List(ctx, tenantID, filter, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list plans", err)
		dto.InternalError(c, "failed to list plans")
		return
	}

	resp := dto.ToPlanListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// CreatePlan 创建计划
// @Summary 创建计划
// @Description 创建新的广告内容计划
// @Tags Plans
// @Accept json
// @Produce json
// @Param body body dto.CreatePlanRequest true "计划信息"
// @Success 201 {object} dto.Response[dto.PlanResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)

	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	plan, err := h.planSvc.Create(ctx, req.ToPlanEntity(tenantID))
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to create plan", err)
		dto.InternalError(c, "failed to create plan")
		return
	}

	dto.Created(c, dto.ToPlanResponse(plan))
}

// GetPlan 获取计划详情
// @Summary 获取计划详情
// @Description 获取指定内容计划的详细信息
// @Tags Plans
// @Accept json
// @Produce json
// @Param pid path string true "计划 ID"
// @Success 200 {object} dto.Response[dto.PlanResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/plans/{pid} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	ctx := c.Request.Context()
	planID := dto.BindPlanID(c)

	plan, err := h.planSvc.Get(ctx, planID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to get plan", err)
		dto.InternalError(c, "failed to get plan")
		return
	}
	if !ownedByTenant(c, plan.TenantID) {
		dto.NotFound(c, "plan not found")
		return
	}

	dto.Success(c, dto.ToPlanResponse(plan))
}

// UpdatePlan 更新计划
// @Summary 更新计划
// @Description 更新指定计划的内容，仅草稿或校验失败状态可改
// @Tags Plans
// @Accept json
// @Produce json
// @Param pid path string true "计划 ID"
// @Param body body dto.UpdatePlanRequest true "更新内容"
// @Success 200 {object} dto.Response[dto.PlanResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/plans/{pid} [put]
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	ctx := c.Request.Context()
	planID := dto.BindPlanID(c)

	var req dto.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	plan, err := h.planSvc.Get(ctx, planID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to get plan", err)
		dto.InternalError(c, "failed to get plan")
		return
	}
	if !ownedByTenant(c, plan.TenantID) {
		dto.NotFound(c, "plan not found")
		return
	}

	req.ApplyToPlan(plan)

	updated, err := h.planSvc.Update(ctx, plan)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to update plan", err)
		dto.InternalError(c, "failed to update plan")
		return
	}

	dto.Success(c, dto.ToPlanResponse(updated))
}

// DeletePlan 删除计划
// @Summary 删除计划
// @Description 删除指定内容计划
// @Tags Plans
// @Produce json
// @Param pid path string true "计划 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/plans/{pid} [delete]
func (h *PlanHandler) DeletePlan(c *gin.Context) {
	ctx := c.Request.Context()
	planID := dto.BindPlanID(c)

	plan, err := h.planSvc.Get(ctx, planID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to get plan", err)
		dto.InternalError(c, "failed to get plan")
		return
	}
	if !ownedByTenant(c, plan.TenantID) {
		dto.NotFound(c, "plan not found")
		return
	}

	if err := h.planSvc.Delete(ctx, planID); err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to delete plan", err)
		dto.InternalError(c, "failed to delete plan")
		return
	}

	dto.NoContent(c)
}

// ValidatePlan 校验计划
// @Summary 校验计划
// @Description 对计划执行完整校验（含素材锚定检查），返回错误与警告
// @Tags Plans
// @Accept json
// @Produce json
// @Param pid path string true "计划 ID"
// @Success 200 {object} dto.Response[dto.ValidationResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/plans/{pid}/validate [post]
func (h *PlanHandler) ValidatePlan(c *gin.Context) {
	h.runValidation(c, h.planSvc.Validate)
}

// QuickValidatePlan 快速校验计划
// @Summary 快速校验计划
// @Description 跳过素材锚定检查的轻量校验，用于编辑器实时反馈
// @Tags Plans
// @Accept json
// @Produce json
// @Param pid path string true "计划 ID"
// @Success 200 {object} dto.Response[dto.ValidationResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/plans/{pid}/quick-validate [post]
func (h *PlanHandler) QuickValidatePlan(c *gin.Context) {
	h.runValidation(c, h.planSvc.QuickValidate)
}

// SwapHook 替换开场钩子
// @Summary 替换开场钩子
// @Description 用新的 hook 节拍替换计划开头并重新校验
// @Tags Plans
// @Accept json
// @Produce json
// @Param pid path string true "计划 ID"
// @Param body body dto.SwapHookRequest true "新钩子节拍"
// @Success 200 {object} dto.Response[dto.PlanResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/plans/{pid}/swap-hook [post]
func (h *PlanHandler) SwapHook(c *gin.Context) {
	ctx := c.Request.Context()
	planID := dto.BindPlanID(c)

	var req dto.SwapHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	existing, err := h.planSvc.Get(ctx, planID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to get plan", err)
		dto.InternalError(c, "failed to get plan")
		return
	}
	if !ownedByTenant(c, existing.TenantID) {
		dto.NotFound(c, "plan not found")
		return
	}

	plan, err := h.planSvc.SwapHook(ctx, planID, req.Beat)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to swap hook", err)
		dto.InternalError(c, "failed to swap hook")
		return
	}

	dto.Success(c, dto.ToPlanResponse(plan))
}

func (h *PlanHandler) runValidation(c *gin.Context, validate func(ctx context.Context, id string) (*planner.Result, error)) {
	ctx := c.Request.Context()
	planID := dto.BindPlanID(c)

	plan, err := h.planSvc.Get(ctx, planID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to get plan", err)
		dto.InternalError(c, "failed to get plan")
		return
	}
	if !ownedByTenant(c, plan.TenantID) {
		dto.NotFound(c, "plan not found")
		return
	}

	result, err := validate(ctx, planID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to validate plan", err)
		dto.InternalError(c, "failed to validate plan")
		return
	}

	dto.Success(c, dto.ToValidationResponse(result))
}

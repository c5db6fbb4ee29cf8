package handler

import (
	"adcraft-api/internal/application/planner"
	"adcraft-api/internal/application/render"
	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
	"adcraft-api/internal/interfaces/http/dto"
	"adcraft-api/pkg/errors"
	"adcraft-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RunHandler 渲染执行处理器
type RunHandler struct {
	planSvc    *planner.Service
	renderSvc  *render.Service
	dispatcher *render.Dispatcher
}

// NewRunHandler 创建渲染执行处理器
func NewRunHandler(planSvc *planner.Service, renderSvc *render.Service, dispatcher *render.Dispatcher) *RunHandler {
	return &RunHandler{
		planSvc:    planSvc,
		renderSvc:  renderSvc,
		dispatcher: dispatcher,
	}
}

// SubmitRender 提交渲染
// @Summary 提交渲染
// @Description 为已校验的计划创建渲染执行并入队，按档位扣除积分
// @Tags Runs
// @Accept json
// @Produce json
// @Param pid path string true "计划 ID"
// @Param body body dto.SubmitRenderRequest true "渲染参数"
// @Success 202 {object} dto.Response[dto.RunResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/plans/{pid}/renders [post]
func (h *RunHandler) SubmitRender(c *gin.Context) {
	ctx := c.Request.Context()
	planID := dto.BindPlanID(c)

	var req dto.SubmitRenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	tier := toRenderTier(req.Tier)
	if tier == "" {
		dto.BadRequest(c, "tier must be preview or final")
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

	run, err := h.dispatcher.Submit(ctx, planID, tier)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to submit render", err)
		dto.InternalError(c, "failed to submit render")
		return
	}

	dto.Accepted(c, dto.ToRunResponse(run))
}

// ListRuns 获取执行列表
// @Summary 获取执行列表
// @Description 获取指定计划的渲染执行列表
// @Tags Runs
// @Produce json
// @Param pid path string true "计划 ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Param state query string false "执行状态过滤"
// @Param tier query string false "渲染档位过滤"
// @Success 200 {object} dto.Response[dto.RunListResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/plans/{pid}/renders [get]
func (h *RunHandler) ListRuns(c *gin.Context) {
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

	pageReq := dto.BindPage(c)

	var filter *repository.RunFilter
	state, tier := toRunState(c.Query("state")), toRenderTier(c.Query("tier"))
	if state != "" || tier != "" {
		filter = &repository.RunFilter{State: state, Tier: tier}
	}

	result, err := h.renderSvc.ListByPlan(ctx, planID, filter, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list runs", err)
		dto.InternalError(c, "failed to list runs")
		return
	}

	resp := dto.ToRunListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// GetRun 获取执行详情
// @Summary 获取执行详情
// @Description 获取指定渲染执行的详细信息
// @Tags Runs
// @Produce json
// @Param rid path string true "执行 ID"
// @Success 200 {object} dto.Response[dto.RunResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/runs/{rid} [get]
func (h *RunHandler) GetRun(c *gin.Context) {
	run := h.fetchOwnedRun(c)
	if run == nil {
		return
	}
	dto.Success(c, dto.ToRunResponse(run))
}

// GetQuality 获取质量门禁结果
// @Summary 获取质量门禁结果
// @Description 获取指定执行最近一次质量门禁的检查明细
// @Tags Runs
// @Produce json
// @Param rid path string true "执行 ID"
// @Success 200 {object} dto.Response[dto.QualityResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/runs/{rid}/quality [get]
func (h *RunHandler) GetQuality(c *gin.Context) {
	ctx := c.Request.Context()
	run := h.fetchOwnedRun(c)
	if run == nil {
		return
	}

	validation, err := h.renderSvc.Quality(ctx, run.ID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to get quality validation", err)
		dto.InternalError(c, "failed to get quality validation")
		return
	}

	dto.Success(c, dto.ToQualityResponse(validation))
}

// Reshoot 手动重拍
// @Summary 手动重拍
// @Description 基于失败执行发起新种子重拍，正常计费
// @Tags Runs
// @Accept json
// @Produce json
// @Param rid path string true "执行 ID"
// @Success 202 {object} dto.Response[dto.RunResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/runs/{rid}/reshoot [post]
func (h *RunHandler) Reshoot(c *gin.Context) {
	ctx := c.Request.Context()
	run := h.fetchOwnedRun(c)
	if run == nil {
		return
	}

	retryRun, err := h.renderSvc.Reshoot(ctx, run.ID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to reshoot run", err)
		dto.InternalError(c, "failed to reshoot run")
		return
	}

	dto.Accepted(c, dto.ToRunResponse(retryRun))
}

// fetchOwnedRun 按路径参数获取执行并做租户归属检查，失败时已写入响应
func (h *RunHandler) fetchOwnedRun(c *gin.Context) *entity.Run {
	ctx := c.Request.Context()
	runID := dto.BindRunID(c)

	run, err := h.renderSvc.Get(ctx, runID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return nil
		}
		logger.Error(ctx, "failed to get run", err)
		dto.InternalError(c, "failed to get run")
		return nil
	}
	if !ownedByTenant(c, run.TenantID) {
		dto.NotFound(c, "run not found")
		return nil
	}
	return run
}

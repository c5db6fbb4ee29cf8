package handler

import (
	"adcraft-api/internal/application/render"
	"adcraft-api/internal/interfaces/http/dto"
	"adcraft-api/pkg/errors"
	"adcraft-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler 渲染供应商回调处理器
// 回调入口不走租户鉴权，身份由 runId 反查确定
type WebhookHandler struct {
	completion *render.CompletionService
}

// NewWebhookHandler 创建回调处理器
func NewWebhookHandler(completion *render.CompletionService) *WebhookHandler {
	return &WebhookHandler{
		completion: completion,
	}
}

// ProviderCallback 处理供应商完成回调
// 已识别的 runId 一律返回 200（包括失败载荷和终态后的重复回调），
// 供应商只在非 2xx 时重发；未知 runId 返回 404，缺失 runId 返回 400
// @Summary 渲染完成回调
// @Description 接收渲染供应商的作业完成通知
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param body body dto.ProviderCallbackRequest true "回调载荷"
// @Success 200 {object} dto.Response[dto.CallbackAckResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/webhooks/provider [post]
func (h *WebhookHandler) ProviderCallback(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ProviderCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid callback payload: "+err.Error())
		return
	}
	if req.RunID == "" {
		dto.BadRequest(c, "runId is required")
		return
	}

	result, err := h.completion.HandleCallback(ctx, req.RunID, req.Succeeded(), req.ArtifactURL, req.Error)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to handle provider callback", err, "run_id", req.RunID)
		dto.InternalError(c, "failed to handle callback")
		return
	}

	dto.Success(c, &dto.CallbackAckResponse{
		RunID:     result.Run.ID,
		State:     string(result.Run.State),
		Duplicate: result.Duplicate,
		Message:   result.Message,
	})
}

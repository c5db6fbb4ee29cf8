package handler

import (
	"adcraft-api/internal/application/credit"
	"adcraft-api/internal/domain/repository"
	"adcraft-api/internal/interfaces/http/dto"
	"adcraft-api/internal/interfaces/http/middleware"
	"adcraft-api/pkg/errors"
	"adcraft-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CreditHandler 积分处理器
type CreditHandler struct {
	creditSvc *credit.Service
}

// NewCreditHandler 创建积分处理器
func NewCreditHandler(creditSvc *credit.Service) *CreditHandler {
	return &CreditHandler{
		creditSvc: creditSvc,
	}
}

// GetBalance 查询积分余额
// @Summary 查询积分余额
// @Description 查询当前租户的积分余额
// @Tags Credits
// @Produce json
// @Success 200 {object} dto.Response[dto.BalanceResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/credits/balance [get]
func (h *CreditHandler) GetBalance(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)

	balance, err := h.creditSvc.Balance(ctx, tenantID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to get credit balance", err)
		dto.InternalError(c, "failed to get credit balance")
		return
	}

	dto.Success(c, &dto.BalanceResponse{TenantID: tenantID, Balance: balance})
}

// ListLedger 查询积分流水
// @Summary 查询积分流水
// @Description 查询当前租户的积分流水，按时间倒序
// @Tags Credits
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.LedgerListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/credits/ledger [get]
func (h *CreditHandler) ListLedger(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)

	pageReq := dto.BindPage(c)

	result, err := h.creditSvc.History(ctx, tenantID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list credit ledger", err)
		dto.InternalError(c, "failed to list credit ledger")
		return
	}

	resp := dto.ToLedgerListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// GrantCredits 充值积分
// @Summary 充值积分
// @Description 为当前租户发放积分
// @Tags Credits
// @Accept json
// @Produce json
// @Param body body dto.GrantCreditsRequest true "发放参数"
// @Success 200 {object} dto.Response[dto.BalanceResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/credits/grant [post]
func (h *CreditHandler) GrantCredits(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)

	var req dto.GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.creditSvc.Grant(ctx, tenantID, req.Amount, req.Reason); err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to grant credits", err)
		dto.InternalError(c, "failed to grant credits")
		return
	}

	balance, err := h.creditSvc.Balance(ctx, tenantID)
	if err != nil {
		logger.Error(ctx, "failed to get credit balance", err)
		dto.InternalError(c, "failed to get credit balance")
		return
	}

	dto.Success(c, &dto.BalanceResponse{TenantID: tenantID, Balance: balance})
}

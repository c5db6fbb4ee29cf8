package handler

import (
	"adcraft-api/internal/application/quality"
	"adcraft-api/internal/domain/repository"
	"adcraft-api/internal/interfaces/http/dto"
	"adcraft-api/internal/interfaces/http/middleware"
	"adcraft-api/pkg/errors"
	"adcraft-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AssetHandler 素材处理器
type AssetHandler struct {
	assetRepo repository.AssetRepository
	indexer   *quality.Indexer
}

// NewAssetHandler 创建素材处理器
func NewAssetHandler(assetRepo repository.AssetRepository, indexer *quality.Indexer) *AssetHandler {
	return &AssetHandler{
		assetRepo: assetRepo,
		indexer:   indexer,
	}
}

// ListAssets 获取素材列表
// @Summary 获取素材列表
// @Description 获取当前租户的产品素材列表
// @Tags Assets
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.AssetListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/assets [get]
func (h *AssetHandler) ListAssets(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)

	pageReq := dto.BindPage(c)

	result, err := h.assetRepo.ListByTenant(ctx, tenantID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list assets", err)
		dto.InternalError(c, "failed to list assets")
		return
	}

	resp := dto.ToAssetListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// CreateAsset 登记素材
// @Summary 登记素材
// @Description 登记产品素材并异步写入向量索引
// @Tags Assets
// @Accept json
// @Produce json
// @Param body body dto.CreateAssetRequest true "素材信息"
// @Success 201 {object} dto.Response[dto.AssetResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/assets [post]
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantIDFromGin(c)

	var req dto.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	asset := req.ToAssetEntity(tenantID)
	if err := h.assetRepo.Create(ctx, asset); err != nil {
		logger.Error(ctx, "failed to create asset", err)
		dto.InternalError(c, "failed to create asset")
		return
	}

	// 索引失败不阻塞登记，素材保持 indexed=false，校验时再补偿
	if h.indexer != nil {
		if err := h.indexer.EnsureIndexed(ctx, tenantID, []string{asset.ID}); err != nil {
			logger.Warn(ctx, "failed to index asset vector",
				"asset_id", asset.ID, "error", err.Error())
		}
	}

	dto.Created(c, dto.ToAssetResponse(asset))
}

// GetAsset 获取素材详情
// @Summary 获取素材详情
// @Description 获取指定素材的详细信息
// @Tags Assets
// @Produce json
// @Param aid path string true "素材 ID"
// @Success 200 {object} dto.Response[dto.AssetResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/assets/{aid} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	ctx := c.Request.Context()
	assetID := dto.BindAssetID(c)

	asset, err := h.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, errors.AsAppError(err))
			return
		}
		logger.Error(ctx, "failed to get asset", err)
		dto.InternalError(c, "failed to get asset")
		return
	}
	if asset == nil || !ownedByTenant(c, asset.TenantID) {
		dto.NotFound(c, "asset not found")
		return
	}

	dto.Success(c, dto.ToAssetResponse(asset))
}

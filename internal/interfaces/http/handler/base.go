package handler

import (
	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
)

// ownedByTenant 检查资源归属是否匹配当前请求租户
// 跨租户访问统一按 404 处理，不泄露资源存在性
func ownedByTenant(c *gin.Context, resourceTenantID string) bool {
	tenantID := middleware.GetTenantIDFromGin(c)
	return tenantID != "" && tenantID == resourceTenantID
}

// toPlanStatus 解析状态过滤参数，非法值按空过滤处理
func toPlanStatus(s string) entity.PlanStatus {
	switch status := entity.PlanStatus(s); status {
	case entity.PlanStatusDraft, entity.PlanStatusValidated, entity.PlanStatusRendering,
		entity.PlanStatusReady, entity.PlanStatusErrored:
		return status
	default:
		return ""
	}
}

// toRunState 解析执行状态过滤参数
func toRunState(s string) entity.RunState {
	switch state := entity.RunState(s); state {
	case entity.RunStateQueued, entity.RunStateRunning, entity.RunStateSucceeded, entity.RunStateFailed:
		return state
	default:
		return ""
	}
}

// toRenderTier 解析渲染档位过滤参数
func toRenderTier(s string) entity.RenderTier {
	if t := entity.RenderTier(s); t.IsValid() {
		return t
	}
	return ""
}

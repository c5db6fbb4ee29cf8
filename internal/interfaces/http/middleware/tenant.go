// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"

	"adcraft-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TenantContextKey 租户上下文 Key 类型
type TenantContextKey string

// TenantIDKey 租户 ID 上下文 Key
const TenantIDKey TenantContextKey = "tenant_id"

// TenantConfig 租户中间件配置
type TenantConfig struct {
	// Enabled 是否启用租户隔离
	Enabled bool
	// HeaderName 从 Header 中获取租户 ID 的字段名
	HeaderName string
	// DefaultTenantID 默认租户 ID（用于开发环境）
	DefaultTenantID string
}

// Tenant 多租户上下文中间件
// 把认证得到的租户 ID 注入 request context，供应用层与日志使用
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Tenant-ID"
	}

	return func(c *gin.Context) {
		// 优先取 Auth 中间件解析出的租户
		tenantID := c.GetString("tenant_id")

		if tenantID == "" {
			tenantID = c.GetHeader(cfg.HeaderName)
		}

		// 仅开发环境兜底
		if tenantID == "" && cfg.DefaultTenantID != "" {
			tenantID = cfg.DefaultTenantID
		}

		if tenantID != "" {
			c.Set("tenant_id", tenantID)

			ctx := context.WithValue(c.Request.Context(), TenantIDKey, tenantID)
			ctx = logger.WithContext(ctx, logger.TenantIDKey, tenantID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

// GetTenantID 从 context 中获取租户 ID
func GetTenantID(ctx context.Context) string {
	if v := ctx.Value(TenantIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetTenantIDFromGin 从 Gin Context 中获取租户 ID
func GetTenantIDFromGin(c *gin.Context) string {
	return c.GetString("tenant_id")
}

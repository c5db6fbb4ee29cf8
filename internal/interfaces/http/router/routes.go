// Package router 提供 HTTP 路由配置
package router

import (
	"adcraft-api/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册全部路由
func RegisterRoutes(
	r *Router,
	healthHandler *handler.HealthHandler,
	planHandler *handler.PlanHandler,
	runHandler *handler.RunHandler,
	assetHandler *handler.AssetHandler,
	creditHandler *handler.CreditHandler,
	webhookHandler *handler.WebhookHandler,
) {
	engine := r.Engine()

	// 系统端点
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/live", healthHandler.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := engine.Group("/api/v1")
	RegisterV1Routes(v1, planHandler, runHandler, assetHandler, creditHandler, webhookHandler)
}

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	planHandler *handler.PlanHandler,
	runHandler *handler.RunHandler,
	assetHandler *handler.AssetHandler,
	creditHandler *handler.CreditHandler,
	webhookHandler *handler.WebhookHandler,
) {
	// 内容计划
	plans := v1.Group("/plans")
	{
		plans.GET("", planHandler.ListPlans)
		plans.POST("", planHandler.CreatePlan)
		plans.GET("/:pid", planHandler.GetPlan)
		plans.PUT("/:pid", planHandler.UpdatePlan)
		plans.DELETE("/:pid", planHandler.DeletePlan)

		// 计划校验
		plans.POST("/:pid/validate", planHandler.ValidatePlan)
		plans.POST("/:pid/quick-validate", planHandler.QuickValidatePlan)
		plans.POST("/:pid/swap-hook", planHandler.SwapHook)

		// 计划下的渲染执行
		plans.POST("/:pid/renders", runHandler.SubmitRender)
		plans.GET("/:pid/renders", runHandler.ListRuns)
	}

	// 渲染执行
	runs := v1.Group("/runs")
	{
		runs.GET("/:rid", runHandler.GetRun)
		runs.GET("/:rid/quality", runHandler.GetQuality)
		runs.POST("/:rid/reshoot", runHandler.Reshoot)
	}

	// 素材管理
	assets := v1.Group("/assets")
	{
		assets.GET("", assetHandler.ListAssets)
		assets.POST("", assetHandler.CreateAsset)
		assets.GET("/:aid", assetHandler.GetAsset)
	}

	// 积分管理
	credits := v1.Group("/credits")
	{
		credits.GET("/balance", creditHandler.GetBalance)
		credits.GET("/ledger", creditHandler.ListLedger)
		credits.POST("/grant", creditHandler.GrantCredits)
	}

	// 供应商回调，免鉴权
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/provider", webhookHandler.ProviderCallback)
	}
}

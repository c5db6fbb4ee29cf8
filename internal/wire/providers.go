// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"adcraft-api/internal/alerting"
	"adcraft-api/internal/application/credit"
	"adcraft-api/internal/application/overlay"
	"adcraft-api/internal/application/planner"
	"adcraft-api/internal/application/quality"
	"adcraft-api/internal/application/render"
	"adcraft-api/internal/application/retry"
	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/repository"
	"adcraft-api/internal/infrastructure/embedding"
	"adcraft-api/internal/infrastructure/messaging"
	"adcraft-api/internal/infrastructure/persistence/milvus"
	"adcraft-api/internal/infrastructure/persistence/postgres"
	"adcraft-api/internal/infrastructure/persistence/redis"
	"adcraft-api/internal/infrastructure/provider"
	"adcraft-api/internal/infrastructure/renderer"
	"adcraft-api/internal/infrastructure/vision"
	"adcraft-api/internal/interfaces/http/handler"
	"adcraft-api/internal/interfaces/http/middleware"
	"adcraft-api/internal/interfaces/http/router"
)

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewTenantRepository,
	postgres.NewPlanRepository,
	postgres.NewRunRepository,
	postgres.NewQualityRepository,
	postgres.NewCreditRepository,
	postgres.NewAssetRepository,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.TenantRepository), new(*postgres.TenantRepository)),
	wire.Bind(new(repository.PlanRepository), new(*postgres.PlanRepository)),
	wire.Bind(new(repository.RunRepository), new(*postgres.RunRepository)),
	wire.Bind(new(repository.QualityRepository), new(*postgres.QualityRepository)),
	wire.Bind(new(repository.CreditRepository), new(*postgres.CreditRepository)),
	wire.Bind(new(repository.AssetRepository), new(*postgres.AssetRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	wire.Bind(new(credit.BalanceCache), new(*redis.Cache)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MilvusSet Milvus 提供者集合
var MilvusSet = wire.NewSet(
	ProvideMilvusClient,
	ProvideAssetVectorRepository,
	wire.Bind(new(repository.AssetVectorRepository), new(*milvus.AssetVectorRepository)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	wire.Bind(new(render.JobQueue), new(*messaging.Producer)),
	wire.Bind(new(render.AuditSink), new(*messaging.Producer)),
)

// ExternalSet 外部服务客户端集合
var ExternalSet = wire.NewSet(
	ProvideProviderClient,
	ProvideRendererClient,
	ProvideVisionClient,
	ProvideEmbeddingClient,
	wire.Bind(new(render.Provider), new(*provider.Client)),
	wire.Bind(new(overlay.Renderer), new(*renderer.Client)),
	wire.Bind(new(quality.VisionAnalyzer), new(*vision.Client)),
	wire.Bind(new(quality.ImageEmbedder), new(*embedding.Client)),
)

// ApplicationSet 应用服务集合
var ApplicationSet = wire.NewSet(
	ProvideValidator,
	ProvideRetryPolicy,
	ProvideQualityGate,
	ProvideOverlayFallback,
	ProvideAlertWindow,
	quality.NewIndexer,
	wire.Bind(new(planner.AssetIndexer), new(*quality.Indexer)),
	planner.NewService,
	credit.NewService,
	ProvideDispatcher,
	render.NewService,
	render.NewCompletionService,
)

// HandlerSet HTTP 处理器集合
var HandlerSet = wire.NewSet(
	handler.NewHealthHandler,
	handler.NewPlanHandler,
	handler.NewRunHandler,
	handler.NewAssetHandler,
	handler.NewCreditHandler,
	handler.NewWebhookHandler,
)

// Worker 渲染工作进程依赖容器
type Worker struct {
	Config      *config.Config
	RedisClient *redis.Client
	Producer    *messaging.Producer
	Dispatcher  *render.Dispatcher
	Completion  *render.CompletionService
	Reconciler  *render.Reconciler
	QualityRepo repository.QualityRepository
	RunRepo     repository.RunRepository
}

// Bootstrap 建库引导进程依赖容器
type Bootstrap struct {
	PgClient     *postgres.Client
	TenantRepo   repository.TenantRepository
	MilvusClient *milvus.Client
	VectorRepo   *milvus.AssetVectorRepository
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideMilvusClient 提供 Milvus 客户端
func ProvideMilvusClient(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideAssetVectorRepository 提供素材向量仓储
func ProvideAssetVectorRepository(client *milvus.Client, cfg *config.Config) *milvus.AssetVectorRepository {
	return milvus.NewAssetVectorRepository(client, cfg.Embedding.Dimension)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideProviderClient 提供渲染供应商客户端
func ProvideProviderClient(cfg *config.Config) *provider.Client {
	return provider.NewClient(&cfg.Provider)
}

// ProvideRendererClient 提供烧录服务客户端
func ProvideRendererClient(cfg *config.Config) *renderer.Client {
	return renderer.NewClient(&cfg.Renderer)
}

// ProvideVisionClient 提供视觉分析客户端
func ProvideVisionClient(cfg *config.Config) *vision.Client {
	return vision.NewClient(&cfg.Vision)
}

// ProvideEmbeddingClient 提供图像向量化客户端
func ProvideEmbeddingClient(cfg *config.Config) *embedding.Client {
	return embedding.NewClient(&cfg.Embedding)
}

// ProvideValidator 提供计划校验器
func ProvideValidator(cfg *config.Config) *planner.Validator {
	return planner.NewValidator(&cfg.Constraints)
}

// ProvideRetryPolicy 提供重试策略
func ProvideRetryPolicy(cfg *config.Config) *retry.Policy {
	return retry.NewPolicy(&cfg.Retry)
}

// ProvideQualityGate 提供质量门禁
func ProvideQualityGate(analyzer quality.VisionAnalyzer, vectorRepo repository.AssetVectorRepository, qualityRepo repository.QualityRepository, cfg *config.Config) *quality.Gate {
	return quality.NewGate(analyzer, vectorRepo, qualityRepo, &cfg.Quality)
}

// ProvideOverlayFallback 提供字幕烧录降级
func ProvideOverlayFallback(r overlay.Renderer, cfg *config.Config) *overlay.Fallback {
	return overlay.NewFallback(r, &cfg.Overlay)
}

// ProvideAlertWindow 提供告警滑动窗口
func ProvideAlertWindow(cfg *config.Config) *alerting.Window {
	return alerting.NewWindow(&cfg.Alerting)
}

// ProvideDispatcher 提供渲染派发器
func ProvideDispatcher(
	planRepo repository.PlanRepository,
	runRepo repository.RunRepository,
	assetRepo repository.AssetRepository,
	p render.Provider,
	queue render.JobQueue,
	creditSvc *credit.Service,
	tx repository.Transactor,
	cfg *config.Config,
) *render.Dispatcher {
	return render.NewDispatcher(planRepo, runRepo, assetRepo, p, queue, creditSvc, tx, &cfg.Provider)
}

// ProvideRouter 组装路由器并注册全部路由
func ProvideRouter(
	cfg *config.Config,
	limiter middleware.RateLimiter,
	healthHandler *handler.HealthHandler,
	planHandler *handler.PlanHandler,
	runHandler *handler.RunHandler,
	assetHandler *handler.AssetHandler,
	creditHandler *handler.CreditHandler,
	webhookHandler *handler.WebhookHandler,
) *router.Router {
	r := router.New(cfg, limiter)
	router.RegisterRoutes(r, healthHandler, planHandler, runHandler, assetHandler, creditHandler, webhookHandler)
	return r
}

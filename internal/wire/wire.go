//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"adcraft-api/internal/application/render"
	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/repository"
	"adcraft-api/internal/infrastructure/persistence/postgres"
	"adcraft-api/internal/interfaces/http/router"
)

// InitializeAPI 初始化 API 网关
func InitializeAPI(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		MilvusSet,
		MessagingSet,
		ExternalSet,
		ApplicationSet,
		HandlerSet,
		ProvideRouter,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化渲染工作进程
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		MilvusSet,
		MessagingSet,
		ExternalSet,
		ApplicationSet,
		render.NewReconciler,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeBootstrap 初始化建库引导进程
func InitializeBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, func(), error) {
	wire.Build(
		ProvidePostgresClient,
		postgres.NewTenantRepository,
		wire.Bind(new(repository.TenantRepository), new(*postgres.TenantRepository)),
		ProvideMilvusClient,
		ProvideAssetVectorRepository,
		wire.Struct(new(Bootstrap), "*"),
	)
	return nil, nil, nil
}

// Package main 系统引导入口
// 建表、创建默认租户并签发初始访问令牌、初始化向量集合
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/wire"
	"adcraft-api/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化数据层
	boot, cleanup, err := wire.InitializeBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize bootstrap: %v", err)
	}
	defer cleanup()

	// 3. 建表
	fmt.Println("Running database migrations...")
	if err := boot.PgClient.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// 4. 创建默认租户
	tenantSlug := os.Getenv("BOOTSTRAP_TENANT_SLUG")
	if tenantSlug == "" {
		tenantSlug = "default-tenant"
	}
	tenantName := os.Getenv("BOOTSTRAP_TENANT_NAME")
	if tenantName == "" {
		tenantName = "Default Tenant"
	}
	initialCredits := 1000
	if v := os.Getenv("BOOTSTRAP_TENANT_CREDITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			initialCredits = n
		}
	}

	tenant, err := boot.TenantRepo.GetBySlug(ctx, tenantSlug)
	if err != nil {
		log.Fatalf("failed to look up tenant: %v", err)
	}
	if tenant == nil {
		fmt.Printf("Creating default tenant: %s...\n", tenantSlug)
		tenant = entity.NewTenant(tenantName, tenantSlug, initialCredits)
		if err := boot.TenantRepo.Create(ctx, tenant); err != nil {
			log.Fatalf("failed to create default tenant: %v", err)
		}
		fmt.Printf("Default tenant created with ID: %s (credits: %d)\n", tenant.ID, initialCredits)
	} else {
		fmt.Printf("Default tenant already exists with ID: %s\n", tenant.ID)
	}

	// 5. 签发初始访问令牌
	jwtMgr := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer)
	pair, err := jwtMgr.GenerateTokenPair(tenant.ID, cfg.Security.JWT.Expiration, cfg.Security.JWT.RefreshExpiration)
	if err != nil {
		log.Fatalf("failed to generate token pair: %v", err)
	}
	fmt.Printf("Access token:  %s\n", pair.AccessToken)
	fmt.Printf("Refresh token: %s\n", pair.RefreshToken)

	// 6. 初始化向量集合
	fmt.Println("Ensuring vector collection...")
	if err := boot.VectorRepo.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure vector collection: %v", err)
	}

	fmt.Println("Bootstrap completed successfully.")
}

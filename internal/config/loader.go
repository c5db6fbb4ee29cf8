package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// envVarPattern 匹配 ${VAR} 或 ${VAR:default} 形式的环境变量占位符
var envVarPattern = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load 加载配置文件并返回配置对象
// 查找顺序：CONFIG_PATH 环境变量 > ./configs/config.yaml > ./config.yaml
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		candidates := []string{"configs/config.yaml", "config.yaml"}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}
	if path == "" {
		return nil, fmt.Errorf("config file not found, set CONFIG_PATH or place configs/config.yaml")
	}
	return LoadFrom(path)
}

// LoadFrom 从指定路径加载配置
func LoadFrom(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	expanded := expandEnv(string(raw))

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadConfig(strings.NewReader(expanded)); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// MustLoad 加载配置，失败则 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	return cfg
}

// expandEnv 展开配置文本中的 ${VAR} 和 ${VAR:default} 占位符
func expandEnv(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[2]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return def
	})
}

// validate 校验关键配置项
func validate(cfg *Config) error {
	if cfg.Server.HTTP.Port <= 0 || cfg.Server.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d", cfg.Server.HTTP.Port)
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if cfg.Security.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if cfg.Quality.PassScore <= 0 || cfg.Quality.PassScore > 100 {
		return fmt.Errorf("invalid quality pass score: %f", cfg.Quality.PassScore)
	}
	if cfg.Provider.Mode != "async" && cfg.Provider.Mode != "poll" {
		return fmt.Errorf("provider mode must be async or poll, got %q", cfg.Provider.Mode)
	}
	return nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "adcraft-api")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "30s")
	v.SetDefault("server.http.idle_timeout", "120s")

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 50)
	v.SetDefault("database.postgres.max_idle_conns", 10)
	v.SetDefault("database.postgres.conn_max_lifetime", "1h")
	v.SetDefault("database.postgres.conn_max_idle_time", "10m")

	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 20)
	v.SetDefault("cache.redis.min_idle_conns", 5)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	v.SetDefault("vector.milvus.port", 19530)
	v.SetDefault("vector.milvus.collection_prefix", "adcraft")
	v.SetDefault("vector.milvus.index_type", "HNSW")
	v.SetDefault("vector.milvus.metric_type", "COSINE")
	v.SetDefault("vector.milvus.hnsw_m", 16)
	v.SetDefault("vector.milvus.hnsw_ef_construction", 200)

	v.SetDefault("provider.engine", "veo-3")
	v.SetDefault("provider.mode", "async")
	v.SetDefault("provider.max_polls", 60)
	v.SetDefault("provider.poll_interval", "5s")
	v.SetDefault("provider.request_timeout", "30s")
	v.SetDefault("provider.preview_duration", 8.0)
	v.SetDefault("provider.preview_cost", 1)
	v.SetDefault("provider.final_cost", 5)

	v.SetDefault("renderer.timeout", "120s")
	v.SetDefault("vision.timeout", "60s")

	v.SetDefault("embedding.model", "clip-vit-large")
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("embedding.batch_size", 16)

	v.SetDefault("quality.pass_score", 70.0)
	v.SetDefault("quality.product_presence_min", 60.0)
	v.SetDefault("quality.text_legibility_min", 50.0)
	v.SetDefault("quality.color_consistency_min", 60.0)
	v.SetDefault("quality.overlay_confidence_min", 0.9)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.low_score_threshold", 60.0)

	v.SetDefault("constraints.max_overlay_words", 6)
	v.SetDefault("constraints.max_voice_over_wps", 2.5)
	v.SetDefault("constraints.min_beat_duration", 4.0)
	v.SetDefault("constraints.max_beat_duration", 8.0)
	v.SetDefault("constraints.min_assets", 3)
	v.SetDefault("constraints.forbidden_claims", []string{
		"cure", "cures", "guaranteed", "guarantee", "guarantees",
		"miracle", "instant", "instantly", "100%", "scientifically proven",
	})

	v.SetDefault("overlay.safe_margin_ratio", 0.05)
	v.SetDefault("overlay.base_font_ratio", 0.045)
	v.SetDefault("overlay.critical_font_scale", 1.25)
	v.SetDefault("overlay.box_opacity", 0.4)
	v.SetDefault("overlay.critical_box_opacity", 0.85)
	v.SetDefault("overlay.fade_duration", 0.25)
	v.SetDefault("overlay.critical_hook_window", 1.0)

	v.SetDefault("alerting.window", "5m")
	v.SetDefault("alerting.error_threshold", 10)

	v.SetDefault("messaging.redis_stream.max_len", 10000)
	v.SetDefault("messaging.redis_stream.consumer_group_prefix", "cg")
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 3)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "1s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "30s")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.output", "stdout")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.exporter", "otlp")
	v.SetDefault("observability.tracing.sample_rate", 0.1)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.port", 9090)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("security.jwt.issuer", "adcraft-api")
	v.SetDefault("security.jwt.expiration", "2h")
	v.SetDefault("security.jwt.refresh_expiration", "168h")
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests_per_second", 20)
	v.SetDefault("security.rate_limit.burst", 40)
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})
}

// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	Provider      ProviderConfig      `yaml:"provider" mapstructure:"provider"`
	Renderer      RendererConfig      `yaml:"renderer" mapstructure:"renderer"`
	Vision        VisionConfig        `yaml:"vision" mapstructure:"vision"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Quality       QualityConfig       `yaml:"quality" mapstructure:"quality"`
	Retry         RetryConfig         `yaml:"retry" mapstructure:"retry"`
	Constraints   ConstraintsConfig   `yaml:"constraints" mapstructure:"constraints"`
	Overlay       OverlayConfig       `yaml:"overlay" mapstructure:"overlay"`
	Alerting      AlertingConfig      `yaml:"alerting" mapstructure:"alerting"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// VectorConfig 向量数据库配置
type VectorConfig struct {
	Milvus MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	IndexType          string `yaml:"index_type" mapstructure:"index_type"`
	MetricType         string `yaml:"metric_type" mapstructure:"metric_type"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
}

// ProviderConfig 生成式视频供应商配置
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string        `yaml:"api_key" mapstructure:"api_key"`
	Engine         string        `yaml:"engine" mapstructure:"engine"`
	WebhookBaseURL string        `yaml:"webhook_base_url" mapstructure:"webhook_base_url"`
	// Mode 提交模式：async（回调驱动，立即返回作业句柄）或 poll（同步有界轮询）
	Mode            string        `yaml:"mode" mapstructure:"mode"`
	MaxPolls        int           `yaml:"max_polls" mapstructure:"max_polls"`
	PollInterval    time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	PreviewDuration float64       `yaml:"preview_duration" mapstructure:"preview_duration"`
	PreviewCost     int           `yaml:"preview_cost" mapstructure:"preview_cost"`
	FinalCost       int           `yaml:"final_cost" mapstructure:"final_cost"`
}

// RendererConfig 叠加字幕烧录服务配置
type RendererConfig struct {
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey   string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// VisionConfig 视觉分析服务配置
type VisionConfig struct {
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey   string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	Model     string `yaml:"model" mapstructure:"model"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
}

// QualityConfig 质量门禁阈值配置
type QualityConfig struct {
	PassScore            float64 `yaml:"pass_score" mapstructure:"pass_score"`
	ProductPresenceMin   float64 `yaml:"product_presence_min" mapstructure:"product_presence_min"`
	TextLegibilityMin    float64 `yaml:"text_legibility_min" mapstructure:"text_legibility_min"`
	ColorConsistencyMin  float64 `yaml:"color_consistency_min" mapstructure:"color_consistency_min"`
	OverlayConfidenceMin float64 `yaml:"overlay_confidence_min" mapstructure:"overlay_confidence_min"`
}

// RetryConfig 自动重试配置
type RetryConfig struct {
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	LowScoreThreshold float64 `yaml:"low_score_threshold" mapstructure:"low_score_threshold"`
}

// ConstraintsConfig 内容计划默认业务约束
type ConstraintsConfig struct {
	MaxOverlayWords int      `yaml:"max_overlay_words" mapstructure:"max_overlay_words"`
	MaxVoiceOverWPS float64  `yaml:"max_voice_over_wps" mapstructure:"max_voice_over_wps"`
	MinBeatDuration float64  `yaml:"min_beat_duration" mapstructure:"min_beat_duration"`
	MaxBeatDuration float64  `yaml:"max_beat_duration" mapstructure:"max_beat_duration"`
	MinAssets       int      `yaml:"min_assets" mapstructure:"min_assets"`
	ForbiddenClaims []string `yaml:"forbidden_claims" mapstructure:"forbidden_claims"`
}

// OverlayConfig 叠加字幕烧录样式配置
type OverlayConfig struct {
	SafeMarginRatio     float64 `yaml:"safe_margin_ratio" mapstructure:"safe_margin_ratio"`
	BaseFontRatio       float64 `yaml:"base_font_ratio" mapstructure:"base_font_ratio"`
	CriticalFontScale   float64 `yaml:"critical_font_scale" mapstructure:"critical_font_scale"`
	BoxOpacity          float64 `yaml:"box_opacity" mapstructure:"box_opacity"`
	CriticalBoxOpacity  float64 `yaml:"critical_box_opacity" mapstructure:"critical_box_opacity"`
	FadeDuration        float64 `yaml:"fade_duration" mapstructure:"fade_duration"`
	CriticalHookWindow  float64 `yaml:"critical_hook_window" mapstructure:"critical_hook_window"`
}

// AlertingConfig 运维告警配置
type AlertingConfig struct {
	Window         time.Duration `yaml:"window" mapstructure:"window"`
	ErrorThreshold int           `yaml:"error_threshold" mapstructure:"error_threshold"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    int    `yaml:"port" mapstructure:"port"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret            string        `yaml:"secret" mapstructure:"secret"`
	Issuer            string        `yaml:"issuer" mapstructure:"issuer"`
	Expiration        time.Duration `yaml:"expiration" mapstructure:"expiration"`
	RefreshExpiration time.Duration `yaml:"refresh_expiration" mapstructure:"refresh_expiration"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

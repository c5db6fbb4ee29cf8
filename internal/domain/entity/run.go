package entity

import (
	"time"
)

// RunState 渲染执行状态
type RunState string

const (
	RunStateQueued    RunState = "queued"
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStateFailed    RunState = "failed"
)

// IsTerminal 检查状态是否为终态
func (s RunState) IsTerminal() bool {
	return s == RunStateSucceeded || s == RunStateFailed
}

// RenderTier 渲染档位
type RenderTier string

const (
	TierPreview RenderTier = "preview"
	TierFinal   RenderTier = "final"
)

// IsValid 检查档位枚举是否合法
func (t RenderTier) IsValid() bool {
	return t == TierPreview || t == TierFinal
}

// FailureCategory 失败原因分类
type FailureCategory string

const (
	FailureAPIError FailureCategory = "api_error"
	FailureTimeout  FailureCategory = "timeout"
	FailureQuality  FailureCategory = "quality"
	FailureUnknown  FailureCategory = "unknown"
)

// RetryStrategy 自动重试策略
type RetryStrategy string

const (
	RetrySameSeed           RetryStrategy = "same_seed"
	RetryNewSeed            RetryStrategy = "new_seed"
	RetryRevisedInstruction RetryStrategy = "revised_instruction"
)

// Run 一次渲染执行
type Run struct {
	ID       string     `json:"id" gorm:"primaryKey"`
	TenantID string     `json:"tenant_id" gorm:"index"`
	PlanID   string     `json:"plan_id" gorm:"index"`
	State    RunState   `json:"state" gorm:"index"`
	Tier     RenderTier `json:"tier"`
	Engine   string     `json:"engine"`
	Seed     int64      `json:"seed"`
	// ProviderJobID 供应商侧的作业句柄，异步模式下由提交响应返回
	ProviderJobID string `json:"provider_job_id,omitempty" gorm:"index"`
	// ArtifactURL 供应商返回的原始产物地址
	ArtifactURL string `json:"artifact_url,omitempty"`
	// OutputURL 最终交付地址，叠加烧录降级后与 ArtifactURL 不同
	OutputURL       string          `json:"output_url,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	FailureCategory FailureCategory `json:"failure_category,omitempty"`
	// RetryOfID 指向被重试的上一次执行
	RetryOfID string `json:"retry_of_id,omitempty" gorm:"index"`
	// RetryCount 重试链深度，首次执行为 0
	RetryCount    int           `json:"retry_count"`
	RetryStrategy RetryStrategy `json:"retry_strategy,omitempty"`
	// FreeRetry 标记本次执行是否为免费重试（不扣积分）
	FreeRetry   bool       `json:"free_retry"`
	DurationSec float64    `json:"duration_sec"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (Run) TableName() string {
	return "runs"
}

// NewRun 创建排队状态的渲染执行
func NewRun(tenantID, planID string, tier RenderTier, engine string, seed int64) *Run {
	now := time.Now()
	return &Run{
		TenantID:  tenantID,
		PlanID:    planID,
		State:     RunStateQueued,
		Tier:      tier,
		Engine:    engine,
		Seed:      seed,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewRetryRun 基于失败执行创建重试执行
func NewRetryRun(prev *Run, strategy RetryStrategy, seed int64, free bool) *Run {
	run := NewRun(prev.TenantID, prev.PlanID, prev.Tier, prev.Engine, seed)
	run.RetryOfID = prev.ID
	run.RetryCount = prev.RetryCount + 1
	run.RetryStrategy = strategy
	run.FreeRetry = free
	return run
}

// Start 标记执行开始，已处于终态时不做任何修改
func (r *Run) Start() bool {
	if r.State != RunStateQueued {
		return false
	}
	now := time.Now()
	r.State = RunStateRunning
	r.StartedAt = &now
	r.UpdatedAt = now
	return true
}

// Succeed 标记执行成功，终态后的重复回调被忽略
func (r *Run) Succeed(artifactURL string, durationSec float64) bool {
	if r.State.IsTerminal() {
		return false
	}
	now := time.Now()
	r.State = RunStateSucceeded
	r.ArtifactURL = artifactURL
	r.OutputURL = artifactURL
	r.DurationSec = durationSec
	r.CompletedAt = &now
	r.UpdatedAt = now
	return true
}

// Fail 标记执行失败，终态后的重复回调被忽略
func (r *Run) Fail(category FailureCategory, errMsg string) bool {
	if r.State.IsTerminal() {
		return false
	}
	now := time.Now()
	r.State = RunStateFailed
	r.FailureCategory = category
	r.ErrorMessage = errMsg
	r.CompletedAt = &now
	r.UpdatedAt = now
	return true
}

// SetOutput 更新最终交付地址（叠加烧录降级后替换）
func (r *Run) SetOutput(url string) {
	r.OutputURL = url
	r.UpdatedAt = time.Now()
}

// CanRetry 检查重试链深度是否未达上限
func (r *Run) CanRetry(maxRetries int) bool {
	return r.State == RunStateFailed && r.RetryCount < maxRetries
}

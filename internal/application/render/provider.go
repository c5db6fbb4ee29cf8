// Package render 实现渲染执行的派发、回调处理与状态恢复
package render

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"

	"adcraft-api/internal/domain/entity"
)

var tracer = otel.Tracer("render")

// SubmitRequest 发送给生成式视频供应商的渲染请求
type SubmitRequest struct {
	RunID       string             `json:"run_id"`
	Engine      string             `json:"engine"`
	Seed        int64              `json:"seed"`
	Tier        entity.RenderTier  `json:"tier"`
	AspectRatio entity.AspectRatio `json:"aspect_ratio"`
	DurationSec float64            `json:"duration_sec"`
	// WithAudio 终版档位携带配音，预览档位不带
	WithAudio bool `json:"with_audio"`
	// Prompt 由计划节拍拼装的生成指令
	Prompt string `json:"prompt"`
	// AssetURLs 参考素材地址
	AssetURLs []string `json:"asset_urls,omitempty"`
	// WebhookURL 异步模式下的回调地址
	WebhookURL string `json:"webhook_url,omitempty"`
}

// SubmitResult 供应商对提交的响应
type SubmitResult struct {
	// JobID 供应商侧作业句柄，进程重启后据此恢复跟踪
	JobID string `json:"job_id"`
}

// JobStatus 供应商作业状态
type JobStatus struct {
	Done        bool    `json:"done"`
	Succeeded   bool    `json:"succeeded"`
	ArtifactURL string  `json:"artifact_url,omitempty"`
	Error       string  `json:"error,omitempty"`
	DurationSec float64 `json:"duration_sec,omitempty"`
}

// Provider 生成式视频供应商抽象
// 供应商契约可能是异步作业句柄，也可能只支持同步轮询，两种形态都要支持
type Provider interface {
	// Submit 提交渲染作业，返回作业句柄
	Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error)

	// Poll 查询作业状态
	Poll(ctx context.Context, jobID string) (*JobStatus, error)
}

// JobQueue 渲染作业队列抽象
type JobQueue interface {
	// EnqueueRender 投递渲染作业，由渲染工作进程消费
	EnqueueRender(ctx context.Context, job *QueuedJob) error
}

// QueuedJob 队列中的渲染作业
type QueuedJob struct {
	RunID    string `json:"run_id"`
	PlanID   string `json:"plan_id"`
	TenantID string `json:"tenant_id"`
	// ExtraInstruction 改写指令重试时附加的生成提示
	ExtraInstruction string `json:"extra_instruction,omitempty"`
}

// buildPrompt 把计划节拍拼装为供应商的生成指令
func buildPrompt(plan *entity.Plan, tier entity.RenderTier, extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s vertical ad for %s (%s), %s aspect ratio.\n",
		tier, plan.Brand.ProductName, plan.Brand.Name, plan.AspectRatio)
	if plan.Brand.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s.\n", plan.Brand.Tone)
	}
	if plan.Brand.PrimaryColor != "" {
		fmt.Fprintf(&b, "Brand colors: %s %s.\n", plan.Brand.PrimaryColor, plan.Brand.SecondaryColor)
	}
	for _, beat := range plan.Beats {
		fmt.Fprintf(&b, "[%s %.1fs-%.1fs] %s", beat.Type, beat.StartSec, beat.EndSec, beat.Instruction)
		if beat.CameraMove != "" {
			fmt.Fprintf(&b, " Camera: %s.", beat.CameraMove)
		}
		if tier == entity.TierFinal && beat.VoiceOver != nil {
			fmt.Fprintf(&b, " Voice-over: %q.", beat.VoiceOver.Script)
		}
		b.WriteString("\n")
	}
	if extra != "" {
		fmt.Fprintf(&b, "Revision note: %s\n", extra)
	}
	return b.String()
}

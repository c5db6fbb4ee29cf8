// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"adcraft-api/internal/application/render"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// EnqueueRender 投递渲染作业，实现渲染派发器的队列接口
func (p *Producer) EnqueueRender(ctx context.Context, job *render.QueuedJob) error {
	msg, err := NewMessage(job.RunID, MessageTypeRenderSubmit, job.TenantID, job.PlanID, job)
	if err != nil {
		return err
	}
	if job.ExtraInstruction != "" {
		msg.SetMetadata("revised", "true")
	}

	_, err = p.Publish(ctx, StreamRenderSubmit, msg)
	return err
}

// PublishQualityAudit 发布质量审计事件
func (p *Producer) PublishQualityAudit(ctx context.Context, audit *QualityAuditMessage) (string, error) {
	msg, err := NewMessage(audit.RunID, MessageTypeQualityAudit, audit.TenantID, audit.PlanID, audit)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamQualityAudit, msg)
}

// PublishAudit 实现完成处理的审计事件接口
func (p *Producer) PublishAudit(ctx context.Context, event *render.AuditEvent) error {
	_, err := p.PublishQualityAudit(ctx, &QualityAuditMessage{
		RunID:        event.RunID,
		PlanID:       event.PlanID,
		TenantID:     event.TenantID,
		Outcome:      event.Outcome,
		OverallScore: event.OverallScore,
		Error:        event.Error,
	})
	return err
}

// QualityAuditMessage 质量审计事件
type QualityAuditMessage struct {
	RunID        string  `json:"run_id"`
	PlanID       string  `json:"plan_id"`
	TenantID     string  `json:"tenant_id"`
	Outcome      string  `json:"outcome"`
	OverallScore float64 `json:"overall_score,omitempty"`
	Error        string  `json:"error,omitempty"`
}

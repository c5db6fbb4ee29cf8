// Package main 渲染工作进程入口
// 消费渲染提交队列并驱动供应商作业，周期性恢复滞留执行
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"adcraft-api/internal/config"
	"adcraft-api/internal/infrastructure/messaging"
	"adcraft-api/internal/wire"
	"adcraft-api/pkg/logger"
	"adcraft-api/pkg/metrics"
	"adcraft-api/pkg/tracer"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.FromContext(ctx)
	log.Info("starting render-worker",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name + "-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	hostname, _ := os.Hostname()
	streamCfg := cfg.Messaging.RedisStream
	backoff := messaging.BackoffConfig{
		Initial:    streamCfg.RetryBackoff.Initial,
		Max:        streamCfg.RetryBackoff.Max,
		Multiplier: streamCfg.RetryBackoff.Multiplier,
	}

	// 渲染提交消费者
	renderConsumer := messaging.NewConsumer(worker.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamRenderSubmit,
		Group:         messaging.ConsumerGroupRenderWorker,
		ConsumerName:  hostname + "-render",
		BlockTimeout:  streamCfg.BlockTimeout,
		ClaimInterval: streamCfg.ClaimInterval,
		RetryLimit:    streamCfg.RetryLimit,
		Backoff:       backoff,
	})
	renderConsumer.RegisterHandler(messaging.MessageTypeRenderSubmit, func(ctx context.Context, msg *messaging.Message) error {
		var job struct {
			RunID            string `json:"run_id"`
			ExtraInstruction string `json:"extra_instruction,omitempty"`
		}
		if err := msg.UnmarshalPayload(&job); err != nil {
			return fmt.Errorf("unmarshal render job: %w", err)
		}

		run, status, err := worker.Dispatcher.Dispatch(ctx, job.RunID, job.ExtraInstruction)
		if err != nil {
			return err
		}
		// 同步轮询模式下 Dispatch 已拿到终态，直接走完成处理
		if status != nil && status.Done {
			if _, err := worker.Completion.Apply(ctx, run, status); err != nil {
				return err
			}
		}
		return nil
	})

	// 审计事件消费者，落审计日志并记录门禁结局
	auditConsumer := messaging.NewConsumer(worker.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamQualityAudit,
		Group:         messaging.ConsumerGroupAuditWriter,
		ConsumerName:  hostname + "-audit",
		BlockTimeout:  streamCfg.BlockTimeout,
		ClaimInterval: streamCfg.ClaimInterval,
		RetryLimit:    streamCfg.RetryLimit,
		Backoff:       backoff,
	})
	auditConsumer.RegisterHandler(messaging.MessageTypeQualityAudit, func(ctx context.Context, msg *messaging.Message) error {
		var audit messaging.QualityAuditMessage
		if err := msg.UnmarshalPayload(&audit); err != nil {
			return fmt.Errorf("unmarshal audit event: %w", err)
		}
		metrics.RenderOutcomesTotal.WithLabelValues(audit.Outcome).Inc()
		logger.Info(ctx, "render outcome audited",
			"run_id", audit.RunID,
			"plan_id", audit.PlanID,
			"tenant_id", audit.TenantID,
			"outcome", audit.Outcome,
			"overall_score", audit.OverallScore,
			"error", audit.Error,
		)
		return nil
	})

	if err := renderConsumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start render consumer", err)
	}
	if err := auditConsumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start audit consumer", err)
	}

	go renderConsumer.MonitorDLQ(ctx, 10)
	go auditConsumer.MonitorDLQ(ctx, 100)

	// 重启恢复：补齐滞留 running 的执行
	go worker.Reconciler.Run(ctx)

	// 指标端点
	if cfg.Observability.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Observability.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Observability.Metrics.Port)
			log.Info("metrics server starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	renderConsumer.Stop()
	auditConsumer.Stop()
	cancel()

	log.Info("worker exited")
}

// Package retry 实现失败渲染的自动重试决策
package retry

import (
	"fmt"
	"strings"

	"adcraft-api/internal/config"
	"adcraft-api/internal/domain/entity"
)

// seedStep 派生种子的固定步长，保证重试可复现
const seedStep = 1000

// Decision 重试决策，由失败类别和质量证据推导，不单独持久化
type Decision struct {
	ShouldRetry       bool                   `json:"should_retry"`
	FreeRetry         bool                   `json:"free_retry"`
	MaxRetriesReached bool                   `json:"max_retries_reached"`
	Category          entity.FailureCategory `json:"category,omitempty"`
	Strategy          entity.RetryStrategy   `json:"strategy,omitempty"`
	Seed              int64                  `json:"seed,omitempty"`
	Reason            string                 `json:"reason,omitempty"`
}

// QualityEvidence 质量门禁提供的重试证据
type QualityEvidence struct {
	OverallScore         float64
	EligibleForFreeRetry bool
	MotionDefects        bool
}

// Policy 重试策略
// Evaluate 是纯函数：相同输入产生相同决策（包括派生种子），不做任何 I/O
type Policy struct {
	maxRetries        int
	lowScoreThreshold float64
}

// NewPolicy 创建重试策略
func NewPolicy(cfg *config.RetryConfig) *Policy {
	return &Policy{
		maxRetries:        cfg.MaxRetries,
		lowScoreThreshold: cfg.LowScoreThreshold,
	}
}

// Evaluate 计算重试决策
// 优先级：重试上限 > 传输层错误 > 质量缺陷 > 不重试
func (p *Policy) Evaluate(run *entity.Run, errMsg string, quality *QualityEvidence) Decision {
	// 重试链达到上限后无条件终止，不看失败原因
	if run.RetryCount >= p.maxRetries {
		return Decision{
			MaxRetriesReached: true,
			Reason:            fmt.Sprintf("retry budget of %d exhausted", p.maxRetries),
		}
	}

	if errMsg != "" {
		category := CategorizeError(errMsg)
		if category == entity.FailureAPIError || category == entity.FailureTimeout {
			// 传输层故障视为瞬时问题，免费原种子重试
			return Decision{
				ShouldRetry: true,
				FreeRetry:   true,
				Category:    category,
				Strategy:    entity.RetrySameSeed,
				Seed:        run.Seed,
				Reason:      fmt.Sprintf("transient %s, retrying with same seed", category),
			}
		}
	}

	if quality != nil && quality.EligibleForFreeRetry {
		strategy := p.qualityStrategy(run, quality)
		seed := run.Seed
		if strategy != entity.RetrySameSeed {
			seed = DeriveSeed(run.Seed, run.RetryCount)
		}
		return Decision{
			ShouldRetry: true,
			FreeRetry:   true,
			Category:    entity.FailureQuality,
			Strategy:    strategy,
			Seed:        seed,
			Reason:      fmt.Sprintf("addressable quality defect (score %.0f), strategy %s", quality.OverallScore, strategy),
		}
	}

	return Decision{Reason: "failure not eligible for automatic retry"}
}

// qualityStrategy 根据质量证据选择重试策略
// 运动伪影永远换种子；低分首次换种子、后续改写指令；其余视为瞬时缺陷复用原种子
func (p *Policy) qualityStrategy(run *entity.Run, quality *QualityEvidence) entity.RetryStrategy {
	if quality.MotionDefects {
		return entity.RetryNewSeed
	}
	if quality.OverallScore < p.lowScoreThreshold {
		if run.RetryCount == 0 {
			return entity.RetryNewSeed
		}
		return entity.RetryRevisedInstruction
	}
	return entity.RetrySameSeed
}

// CategorizeError 根据错误文本归类失败原因，纯函数
func CategorizeError(errMsg string) entity.FailureCategory {
	msg := strings.ToLower(errMsg)
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded"):
		return entity.FailureTimeout
	case strings.Contains(msg, "network") || strings.Contains(msg, "fetch") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504"):
		return entity.FailureAPIError
	case msg == "":
		return entity.FailureUnknown
	default:
		return entity.FailureUnknown
	}
}

// DeriveSeed 从初始种子和重试次数确定性派生新种子
func DeriveSeed(seed int64, retryCount int) int64 {
	return seed + int64(retryCount+1)*seedStep
}

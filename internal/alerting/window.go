// Package alerting 提供进程内的错误率滑动窗口统计
// 注入到回调处理链路中做运维告警，容忍竞态，近似计数即可满足需求
package alerting

import (
	"sync"
	"time"

	"adcraft-api/internal/config"
	"adcraft-api/pkg/metrics"
)

// Window 按秒分桶的滑动窗口计数器
type Window struct {
	mu        sync.Mutex
	buckets   []int
	stamps    []int64
	size      int64
	threshold int
	now       func() time.Time
}

// NewWindow 创建滑动窗口
func NewWindow(cfg *config.AlertingConfig) *Window {
	size := int64(cfg.Window / time.Second)
	if size < 1 {
		size = 1
	}
	return &Window{
		buckets:   make([]int, size),
		stamps:    make([]int64, size),
		size:      size,
		threshold: cfg.ErrorThreshold,
		now:       time.Now,
	}
}

// RecordError 记录一次错误
func (w *Window) RecordError() {
	w.mu.Lock()
	defer w.mu.Unlock()

	sec := w.now().Unix()
	idx := sec % w.size
	if w.stamps[idx] != sec {
		w.stamps[idx] = sec
		w.buckets[idx] = 0
	}
	w.buckets[idx]++
	metrics.WebhookErrorWindow.Set(float64(w.countLocked(sec)))
}

// Count 返回窗口内的错误总数
func (w *Window) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.countLocked(w.now().Unix())
}

// Breached 检查窗口内错误数是否达到告警阈值
func (w *Window) Breached() bool {
	return w.Count() >= w.threshold
}

// countLocked 统计未过期的分桶，调用方必须持有锁
func (w *Window) countLocked(nowSec int64) int {
	total := 0
	for i := range w.buckets {
		if nowSec-w.stamps[i] < w.size {
			total += w.buckets[i]
		}
	}
	return total
}

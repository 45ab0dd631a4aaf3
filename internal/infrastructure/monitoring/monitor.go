package monitoring

import (
	"sync/atomic"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"go.uber.org/zap"
)

// Metrics holds the processor's counters. All fields are manipulated with
// atomics so hot paths never contend on a lock.
type Metrics struct {
	StartTime time.Time

	IterationsTotal       uint64
	ProviderCallsTotal    uint64
	TokensTotal           uint64
	ToolCallsTotal        uint64
	ToolCallsSuccess      uint64
	ToolCallsFailed       uint64
	InterruptsTotal       uint64
	SummarizationsTotal   uint64
	SummarizationFailures uint64

	TasksCompleted uint64
	TasksFailed    uint64
	TasksNeedsHelp uint64
	TasksCancelled uint64
}

// Monitor implements service.Metrics and serves the /metrics endpoint.
type Monitor struct {
	metrics Metrics
	logger  *zap.Logger
}

// NewMonitor creates a monitor.
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		metrics: Metrics{StartTime: time.Now()},
		logger:  logger.With(zap.String("component", "monitor")),
	}
}

// RecordIteration counts one processor iteration.
func (m *Monitor) RecordIteration() {
	atomic.AddUint64(&m.metrics.IterationsTotal, 1)
}

// RecordProviderCall counts one LLM call and its token usage.
func (m *Monitor) RecordProviderCall(provider string, tokens int) {
	atomic.AddUint64(&m.metrics.ProviderCallsTotal, 1)
	if tokens > 0 {
		atomic.AddUint64(&m.metrics.TokensTotal, uint64(tokens))
	}
}

// RecordToolCall counts one dispatched tool call.
func (m *Monitor) RecordToolCall(name string, success bool) {
	atomic.AddUint64(&m.metrics.ToolCallsTotal, 1)
	if success {
		atomic.AddUint64(&m.metrics.ToolCallsSuccess, 1)
	} else {
		atomic.AddUint64(&m.metrics.ToolCallsFailed, 1)
	}
}

// RecordInterrupt counts one cooperative abort.
func (m *Monitor) RecordInterrupt() {
	atomic.AddUint64(&m.metrics.InterruptsTotal, 1)
}

// RecordSummarization counts a summarization round; failures are counted
// separately because the processor swallows them.
func (m *Monitor) RecordSummarization(err error) {
	atomic.AddUint64(&m.metrics.SummarizationsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.metrics.SummarizationFailures, 1)
	}
}

// RecordTaskStatus counts a terminal or needs-help transition.
func (m *Monitor) RecordTaskStatus(status entity.TaskStatus) {
	switch status {
	case entity.TaskStatusCompleted:
		atomic.AddUint64(&m.metrics.TasksCompleted, 1)
	case entity.TaskStatusFailed:
		atomic.AddUint64(&m.metrics.TasksFailed, 1)
	case entity.TaskStatusNeedsHelp:
		atomic.AddUint64(&m.metrics.TasksNeedsHelp, 1)
	case entity.TaskStatusCancelled:
		atomic.AddUint64(&m.metrics.TasksCancelled, 1)
	}
}

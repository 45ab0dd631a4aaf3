package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// PrometheusHandler returns an http.Handler serving Prometheus text format.
// This avoids pulling in the full prometheus/client_golang dependency.
// Mount it at "/metrics".
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(m.metrics.StartTime).Seconds()

		lines := []struct {
			name string
			help string
			typ  string
			val  any
		}{
			{"bytebot_agent_iterations_total", "Total processor iterations executed", "counter", atomic.LoadUint64(&m.metrics.IterationsTotal)},
			{"bytebot_agent_provider_calls_total", "Total LLM provider calls", "counter", atomic.LoadUint64(&m.metrics.ProviderCallsTotal)},
			{"bytebot_agent_tokens_total", "Total tokens consumed", "counter", atomic.LoadUint64(&m.metrics.TokensTotal)},

			{"bytebot_agent_tool_calls_total", "Total tool calls dispatched", "counter", atomic.LoadUint64(&m.metrics.ToolCallsTotal)},
			{"bytebot_agent_tool_calls_success_total", "Total successful tool calls", "counter", atomic.LoadUint64(&m.metrics.ToolCallsSuccess)},
			{"bytebot_agent_tool_calls_failed_total", "Total failed tool calls", "counter", atomic.LoadUint64(&m.metrics.ToolCallsFailed)},

			{"bytebot_agent_interrupts_total", "Total cooperative interrupts", "counter", atomic.LoadUint64(&m.metrics.InterruptsTotal)},
			{"bytebot_agent_summarizations_total", "Total summarization rounds", "counter", atomic.LoadUint64(&m.metrics.SummarizationsTotal)},
			{"bytebot_agent_summarization_failures_total", "Summarization rounds that failed and were swallowed", "counter", atomic.LoadUint64(&m.metrics.SummarizationFailures)},

			{"bytebot_agent_tasks_completed_total", "Tasks moved to COMPLETED", "counter", atomic.LoadUint64(&m.metrics.TasksCompleted)},
			{"bytebot_agent_tasks_failed_total", "Tasks moved to FAILED", "counter", atomic.LoadUint64(&m.metrics.TasksFailed)},
			{"bytebot_agent_tasks_needs_help_total", "Tasks moved to NEEDS_HELP", "counter", atomic.LoadUint64(&m.metrics.TasksNeedsHelp)},
			{"bytebot_agent_tasks_cancelled_total", "Tasks cancelled", "counter", atomic.LoadUint64(&m.metrics.TasksCancelled)},

			{"bytebot_agent_uptime_seconds", "Process uptime in seconds", "gauge", uptime},
			{"bytebot_agent_memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc},
			{"bytebot_agent_goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine()},
		}

		for _, l := range lines {
			fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.typ)
			fmt.Fprintf(w, "%s %v\n", l.name, l.val)
		}
	})
}

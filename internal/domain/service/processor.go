package service

import (
	"context"
	"sync"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/repository"
	"go.uber.org/zap"
)

// MaxInterruptRetries bounds consecutive interrupt retries per task.
const MaxInterruptRetries = 3

// DefaultRetryDelay is the wait before re-scheduling after an interrupt.
const DefaultRetryDelay = 500 * time.Millisecond

// taskRuntime is per-task ephemeral state. Created lazily on first use and
// deleted when the task reaches a terminal state or processing stops — never
// persisted.
type taskRuntime struct {
	retryCount            int
	computerToolFailures  int
	computerToolsDisabled bool
}

// AgentProcessor drives one task at a time from RUNNING to a terminal state
// by iterating: assemble context → call the model → persist → dispatch
// tools → reschedule. Lifecycle events (takeover/resume/cancel) arrive
// asynchronously and only flip the cancellation handle and singleton state;
// the running iteration observes cancellation at its next suspension point.
//
// Invariant: processing ⇔ currentTaskID != "" ⇔ cancel != nil. All three
// are guarded by mu.
type AgentProcessor struct {
	tasks      repository.TaskRepository
	messages   repository.MessageRepository
	providers  ProviderResolver
	assembler  *ConversationAssembler
	summarizer *Summarizer
	dispatcher *ToolDispatcher
	capture    InputCapture
	metrics    Metrics
	retryDelay time.Duration
	logger     *zap.Logger

	mu            sync.Mutex
	processing    bool
	currentTaskID string
	cancel        context.CancelFunc
	sm            *StateMachine
	runtime       map[string]*taskRuntime

	// pendingIteration dedupes scheduling: a retry timer and a resume
	// event racing each other must not fork two iteration chains.
	pendingIteration bool

	// runMu serializes iterations: a retry timer and a resume event may
	// both schedule one, but at most one may advance at a time.
	runMu sync.Mutex
}

// NewAgentProcessor creates the processor. capture and metrics may be nil.
func NewAgentProcessor(
	tasks repository.TaskRepository,
	messages repository.MessageRepository,
	providers ProviderResolver,
	assembler *ConversationAssembler,
	summarizer *Summarizer,
	dispatcher *ToolDispatcher,
	capture InputCapture,
	metrics Metrics,
	logger *zap.Logger,
) *AgentProcessor {
	if capture == nil {
		capture = noopInputCapture{}
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &AgentProcessor{
		tasks:      tasks,
		messages:   messages,
		providers:  providers,
		assembler:  assembler,
		summarizer: summarizer,
		dispatcher: dispatcher,
		capture:    capture,
		metrics:    metrics,
		retryDelay: DefaultRetryDelay,
		logger:     logger.With(zap.String("component", "processor")),
		runtime:    make(map[string]*taskRuntime),
	}
}

// SetRetryDelay overrides the interrupt retry delay (tests).
func (p *AgentProcessor) SetRetryDelay(d time.Duration) {
	if d > 0 {
		p.retryDelay = d
	}
}

// ProcessTask starts processing a task. The processor is single-tenant:
// when a task is already being processed the call is logged and dropped —
// there is no queue. The first iteration is scheduled without blocking the
// caller.
func (p *AgentProcessor) ProcessTask(taskID string) {
	p.mu.Lock()
	if p.processing {
		current := p.currentTaskID
		p.mu.Unlock()
		p.logger.Info("Processor busy, ignoring task",
			zap.String("current_task_id", current),
			zap.String("task_id", taskID),
		)
		return
	}
	p.processing = true
	p.currentTaskID = taskID
	p.refreshHandleLocked()
	p.sm = NewStateMachine(taskID, p.logger)
	_ = p.sm.Transition(StateRunning)
	p.mu.Unlock()

	p.logger.Info("Processing task", zap.String("task_id", taskID))
	p.scheduleIteration(taskID)
}

// OnTakeover handles a task.takeover event: the in-flight iteration is
// cancelled (the processor keeps holding the task — the next iteration
// observes the status change and winds down) and input capture starts
// unconditionally.
func (p *AgentProcessor) OnTakeover(taskID string) {
	p.mu.Lock()
	if p.processing && p.currentTaskID == taskID && p.cancel != nil {
		p.logger.Info("Takeover: cancelling in-flight iteration",
			zap.String("task_id", taskID),
		)
		p.cancel()
	}
	p.mu.Unlock()

	p.capture.Start(taskID)
}

// OnResume handles a task.resume event: if the processor still holds the
// task, a new cancellation handle is allocated and a fresh iteration
// enqueued. Returns false when the task is not held (the caller may start
// a fresh processing run instead).
func (p *AgentProcessor) OnResume(taskID string) bool {
	p.mu.Lock()
	holds := p.processing && p.currentTaskID == taskID
	if holds {
		p.refreshHandleLocked()
	}
	p.mu.Unlock()

	if !holds {
		p.logger.Info("Resume for a task not being processed",
			zap.String("task_id", taskID),
		)
		return false
	}
	p.logger.Info("Resuming task", zap.String("task_id", taskID))
	p.scheduleIteration(taskID)
	return true
}

// OnCancel handles a task.cancel event: cancellation fires, input capture
// stops, and the singleton state clears so the aborted iteration cannot
// reschedule or overwrite the task status.
func (p *AgentProcessor) OnCancel(taskID string) {
	p.mu.Lock()
	if p.currentTaskID != taskID {
		p.mu.Unlock()
		p.logger.Info("Cancel for a task not being processed",
			zap.String("task_id", taskID),
		)
		p.capture.Stop()
		return
	}
	p.clearLocked(taskID)
	sm := p.sm
	p.mu.Unlock()

	if sm != nil && !sm.IsTerminal() {
		_ = sm.Transition(StateCancelled)
	}
	p.metrics.RecordTaskStatus(entity.TaskStatusCancelled)
	p.logger.Info("Task processing cancelled", zap.String("task_id", taskID))
	p.capture.Stop()
}

// StopProcessing is the idempotent shutdown path: cancel, stop capture,
// clear singleton state.
func (p *AgentProcessor) StopProcessing() {
	p.mu.Lock()
	taskID := p.currentTaskID
	p.clearLocked(taskID)
	p.mu.Unlock()

	if taskID != "" {
		p.logger.Info("Stopped processing", zap.String("task_id", taskID))
	}
	p.capture.Stop()
}

// Snapshot reports the processor's current run state for diagnostics.
func (p *AgentProcessor) Snapshot() (StateSnapshot, bool) {
	p.mu.Lock()
	sm := p.sm
	processing := p.processing
	p.mu.Unlock()
	if sm == nil {
		return StateSnapshot{State: StateIdle}, processing
	}
	return sm.Snapshot(), processing
}

// --- internal state helpers (callers hold mu) ---

// refreshHandleLocked installs a fresh cancellation handle — one per
// iteration, never reused, so listeners cannot accumulate across
// iterations. The previous handle is released; it belongs to an iteration
// that has already finished or been abandoned.
func (p *AgentProcessor) refreshHandleLocked() context.Context {
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	return ctx
}

// clearLocked drops the singleton processing state and the task's
// ephemeral runtime entry.
func (p *AgentProcessor) clearLocked(taskID string) {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.processing = false
	p.currentTaskID = ""
	p.pendingIteration = false
	if taskID != "" {
		delete(p.runtime, taskID)
	}
}

// holdsLocked reports whether the processor still owns the task.
func (p *AgentProcessor) holdsLocked(taskID string) bool {
	return p.processing && p.currentTaskID == taskID
}

// runtimeLocked returns the task's ephemeral state, creating it lazily.
func (p *AgentProcessor) runtimeLocked(taskID string) *taskRuntime {
	rt, ok := p.runtime[taskID]
	if !ok {
		rt = &taskRuntime{}
		p.runtime[taskID] = rt
	}
	return rt
}

// noopInputCapture is used when no capture collaborator is wired.
type noopInputCapture struct{}

func (noopInputCapture) Start(string) {}
func (noopInputCapture) Stop()        {}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/tool"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/valueobject"
	"go.uber.org/zap"
)

// scheduleIteration enqueues the next iteration on a fresh goroutine. The
// yield matters: lifecycle events take the processor mutex between
// iterations, so scheduling must never recurse synchronously.
func (p *AgentProcessor) scheduleIteration(taskID string) {
	if !p.markPending(taskID) {
		return
	}
	go p.runIteration(taskID)
}

// scheduleRetry enqueues an iteration after the interrupt retry delay.
func (p *AgentProcessor) scheduleRetry(taskID string) {
	if !p.markPending(taskID) {
		return
	}
	timer := time.NewTimer(p.retryDelay)
	go func() {
		<-timer.C
		p.runIteration(taskID)
	}()
}

// markPending claims the single pending-iteration slot. A second schedule
// while one is already queued is redundant — the queued iteration will
// advance the same task.
func (p *AgentProcessor) markPending(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.holdsLocked(taskID) || p.pendingIteration {
		return false
	}
	p.pendingIteration = true
	return true
}

// runIteration runs one full iteration for the task, then either
// reschedules, retries, or winds the run down.
func (p *AgentProcessor) runIteration(taskID string) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	p.pendingIteration = false
	if !p.holdsLocked(taskID) {
		p.mu.Unlock()
		return
	}
	ctx := p.refreshHandleLocked()
	sm := p.sm
	p.mu.Unlock()

	if sm.State() == StateRetrying {
		_ = sm.Transition(StateRunning)
	}
	iteration := sm.IncrementIteration()
	p.metrics.RecordIteration()
	p.logger.Debug("Iteration starting",
		zap.String("task_id", taskID),
		zap.Int("iteration", iteration),
	)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Iteration panicked",
				zap.String("task_id", taskID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			p.failTask(taskID, sm, fmt.Sprintf("Internal error: %v", r))
		}
	}()

	reschedule, err := p.iterate(ctx, taskID, sm)
	if err != nil {
		p.handleIterationError(taskID, sm, err)
		return
	}
	if reschedule {
		p.scheduleIteration(taskID)
	}
}

// iterate performs the ordered steps of one iteration. A returned error is
// classified by handleIterationError; terminal statuses are applied in
// place and reported via reschedule=false.
func (p *AgentProcessor) iterate(ctx context.Context, taskID string, sm *StateMachine) (bool, error) {
	task, err := p.tasks.FindByID(ctx, taskID)
	if err != nil {
		return false, err
	}

	// Only RUNNING tasks advance. Anything else means an external actor
	// moved the task (takeover, cancel, manual edit); wind down quietly.
	if task.Status != entity.TaskStatusRunning {
		p.logger.Info("Task no longer running, stopping",
			zap.String("task_id", taskID),
			zap.String("status", string(task.Status)),
		)
		p.windDown(taskID, sm, stateForStatus(task.Status))
		return false, nil
	}

	failures, degraded := p.ephemeralSnapshot(taskID)

	assembly, err := p.assembler.Assemble(ctx, taskID, degraded)
	if err != nil {
		return false, err
	}

	descriptor := valueobject.ResolveModelDescriptor(task.Model)
	sm.SetModel(descriptor.Name)

	generator, ok := p.providers.Resolve(descriptor.Provider)
	if !ok {
		p.failTask(taskID, sm, fmt.Sprintf("no service for provider %s", descriptor.Provider))
		return false, nil
	}

	tools := tool.AgentDefinitions()
	if degraded {
		tools = tool.ControlDefinitions()
	}

	resp, err := generator.GenerateMessage(ctx, &GenerateRequest{
		SystemPrompt: BuildSystemPrompt(time.Now()),
		Messages:     assembly.Messages,
		Model:        descriptor.Name,
		ToolsEnabled: true,
		Tools:        tools,
	})
	if err != nil {
		return false, err
	}
	p.metrics.RecordProviderCall(descriptor.Provider, resp.TokenUsage.TotalTokens)
	sm.AddTokens(resp.TokenUsage.TotalTokens)

	if len(resp.ContentBlocks) == 0 {
		p.failTask(taskID, sm, "No content blocks returned from model")
		return false, nil
	}

	assistant, err := entity.NewMessage(taskID, entity.RoleAssistant, resp.ContentBlocks)
	if err != nil {
		return false, err
	}
	if err := p.messages.Create(ctx, assistant); err != nil {
		return false, err
	}

	// A turn that reached the model and persisted resets the interrupt
	// retry budget — only consecutive interrupts are bounded.
	p.mu.Lock()
	if p.holdsLocked(taskID) {
		p.runtimeLocked(taskID).retryCount = 0
	}
	p.mu.Unlock()

	if p.summarizer.ShouldSummarize(descriptor, resp.TokenUsage.TotalTokens) {
		p.summarizer.Summarize(ctx, generator, task, descriptor, assembly)
	}

	result, err := p.dispatcher.Dispatch(ctx, task, resp.ContentBlocks, failures, degraded)
	if result != nil {
		p.applyDispatch(taskID, result)
	}
	if err != nil {
		return false, err
	}

	if result.AppliedStatus != "" {
		p.windDown(taskID, sm, stateForStatus(result.AppliedStatus))
		return false, nil
	}

	p.mu.Lock()
	still := p.holdsLocked(taskID)
	p.mu.Unlock()
	return still, nil
}

// handleIterationError classifies an iteration failure. Interrupts get
// bounded retry; everything else fails the task.
func (p *AgentProcessor) handleIterationError(taskID string, sm *StateMachine, err error) {
	if IsInterrupt(err) {
		p.metrics.RecordInterrupt()

		p.mu.Lock()
		if !p.holdsLocked(taskID) {
			// A lifecycle handler already released the task (cancel or
			// shutdown). Nothing to retry, nothing to overwrite.
			p.mu.Unlock()
			return
		}
		rt := p.runtimeLocked(taskID)
		rt.retryCount++
		count := rt.retryCount
		p.mu.Unlock()

		if count <= MaxInterruptRetries {
			sm.RecordRetry()
			_ = sm.Transition(StateRetrying)
			p.logger.Warn("Iteration interrupted, retrying",
				zap.String("task_id", taskID),
				zap.Int("retry", count),
				zap.Int("max_retries", MaxInterruptRetries),
				zap.Duration("delay", p.retryDelay),
			)
			p.scheduleRetry(taskID)
			return
		}

		msg := fmt.Sprintf("Processing was interrupted and retried %d times without progress; the task needs manual attention", MaxInterruptRetries)
		p.logger.Error("Interrupt retries exhausted",
			zap.String("task_id", taskID),
			zap.Int("retries", MaxInterruptRetries),
		)
		p.updateStatus(taskID, entity.TaskStatusNeedsHelp, msg)
		p.windDown(taskID, sm, StateNeedsHelp)
		return
	}

	p.failTask(taskID, sm, err.Error())
}

// failTask moves the task to FAILED with a capped error message and winds
// the run down. Status writes use a background context: the iteration
// context may already be cancelled.
func (p *AgentProcessor) failTask(taskID string, sm *StateMachine, msg string) {
	p.logger.Error("Task failed",
		zap.String("task_id", taskID),
		zap.String("error", msg),
	)
	p.updateStatus(taskID, entity.TaskStatusFailed, msg)
	p.windDown(taskID, sm, StateFailed)
}

func (p *AgentProcessor) updateStatus(taskID string, status entity.TaskStatus, errMsg string) {
	capped := entity.TruncateError(errMsg)
	patch := entity.TaskPatch{Status: &status, Error: &capped}
	if err := p.tasks.Update(context.Background(), taskID, patch); err != nil {
		p.logger.Error("Task status update failed",
			zap.String("task_id", taskID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
	p.metrics.RecordTaskStatus(status)
}

// windDown releases the task: singleton state cleared, ephemeral state
// deleted, state machine moved to its final state.
func (p *AgentProcessor) windDown(taskID string, sm *StateMachine, state ProcessorState) {
	p.mu.Lock()
	if p.holdsLocked(taskID) {
		p.clearLocked(taskID)
	} else {
		delete(p.runtime, taskID)
	}
	p.mu.Unlock()

	if sm != nil && state != "" && !sm.IsTerminal() {
		_ = sm.Transition(state)
	}
}

// ephemeralSnapshot reads the task's failure count and degradation flag.
func (p *AgentProcessor) ephemeralSnapshot(taskID string) (failures int, degraded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rt := p.runtimeLocked(taskID)
	return rt.computerToolFailures, rt.computerToolsDisabled
}

// applyDispatch folds a dispatch result back into the ephemeral state.
func (p *AgentProcessor) applyDispatch(taskID string, result *DispatchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.holdsLocked(taskID) {
		return
	}
	rt := p.runtimeLocked(taskID)
	rt.computerToolFailures = result.ComputerFailures
	if result.Degraded {
		rt.computerToolsDisabled = true
	}
}

// stateForStatus maps a task status to the run's final state.
func stateForStatus(status entity.TaskStatus) ProcessorState {
	switch status {
	case entity.TaskStatusCompleted:
		return StateCompleted
	case entity.TaskStatusFailed:
		return StateFailed
	case entity.TaskStatusNeedsHelp:
		return StateNeedsHelp
	case entity.TaskStatusCancelled:
		return StateCancelled
	default:
		return StateIdle
	}
}

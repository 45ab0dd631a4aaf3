package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/repository"
	"go.uber.org/zap"
)

// ComputerFailureLimit is the number of consecutive failed computer-tool
// calls after which desktop automation is disabled for the task.
const ComputerFailureLimit = 2

// degradationError is persisted on the task when the failure limit is hit.
const degradationError = "Desktop automation is unavailable: repeated computer tool failures. The task needs human help."

// ToolDispatcher sweeps the content blocks of an assistant turn in order,
// routing each tool_use to its handler and collecting tool_result blocks.
// All collected results are persisted as a single USER message; a
// set_task_status transition is applied only after that, so the status
// change is observed exactly once with all tool results already stored.
type ToolDispatcher struct {
	tasks    repository.TaskRepository
	messages repository.MessageRepository
	computer ComputerToolHandler
	metrics  Metrics
	logger   *zap.Logger
}

// NewToolDispatcher creates a dispatcher.
func NewToolDispatcher(tasks repository.TaskRepository, messages repository.MessageRepository, computer ComputerToolHandler, metrics Metrics, logger *zap.Logger) *ToolDispatcher {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &ToolDispatcher{
		tasks:    tasks,
		messages: messages,
		computer: computer,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "dispatcher")),
	}
}

// DispatchResult reports what one sweep did.
type DispatchResult struct {
	// ComputerFailures is the updated consecutive-failure count.
	ComputerFailures int
	// Degraded is set when this sweep crossed the failure limit. The task
	// has already been moved to NEEDS_HELP and the sweep was cut short.
	Degraded bool
	// AppliedStatus is the status transition applied after the sweep
	// (COMPLETED or NEEDS_HELP), or "" when none.
	AppliedStatus entity.TaskStatus
}

// Dispatch processes the blocks of one assistant turn. failures is the
// task's current consecutive computer-tool failure count; degraded is its
// sticky degradation flag.
func (d *ToolDispatcher) Dispatch(ctx context.Context, task *entity.Task, blocks []entity.ContentBlock, failures int, degraded bool) (*DispatchResult, error) {
	result := &DispatchResult{ComputerFailures: failures}

	var toolResults []entity.ContentBlock
	var statusBlock *entity.ContentBlock

	for i := range blocks {
		block := blocks[i]
		switch {
		case block.IsComputerToolUse():
			if degraded {
				// Sticky degradation: never dispatch computer tools again.
				toolResults = append(toolResults, entity.NewToolResultBlock(block.ID,
					[]entity.ContentBlock{entity.NewTextBlock("Desktop automation tools are disabled for this task")}, true))
				continue
			}
			res := d.computer.HandleComputerToolUse(ctx, block)
			toolResults = append(toolResults, res)
			d.metrics.RecordToolCall(block.Name, !res.IsError)
			if res.IsError {
				result.ComputerFailures++
				d.logger.Warn("Computer tool failed",
					zap.String("task_id", task.ID),
					zap.String("tool", block.Name),
					zap.Int("consecutive_failures", result.ComputerFailures),
				)
				if result.ComputerFailures >= ComputerFailureLimit {
					return d.degrade(ctx, task, toolResults, result)
				}
			} else {
				result.ComputerFailures = 0
			}

		case block.Type == entity.BlockTypeToolUse && block.Name == entity.ToolCreateTask:
			toolResults = append(toolResults, d.createSubtask(ctx, task, block))

		case block.Type == entity.BlockTypeToolUse && block.Name == entity.ToolSetTaskStatus:
			statusBlock = &blocks[i]
			description, _ := block.Input["description"].(string)
			status, _ := block.Input["status"].(string)
			toolResults = append(toolResults, entity.NewToolResultBlock(block.ID,
				[]entity.ContentBlock{entity.NewTextBlock(description)}, status == "failed"))

		case block.Type == entity.BlockTypeToolUse:
			// Unknown tool — answer it so the turn stays well-formed.
			d.logger.Warn("Unknown tool requested",
				zap.String("task_id", task.ID),
				zap.String("tool", block.Name),
			)
			toolResults = append(toolResults, entity.NewToolResultBlock(block.ID,
				[]entity.ContentBlock{entity.NewTextBlock(fmt.Sprintf("Tool %q is not available", block.Name))}, true))
		}
	}

	if err := d.persistResults(ctx, task.ID, toolResults); err != nil {
		return result, err
	}

	// Deferred status transition: applied only once all tool results exist.
	if statusBlock != nil {
		status, _ := statusBlock.Input["status"].(string)
		switch status {
		case "completed":
			now := time.Now().UTC()
			completed := entity.TaskStatusCompleted
			if err := d.tasks.Update(ctx, task.ID, entity.TaskPatch{Status: &completed, CompletedAt: &now}); err != nil {
				return result, err
			}
			result.AppliedStatus = completed
			d.metrics.RecordTaskStatus(completed)
		case "needs_help":
			needsHelp := entity.TaskStatusNeedsHelp
			if err := d.tasks.Update(ctx, task.ID, entity.TaskPatch{Status: &needsHelp}); err != nil {
				return result, err
			}
			result.AppliedStatus = needsHelp
			d.metrics.RecordTaskStatus(needsHelp)
		default:
			// "failed" and anything else: the tool result already carries
			// the error mark; no transition.
		}
	}

	return result, nil
}

// degrade persists the results gathered so far, flips the task to
// NEEDS_HELP, and cuts the sweep short.
func (d *ToolDispatcher) degrade(ctx context.Context, task *entity.Task, toolResults []entity.ContentBlock, result *DispatchResult) (*DispatchResult, error) {
	if err := d.persistResults(ctx, task.ID, toolResults); err != nil {
		return result, err
	}
	needsHelp := entity.TaskStatusNeedsHelp
	errMsg := degradationError
	if err := d.tasks.Update(ctx, task.ID, entity.TaskPatch{Status: &needsHelp, Error: &errMsg}); err != nil {
		return result, err
	}
	result.Degraded = true
	result.AppliedStatus = needsHelp
	d.metrics.RecordTaskStatus(needsHelp)
	d.logger.Error("Computer tools degraded, task needs help",
		zap.String("task_id", task.ID),
		zap.Int("failures", result.ComputerFailures),
	)
	return result, nil
}

// persistResults stores all tool results of the sweep as one USER message.
func (d *ToolDispatcher) persistResults(ctx context.Context, taskID string, toolResults []entity.ContentBlock) error {
	if len(toolResults) == 0 {
		return nil
	}
	msg, err := entity.NewMessage(taskID, entity.RoleUser, toolResults)
	if err != nil {
		return err
	}
	return d.messages.Create(ctx, msg)
}

// createSubtask handles a create_task tool use, delegating to the task
// store with the parent task's model and ASSISTANT attribution.
func (d *ToolDispatcher) createSubtask(ctx context.Context, parent *entity.Task, block entity.ContentBlock) entity.ContentBlock {
	description, _ := block.Input["description"].(string)
	subtask, err := entity.NewTask(description, cloneModel(parent.Model), entity.CreatorAssistant)
	if err != nil {
		return entity.NewToolResultBlock(block.ID,
			[]entity.ContentBlock{entity.NewTextBlock("Failed to create task: " + err.Error())}, true)
	}

	if taskType, ok := block.Input["type"].(string); ok {
		subtask.Type = strings.ToUpper(taskType)
	}
	if priority, ok := block.Input["priority"].(string); ok {
		subtask.Priority = strings.ToUpper(priority)
	}
	if scheduledFor, ok := block.Input["scheduledFor"].(string); ok && scheduledFor != "" {
		if ts, err := time.Parse(time.RFC3339, scheduledFor); err == nil {
			subtask.ScheduledFor = &ts
		} else {
			d.logger.Warn("Ignoring unparseable scheduledFor",
				zap.String("task_id", parent.ID),
				zap.String("scheduled_for", scheduledFor),
			)
		}
	}

	if err := d.tasks.Create(ctx, subtask); err != nil {
		d.logger.Error("Subtask create failed",
			zap.String("task_id", parent.ID),
			zap.Error(err),
		)
		return entity.NewToolResultBlock(block.ID,
			[]entity.ContentBlock{entity.NewTextBlock("Failed to create task: " + err.Error())}, true)
	}

	d.logger.Info("Subtask created",
		zap.String("task_id", parent.ID),
		zap.String("subtask_id", subtask.ID),
	)
	return entity.NewToolResultBlock(block.ID,
		[]entity.ContentBlock{entity.NewTextBlock("The task has been created")}, false)
}

func cloneModel(model json.RawMessage) json.RawMessage {
	if model == nil {
		return nil
	}
	clone := make(json.RawMessage, len(model))
	copy(clone, model)
	return clone
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/repository"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/service"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/eventbus"
	"go.uber.org/zap"
)

// TaskUseCase is the application service behind the HTTP task surface:
// task creation hands work to the processor, lifecycle operations flip the
// persisted status and publish the matching bus event for the processor.
type TaskUseCase struct {
	tasks     repository.TaskRepository
	messages  repository.MessageRepository
	processor *service.AgentProcessor
	bus       eventbus.Bus
	logger    *zap.Logger
}

// NewTaskUseCase creates the use case.
func NewTaskUseCase(
	tasks repository.TaskRepository,
	messages repository.MessageRepository,
	processor *service.AgentProcessor,
	bus eventbus.Bus,
	logger *zap.Logger,
) *TaskUseCase {
	return &TaskUseCase{
		tasks:     tasks,
		messages:  messages,
		processor: processor,
		bus:       bus,
		logger:    logger.With(zap.String("component", "task-usecase")),
	}
}

// CreateTask stores a new task with its initial user message and hands it
// to the processor. The task starts RUNNING; tasks the assistant creates
// through create_task stay in PENDING.
func (uc *TaskUseCase) CreateTask(ctx context.Context, description string, model json.RawMessage) (*entity.Task, error) {
	task, err := entity.NewTask(description, model, entity.CreatorUser)
	if err != nil {
		return nil, err
	}
	task.Status = entity.TaskStatusRunning

	if err := uc.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	initial, err := entity.NewMessage(task.ID, entity.RoleUser,
		[]entity.ContentBlock{entity.NewTextBlock(description)})
	if err != nil {
		return nil, err
	}
	if err := uc.messages.Create(ctx, initial); err != nil {
		return nil, err
	}

	uc.logger.Info("Task created", zap.String("task_id", task.ID))
	uc.processor.ProcessTask(task.ID)
	return task, nil
}

// GetTask loads a task.
func (uc *TaskUseCase) GetTask(ctx context.Context, id string) (*entity.Task, error) {
	return uc.tasks.FindByID(ctx, id)
}

// ListMessages returns all messages of a task in order.
func (uc *TaskUseCase) ListMessages(ctx context.Context, taskID string) ([]*entity.Message, error) {
	if _, err := uc.tasks.FindByID(ctx, taskID); err != nil {
		return nil, err
	}
	return uc.messages.FindByTaskID(ctx, taskID)
}

// Takeover moves the task to NEEDS_HELP and notifies the processor, which
// cancels its in-flight iteration and starts input capture.
func (uc *TaskUseCase) Takeover(ctx context.Context, taskID string) error {
	task, err := uc.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return fmt.Errorf("task %s is already %s", taskID, task.Status)
	}

	needsHelp := entity.TaskStatusNeedsHelp
	if err := uc.tasks.Update(ctx, taskID, entity.TaskPatch{Status: &needsHelp}); err != nil {
		return err
	}
	uc.bus.Publish(ctx, eventbus.NewTaskEvent(eventbus.EventTaskTakeover, taskID))
	return nil
}

// Resume moves a NEEDS_HELP task back to RUNNING and notifies the
// processor. When the processor no longer holds the task (fresh process,
// interrupt exhaustion), processing restarts from scratch.
func (uc *TaskUseCase) Resume(ctx context.Context, taskID string) error {
	task, err := uc.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != entity.TaskStatusNeedsHelp {
		return fmt.Errorf("task %s cannot resume from %s", taskID, task.Status)
	}

	running := entity.TaskStatusRunning
	if err := uc.tasks.Update(ctx, taskID, entity.TaskPatch{Status: &running}); err != nil {
		return err
	}
	uc.bus.Publish(ctx, eventbus.NewTaskEvent(eventbus.EventTaskResume, taskID))
	return nil
}

// Cancel moves the task to CANCELLED and notifies the processor, which
// fires cancellation, stops input capture, and clears its state.
func (uc *TaskUseCase) Cancel(ctx context.Context, taskID string) error {
	task, err := uc.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return fmt.Errorf("task %s is already %s", taskID, task.Status)
	}

	cancelled := entity.TaskStatusCancelled
	if err := uc.tasks.Update(ctx, taskID, entity.TaskPatch{Status: &cancelled}); err != nil {
		return err
	}
	uc.bus.Publish(ctx, eventbus.NewTaskEvent(eventbus.EventTaskCancel, taskID))
	return nil
}

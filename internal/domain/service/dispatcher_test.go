package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
)

func dispatcherFixture(t *testing.T, computer ComputerToolHandler) (*ToolDispatcher, *mockTaskRepo, *mockMessageRepo, *entity.Task) {
	t.Helper()
	task := runningTask(t, `"gpt-4.1"`)
	tasks := newMockTaskRepo(task)
	messages := newMockMessageRepo()
	if computer == nil {
		computer = &mockComputerHandler{}
	}
	return NewToolDispatcher(tasks, messages, computer, nil, testLogger()), tasks, messages, task
}

func toolUse(id, name string, input map[string]any) entity.ContentBlock {
	return entity.ContentBlock{Type: entity.BlockTypeToolUse, ID: id, Name: name, Input: input}
}

func TestDispatch_SetTaskStatusCompleted(t *testing.T) {
	d, tasks, messages, task := dispatcherFixture(t, nil)

	blocks := []entity.ContentBlock{
		entity.NewTextBlock("finished"),
		toolUse("t1", entity.ToolSetTaskStatus, map[string]any{"status": "completed", "description": "all done"}),
	}

	result, err := d.Dispatch(context.Background(), task, blocks, 0, false)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.AppliedStatus != entity.TaskStatusCompleted {
		t.Errorf("expected COMPLETED applied, got %q", result.AppliedStatus)
	}

	final := tasks.get(task.ID)
	if final.Status != entity.TaskStatusCompleted {
		t.Errorf("expected task COMPLETED, got %s", final.Status)
	}
	if final.CompletedAt == nil {
		t.Error("expected CompletedAt set")
	}

	all := messages.all()
	if len(all) != 1 || all[0].Role != entity.RoleUser {
		t.Fatalf("expected one USER tool-result message, got %v", all)
	}
	tr := all[0].Content[0]
	if tr.IsError || tr.Content[0].Text != "all done" {
		t.Errorf("unexpected tool result: %+v", tr)
	}
}

func TestDispatch_SetTaskStatusFailed_NoTransition(t *testing.T) {
	d, tasks, messages, task := dispatcherFixture(t, nil)

	blocks := []entity.ContentBlock{
		toolUse("t1", entity.ToolSetTaskStatus, map[string]any{"status": "failed", "description": "could not log in"}),
	}

	result, err := d.Dispatch(context.Background(), task, blocks, 0, false)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// "failed" marks the tool result as error but transitions nothing.
	if result.AppliedStatus != "" {
		t.Errorf("expected no transition, got %q", result.AppliedStatus)
	}
	if got := tasks.get(task.ID).Status; got != entity.TaskStatusRunning {
		t.Errorf("expected task still RUNNING, got %s", got)
	}
	tr := messages.all()[0].Content[0]
	if !tr.IsError {
		t.Error("failed status must mark the tool result as error")
	}
	if tr.Content[0].Text != "could not log in" {
		t.Errorf("expected description echoed, got %q", tr.Content[0].Text)
	}
}

func TestDispatch_SetTaskStatusNeedsHelp(t *testing.T) {
	d, tasks, _, task := dispatcherFixture(t, nil)

	blocks := []entity.ContentBlock{
		toolUse("t1", entity.ToolSetTaskStatus, map[string]any{"status": "needs_help", "description": "captcha"}),
	}
	if _, err := d.Dispatch(context.Background(), task, blocks, 0, false); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := tasks.get(task.ID).Status; got != entity.TaskStatusNeedsHelp {
		t.Errorf("expected NEEDS_HELP, got %s", got)
	}
}

func TestDispatch_CreateTask(t *testing.T) {
	d, tasks, messages, task := dispatcherFixture(t, nil)

	blocks := []entity.ContentBlock{
		toolUse("t1", entity.ToolCreateTask, map[string]any{
			"description":  "file the expense report",
			"type":         "scheduled",
			"priority":     "high",
			"scheduledFor": "2026-08-02T09:00:00Z",
		}),
	}

	if _, err := d.Dispatch(context.Background(), task, blocks, 0, false); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	tasks.mu.Lock()
	var subtask *entity.Task
	for _, candidate := range tasks.tasks {
		if candidate.ID != task.ID {
			subtask = candidate
		}
	}
	tasks.mu.Unlock()

	if subtask == nil {
		t.Fatal("expected a subtask to be created")
	}
	if subtask.Type != "SCHEDULED" || subtask.Priority != "HIGH" {
		t.Errorf("expected uppercased type/priority, got %s/%s", subtask.Type, subtask.Priority)
	}
	if subtask.CreatedBy != entity.CreatorAssistant {
		t.Errorf("expected ASSISTANT creator, got %s", subtask.CreatedBy)
	}
	if string(subtask.Model) != string(task.Model) {
		t.Errorf("expected parent model inherited, got %s", subtask.Model)
	}
	want := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	if subtask.ScheduledFor == nil || !subtask.ScheduledFor.Equal(want) {
		t.Errorf("expected scheduledFor %v, got %v", want, subtask.ScheduledFor)
	}

	tr := messages.all()[0].Content[0]
	if tr.IsError || tr.Content[0].Text != "The task has been created" {
		t.Errorf("unexpected create_task result: %+v", tr)
	}
}

func TestDispatch_ComputerFailureDegradesAtLimit(t *testing.T) {
	failing := &mockComputerHandler{results: []entity.ContentBlock{
		entity.NewToolResultBlock("", []entity.ContentBlock{entity.NewTextBlock("boom")}, true),
	}}
	d, tasks, messages, task := dispatcherFixture(t, failing)

	// First failure: counted, no degradation.
	result, err := d.Dispatch(context.Background(), task, []entity.ContentBlock{
		toolUse("c1", "computer_screenshot", map[string]any{}),
	}, 0, false)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Degraded || result.ComputerFailures != 1 {
		t.Fatalf("expected 1 failure without degradation, got %+v", result)
	}
	if got := tasks.get(task.ID).Status; got != entity.TaskStatusRunning {
		t.Fatalf("task degraded too early: %s", got)
	}

	// Second consecutive failure crosses the limit: NEEDS_HELP, sweep cut.
	result, err = d.Dispatch(context.Background(), task, []entity.ContentBlock{
		toolUse("c2", "computer_screenshot", map[string]any{}),
		toolUse("c3", "computer_screenshot", map[string]any{}),
	}, result.ComputerFailures, false)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !result.Degraded || result.AppliedStatus != entity.TaskStatusNeedsHelp {
		t.Fatalf("expected degradation, got %+v", result)
	}
	if got := tasks.get(task.ID).Status; got != entity.TaskStatusNeedsHelp {
		t.Errorf("expected NEEDS_HELP, got %s", got)
	}
	if !strings.Contains(tasks.get(task.ID).Error, "Desktop automation") {
		t.Errorf("expected degradation error, got %q", tasks.get(task.ID).Error)
	}
	// c3 was never dispatched
	if n := failing.callCount(); n != 2 {
		t.Errorf("expected 2 computer calls, got %d", n)
	}
	// Both sweeps persisted their results
	if n := len(messages.all()); n != 2 {
		t.Errorf("expected 2 tool-result messages, got %d", n)
	}
}

func TestDispatch_SuccessResetsFailureCount(t *testing.T) {
	ok := &mockComputerHandler{}
	d, _, _, task := dispatcherFixture(t, ok)

	result, err := d.Dispatch(context.Background(), task, []entity.ContentBlock{
		toolUse("c1", "computer_click_mouse", map[string]any{"button": "left"}),
	}, 1, false)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.ComputerFailures != 0 {
		t.Errorf("expected failure count reset on success, got %d", result.ComputerFailures)
	}
}

func TestDispatch_DegradedTaskNeverCallsComputer(t *testing.T) {
	handler := &mockComputerHandler{}
	d, _, messages, task := dispatcherFixture(t, handler)

	result, err := d.Dispatch(context.Background(), task, []entity.ContentBlock{
		toolUse("c1", "computer_screenshot", map[string]any{}),
	}, 0, true)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if handler.callCount() != 0 {
		t.Error("degraded task must not dispatch computer tools")
	}
	if result.Degraded {
		t.Error("already-degraded tasks do not re-degrade")
	}
	// The tool_use still gets an error result so the turn stays well-formed.
	tr := messages.all()[0].Content[0]
	if !tr.IsError {
		t.Errorf("expected error result for suppressed computer tool, got %+v", tr)
	}
}

func TestDispatch_UnknownToolGetsErrorResult(t *testing.T) {
	d, _, messages, task := dispatcherFixture(t, nil)

	if _, err := d.Dispatch(context.Background(), task, []entity.ContentBlock{
		toolUse("t1", "launch_rockets", map[string]any{}),
	}, 0, false); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	tr := messages.all()[0].Content[0]
	if !tr.IsError || !strings.Contains(tr.Content[0].Text, "not available") {
		t.Errorf("unexpected unknown-tool result: %+v", tr)
	}
}

func TestDispatch_NoToolUse_NoMessage(t *testing.T) {
	d, _, messages, task := dispatcherFixture(t, nil)

	result, err := d.Dispatch(context.Background(), task, []entity.ContentBlock{
		entity.NewTextBlock("just narration"),
	}, 0, false)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(messages.all()) != 0 {
		t.Error("expected no tool-result message for a text-only turn")
	}
	if result.AppliedStatus != "" {
		t.Errorf("expected no transition, got %q", result.AppliedStatus)
	}
}

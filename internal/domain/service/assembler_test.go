package service

import (
	"context"
	"strings"
	"testing"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
)

func seedMessage(t *testing.T, repo *mockMessageRepo, taskID, text string, role entity.Role) *entity.Message {
	t.Helper()
	msg, err := entity.NewMessage(taskID, role, []entity.ContentBlock{entity.NewTextBlock(text)})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return msg
}

func TestAssemble_NoSummary(t *testing.T) {
	messages := newMockMessageRepo()
	summaries := &mockSummaryRepo{}
	seedMessage(t, messages, "task-1", "do the thing", entity.RoleUser)
	seedMessage(t, messages, "task-1", "on it", entity.RoleAssistant)

	a := NewConversationAssembler(messages, summaries, testLogger())
	assembly, err := a.Assemble(context.Background(), "task-1", false)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(assembly.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(assembly.Messages))
	}
	if len(assembly.Persisted) != 2 {
		t.Errorf("expected 2 persisted messages, got %d", len(assembly.Persisted))
	}
}

func TestAssemble_SummaryPrepended(t *testing.T) {
	messages := newMockMessageRepo()
	summaries := &mockSummaryRepo{}

	covered := seedMessage(t, messages, "task-1", "old context", entity.RoleUser)
	summary, _ := entity.NewSummary("task-1", "earlier: the agent opened firefox")
	_ = summaries.Create(context.Background(), summary)
	_ = messages.AttachSummary(context.Background(), "task-1", summary.ID, []string{covered.ID})

	fresh := seedMessage(t, messages, "task-1", "keep going", entity.RoleUser)

	a := NewConversationAssembler(messages, summaries, testLogger())
	assembly, err := a.Assemble(context.Background(), "task-1", false)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(assembly.Messages) != 2 {
		t.Fatalf("expected summary + 1 fresh message, got %d messages", len(assembly.Messages))
	}

	head := assembly.Messages[0]
	if head.Role != entity.RoleUser {
		t.Errorf("synthetic summary message must be USER, got %s", head.Role)
	}
	if head.ID != "" {
		t.Error("synthetic summary message must not carry an id")
	}
	if !strings.Contains(head.TextContent(), "the agent opened firefox") {
		t.Errorf("summary content missing: %q", head.TextContent())
	}

	// Covered messages are not resent
	if len(assembly.Persisted) != 1 || assembly.Persisted[0].ID != fresh.ID {
		t.Errorf("expected only the fresh message, got %v", assembly.PersistedIDs())
	}
}

func TestAssemble_DegradedAdvisoryAppended(t *testing.T) {
	messages := newMockMessageRepo()
	seedMessage(t, messages, "task-1", "do the thing", entity.RoleUser)

	a := NewConversationAssembler(messages, &mockSummaryRepo{}, testLogger())
	assembly, err := a.Assemble(context.Background(), "task-1", true)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	last := assembly.Messages[len(assembly.Messages)-1]
	if last.Role != entity.RoleUser || last.ID != "" {
		t.Errorf("advisory must be a synthetic USER message, got %+v", last)
	}
	if !strings.Contains(last.TextContent(), "must\nnot be requested") && !strings.Contains(last.TextContent(), "must not be requested") &&
		!strings.Contains(last.TextContent(), "unavailable") {
		t.Errorf("advisory text missing: %q", last.TextContent())
	}
	// The advisory is never part of the persisted set
	for _, id := range assembly.PersistedIDs() {
		if id == "" {
			t.Error("synthetic advisory leaked into the persisted set")
		}
	}
}

package service

import (
	"context"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/repository"
	"go.uber.org/zap"
)

// ConversationAssembler builds the message sequence fed to the LLM:
// the latest summary (replayed as a synthetic user turn), the unsummarized
// messages in creation order, and — for degraded tasks — an advisory that
// desktop automation is unavailable. Synthetic turns are never persisted.
type ConversationAssembler struct {
	messages  repository.MessageRepository
	summaries repository.SummaryRepository
	logger    *zap.Logger
}

// NewConversationAssembler creates an assembler.
func NewConversationAssembler(messages repository.MessageRepository, summaries repository.SummaryRepository, logger *zap.Logger) *ConversationAssembler {
	return &ConversationAssembler{
		messages:  messages,
		summaries: summaries,
		logger:    logger.With(zap.String("component", "assembler")),
	}
}

// Assembly is one assembled conversation.
type Assembly struct {
	// Messages is the full sequence for the LLM, synthetic turns included.
	Messages []*entity.Message
	// Persisted holds only the stored, unsummarized messages — the set a
	// subsequent summarization call covers.
	Persisted []*entity.Message
}

// PersistedIDs returns the ids of the persisted messages in order.
func (a *Assembly) PersistedIDs() []string {
	ids := make([]string, 0, len(a.Persisted))
	for _, m := range a.Persisted {
		ids = append(ids, m.ID)
	}
	return ids
}

// Assemble builds the conversation for one iteration of the given task.
func (a *ConversationAssembler) Assemble(ctx context.Context, taskID string, degraded bool) (*Assembly, error) {
	latest, err := a.summaries.FindLatest(ctx, taskID)
	if err != nil {
		return nil, err
	}

	persisted, err := a.messages.FindUnsummarized(ctx, taskID)
	if err != nil {
		return nil, err
	}

	assembly := &Assembly{Persisted: persisted}
	if latest != nil {
		assembly.Messages = append(assembly.Messages,
			entity.SyntheticMessage(entity.RoleUser, summaryContextPrefix+latest.Content))
	}
	assembly.Messages = append(assembly.Messages, persisted...)
	if degraded {
		assembly.Messages = append(assembly.Messages,
			entity.SyntheticMessage(entity.RoleUser, degradedToolsAdvisory))
	}

	a.logger.Debug("Conversation assembled",
		zap.String("task_id", taskID),
		zap.Bool("has_summary", latest != nil),
		zap.Int("persisted", len(persisted)),
		zap.Bool("degraded", degraded),
	)

	return assembly, nil
}

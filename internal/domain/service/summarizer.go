package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/repository"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/valueobject"
	"go.uber.org/zap"
)

// DefaultSummaryTokenRatio triggers compaction once a turn's reported token
// usage reaches this share of the model's context window.
const DefaultSummaryTokenRatio = 0.75

// Summarizer compresses conversation history. After an assistant turn it
// compares the turn's token usage against the context window and, past the
// threshold, drives a second toolless LLM call whose text output becomes a
// Summary row attached to every message that fed the call.
//
// Summarization is best-effort: every failure is logged, counted, and
// swallowed — it must never fail the task.
type Summarizer struct {
	summaries repository.SummaryRepository
	messages  repository.MessageRepository
	metrics   Metrics
	ratio     float64
	logger    *zap.Logger
}

// NewSummarizer creates a summarizer with the default token ratio.
func NewSummarizer(summaries repository.SummaryRepository, messages repository.MessageRepository, metrics Metrics, logger *zap.Logger) *Summarizer {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Summarizer{
		summaries: summaries,
		messages:  messages,
		metrics:   metrics,
		ratio:     DefaultSummaryTokenRatio,
		logger:    logger.With(zap.String("component", "summarizer")),
	}
}

// ShouldSummarize reports whether the turn's usage crossed the threshold.
func (s *Summarizer) ShouldSummarize(descriptor valueobject.ModelDescriptor, totalTokens int) bool {
	threshold := float64(descriptor.ContextWindowOrDefault()) * s.ratio
	return float64(totalTokens) >= threshold
}

// Summarize runs one compaction round over the assembled conversation.
func (s *Summarizer) Summarize(ctx context.Context, gen MessageGenerator, task *entity.Task, descriptor valueobject.ModelDescriptor, assembly *Assembly) {
	messages := make([]*entity.Message, 0, len(assembly.Messages)+1)
	messages = append(messages, assembly.Messages...)
	messages = append(messages, entity.SyntheticMessage(entity.RoleUser, summarizationUserPrompt))

	resp, err := gen.GenerateMessage(ctx, &GenerateRequest{
		SystemPrompt: summarizationSystemPrompt,
		Messages:     messages,
		Model:        descriptor.Name,
		ToolsEnabled: false,
	})
	if err != nil {
		s.swallow(task.ID, "summarization call failed", err)
		return
	}

	var parts []string
	for _, block := range resp.ContentBlocks {
		if block.Type == entity.BlockTypeText && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	content := strings.Join(parts, "\n")
	if content == "" {
		s.swallow(task.ID, "summarization produced no text", nil)
		return
	}

	summary, err := entity.NewSummary(task.ID, content)
	if err != nil {
		s.swallow(task.ID, "summary rejected", err)
		return
	}
	if err := s.summaries.Create(ctx, summary); err != nil {
		s.swallow(task.ID, "summary create failed", err)
		return
	}
	if err := s.messages.AttachSummary(ctx, task.ID, summary.ID, assembly.PersistedIDs()); err != nil {
		s.swallow(task.ID, "summary attach failed", err)
		return
	}

	s.metrics.RecordSummarization(nil)
	s.logger.Info("Conversation summarized",
		zap.String("task_id", task.ID),
		zap.String("summary_id", summary.ID),
		zap.Int("messages_covered", len(assembly.Persisted)),
		zap.Int("summary_chars", len(content)),
	)
}

func (s *Summarizer) swallow(taskID, msg string, err error) {
	if err == nil {
		err = errors.New(msg)
	}
	s.metrics.RecordSummarization(err)
	s.logger.Warn("Summarization skipped: "+msg,
		zap.String("task_id", taskID),
		zap.Error(err),
	)
}

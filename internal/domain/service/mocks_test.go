package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	domainErrors "github.com/bytebot-ai/bytebot/agent/pkg/errors"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// --- Task repository mock ---

type mockTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*entity.Task
}

func newMockTaskRepo(tasks ...*entity.Task) *mockTaskRepo {
	repo := &mockTaskRepo{tasks: make(map[string]*entity.Task)}
	for _, task := range tasks {
		repo.tasks[task.ID] = task
	}
	return repo
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

func (m *mockTaskRepo) FindByID(ctx context.Context, id string) (*entity.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, domainErrors.NewNotFoundError("task not found")
	}
	clone := *task
	return &clone, nil
}

func (m *mockTaskRepo) Update(ctx context.Context, id string, patch entity.TaskPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return domainErrors.NewNotFoundError("task not found")
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Error != nil {
		task.Error = *patch.Error
	}
	if patch.CompletedAt != nil {
		task.CompletedAt = patch.CompletedAt
	}
	return nil
}

func (m *mockTaskRepo) get(id string) *entity.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	task := m.tasks[id]
	clone := *task
	return &clone
}

// --- Message repository mock ---

type mockMessageRepo struct {
	mu       sync.Mutex
	messages []*entity.Message
	attached map[string]string // message id → summary id
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{attached: make(map[string]string)}
}

func (m *mockMessageRepo) Create(ctx context.Context, message *entity.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *mockMessageRepo) FindUnsummarized(ctx context.Context, taskID string) ([]*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Message
	for _, msg := range m.messages {
		if msg.TaskID == taskID && msg.SummaryID == nil {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockMessageRepo) FindByTaskID(ctx context.Context, taskID string) ([]*entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Message
	for _, msg := range m.messages {
		if msg.TaskID == taskID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockMessageRepo) AttachSummary(ctx context.Context, taskID, summaryID string, messageIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range messageIDs {
		m.attached[id] = summaryID
		for _, msg := range m.messages {
			if msg.ID == id {
				sid := summaryID
				msg.SummaryID = &sid
			}
		}
	}
	return nil
}

func (m *mockMessageRepo) all() []*entity.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// --- Summary repository mock ---

type mockSummaryRepo struct {
	mu        sync.Mutex
	summaries []*entity.Summary
}

func (m *mockSummaryRepo) Create(ctx context.Context, summary *entity.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, summary)
	return nil
}

func (m *mockSummaryRepo) FindLatest(ctx context.Context, taskID string) (*entity.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *entity.Summary
	for _, s := range m.summaries {
		if s.TaskID == taskID {
			latest = s
		}
	}
	return latest, nil
}

// --- Message generator mock ---

type generatorCall struct {
	req *GenerateRequest
}

// mockGenerator returns scripted responses (or errors) in order; the last
// script entry repeats once the script is exhausted.
type mockGenerator struct {
	mu      sync.Mutex
	script  []func(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	calls   []generatorCall
	blockCh chan struct{} // when set, calls block until the context is done
}

func (m *mockGenerator) GenerateMessage(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, generatorCall{req: req})
	n := len(m.calls) - 1
	var fn func(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	if len(m.script) > 0 {
		if n >= len(m.script) {
			n = len(m.script) - 1
		}
		fn = m.script[n]
	}
	blockCh := m.blockCh
	m.mu.Unlock()

	if blockCh != nil {
		select {
		case <-ctx.Done():
			return nil, NewInterrupt(ctx.Err())
		case <-blockCh:
		}
	}
	if fn == nil {
		return &GenerateResponse{}, nil
	}
	return fn(ctx, req)
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockGenerator) call(i int) generatorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

// --- Resolver mock ---

type mockResolver struct {
	generators map[string]MessageGenerator
}

func (m *mockResolver) Resolve(provider string) (MessageGenerator, bool) {
	g, ok := m.generators[provider]
	return g, ok
}

// --- Computer handler mock ---

type mockComputerHandler struct {
	mu      sync.Mutex
	results []entity.ContentBlock // consumed in order; last repeats
	calls   int
}

func (m *mockComputerHandler) HandleComputerToolUse(ctx context.Context, block entity.ContentBlock) entity.ContentBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.calls
	m.calls++
	if len(m.results) == 0 {
		return entity.NewToolResultBlock(block.ID,
			[]entity.ContentBlock{entity.NewTextBlock("ok")}, false)
	}
	if n >= len(m.results) {
		n = len(m.results) - 1
	}
	result := m.results[n]
	result.ToolUseID = block.ID
	return result
}

func (m *mockComputerHandler) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Input capture mock ---

type mockCapture struct {
	mu      sync.Mutex
	started []string
	stops   int
}

func (m *mockCapture) Start(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, taskID)
}

func (m *mockCapture) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

// --- fixtures ---

func runningTask(t *testing.T, model string) *entity.Task {
	t.Helper()
	task, err := entity.NewTask("open firefox and check the news", []byte(model), entity.CreatorUser)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	task.Status = entity.TaskStatusRunning
	return task
}

// newTestProcessor builds a processor over mocks with a short retry delay.
func newTestProcessor(t *testing.T, tasks *mockTaskRepo, messages *mockMessageRepo, summaries *mockSummaryRepo, resolver ProviderResolver, computer ComputerToolHandler, capture InputCapture) *AgentProcessor {
	t.Helper()
	logger := testLogger()
	if summaries == nil {
		summaries = &mockSummaryRepo{}
	}
	if computer == nil {
		computer = &mockComputerHandler{}
	}
	assembler := NewConversationAssembler(messages, summaries, logger)
	summarizer := NewSummarizer(summaries, messages, nil, logger)
	dispatcher := NewToolDispatcher(tasks, messages, computer, nil, logger)
	p := NewAgentProcessor(tasks, messages, resolver, assembler, summarizer, dispatcher, capture, nil, logger)
	p.SetRetryDelay(2 * time.Millisecond)
	return p
}

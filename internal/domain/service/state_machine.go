package service

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProcessorState represents the discrete states of one processing run.
type ProcessorState string

const (
	StateIdle      ProcessorState = "idle"       // No task held
	StateRunning   ProcessorState = "running"    // Iterations advancing
	StateRetrying  ProcessorState = "retrying"   // Waiting between interrupt retries
	StateCompleted ProcessorState = "completed"  // Task reported completed
	StateFailed    ProcessorState = "failed"     // Task failed
	StateNeedsHelp ProcessorState = "needs_help" // Task waiting on a human
	StateCancelled ProcessorState = "cancelled"  // Run cancelled by the user
)

// validTransitions defines the allowed state transitions.
// Key = from state, Value = set of allowed target states.
var validTransitions = map[ProcessorState]map[ProcessorState]bool{
	StateIdle: {
		StateRunning: true,
	},
	StateRunning: {
		StateRetrying:  true,
		StateCompleted: true,
		StateFailed:    true,
		StateNeedsHelp: true,
		StateCancelled: true,
		StateIdle:      true, // task left RUNNING externally; run winds down
	},
	StateRetrying: {
		StateRunning:   true,
		StateNeedsHelp: true,
		StateCancelled: true,
		StateIdle:      true,
	},
	// Terminal states — no transitions out
	StateCompleted: {},
	StateFailed:    {},
	StateNeedsHelp: {},
	StateCancelled: {},
}

// StateSnapshot captures a run's state at a point in time.
type StateSnapshot struct {
	State      ProcessorState `json:"state"`
	TaskID     string         `json:"task_id"`
	Iteration  int            `json:"iteration"`
	TokensUsed int            `json:"tokens_used"`
	RetryCount int            `json:"retry_count"`
	Elapsed    time.Duration  `json:"elapsed"`
	ModelUsed  string         `json:"model_used,omitempty"`
}

// StateMachine tracks one processing run. Thread-safe — lifecycle handlers
// read state concurrently with the iteration goroutine.
type StateMachine struct {
	mu         sync.RWMutex
	state      ProcessorState
	taskID     string
	iteration  int
	tokensUsed int
	retryCount int
	startTime  time.Time
	modelUsed  string
	logger     *zap.Logger

	// Listeners notified on each state transition
	listeners []func(from, to ProcessorState, snap StateSnapshot)
}

// NewStateMachine creates a state machine in Idle for the given task.
func NewStateMachine(taskID string, logger *zap.Logger) *StateMachine {
	return &StateMachine{
		state:     StateIdle,
		taskID:    taskID,
		startTime: time.Now(),
		logger:    logger,
	}
}

// State returns the current state.
func (sm *StateMachine) State() ProcessorState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Snapshot returns a full copy of the current run state.
func (sm *StateMachine) Snapshot() StateSnapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.snapshotLocked()
}

func (sm *StateMachine) snapshotLocked() StateSnapshot {
	return StateSnapshot{
		State:      sm.state,
		TaskID:     sm.taskID,
		Iteration:  sm.iteration,
		TokensUsed: sm.tokensUsed,
		RetryCount: sm.retryCount,
		Elapsed:    time.Since(sm.startTime),
		ModelUsed:  sm.modelUsed,
	}
}

// Transition attempts to move to a new state.
// Returns an error if the transition is not allowed.
func (sm *StateMachine) Transition(to ProcessorState) error {
	sm.mu.Lock()
	from := sm.state

	allowed, ok := validTransitions[from]
	if !ok || !allowed[to] {
		sm.mu.Unlock()
		err := fmt.Errorf("invalid state transition: %s → %s", from, to)
		sm.logger.Error("State machine violation", zap.Error(err))
		return err
	}

	sm.state = to
	snap := sm.snapshotLocked()
	listeners := make([]func(from, to ProcessorState, snap StateSnapshot), len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	sm.logger.Debug("State transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("iteration", snap.Iteration),
	)

	// Notify listeners outside the lock
	for _, fn := range listeners {
		fn(from, to, snap)
	}

	return nil
}

// OnTransition registers a listener called on every state change.
func (sm *StateMachine) OnTransition(fn func(from, to ProcessorState, snap StateSnapshot)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, fn)
}

// --- Mutation helpers ---

// SetIteration updates the iteration counter.
func (sm *StateMachine) SetIteration(n int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.iteration = n
}

// IncrementIteration bumps the iteration counter and returns the new value.
func (sm *StateMachine) IncrementIteration() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.iteration++
	return sm.iteration
}

// AddTokens increments the token counter.
func (sm *StateMachine) AddTokens(n int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.tokensUsed += n
}

// RecordRetry increments the retry counter.
func (sm *StateMachine) RecordRetry() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.retryCount++
}

// SetModel sets the model identifier used by the run.
func (sm *StateMachine) SetModel(model string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.modelUsed = model
}

// IsTerminal returns true once the run reached a terminal state.
func (sm *StateMachine) IsTerminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	switch sm.state {
	case StateCompleted, StateFailed, StateNeedsHelp, StateCancelled:
		return true
	}
	return false
}

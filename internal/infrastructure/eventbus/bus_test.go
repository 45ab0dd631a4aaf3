package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

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

func TestPublishSubscribe(t *testing.T) {
	bus := NewInMemoryBus(zap.NewNop(), 16)
	defer bus.Close()

	var mu sync.Mutex
	var got []string
	bus.Subscribe(EventTaskTakeover, func(ctx context.Context, event Event) {
		payload := event.Payload().(TaskEventPayload)
		mu.Lock()
		got = append(got, payload.TaskID)
		mu.Unlock()
	})

	bus.Publish(context.Background(), NewTaskEvent(EventTaskTakeover, "task-1"))
	bus.Publish(context.Background(), NewTaskEvent(EventTaskResume, "task-2")) // different type, not delivered

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "task-1" {
		t.Errorf("expected task-1, got %v", got)
	}
}

func TestWildcardSubscriber(t *testing.T) {
	bus := NewInMemoryBus(zap.NewNop(), 16)
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("*", func(ctx context.Context, event Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(context.Background(), NewTaskEvent(EventTaskTakeover, "t"))
	bus.Publish(context.Background(), NewTaskEvent(EventTaskCancel, "t"))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	})
}

func TestPanickingHandlerDoesNotKillBus(t *testing.T) {
	bus := NewInMemoryBus(zap.NewNop(), 16)
	defer bus.Close()

	var mu sync.Mutex
	delivered := false
	bus.Subscribe(EventTaskCancel, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTaskCancel, func(ctx context.Context, event Event) {
		mu.Lock()
		delivered = true
		mu.Unlock()
	})

	bus.Publish(context.Background(), NewTaskEvent(EventTaskCancel, "t"))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered
	})
}

func TestPublishAfterClose(t *testing.T) {
	bus := NewInMemoryBus(zap.NewNop(), 16)
	bus.Close()
	// Must not panic.
	bus.Publish(context.Background(), NewTaskEvent(EventTaskCancel, "t"))
}

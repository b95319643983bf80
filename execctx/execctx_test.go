package execctx

import (
	"sync"
	"testing"
	"time"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := NewLoop(4)
	defer l.Close()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		i := i
		l.Run(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == 9 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for loop to drain")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("expected strict FIFO order, got %v", order)
		}
	}
}

func TestLoopIDStable(t *testing.T) {
	l := NewLoop(1)
	defer l.Close()
	if l.ID() == "" {
		t.Fatal("expected a non-empty id")
	}
	if l.ID() != l.ID() {
		t.Fatal("expected ID to be stable across calls")
	}
}

func TestLoopDistinctIDs(t *testing.T) {
	a := NewLoop(1)
	b := NewLoop(1)
	defer a.Close()
	defer b.Close()
	if a.ID() == b.ID() {
		t.Fatal("expected distinct contexts to have distinct ids")
	}
}

func TestLoopRunAfterCloseIsNoop(t *testing.T) {
	l := NewLoop(1)
	l.Close()
	l.Close() // must be safe to call twice

	ran := false
	l.Run(func() { ran = true })
	time.Sleep(10 * time.Millisecond)
	if ran {
		t.Fatal("expected Run after Close to be a no-op")
	}
}

func TestInlineRunsSynchronously(t *testing.T) {
	i := NewInline()
	ran := false
	i.Run(func() { ran = true })
	if !ran {
		t.Fatal("expected Inline.Run to execute synchronously")
	}
}

func TestInlineDistinctIDs(t *testing.T) {
	a := NewInline()
	b := NewInline()
	if a.ID() == b.ID() {
		t.Fatal("expected distinct Inline contexts to have distinct ids")
	}
}

package containers

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/frameforge/engine/core"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[int](3)
	for i := 1; i <= 3; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	if err := rq.Enqueue(4); !errors.Is(err, core.ErrQueueFull) {
		t.Fatalf("Enqueue on full queue:\nhave %v\nwant %v", err, core.ErrQueueFull)
	}
	if v, _ := rq.Peek(); v != 1 {
		t.Fatalf("Peek:\nhave %d\nwant 1", v)
	}
	for want := 1; want <= 3; want++ {
		v, err := rq.Dequeue()
		if err != nil || v != want {
			t.Fatalf("Dequeue:\nhave %d, %v\nwant %d, nil", v, err, want)
		}
	}
	if _, err := rq.Dequeue(); !errors.Is(err, core.ErrQueueEmpty) {
		t.Fatalf("Dequeue on empty queue:\nhave %v\nwant %v", err, core.ErrQueueEmpty)
	}
}

func TestRingQueueWrapAround(t *testing.T) {
	rq := NewRingQueue[string](2)
	rq.Enqueue("a")
	rq.Enqueue("b")
	rq.Dequeue()
	rq.Enqueue("c")
	if rq.Len() != 2 || !rq.IsFull() {
		t.Fatalf("Len/IsFull:\nhave %d/%v\nwant 2/true", rq.Len(), rq.IsFull())
	}
	for _, want := range []string{"b", "c"} {
		if v, _ := rq.Dequeue(); v != want {
			t.Fatalf("Dequeue:\nhave %q\nwant %q", v, want)
		}
	}
}

func TestBlockingQueuePopWaitsForPush(t *testing.T) {
	q := NewBlockingQueue[int](4)
	got := make(chan int, 1)
	go func() {
		v, ok := q.Pop()
		if ok {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.TryPush(7); err != nil {
		t.Fatalf("TryPush: %v", err)
	}
	select {
	case v := <-got:
		if v != 7 {
			t.Fatalf("Pop:\nhave %d\nwant 7", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake up after TryPush")
	}
}

func TestBlockingQueueFullAndClose(t *testing.T) {
	q := NewBlockingQueue[int](1)
	if err := q.TryPush(1); err != nil {
		t.Fatalf("TryPush: %v", err)
	}
	if err := q.TryPush(2); !errors.Is(err, core.ErrQueueFull) {
		t.Fatalf("TryPush on full queue:\nhave %v\nwant %v", err, core.ErrQueueFull)
	}

	q.Close()
	if err := q.TryPush(3); !errors.Is(err, core.ErrQueueClosed) {
		t.Fatalf("TryPush on closed queue:\nhave %v\nwant %v", err, core.ErrQueueClosed)
	}
	// queued elements survive Close
	if v, ok := q.Pop(); !ok || v != 1 {
		t.Fatalf("Pop after Close:\nhave %d, %v\nwant 1, true", v, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on closed empty queue returned ok")
	}
}

func TestBlockingQueueCloseWakesConsumers(t *testing.T) {
	q := NewBlockingQueue[int](1)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}
	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumers still blocked after Close")
	}
}

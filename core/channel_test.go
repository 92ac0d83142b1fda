package core

import (
	"errors"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]("test", 3)
	for i := 1; i <= 3; i++ {
		if err := q.TryAdd(i); err != nil {
			t.Fatalf("TryAdd %d failed: %v", i, err)
		}
	}
	err := q.TryAdd(4)
	if !errors.Is(err, QueueFullFault) {
		t.Errorf("Expected QueueFullFault, got %v", err)
	}
	var e *E
	if !errors.As(err, &e) || e.Op != "test" {
		t.Errorf("Expected the queue name in the error, got %v", err)
	}

	for i := 1; i <= 3; i++ {
		v, ok := q.TryRemove()
		if !ok || v != i {
			t.Errorf("Expected %d, got %d ok=%v", i, v, ok)
		}
	}
	if _, ok := q.TryRemove(); ok {
		t.Error("Expected empty queue")
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue[TaskSpec]("specs", TaskSetupQueueDepth)
	q.TryAdd(TaskSpec{})
	q.TryAdd(TaskSpec{})
	if n := q.Drain(); n != 2 {
		t.Errorf("Expected 2 drained, got %d", n)
	}
	if q.Len() != 0 || q.Cap() != TaskSetupQueueDepth {
		t.Errorf("Unexpected len/cap %d/%d", q.Len(), q.Cap())
	}
}

func TestQueueAcrossGoroutines(t *testing.T) {
	q := NewQueue[uint32]("xcore", 4)
	done := make(chan uint32)
	go func() {
		var sum uint32
		for got := 0; got < 100; {
			if v, ok := q.TryRemove(); ok {
				sum += v
				got++
			}
		}
		done <- sum
	}()
	for i := uint32(1); i <= 100; {
		if q.TryAdd(i) == nil {
			i++
		}
	}
	if sum := <-done; sum != 5050 {
		t.Errorf("Expected 5050, got %d", sum)
	}
}

func TestReadyLatch(t *testing.T) {
	var l ReadyLatch
	if l.Wait(5 * time.Millisecond) {
		t.Error("Wait must time out before Signal")
	}
	go func() {
		time.Sleep(2 * time.Millisecond)
		l.Signal()
	}()
	if !l.Wait(time.Second) {
		t.Error("Wait did not see Signal")
	}
	if !l.IsSet() {
		t.Error("Expected latch set")
	}
}

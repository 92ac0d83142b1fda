package core

import "testing"

func TestTaskHeapOrdersAcrossWrap(t *testing.T) {
	var tasks [MaxWaveformTasks]WaveformTask
	q := taskHeap{tasks: &tasks}

	times := []uint32{0x00000010, 0xFFFFFFF0, 0x00000005, 0xFFFFFF00, 0x00000100}
	for i, at := range times {
		tasks[i].nextTransition = at
		q.Push(TaskHandle(i))
	}

	want := []uint32{0xFFFFFF00, 0xFFFFFFF0, 0x00000005, 0x00000010, 0x00000100}
	for i, at := range want {
		h, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop %d: heap unexpectedly empty", i)
		}
		if tasks[h].nextTransition != at {
			t.Errorf("Pop %d: expected 0x%08x, got 0x%08x", i, at, tasks[h].nextTransition)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Expected empty heap")
	}
}

func TestTaskHeapSeesAdvancedTask(t *testing.T) {
	var tasks [MaxWaveformTasks]WaveformTask
	q := taskHeap{tasks: &tasks}
	tasks[0].nextTransition = 10
	tasks[1].nextTransition = 20
	q.Push(0)
	q.Push(1)

	h, _ := q.Pop()
	tasks[h].nextTransition = 30 // Advance through the handle
	q.Push(h)

	if first, _ := q.Peek(); first != 1 {
		t.Errorf("Expected handle 1 first after advancing handle 0, got %d", first)
	}
}

func TestTaskHeapRemove(t *testing.T) {
	var tasks [MaxWaveformTasks]WaveformTask
	q := taskHeap{tasks: &tasks}
	for i := 0; i < 6; i++ {
		tasks[i].nextTransition = uint32(60 - i*10)
		q.Push(TaskHandle(i))
	}
	if !q.Remove(5) {
		t.Fatal("Remove of a queued handle failed")
	}
	if q.Remove(5) {
		t.Error("Second remove of the same handle must fail")
	}
	prev := uint32(0)
	for q.Len() > 0 {
		h, _ := q.Pop()
		if h == 5 {
			t.Error("Removed handle popped")
		}
		if tasks[h].nextTransition < prev {
			t.Errorf("Heap order broken after remove")
		}
		prev = tasks[h].nextTransition
	}
}

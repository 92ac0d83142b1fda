package core

// TaskHandle is a stable index into the scheduler task arena
type TaskHandle uint8

// taskHeap is a fixed-capacity binary min-heap of handles keyed by the
// next transition time of the task each handle refers to. The heap never
// holds task data, so advancing a task through its handle followed by a
// push keeps the ordering correct.
type taskHeap struct {
	items [MaxWaveformTasks]TaskHandle
	n     int
	tasks *[MaxWaveformTasks]WaveformTask
}

func (q *taskHeap) less(i, j int) bool {
	return q.tasks[q.items[i]].Before(&q.tasks[q.items[j]])
}

func (q *taskHeap) swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *taskHeap) Len() int { return q.n }

func (q *taskHeap) Clear() { q.n = 0 }

// Push inserts h. Returns false when the heap is full.
func (q *taskHeap) Push(h TaskHandle) bool {
	if q.n == len(q.items) {
		return false
	}
	q.items[q.n] = h
	q.n++
	q.up(q.n - 1)
	return true
}

// Peek returns the earliest handle without removing it
func (q *taskHeap) Peek() (TaskHandle, bool) {
	if q.n == 0 {
		return 0, false
	}
	return q.items[0], true
}

// Pop removes and returns the earliest handle
func (q *taskHeap) Pop() (TaskHandle, bool) {
	if q.n == 0 {
		return 0, false
	}
	h := q.items[0]
	q.n--
	q.items[0] = q.items[q.n]
	q.down(0)
	return h, true
}

// Remove drops h wherever it sits in the heap
func (q *taskHeap) Remove(h TaskHandle) bool {
	for i := 0; i < q.n; i++ {
		if q.items[i] != h {
			continue
		}
		q.n--
		if i != q.n {
			q.items[i] = q.items[q.n]
			q.down(i)
			q.up(i)
		}
		return true
	}
	return false
}

func (q *taskHeap) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.less(i, parent) {
			return
		}
		q.swap(i, parent)
		i = parent
	}
}

func (q *taskHeap) down(i int) {
	for {
		left := 2*i + 1
		if left >= q.n {
			return
		}
		least := left
		if right := left + 1; right < q.n && q.less(right, left) {
			least = right
		}
		if !q.less(least, i) {
			return
		}
		q.swap(i, least)
		i = least
	}
}

package core

import (
	"sync/atomic"
	"time"
)

// Queue is a fixed-capacity FIFO between the two cores. Producers never
// block; consumers drain it opportunistically.
type Queue[T any] struct {
	name string
	ch   chan T
}

// NewQueue allocates a queue with room for depth messages
func NewQueue[T any](name string, depth int) *Queue[T] {
	return &Queue[T]{name: name, ch: make(chan T, depth)}
}

// TryAdd copies v into the queue, or returns QueueFullFault
func (q *Queue[T]) TryAdd(v T) error {
	select {
	case q.ch <- v:
		return nil
	default:
		return &E{C: QueueFullFault, Op: q.name}
	}
}

// TryRemove pops the oldest message if there is one
func (q *Queue[T]) TryRemove() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Drain discards every queued message and returns how many were dropped
func (q *Queue[T]) Drain() int {
	n := 0
	for {
		if _, ok := q.TryRemove(); !ok {
			return n
		}
		n++
	}
}

func (q *Queue[T]) Len() int     { return len(q.ch) }
func (q *Queue[T]) Cap() int     { return cap(q.ch) }
func (q *Queue[T]) Name() string { return q.name }

// ReadyLatch is the one-time startup handshake between the cores
type ReadyLatch struct {
	set atomic.Bool
}

// Signal marks the peer as ready
func (l *ReadyLatch) Signal() { l.set.Store(true) }

// IsSet reports whether Signal was called
func (l *ReadyLatch) IsSet() bool { return l.set.Load() }

// Wait blocks until Signal is called or timeout elapses. A zero timeout
// waits forever. This is the only blocking call between the cores.
func (l *ReadyLatch) Wait(timeout time.Duration) bool {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for !l.set.Load() {
		if timeout > 0 && time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

// WaveformChannel carries waveform schedule traffic between the cores
type WaveformChannel struct {
	TaskSetup *Queue[TaskSpec]
	Control   *Queue[ControlSignal]
	Errors    *Queue[ScheduleError]
	Ready     ReadyLatch
}

// NewWaveformChannel allocates every waveform queue
func NewWaveformChannel() *WaveformChannel {
	return &WaveformChannel{
		TaskSetup: NewQueue[TaskSpec]("task_setup", TaskSetupQueueDepth),
		Control:   NewQueue[ControlSignal]("control", ControlQueueDepth),
		Errors:    NewQueue[ScheduleError]("schedule_error", ErrorQueueDepth),
	}
}

// ExposureChannel carries exposure sequencer traffic between the cores
type ExposureChannel struct {
	Enable      *Queue[bool]
	Add         *Queue[LaserTaskSettings]
	Remove      *Queue[uint8]
	Clear       *Queue[struct{}]
	Reconfigure *Queue[ReconfigureTask]
	RisingEdge  *Queue[RisingEdgeEvent]
	Errors      *Queue[ScheduleError]
	Ready       ReadyLatch
}

// NewExposureChannel allocates every exposure queue
func NewExposureChannel() *ExposureChannel {
	return &ExposureChannel{
		Enable:      NewQueue[bool]("enable", ExposureQueueDepth),
		Add:         NewQueue[LaserTaskSettings]("add_task", MaxLaserTasks),
		Remove:      NewQueue[uint8]("remove_task", ExposureQueueDepth),
		Clear:       NewQueue[struct{}]("clear_tasks", ExposureQueueDepth),
		Reconfigure: NewQueue[ReconfigureTask]("reconfigure_task", ReconfigureQueueDepth),
		RisingEdge:  NewQueue[RisingEdgeEvent]("rising_edge", RisingEdgeQueueDepth),
		Errors:      NewQueue[ScheduleError]("exposure_error", ErrorQueueDepth),
	}
}

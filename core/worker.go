package core

// WaveformWorker is the scheduling-core loop body for the waveform app.
// It turns queued task specs into scheduler tasks, applies control
// signals and keeps the scheduler serviced.
type WaveformWorker struct {
	Scheduler *EventScheduler
	Channel   *WaveformChannel

	// OnFault runs once per fault, on the scheduling core
	OnFault func(ScheduleError)

	port     PortDriver
	reported bool
}

// NewWaveformWorker wires a scheduler to its channel
func NewWaveformWorker(sched *EventScheduler, port PortDriver, ch *WaveformChannel) *WaveformWorker {
	return &WaveformWorker{Scheduler: sched, Channel: ch, port: port}
}

// Init clears the schedule and tells the commanding core we are ready
func (w *WaveformWorker) Init() {
	w.Scheduler.Reset()
	w.Channel.Ready.Signal()
}

// Step runs one non-blocking iteration
func (w *WaveformWorker) Step() {
	for {
		spec, ok := w.Channel.TaskSetup.TryRemove()
		if !ok {
			break
		}
		w.addTask(spec)
	}

	for {
		sig, ok := w.Channel.Control.TryRemove()
		if !ok {
			break
		}
		w.control(sig)
	}

	if err := w.Scheduler.Service(); err != nil {
		w.fault(err)
	}
}

// addTask checks the spec against the scheduler before building the task,
// since building it reconfigures the pins.
func (w *WaveformWorker) addTask(spec TaskSpec) {
	err := spec.Validate()
	if err == nil {
		err = w.Scheduler.Admit(spec.PinMask())
	}
	if err == nil {
		var task *WaveformTask
		if task, err = spec.NewTask(w.port); err == nil {
			_, err = w.Scheduler.AddTask(task)
		}
	}
	if err != nil {
		DebugAsync("[SCHED] rejected task: " + err.Error())
		w.Channel.Errors.TryAdd(FaultOf(err))
	}
}

func (w *WaveformWorker) control(sig ControlSignal) {
	switch {
	case sig.Abort():
		w.Scheduler.Reset()
		w.reported = false
	case sig.Start():
		w.reported = false
		if err := w.Scheduler.Start(); err != nil {
			w.fault(err)
		}
	}
}

func (w *WaveformWorker) fault(err error) {
	if w.reported {
		return
	}
	w.reported = true
	f := FaultOf(err)
	DebugAsync("[SCHED] fault: " + err.Error())
	w.Channel.Errors.TryAdd(f)
	if w.OnFault != nil {
		w.OnFault(f)
	}
}

// ExposureWorker is the scheduling-core loop body for the FIP app
type ExposureWorker struct {
	Sequencer *ExposureSequencer
	Channel   *ExposureChannel
}

// NewExposureWorker wires a sequencer to its channel
func NewExposureWorker(seq *ExposureSequencer, ch *ExposureChannel) *ExposureWorker {
	return &ExposureWorker{Sequencer: seq, Channel: ch}
}

// Init clears the task list and tells the commanding core we are ready
func (w *ExposureWorker) Init() {
	w.Sequencer.SetEnabled(false)
	w.Sequencer.ClearTasks()
	w.Channel.Ready.Signal()
}

// Step runs one iteration; it blocks for a full pass when enabled
func (w *ExposureWorker) Step() {
	w.Sequencer.Step()
}

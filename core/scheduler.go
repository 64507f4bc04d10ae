package core

import "errors"

const (
	MaxTasks         = 7    // Default task table size
	MaxClockPeriodMs = 1000 // Coarsest tick period Init accepts
)

var (
	ErrClockPeriod = errors.New("clock period must be 1..1000 ms")
	ErrNilTask     = errors.New("task is nil")
	ErrTableFull   = errors.New("task table full")
	ErrDuplicateID = errors.New("task id already registered")
)

// Stats holds scheduler counters since the last Init
type Stats struct {
	Ticks        uint32 // Ticks accepted while running
	Seconds      uint32 // Second boundaries crossed
	Runs         uint32 // Callbacks invoked
	Faults       uint32 // Callbacks that panicked
	Rejected     uint32 // Add calls refused for a full table
	TraceDropped uint32 // Trace events overwritten before being drained
}

// Scheduler is a cooperative round-robin task scheduler with a fixed
// task table.
//
// Tick is meant to be called from a periodic timer interrupt and only moves
// countdowns. Dispatch is meant to be called from the main loop and runs
// every task whose countdown reached zero, in slot order. Task periods are
// whole seconds regardless of the tick rate.
//
// Tasks run to completion. A callback that never returns stalls every
// other task; nothing detects or recovers from that.
type Scheduler struct {
	cs critical

	tasks          []tcb
	running        bool
	count          uint16 // Ticks since the last second boundary
	countPerSecond uint16
	clockMs        uint16
	seconds        uint32

	uniqueIDs bool
	debug     DebugWriter
	trace     *traceRing
	stats     Stats
}

// Option configures a Scheduler at construction
type Option func(*Scheduler)

// WithCapacity sets the task table size. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.tasks = make([]tcb, n)
		}
	}
}

// WithUniqueIDs makes Add reject an id that is already registered
func WithUniqueIDs() Option {
	return func(s *Scheduler) {
		s.uniqueIDs = true
	}
}

// WithDebugWriter sets the debug output function.
// It is never called from Tick.
func WithDebugWriter(w DebugWriter) Option {
	return func(s *Scheduler) {
		s.debug = w
	}
}

// WithTraceSize sets the trace ring size. Zero disables tracing.
func WithTraceSize(n int) Option {
	return func(s *Scheduler) {
		s.trace = newTraceRing(n)
	}
}

// New creates a stopped scheduler with a one-second tick.
// Call Init to match the hardware timer period.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks: make([]tcb, MaxTasks),
		trace: newTraceRing(DefaultTraceSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset(MaxClockPeriodMs)
	return s
}

// reset clears all state. Must be called with the critical section held.
func (s *Scheduler) reset(clockPeriodMs uint16) {
	s.running = false
	s.count = 0
	s.seconds = 0
	s.clockMs = clockPeriodMs
	s.countPerSecond = MaxClockPeriodMs / clockPeriodMs
	for i := range s.tasks {
		gen := s.tasks[i].gen + 1
		s.tasks[i] = tcb{status: StatusStopped, gen: gen}
	}
	s.trace.reset()
	s.stats = Stats{}
}

// Init resets the scheduler for a tick source firing every clockPeriodMs.
//
// Ticks per second is 1000/clockPeriodMs, truncated. Periods that do not
// divide 1000 make scheduler seconds slightly short (300 ms gives 3 ticks,
// so a scheduler second lasts 900 ms).
//
// Out-of-range periods return ErrClockPeriod and leave all state untouched.
// Every task registration is dropped and the scheduler is left stopped.
func (s *Scheduler) Init(clockPeriodMs uint16) error {
	if clockPeriodMs == 0 || clockPeriodMs > MaxClockPeriodMs {
		return ErrClockPeriod
	}

	state := s.cs.enter()
	s.reset(clockPeriodMs)
	perSecond := s.countPerSecond
	s.record(EvtInit, 0, 0, uint32(perSecond))
	s.cs.exit(state)

	s.debugPrintln("[SCHED] init clock=" + utoa(uint32(clockPeriodMs)) +
		"ms ticks_per_second=" + utoa(uint32(perSecond)))
	return nil
}

// Add registers a task in the first free slot and returns the slot index.
//
// The first run happens periodSeconds after the scheduler starts counting.
// A zero period is accepted and makes the task due on every Dispatch.
func (s *Scheduler) Add(id uint8, task Task, periodSeconds uint32) (int, error) {
	if isNilTask(task) {
		return -1, ErrNilTask
	}

	state := s.cs.enter()
	if s.uniqueIDs && s.find(id) >= 0 {
		s.cs.exit(state)
		return -1, ErrDuplicateID
	}

	slot := -1
	for i := range s.tasks {
		if s.tasks[i].status == StatusStopped {
			slot = i
			break
		}
	}
	if slot < 0 {
		s.stats.Rejected++
		s.record(EvtTableFull, id, 0, periodSeconds)
		s.cs.exit(state)
		s.debugPrintln("[SCHED] table full, dropped id=" + utoa(uint32(id)))
		return -1, ErrTableFull
	}

	t := &s.tasks[slot]
	t.id = id
	t.task = task
	t.period = periodSeconds
	t.countdown = periodSeconds
	t.status = StatusRunnable
	t.gen++
	s.record(EvtAdd, id, slot, periodSeconds)
	s.cs.exit(state)

	s.debugPrintln("[SCHED] add id=" + utoa(uint32(id)) +
		" slot=" + utoa(uint32(slot)) + " period=" + utoa(periodSeconds))
	return slot, nil
}

// Delete frees the first occupied slot registered under id.
// A callback already in progress finishes but is not rescheduled.
// Returns false if no task has that id.
func (s *Scheduler) Delete(id uint8) bool {
	state := s.cs.enter()
	slot := s.find(id)
	if slot < 0 {
		s.cs.exit(state)
		return false
	}
	t := &s.tasks[slot]
	t.task = nil
	t.status = StatusStopped
	t.gen++
	s.record(EvtDelete, id, slot, 0)
	s.cs.exit(state)

	s.debugPrintln("[SCHED] delete id=" + utoa(uint32(id)) + " slot=" + utoa(uint32(slot)))
	return true
}

// Status returns the status of the first occupied slot registered under id,
// or StatusError if there is none.
func (s *Scheduler) Status(id uint8) Status {
	state := s.cs.enter()
	defer s.cs.exit(state)

	slot := s.find(id)
	if slot < 0 {
		return StatusError
	}
	return s.tasks[slot].status
}

// find returns the first occupied slot with the given id, or -1.
// Must be called with the critical section held.
func (s *Scheduler) find(id uint8) int {
	for i := range s.tasks {
		if s.tasks[i].status != StatusStopped && s.tasks[i].id == id {
			return i
		}
	}
	return -1
}

// Start enables tick counting and dispatch
func (s *Scheduler) Start() {
	state := s.cs.enter()
	defer s.cs.exit(state)
	if !s.running {
		s.running = true
		s.record(EvtStart, 0, 0, 0)
	}
}

// Stop pauses the scheduler. Ticks that arrive while stopped are lost.
func (s *Scheduler) Stop() {
	state := s.cs.enter()
	defer s.cs.exit(state)
	if s.running {
		s.running = false
		s.record(EvtStop, 0, 0, 0)
	}
}

// Running reports whether the scheduler is started
func (s *Scheduler) Running() bool {
	state := s.cs.enter()
	defer s.cs.exit(state)
	return s.running
}

// Tick advances the scheduler clock by one timer period.
// Safe to call from interrupt context: it never blocks and never runs tasks.
func (s *Scheduler) Tick() {
	state := s.cs.enter()
	defer s.cs.exit(state)

	if !s.running {
		return
	}

	s.stats.Ticks++
	s.count++
	if s.count < s.countPerSecond {
		return
	}
	s.count = 0
	s.seconds++
	s.stats.Seconds++

	for i := range s.tasks {
		t := &s.tasks[i]
		if t.status == StatusRunnable && t.countdown > 0 {
			t.countdown--
		}
	}
	s.record(EvtSecond, 0, 0, s.seconds)
}

// Dispatch runs every runnable task whose countdown has reached zero, in
// slot order, and reloads its countdown. Returns the number of callbacks run.
// Must not be called from interrupt context.
func (s *Scheduler) Dispatch() int {
	ran := 0
	for i := range s.tasks {
		task, gen, ok := s.claim(i)
		if !ok {
			continue
		}
		faulted := runTask(task)
		s.release(i, gen, faulted)
		ran++
	}
	return ran
}

// claim marks slot i RUNNING if it is due
func (s *Scheduler) claim(i int) (Task, uint32, bool) {
	state := s.cs.enter()
	defer s.cs.exit(state)

	t := &s.tasks[i]
	if !s.running || t.status != StatusRunnable || t.countdown != 0 {
		return nil, 0, false
	}
	t.status = StatusRunning
	s.stats.Runs++
	s.record(EvtRun, t.id, i, t.period)
	return t.task, t.gen, true
}

// release reloads slot i after its callback returned. A slot that was
// deleted or reassigned during the callback is left alone.
func (s *Scheduler) release(i int, gen uint32, faulted bool) {
	state := s.cs.enter()
	defer s.cs.exit(state)

	t := &s.tasks[i]
	if t.gen != gen || t.status != StatusRunning {
		return
	}
	if faulted {
		t.status = StatusError
		s.stats.Faults++
		s.record(EvtFault, t.id, i, 0)
		return
	}
	t.countdown = t.period
	t.status = StatusRunnable
}

// runTask calls the task, reporting whether it panicked
func runTask(task Task) (faulted bool) {
	defer func() {
		if r := recover(); r != nil {
			faulted = true
		}
	}()
	task.Run()
	return false
}

// Tasks returns a snapshot of the occupied slots in slot order
func (s *Scheduler) Tasks() []TaskInfo {
	state := s.cs.enter()
	defer s.cs.exit(state)

	out := make([]TaskInfo, 0, len(s.tasks))
	for i := range s.tasks {
		t := &s.tasks[i]
		if t.status == StatusStopped {
			continue
		}
		out = append(out, TaskInfo{
			Slot:      i,
			ID:        t.id,
			Period:    t.period,
			Countdown: t.countdown,
			Status:    t.status,
		})
	}
	return out
}

// Stats returns the counters since the last Init
func (s *Scheduler) Stats() Stats {
	state := s.cs.enter()
	defer s.cs.exit(state)
	st := s.stats
	st.TraceDropped = s.trace.dropped
	return st
}

// TicksPerSecond returns the tick divisor computed by Init
func (s *Scheduler) TicksPerSecond() uint16 {
	state := s.cs.enter()
	defer s.cs.exit(state)
	return s.countPerSecond
}

// ClockPeriod returns the tick period in milliseconds given to Init
func (s *Scheduler) ClockPeriod() uint16 {
	state := s.cs.enter()
	defer s.cs.exit(state)
	return s.clockMs
}

// Capacity returns the task table size
func (s *Scheduler) Capacity() int {
	return len(s.tasks)
}

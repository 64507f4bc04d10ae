package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// EventKind identifies a trace event
type EventKind uint8

// Event kinds
const (
	EvtInit      EventKind = 1 // Init accepted, Value = ticks per second
	EvtStart     EventKind = 2 // Scheduler started
	EvtStop      EventKind = 3 // Scheduler stopped
	EvtAdd       EventKind = 4 // Task added, Value = period
	EvtDelete    EventKind = 5 // Task deleted
	EvtSecond    EventKind = 6 // Second boundary crossed in Tick
	EvtRun       EventKind = 7 // Task callback invoked
	EvtFault     EventKind = 8 // Task callback panicked
	EvtTableFull EventKind = 9 // Add rejected, Value = requested period
)

const (
	DefaultTraceSize = 32 // Keep last 32 events for post-mortem
)

func (k EventKind) String() string {
	switch k {
	case EvtInit:
		return "INIT"
	case EvtStart:
		return "START"
	case EvtStop:
		return "STOP"
	case EvtAdd:
		return "ADD"
	case EvtDelete:
		return "DELETE"
	case EvtSecond:
		return "SECOND"
	case EvtRun:
		return "RUN"
	case EvtFault:
		return "FAULT!"
	case EvtTableFull:
		return "TABLE_FULL"
	default:
		return "UNKNOWN"
	}
}

// TraceEvent captures a scheduler event for the main loop or post-mortem analysis
type TraceEvent struct {
	Kind   EventKind
	ID     uint8  // Task ID, 0 for scheduler-wide events
	Slot   uint8  // Table slot
	Second uint32 // Scheduler seconds elapsed at event
	Value  uint32 // Context-dependent value
}

// String formats the event without fmt
func (e TraceEvent) String() string {
	return "[SCHED] " + e.Kind.String() +
		" id=" + utoa(uint32(e.ID)) +
		" slot=" + utoa(uint32(e.Slot)) +
		" sec=" + utoa(e.Second) +
		" v=" + utoa(e.Value)
}

// traceRing is a fixed-size event ring that overwrites the oldest entry.
// It has no lock of its own; callers hold the scheduler critical section.
type traceRing struct {
	buf     []TraceEvent
	head    int // Next write position
	n       int // Events held
	dropped uint32
}

func newTraceRing(size int) *traceRing {
	if size < 0 {
		size = 0
	}
	return &traceRing{buf: make([]TraceEvent, size)}
}

func (r *traceRing) push(e TraceEvent) {
	if len(r.buf) == 0 {
		r.dropped++
		return
	}
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	} else {
		r.dropped++
	}
}

func (r *traceRing) pop() (TraceEvent, bool) {
	if r.n == 0 {
		return TraceEvent{}, false
	}
	idx := (r.head - r.n + len(r.buf)) % len(r.buf)
	r.n--
	return r.buf[idx], true
}

func (r *traceRing) reset() {
	for i := range r.buf {
		r.buf[i] = TraceEvent{}
	}
	r.head = 0
	r.n = 0
	r.dropped = 0
}

// record appends an event stamped with the current second.
// Must be called with the critical section held.
func (s *Scheduler) record(kind EventKind, id uint8, slot int, value uint32) {
	s.trace.push(TraceEvent{
		Kind:   kind,
		ID:     id,
		Slot:   uint8(slot),
		Second: s.seconds,
		Value:  value,
	})
}

// DrainTrace pops recorded events oldest-first and hands each to fn.
// fn runs outside the critical section. Returns the number of events drained.
func (s *Scheduler) DrainTrace(fn func(TraceEvent)) int {
	drained := 0
	for {
		state := s.cs.enter()
		e, ok := s.trace.pop()
		s.cs.exit(state)
		if !ok {
			return drained
		}
		drained++
		if fn != nil {
			fn(e)
		}
	}
}

// DumpTrace drains the trace ring to the debug writer (call on shutdown/error)
func (s *Scheduler) DumpTrace() {
	if s.debug == nil {
		return
	}
	s.debug("[SCHED] === Trace Dump ===")
	s.DrainTrace(func(e TraceEvent) {
		s.debug(e.String())
	})
	s.debug("[SCHED] === End Dump ===")
}

func (s *Scheduler) debugPrintln(msg string) {
	if s.debug != nil {
		s.debug(msg)
	}
}

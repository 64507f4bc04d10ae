package core

// Task is a unit of work run by the scheduler. Run is invoked from
// Dispatch on the main loop, never from interrupt context.
type Task interface {
	Run()
}

// TaskFunc adapts a plain function to the Task interface
type TaskFunc func()

// Run calls f()
func (f TaskFunc) Run() {
	f()
}

// Status is the lifecycle state of a task control block
type Status uint8

const (
	StatusRunnable Status = iota // Waiting for its countdown to expire
	StatusRunning                // Inside its own callback
	StatusStopped                // Free slot
	StatusError                  // Faulted task, or lookup miss
)

func (s Status) String() string {
	switch s {
	case StatusRunnable:
		return "runnable"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Common task periods, in scheduler seconds
const (
	Seconds1  = 1
	Seconds5  = 5
	Seconds10 = 10
	Seconds15 = 15
	Seconds30 = 30
	Minutes1  = 60
	Minutes15 = 60 * 15
	Minutes30 = 60 * 30
	Hours1    = 60 * 60
	Hours12   = 60 * 60 * 12
	Day1      = 60 * 60 * 24
)

// TaskInfo is a point-in-time copy of an occupied task slot
type TaskInfo struct {
	Slot      int
	ID        uint8
	Period    uint32
	Countdown uint32
	Status    Status
}

// tcb is a task control block
type tcb struct {
	id        uint8
	task      Task
	period    uint32
	countdown uint32
	status    Status
	gen       uint32 // bumped whenever the slot is (re)assigned or cleared
}

// isNilTask reports whether t carries no callable
func isNilTask(t Task) bool {
	if t == nil {
		return true
	}
	if f, ok := t.(TaskFunc); ok && f == nil {
		return true
	}
	return false
}

// Package sim runs the scheduler on a host machine. A ticker goroutine
// stands in for the timer interrupt and the calling goroutine plays the
// firmware main loop.
package sim

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"rrsched/core"
	"rrsched/host/config"
	"rrsched/host/logging"
	"rrsched/telemetry"
)

// DefaultPoll is how long the main loop idles between dispatch passes
const DefaultPoll = time.Millisecond

// TaskRuns is the run count of one configured task
type TaskRuns struct {
	ID     uint8
	Name   string
	Runs   uint32
	Status core.Status
}

// Report summarises a simulation
type Report struct {
	Elapsed time.Duration
	Stats   core.Stats
	Tasks   []TaskRuns
}

// Runner owns a scheduler configured from a simulator config
type Runner struct {
	cfg   *config.Config
	sched *core.Scheduler
	log   zerolog.Logger
	runs  []uint32 // Per configured task, updated atomically
	poll  time.Duration
	out   *telemetry.Writer
}

// Option configures a Runner
type Option func(*Runner)

// WithPoll sets the main loop idle interval
func WithPoll(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.poll = d
		}
	}
}

// WithTelemetry streams every trace event as telemetry frames to w
func WithTelemetry(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.out = telemetry.NewWriter(w)
		}
	}
}

// New builds and initializes the scheduler and registers every configured task
func New(cfg *config.Config, log zerolog.Logger, opts ...Option) (*Runner, error) {
	r := &Runner{
		cfg:  cfg,
		log:  log,
		runs: make([]uint32, len(cfg.Tasks)),
		poll: DefaultPoll,
	}
	for _, opt := range opts {
		opt(r)
	}

	schedOpts := []core.Option{
		core.WithCapacity(cfg.Capacity),
		core.WithTraceSize(cfg.TraceSize),
		core.WithDebugWriter(logging.DebugWriter(log)),
	}
	if cfg.UniqueIDs {
		schedOpts = append(schedOpts, core.WithUniqueIDs())
	}
	r.sched = core.New(schedOpts...)

	if err := r.sched.Init(cfg.ClockMs); err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	for i, t := range cfg.Tasks {
		if _, err := r.sched.Add(t.ID, r.task(i), t.Period); err != nil {
			return nil, fmt.Errorf("add task %q (id %d): %w", t.Name, t.ID, err)
		}
	}
	return r, nil
}

// Scheduler exposes the underlying scheduler
func (r *Runner) Scheduler() *core.Scheduler {
	return r.sched
}

func (r *Runner) task(i int) core.Task {
	t := r.cfg.Tasks[i]
	return core.TaskFunc(func() {
		n := atomic.AddUint32(&r.runs[i], 1)
		if t.PanicAfter > 0 && int(n) >= t.PanicAfter {
			panic(fmt.Sprintf("task %s: injected fault on run %d", t.Name, n))
		}
		if t.WorkDuration > 0 {
			time.Sleep(t.WorkDuration)
		}
		r.log.Info().Str("task", t.Name).Uint8("id", t.ID).Uint32("run", n).Msg("task ran")
	})
}

// Run starts the scheduler and drives it until ctx is done or the
// configured duration elapses. The scheduler is stopped on return.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if r.cfg.RunFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunFor)
		defer cancel()
	}

	started := time.Now()
	r.sched.Start()
	r.log.Info().
		Dur("clock", r.cfg.ClockPeriod()).
		Uint16("ticks_per_second", r.sched.TicksPerSecond()).
		Int("tasks", len(r.cfg.Tasks)).
		Int("capacity", r.sched.Capacity()).
		Msg("scheduler started")

	tickDone := make(chan struct{})
	go r.tickLoop(ctx, tickDone)

	poll := time.NewTicker(r.poll)
	defer poll.Stop()

	var err error
	for {
		r.sched.Dispatch()
		if derr := r.drainTrace(); derr != nil && err == nil {
			err = derr
		}

		select {
		case <-ctx.Done():
			<-tickDone
			r.sched.Stop()
			if derr := r.drainTrace(); derr != nil && err == nil {
				err = derr
			}
			report := r.report(time.Since(started))
			r.log.Info().
				Uint32("seconds", report.Stats.Seconds).
				Uint32("runs", report.Stats.Runs).
				Uint32("faults", report.Stats.Faults).
				Msg("scheduler stopped")
			r.logSlots()
			return report, err
		case <-poll.C:
		}
	}
}

// logSlots logs the final task table at debug level
func (r *Runner) logSlots() {
	for _, t := range r.sched.Tasks() {
		r.log.Debug().
			Int("slot", t.Slot).
			Uint8("id", t.ID).
			Uint32("period", t.Period).
			Uint32("countdown", t.Countdown).
			Str("status", t.Status.String()).
			Msg("slot")
	}
}

// tickLoop is the simulated timer interrupt
func (r *Runner) tickLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.ClockPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sched.Tick()
		}
	}
}

// Step runs whole scheduler seconds synchronously: a second's worth of
// ticks followed by one dispatch pass, repeated. Returns callbacks run.
func (r *Runner) Step(seconds int) (int, error) {
	r.sched.Start()
	perSecond := int(r.sched.TicksPerSecond())
	ran := 0
	for s := 0; s < seconds; s++ {
		for i := 0; i < perSecond; i++ {
			r.sched.Tick()
		}
		ran += r.sched.Dispatch()
		if err := r.drainTrace(); err != nil {
			return ran, err
		}
	}
	return ran, nil
}

// Report returns the current run counts and scheduler stats
func (r *Runner) Report() Report {
	return r.report(0)
}

func (r *Runner) report(elapsed time.Duration) Report {
	rep := Report{
		Elapsed: elapsed,
		Stats:   r.sched.Stats(),
		Tasks:   make([]TaskRuns, len(r.cfg.Tasks)),
	}
	for i, t := range r.cfg.Tasks {
		rep.Tasks[i] = TaskRuns{
			ID:     t.ID,
			Name:   t.Name,
			Runs:   atomic.LoadUint32(&r.runs[i]),
			Status: r.sched.Status(t.ID),
		}
	}
	return rep
}

// drainTrace logs pending trace events and forwards them as telemetry
func (r *Runner) drainTrace() error {
	var err error
	r.sched.DrainTrace(func(e core.TraceEvent) {
		logging.Event(r.log, e)
		if r.out != nil && err == nil {
			err = r.out.WriteEvent(e)
		}
	})
	if r.out != nil && err == nil {
		err = r.out.Flush()
	}
	if err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}
	return nil
}

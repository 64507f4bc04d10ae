// Package monitor decodes scheduler telemetry from a byte stream and logs it.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"rrsched/core"
	"rrsched/host/logging"
	"rrsched/telemetry"
)

// TaskSummary aggregates the events seen for one task id
type TaskSummary struct {
	ID         uint8
	Runs       uint32
	Faults     uint32
	LastSecond uint32
	Deleted    bool
}

// Summary is what a monitor session observed
type Summary struct {
	Events  uint32
	Tasks   []TaskSummary // Sorted by id
	Decoder telemetry.DecoderStats
}

// Monitor consumes telemetry frames
type Monitor struct {
	log    zerolog.Logger
	dec    *telemetry.Decoder
	tasks  map[uint8]*TaskSummary
	events uint32
	follow bool
	idle   time.Duration
}

// Option configures a Monitor
type Option func(*Monitor)

// WithFollow keeps reading past EOF, as needed for a serial port whose
// read timeout reports an idle line as EOF.
func WithFollow(idle time.Duration) Option {
	return func(m *Monitor) {
		m.follow = true
		if idle > 0 {
			m.idle = idle
		}
	}
}

// New creates a Monitor logging to log
func New(log zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		log:   log,
		dec:   telemetry.NewDecoder(),
		tasks: make(map[uint8]*TaskSummary),
		idle:  10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run reads r until EOF (or ctx is done when following) and logs every
// decoded event.
func (m *Monitor) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := r.Read(buf)
		if n > 0 {
			m.dec.Feed(buf[:n], m.handle)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if !m.follow {
				return nil
			}
			if n == 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(m.idle):
				}
			}
		default:
			return fmt.Errorf("read telemetry: %w", err)
		}
	}
}

func (m *Monitor) handle(e core.TraceEvent) {
	m.events++
	logging.Event(m.log, e)

	switch e.Kind {
	case core.EvtInit:
		// Firmware restarted, per-task history no longer applies
		m.tasks = make(map[uint8]*TaskSummary)
	case core.EvtAdd:
		t := m.task(e.ID)
		t.Deleted = false
	case core.EvtRun:
		t := m.task(e.ID)
		t.Runs++
		t.LastSecond = e.Second
	case core.EvtFault:
		m.task(e.ID).Faults++
	case core.EvtDelete:
		m.task(e.ID).Deleted = true
	}
}

func (m *Monitor) task(id uint8) *TaskSummary {
	t, ok := m.tasks[id]
	if !ok {
		t = &TaskSummary{ID: id}
		m.tasks[id] = t
	}
	return t
}

// Summary returns the aggregated view so far
func (m *Monitor) Summary() Summary {
	s := Summary{
		Events:  m.events,
		Tasks:   make([]TaskSummary, 0, len(m.tasks)),
		Decoder: m.dec.Stats(),
	}
	for _, t := range m.tasks {
		s.Tasks = append(s.Tasks, *t)
	}
	sort.Slice(s.Tasks, func(i, j int) bool {
		return s.Tasks[i].ID < s.Tasks[j].ID
	})
	return s
}

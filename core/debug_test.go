package core

import (
	"strings"
	"testing"
)

func TestTraceDrainOrder(t *testing.T) {
	s := New()
	if err := s.Init(1000); err != nil {
		t.Fatal(err)
	}
	s.Start()
	if _, err := s.Add(3, &counter{}, 1); err != nil {
		t.Fatal(err)
	}
	s.Tick()
	s.Dispatch()

	var kinds []EventKind
	n := s.DrainTrace(func(e TraceEvent) {
		kinds = append(kinds, e.Kind)
	})

	expected := []EventKind{EvtInit, EvtStart, EvtAdd, EvtSecond, EvtRun}
	if n != len(expected) {
		t.Fatalf("Expected %d events drained, got %d (%v)", len(expected), n, kinds)
	}
	for i, k := range expected {
		if kinds[i] != k {
			t.Errorf("Event %d: expected %v, got %v", i, k, kinds[i])
		}
	}

	if again := s.DrainTrace(nil); again != 0 {
		t.Errorf("Expected empty ring after drain, got %d events", again)
	}
}

func TestTraceRunEventCarriesTask(t *testing.T) {
	s := newStarted(t, 1000)
	if _, err := s.Add(9, &counter{}, 2); err != nil {
		t.Fatal(err)
	}
	advance(s, 2)
	s.Dispatch()

	var run *TraceEvent
	s.DrainTrace(func(e TraceEvent) {
		if e.Kind == EvtRun {
			ev := e
			run = &ev
		}
	})
	if run == nil {
		t.Fatal("No run event recorded")
	}
	if run.ID != 9 || run.Slot != 0 || run.Second != 2 || run.Value != 2 {
		t.Errorf("Unexpected run event: %+v", *run)
	}
}

func TestTraceOverflowDropsOldest(t *testing.T) {
	s := New(WithTraceSize(4))
	if err := s.Init(1000); err != nil {
		t.Fatal(err)
	}
	s.Start()
	advance(s, 6) // 6 second events on top of init+start

	var seconds []uint32
	s.DrainTrace(func(e TraceEvent) {
		seconds = append(seconds, e.Value)
	})

	if len(seconds) != 4 {
		t.Fatalf("Expected ring to hold 4 events, got %d", len(seconds))
	}
	for i, want := range []uint32{3, 4, 5, 6} {
		if seconds[i] != want {
			t.Errorf("Event %d: expected second %d, got %d", i, want, seconds[i])
		}
	}
	if st := s.Stats(); st.TraceDropped != 4 {
		t.Errorf("Expected 4 dropped events, got %d", st.TraceDropped)
	}
}

func TestTraceDisabled(t *testing.T) {
	s := New(WithTraceSize(0))
	s.Start()
	advance(s, 2)
	if n := s.DrainTrace(nil); n != 0 {
		t.Errorf("Expected no events with tracing disabled, got %d", n)
	}
}

func TestDebugWriter(t *testing.T) {
	var lines []string
	s := New(WithDebugWriter(func(msg string) {
		lines = append(lines, msg)
	}))
	if err := s.Init(100); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(5, &counter{}, 30); err != nil {
		t.Fatal(err)
	}
	s.Delete(5)

	joined := strings.Join(lines, "\n")
	for _, want := range []string{
		"init clock=100ms ticks_per_second=10",
		"add id=5 slot=0 period=30",
		"delete id=5 slot=0",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Debug output missing %q:\n%s", want, joined)
		}
	}

	lines = nil
	s.DumpTrace()
	if len(lines) < 2 || lines[0] != "[SCHED] === Trace Dump ===" {
		t.Errorf("Unexpected dump output: %v", lines)
	}
}

func TestTraceEventString(t *testing.T) {
	e := TraceEvent{Kind: EvtFault, ID: 12, Slot: 3, Second: 4096, Value: 0}
	want := "[SCHED] FAULT! id=12 slot=3 sec=4096 v=0"
	if got := e.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUtoa(t *testing.T) {
	cases := map[uint32]string{
		0:          "0",
		7:          "7",
		10:         "10",
		4294967295: "4294967295",
	}
	for in, want := range cases {
		if got := utoa(in); got != want {
			t.Errorf("utoa(%d) = %q, want %q", in, got, want)
		}
	}
}

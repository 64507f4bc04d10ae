package telemetry

import (
	"bytes"
	"testing"

	"rrsched/core"
)

func sampleEvents(n int) []core.TraceEvent {
	events := make([]core.TraceEvent, n)
	for i := range events {
		events[i] = core.TraceEvent{
			Kind:   core.EvtRun,
			ID:     uint8(i + 1),
			Slot:   uint8(i % core.MaxTasks),
			Second: uint32(1000 * i),
			Value:  uint32(i),
		}
	}
	return events
}

func encodeAll(t *testing.T, events []core.TraceEvent) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, e := range events {
		if err := w.WriteEvent(e); err != nil {
			t.Fatalf("WriteEvent failed: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	return buf.Bytes()
}

func TestWriterGoldenFrame(t *testing.T) {
	got := encodeAll(t, []core.TraceEvent{
		{Kind: core.EvtRun, ID: 2, Slot: 1, Second: 300, Value: 5},
	})
	expected := []byte{0x0B, 0x10, 0x07, 0x02, 0x01, 0x82, 0x2C, 0x05, 0x1C, 0xA1, 0x7E}
	if !bytes.Equal(got, expected) {
		t.Errorf("Frame mismatch:\n got %X\nwant %X", got, expected)
	}
}

func TestWriterFlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("Empty flush wrote %d bytes", buf.Len())
	}
}

func TestRoundTripSplitsFrames(t *testing.T) {
	events := sampleEvents(40)
	stream := encodeAll(t, events)

	var got []core.TraceEvent
	d := NewDecoder()
	n := d.Feed(stream, func(e core.TraceEvent) {
		got = append(got, e)
	})

	if n != len(events) || len(got) != len(events) {
		t.Fatalf("Expected %d events, got %d", len(events), len(got))
	}
	for i := range events {
		if got[i] != events[i] {
			t.Errorf("Event %d: expected %+v, got %+v", i, events[i], got[i])
		}
	}

	st := d.Stats()
	if st.Frames < 2 {
		t.Errorf("Expected events split across frames, got %d frames", st.Frames)
	}
	if st.Resyncs != 0 || st.SeqGaps != 0 {
		t.Errorf("Clean stream should not resync: %+v", st)
	}
}

func TestFramesRespectMaxLength(t *testing.T) {
	stream := encodeAll(t, sampleEvents(40))
	for len(stream) > 0 {
		msgLen := int(stream[0])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			t.Fatalf("Frame length %d out of range", msgLen)
		}
		if stream[msgLen-1] != MessageValueSync {
			t.Fatalf("Frame missing trailing sync byte")
		}
		stream = stream[msgLen:]
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	events := sampleEvents(10)
	stream := encodeAll(t, events)

	d := NewDecoder()
	total := 0
	for i := range stream {
		total += d.Feed(stream[i:i+1], nil)
	}
	if total != len(events) {
		t.Errorf("Expected %d events, got %d", len(events), total)
	}
}

func TestDecoderResyncAfterGarbage(t *testing.T) {
	events := sampleEvents(3)
	stream := append([]byte{0x33, 0x00, 0xFF, 0x12, MessageValueSync}, encodeAll(t, events)...)

	d := NewDecoder()
	if n := d.Feed(stream, nil); n != len(events) {
		t.Errorf("Expected %d events after garbage, got %d", len(events), n)
	}
	if d.Stats().Resyncs == 0 {
		t.Error("Expected at least one resync")
	}
}

func TestDecoderSkipsBadCRC(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	first := core.TraceEvent{Kind: core.EvtAdd, ID: 1, Value: 5}
	second := core.TraceEvent{Kind: core.EvtDelete, ID: 1, Second: 9}
	if err := w.WriteEvent(first); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	corruptAt := 3 // First payload byte after the kind
	if err := w.WriteEvent(second); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	stream := buf.Bytes()
	stream[corruptAt] ^= 0x01

	var got []core.TraceEvent
	d := NewDecoder()
	d.Feed(stream, func(e core.TraceEvent) {
		got = append(got, e)
	})

	if len(got) != 1 || got[0] != second {
		t.Fatalf("Expected only the intact frame, got %+v", got)
	}
	st := d.Stats()
	if st.Resyncs == 0 {
		t.Error("Expected a resync for the corrupt frame")
	}
	if st.SeqGaps != 0 {
		t.Errorf("First frame seen should not count as a gap, got %d", st.SeqGaps)
	}
}

func TestDecoderCountsSequenceGaps(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	var frames [][]byte
	for i := 0; i < 3; i++ {
		start := buf.Len()
		if err := w.WriteEvent(core.TraceEvent{Kind: core.EvtSecond, Value: uint32(i)}); err != nil {
			t.Fatal(err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		frames = append(frames, append([]byte(nil), buf.Bytes()[start:]...))
	}

	d := NewDecoder()
	d.Feed(frames[0], nil)
	d.Feed(frames[2], nil) // frames[1] lost on the wire

	if st := d.Stats(); st.SeqGaps != 1 || st.Frames != 2 {
		t.Errorf("Expected 2 frames and 1 gap, got %+v", st)
	}
}

func TestSchedulerTraceOverTelemetry(t *testing.T) {
	s := core.New()
	if err := s.Init(100); err != nil {
		t.Fatal(err)
	}
	s.Start()
	if _, err := s.Add(4, core.TaskFunc(func() {}), 1); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	s.Dispatch()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	var sent []core.TraceEvent
	s.DrainTrace(func(e core.TraceEvent) {
		sent = append(sent, e)
		if err := w.WriteEvent(e); err != nil {
			t.Fatal(err)
		}
	})
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	var received []core.TraceEvent
	NewDecoder().Feed(buf.Bytes(), func(e core.TraceEvent) {
		received = append(received, e)
	})
	if len(received) != len(sent) {
		t.Fatalf("Sent %d events, received %d", len(sent), len(received))
	}
	last := received[len(received)-1]
	if last.Kind != core.EvtRun || last.ID != 4 || last.Second != 1 {
		t.Errorf("Unexpected last event %+v", last)
	}
}

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"rrsched/core"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		" INFO ":   zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"trace":    zerolog.TraceLevel,
		"nonsense": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in, zerolog.InfoLevel); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONEvent(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")

	Event(log, core.TraceEvent{Kind: core.EvtAdd, ID: 3, Slot: 1, Second: 12, Value: 5})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Output is not JSON: %v (%s)", err, buf.String())
	}
	if line["event"] != "ADD" || line["level"] != "info" {
		t.Errorf("Unexpected log line %v", line)
	}
	if line["id"] != float64(3) || line["second"] != float64(12) {
		t.Errorf("Unexpected fields %v", line)
	}
}

func TestFaultLogsAsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")

	Event(log, core.TraceEvent{Kind: core.EvtSecond, Value: 1})
	if buf.Len() != 0 {
		t.Fatalf("Second events should be filtered at warn level: %s", buf.String())
	}
	Event(log, core.TraceEvent{Kind: core.EvtFault, ID: 2})
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("Expected warn level, got %s", buf.String())
	}
}

func TestDebugWriter(t *testing.T) {
	var buf bytes.Buffer
	s := core.New(core.WithDebugWriter(DebugWriter(New(&buf, "debug", "json"))))
	if err := s.Init(100); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "ticks_per_second=10") {
		t.Errorf("Expected scheduler init line, got %s", buf.String())
	}
}

// Package logging builds the zerolog loggers used by the host tools.
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"

	"rrsched/core"
)

const consoleTimeFormat = "15:04:05.000"

// New returns a root logger writing to w. format is "console" or "json";
// anything else falls back to console.
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl := ParseLevel(level, zerolog.InfoLevel)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, returning def for
// unknown names.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}

// DebugWriter routes scheduler debug lines to log at debug level
func DebugWriter(log zerolog.Logger) core.DebugWriter {
	return func(msg string) {
		log.Debug().Str("comp", "sched").Msg(msg)
	}
}

// Event writes a scheduler trace event as a structured log line
func Event(log zerolog.Logger, e core.TraceEvent) {
	ev := log.Debug()
	switch e.Kind {
	case core.EvtFault, core.EvtTableFull:
		ev = log.Warn()
	case core.EvtInit, core.EvtStart, core.EvtStop, core.EvtAdd, core.EvtDelete:
		ev = log.Info()
	}
	ev.Str("event", e.Kind.String()).
		Uint8("id", e.ID).
		Uint8("slot", e.Slot).
		Uint32("second", e.Second).
		Uint32("value", e.Value).
		Msg("sched event")
}

// Package config loads the host simulator configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"rrsched/core"
)

// Task describes one simulated task
type Task struct {
	ID     uint8  `yaml:"id"`
	Name   string `yaml:"name"`
	Period uint32 `yaml:"period"`
	// Work is how long the callback busy-waits, as a Go duration string
	Work string `yaml:"work"`
	// Panic makes the callback panic on its Nth run (0 = never)
	PanicAfter int `yaml:"panic_after"`

	WorkDuration time.Duration `yaml:"-"`
}

// Config is the simulator configuration file
type Config struct {
	ClockMs   uint16 `yaml:"clock_ms"`
	Capacity  int    `yaml:"capacity"`
	UniqueIDs bool   `yaml:"unique_ids"`
	TraceSize int    `yaml:"trace_size"`
	// Duration bounds the run; empty runs until interrupted
	Duration string `yaml:"duration"`
	Tasks    []Task `yaml:"tasks"`

	RunFor time.Duration `yaml:"-"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		ClockMs:   100,
		Capacity:  core.MaxTasks,
		TraceSize: core.DefaultTraceSize,
		Tasks: []Task{
			{ID: 1, Name: "heartbeat", Period: core.Seconds1},
			{ID: 2, Name: "report", Period: core.Seconds5},
		},
	}
}

// Load reads and validates a YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, rejecting unknown keys, then validates
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Capacity:  core.MaxTasks,
		TraceSize: core.DefaultTraceSize,
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and resolves duration strings
func (c *Config) Validate() error {
	if c.ClockMs == 0 || c.ClockMs > core.MaxClockPeriodMs {
		return fmt.Errorf("clock_ms: %d out of range 1..%d", c.ClockMs, core.MaxClockPeriodMs)
	}
	if c.Capacity < 1 {
		return fmt.Errorf("capacity: must be >= 1, got %d", c.Capacity)
	}
	if c.TraceSize < 0 {
		return fmt.Errorf("trace_size: must be >= 0, got %d", c.TraceSize)
	}
	if len(c.Tasks) > c.Capacity {
		return fmt.Errorf("tasks: %d tasks exceed capacity %d", len(c.Tasks), c.Capacity)
	}

	d, err := parseDurationField("duration", c.Duration)
	if err != nil {
		return err
	}
	c.RunFor = d

	seen := make(map[uint8]bool, len(c.Tasks))
	for i := range c.Tasks {
		t := &c.Tasks[i]
		path := fmt.Sprintf("tasks[%d]", i)
		if c.UniqueIDs && seen[t.ID] {
			return fmt.Errorf("%s: duplicate id %d", path, t.ID)
		}
		seen[t.ID] = true
		if t.PanicAfter < 0 {
			return fmt.Errorf("%s.panic_after: must be >= 0", path)
		}
		w, err := parseDurationField(path+".work", t.Work)
		if err != nil {
			return err
		}
		t.WorkDuration = w
		if t.Name == "" {
			t.Name = fmt.Sprintf("task%d", t.ID)
		}
	}
	return nil
}

// ClockPeriod returns the tick interval as a duration
func (c *Config) ClockPeriod() time.Duration {
	return time.Duration(c.ClockMs) * time.Millisecond
}

func parseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

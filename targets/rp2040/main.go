//go:build rp2040

package main

import (
	"machine"
	"time"

	"rrsched/core"
	"rrsched/telemetry"
)

// clockMs is the timer interrupt period handed to the scheduler
const clockMs = 10

var (
	sched *core.Scheduler
	usb   usbPort
	tx    *telemetry.Writer

	// Debug counters
	framesSent  uint32
	writeErrors uint32
)

func main() {
	// Clear any watchdog state left from a previous reset
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	initDebugUART()
	tx = telemetry.NewWriter(&usb)

	sched = core.New(core.WithTraceSize(64), core.WithDebugWriter(debugUART))
	if err := sched.Init(clockMs); err != nil {
		return
	}

	if err := initSensors(); err == nil {
		addDemoTasks(sched)
	} else {
		// LED heartbeat still proves the scheduler is alive
		led.Configure(machine.PinConfig{Mode: machine.PinOutput})
		sched.Add(ledTaskID, core.TaskFunc(toggleLED), core.Seconds1)
	}

	StartClock(sched, clockMs)
	sched.Start()

	for {
		sched.Dispatch()
		sendTrace()

		// Yield to the USB stack
		time.Sleep(100 * time.Microsecond)
	}
}

// initDebugUART brings up UART0 (TX=GP0, RX=GP1) for scheduler debug lines
func initDebugUART() {
	machine.UART0.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
}

func debugUART(msg string) {
	machine.UART0.Write([]byte(msg))
	machine.UART0.Write([]byte("\r\n"))
}

// sendTrace drains pending trace events to the host as telemetry frames
func sendTrace() {
	n := sched.DrainTrace(func(e core.TraceEvent) {
		if err := tx.WriteEvent(e); err != nil {
			writeErrors++
		}
	})
	if n == 0 {
		return
	}
	if err := tx.Flush(); err != nil {
		writeErrors++
		return
	}
	framesSent++
}

//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"rrsched/core"
)

// RP2040 Timer peripheral memory map. ALARM0 belongs to the TinyGo
// runtime, the scheduler tick uses ALARM1.
const (
	timerBase     = 0x40054000
	timerALARM1   = timerBase + 0x14
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word, no latching
	timerINTR     = timerBase + 0x34
	timerINTE     = timerBase + 0x38

	alarm1Bit = 1 << 1
)

var (
	alarm1 = (*volatile.Register32)(unsafe.Pointer(uintptr(timerALARM1)))
	rawL   = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
	intr   = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTR)))
	inte   = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTE)))

	tickSched   *core.Scheduler
	tickPeriod  uint32 // Microseconds, the timer runs at 1MHz
	nextAlarm   uint32
	missedTicks uint32
)

// StartClock arms ALARM1 to call s.Tick every clockMs milliseconds
func StartClock(s *core.Scheduler, clockMs uint16) {
	tickSched = s
	tickPeriod = uint32(clockMs) * 1000

	irq := interrupt.New(rp.IRQ_TIMER_IRQ_1, handleAlarm)
	irq.SetPriority(0xc0)

	nextAlarm = rawL.Get() + tickPeriod
	alarm1.Set(nextAlarm)
	inte.SetBits(alarm1Bit)
	irq.Enable()
}

// GetHardwareTime reads the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return rawL.Get()
}

func handleAlarm(interrupt.Interrupt) {
	intr.Set(alarm1Bit) // Write 1 to clear

	tickSched.Tick()

	// Re-arm from the previous deadline so the period does not drift
	// with interrupt latency. Skip deadlines already in the past.
	nextAlarm += tickPeriod
	now := rawL.Get()
	for int32(nextAlarm-now) <= 0 {
		nextAlarm += tickPeriod
		missedTicks++
	}
	alarm1.Set(nextAlarm)
}

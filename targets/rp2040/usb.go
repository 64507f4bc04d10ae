//go:build rp2040

package main

import (
	"machine"
)

// InitUSB configures machine.Serial, which is USB CDC on the RP2040
func InitUSB() {
	err := machine.Serial.Configure(machine.UARTConfig{})
	if err != nil {
		return
	}
}

// usbPort adapts machine.Serial to io.Writer and counts write failures.
// A host that is not reading must not stall the main loop, so frames are
// dropped after a failed or short write.
type usbPort struct {
	failures uint32
}

func (u *usbPort) Write(data []byte) (int, error) {
	n, err := machine.Serial.Write(data)
	if err != nil || n < len(data) {
		u.failures++
		return len(data), nil
	}
	u.failures = 0
	return n, nil
}

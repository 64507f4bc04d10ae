//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/adxl345"
	"tinygo.org/x/drivers/vl53l1x"

	"rrsched/core"
)

const (
	i2cFrequency = 400000

	ledTaskID   = 1
	accelTaskID = 2
	rangeTaskID = 3
)

var (
	led    = machine.LED
	ledOn  bool
	accel  adxl345.Device
	ranger vl53l1x.Device

	// Last samples, read by the debugger or a future report command
	lastAccel    [3]int16
	lastDistance uint16
	rangerReady  bool
)

// initSensors brings up I2C0 (SDA=GP4, SCL=GP5) and the demo peripherals
func initSensors() error {
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: i2cFrequency,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	})
	if err != nil {
		return err
	}

	accel = adxl345.New(machine.I2C0)
	accel.Configure()
	accel.SetRate(adxl345.RATE_100HZ)
	accel.SetRange(adxl345.RANGE_2G)

	ranger = vl53l1x.New(machine.I2C0)
	rangerReady = ranger.Configure(true)
	if rangerReady {
		ranger.SetMeasurementTimingBudget(50000)
		ranger.StartContinuous(100)
	}
	return nil
}

// addDemoTasks registers the demo workload
func addDemoTasks(s *core.Scheduler) {
	s.Add(ledTaskID, core.TaskFunc(toggleLED), core.Seconds1)
	s.Add(accelTaskID, core.TaskFunc(sampleAccel), core.Seconds5)
	if rangerReady {
		s.Add(rangeTaskID, core.TaskFunc(sampleRange), core.Seconds10)
	}
}

func toggleLED() {
	ledOn = !ledOn
	led.Set(ledOn)
}

func sampleAccel() {
	x, y, z := accel.ReadRawAcceleration()
	lastAccel = [3]int16{x, y, z}
}

func sampleRange() {
	// Non-blocking, 0 means no new measurement
	if d := ranger.Read(false); d != 0 {
		lastDistance = d
	}
}

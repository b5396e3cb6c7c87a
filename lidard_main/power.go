package main

import (
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

const (
	powerOffTime  = 500 * time.Millisecond
	powerOnSettle = 200 * time.Millisecond
)

// powerSwitch drives the GPIO that feeds the sensor's power enable line.
type powerSwitch struct {
	pin rpio.Pin
}

func openPowerSwitch(bcmPin int) (*powerSwitch, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	pin := rpio.Pin(bcmPin)
	pin.Output()
	pin.High()
	return &powerSwitch{pin: pin}, nil
}

// Cycle removes power from the sensor and brings it back.
func (p *powerSwitch) Cycle() {
	p.pin.Low()
	time.Sleep(powerOffTime)
	p.pin.High()
	time.Sleep(powerOnSettle)
}

func (p *powerSwitch) Close() error {
	// Leave the sensor powered when we bail out.
	p.pin.High()
	return rpio.Close()
}

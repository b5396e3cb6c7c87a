package lidarlite

import (
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// PeriphOpener opens an I2C bus through periph.io, for hosts where embd has
// no driver.
type PeriphOpener struct {
	Name string // bus name as understood by i2creg.Open, "" for the first bus
}

func (o PeriphOpener) Open(address byte) (Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(o.Name)
	if err != nil {
		return nil, err
	}
	return &periphBus{bus: b}, nil
}

type periphBus struct {
	bus i2c.BusCloser
}

func (p *periphBus) dev(addr byte) *i2c.Dev {
	return &i2c.Dev{Bus: p.bus, Addr: uint16(addr)}
}

func (p *periphBus) ReadByteFromReg(addr, reg byte) (byte, error) {
	buf := []byte{0}
	if err := p.dev(addr).Tx([]byte{reg}, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (p *periphBus) ReadFromReg(addr, reg byte, value []byte) error {
	return p.dev(addr).Tx([]byte{reg}, value)
}

func (p *periphBus) WriteByteToReg(addr, reg, value byte) error {
	return p.dev(addr).Tx([]byte{reg, value}, nil)
}

func (p *periphBus) Close() error {
	return p.bus.Close()
}

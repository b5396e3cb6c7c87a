package lidarlite

import (
	"github.com/kidoman/embd"
)

// Bus is the subset of an I2C bus the driver needs. embd.I2CBus satisfies it.
// Implementations do not retry; every retry decision is made by the driver.
type Bus interface {
	ReadByteFromReg(addr, reg byte) (byte, error)
	ReadFromReg(addr, reg byte, value []byte) error
	WriteByteToReg(addr, reg, value byte) error
	Close() error
}

// Opener creates a bus handle for a device address.
type Opener interface {
	Open(address byte) (Bus, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(address byte) (Bus, error)

func (f OpenerFunc) Open(address byte) (Bus, error) {
	return f(address)
}

// EmbdOpener opens an I2C bus through embd. The host driver must be
// registered by the program, e.g. by importing github.com/kidoman/embd/host/all.
type EmbdOpener struct {
	Bus byte // bus number, 1 on every Raspberry Pi since rev 2
}

func (o EmbdOpener) Open(address byte) (Bus, error) {
	if err := embd.InitI2C(); err != nil {
		return nil, err
	}
	return embd.NewI2CBus(o.Bus), nil
}

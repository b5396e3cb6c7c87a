package lidarlite

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

var errNoAck = errors.New("i2c: no ack")

// fakeBus is an in-memory register file standing in for the sensor.
type fakeBus struct {
	mu sync.Mutex

	regs map[byte]byte
	// failures[reg] makes the next n reads of reg fail.
	failures map[byte]int
	// busyReads makes the next n reads of the status register report busy.
	busyReads int
	statusReg byte

	reads  map[byte]int
	writes [][2]byte
	closed bool
}

func newFakeBus(hwVersion byte) *fakeBus {
	b := &fakeBus{
		regs:      map[byte]byte{RegHardwareVersion: hwVersion, RegSoftwareVersion: 7},
		failures:  map[byte]int{},
		reads:     map[byte]int{},
		statusReg: ProfileFor(hwVersion).StatusRegister,
	}
	return b
}

func (b *fakeBus) set(reg, val byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs[reg] = val
}

func (b *fakeBus) fail(reg byte, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[reg] = n
}

func (b *fakeBus) readCount(reg byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads[reg]
}

func (b *fakeBus) written() [][2]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][2]byte(nil), b.writes...)
}

func (b *fakeBus) readLocked(reg byte) (byte, error) {
	b.reads[reg]++
	if b.failures[reg] > 0 {
		b.failures[reg]--
		return 0, errNoAck
	}
	if reg == b.statusReg && b.busyReads > 0 {
		b.busyReads--
		return byte(StatusBusy), nil
	}
	return b.regs[reg], nil
}

func (b *fakeBus) ReadByteFromReg(addr, reg byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked(reg)
}

func (b *fakeBus) ReadFromReg(addr, reg byte, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	base := reg
	autoInc := reg&0x80 != 0
	if autoInc {
		base = reg &^ 0x80
	}
	for i := range value {
		r := base
		if autoInc {
			r = base + byte(i)
		}
		v, err := b.readLocked(r)
		if err != nil {
			return err
		}
		value[i] = v
	}
	return nil
}

func (b *fakeBus) WriteByteToReg(addr, reg, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, [2]byte{reg, value})
	return nil
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func openerFor(b *fakeBus) Opener {
	return OpenerFunc(func(address byte) (Bus, error) { return b, nil })
}

// sleepRecorder is a real clock whose Sleep returns at once and remembers
// what was asked for.
type sleepRecorder struct {
	clock.Clock

	mu    sync.Mutex
	slept []time.Duration
}

func newSleepRecorder() *sleepRecorder {
	return &sleepRecorder{Clock: clock.New()}
}

func (c *sleepRecorder) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
}

func (c *sleepRecorder) count(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.slept {
		if s == d {
			n++
		}
	}
	return n
}

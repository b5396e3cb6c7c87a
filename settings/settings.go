// Package settings reads and writes the lidard configuration file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/b3nn0/lidarlite/sensors"
	"github.com/b3nn0/lidarlite/sensors/lidarlite"
)

const (
	ConfigLocation = "/boot/lidarlite.conf"

	BusDriverEmbd   = "embd"
	BusDriverPeriph = "periph"
)

var ErrInvalid = errors.New("settings: invalid value")

type Settings struct {
	I2CBus     int    // bus number for embd
	I2CBusName string // bus name for periph, "" picks the first bus
	BusDriver  string
	Address    byte

	Acquisition    string
	StabilizeEvery int
	BurstRead      bool

	FrameIntervalMs int
	IdleIntervalMs  int

	MinSignal  int
	FullSignal int

	PowerPin        int // BCM numbering, 0 disables power cycling
	PowerCycleAfter int // consecutive failed samples before a power cycle

	HTTPAddr    string
	DataLogPath string // "" disables the sample log
	LogDir      string

	Debug bool
}

func Default() Settings {
	return Settings{
		I2CBus:          1,
		BusDriver:       BusDriverEmbd,
		Address:         lidarlite.Address,
		Acquisition:     lidarlite.Default.String(),
		StabilizeEvery:  100,
		FrameIntervalMs: 16,
		IdleIntervalMs:  4,
		MinSignal:       sensors.DefaultMinSignal,
		FullSignal:      sensors.DefaultFullSignal,
		PowerCycleAfter: 50,
		HTTPAddr:        ":9978",
		DataLogPath:     "/var/log/lidarlite.sqlite",
		LogDir:          "/var/log",
	}
}

// Load reads the settings at path. Fields missing from the file keep their
// defaults. The defaults are returned together with any error.
func Load(path string) (Settings, error) {
	s := Default()
	buf, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("can't read settings %s: %w", path, err)
	}
	if err := json.Unmarshal(buf, &s); err != nil {
		return Default(), fmt.Errorf("can't read settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Default(), err
	}
	return s, nil
}

func (s Settings) Save(path string) error {
	buf, err := json.MarshalIndent(&s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("can't save settings %s: %w", path, err)
	}
	return nil
}

func (s Settings) Validate() error {
	switch s.BusDriver {
	case BusDriverEmbd, BusDriverPeriph:
	default:
		return fmt.Errorf("%w: bus driver %q", ErrInvalid, s.BusDriver)
	}
	if s.Address == 0 || s.Address > 0x7F {
		return fmt.Errorf("%w: address 0x%02x", ErrInvalid, s.Address)
	}
	if _, ok := lidarlite.ParseAcquisition(s.Acquisition); !ok {
		return fmt.Errorf("%w: acquisition %q", ErrInvalid, s.Acquisition)
	}
	if s.FrameIntervalMs <= 0 || s.IdleIntervalMs <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalid)
	}
	if s.MinSignal < 0 || s.FullSignal <= s.MinSignal {
		return fmt.Errorf("%w: signal range %d..%d", ErrInvalid, s.MinSignal, s.FullSignal)
	}
	if s.PowerPin < 0 || s.PowerCycleAfter < 0 {
		return fmt.Errorf("%w: power pin %d after %d", ErrInvalid, s.PowerPin, s.PowerCycleAfter)
	}
	return nil
}

// AcquisitionMode returns the parsed acquisition setting.
func (s Settings) AcquisitionMode() lidarlite.Acquisition {
	acq, _ := lidarlite.ParseAcquisition(s.Acquisition)
	return acq
}

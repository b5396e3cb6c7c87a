package lidarlite

import (
	"errors"
	"fmt"
)

var (
	ErrBusOpen            = errors.New("lidarlite: could not open I2C bus, check connection")
	ErrNotReady           = errors.New("lidarlite: not initialized")
	ErrTransientRead      = errors.New("lidarlite: register read failed")
	ErrAcquisitionTimeout = errors.New("lidarlite: busy flag never cleared")
	ErrUnsupported        = errors.New("lidarlite: not supported by this hardware revision")
)

// ReadError describes a register read that kept failing after every retry.
// It matches ErrTransientRead with errors.Is.
type ReadError struct {
	Register byte
	Attempts int
	Err      error // last bus error, nil when the register kept reading zero
}

func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lidarlite: reading register 0x%02x failed after %d attempts: %v", e.Register, e.Attempts, e.Err)
	}
	return fmt.Sprintf("lidarlite: register 0x%02x read zero %d times", e.Register, e.Attempts)
}

func (e *ReadError) Is(target error) bool {
	return target == ErrTransientRead
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

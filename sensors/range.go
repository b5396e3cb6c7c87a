// Package sensors turns blocking ranging sensor reads into a non-blocking, filtered distance feed.
package sensors

import "time"

// RangeReader provides an interface to a ranging sensor that needs to be
// polled, like the LIDAR-Lite. Reads block for the duration of an acquisition.
type RangeReader interface {
	ReadDistance(stabilize bool) (uint16, error) // ReadDistance triggers an acquisition and returns the distance in cm.
	ReadSignalStrength() (uint8, error)         // ReadSignalStrength returns the return signal strength of the last acquisition.
}

// StatusReporter is implemented by range sensors that can describe their
// state after an acquisition.
type StatusReporter interface {
	StatusReport() string
}

// Sample is one completed acquisition. Distance and SignalStrength are -1
// when the corresponding read failed; Err holds the first failure.
type Sample struct {
	Distance       int
	SignalStrength int
	Status         string // set when the reader is a StatusReporter
	Err            error
	At             time.Time
}

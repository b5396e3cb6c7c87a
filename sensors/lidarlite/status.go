package lidarlite

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Status is a snapshot of the mode/status register.
type Status byte

var statusNames = []struct {
	bit  Status
	name string
}{
	{StatusBusy, "busy"},
	{StatusReferenceOverflow, "reference overflow"},
	{StatusSignalOverflow, "signal overflow"},
	{StatusPin, "mode select pin"},
	{StatusSecondPeak, "second peak"},
	{StatusTimestamp, "active between pairs"},
	{StatusSignalInvalid, "no signal"},
	{StatusEyeSafetyOn, "eye safety"},
}

// Has reports whether all bits of flag are set.
func (s Status) Has(flag Status) bool {
	return s&flag == flag
}

// Conditions lists the names of the bits currently set, lowest bit first.
func (s Status) Conditions() []string {
	var out []string
	for _, sn := range statusNames {
		if s&sn.bit != 0 {
			out = append(out, sn.name)
		}
	}
	return out
}

// String renders the hex byte followed by each set condition, e.g.
// "STATUS BYTE: 0x81 busy; eye safety;".
func (s Status) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "STATUS BYTE: 0x%02x", byte(s))
	for _, c := range s.Conditions() {
		b.WriteString(" " + c + ";")
	}
	return b.String()
}

// DecodeStatus describes a status read. When the read itself failed only the
// error is reported.
func DecodeStatus(s Status, err error) string {
	if err != nil {
		return fmt.Sprintf("STATUS: error; %s", err)
	}
	return s.String()
}

// Capability names an optional read that not every hardware revision offers.
type Capability string

const (
	SignalStrength  Capability = "signal-strength"
	SoftwareVersion Capability = "software-version"
	EyeSafety       Capability = "eye-safety"
)

// Capabilities is the set of optional reads supported by a device.
type Capabilities []Capability

func (c Capabilities) Has(want Capability) bool {
	return slices.Contains(c, want)
}

func (c Capabilities) String() string {
	names := make([]string, len(c))
	for i, cp := range c {
		names[i] = string(cp)
	}
	slices.Sort(names)
	return strings.Join(names, ",")
}

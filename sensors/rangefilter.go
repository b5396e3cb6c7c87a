package sensors

import "math"

const (
	// NoObject is the filter output when the return signal is too weak to
	// trust any distance.
	NoObject = -1.0

	DefaultMinSignal  = 20 // below this signal strength a reading is discarded
	DefaultFullSignal = 80 // at or above this signal strength a reading is taken as is

	minWeight = 0.05
	maxWeight = 1.0
)

// ConfidenceFilter smooths raw distances with an exponential moving average
// whose weight follows the signal strength of each reading. Weak readings
// reset the estimate to NoObject instead of being blended in.
type ConfidenceFilter struct {
	MinSignal  int
	FullSignal int

	prev float64
}

func NewConfidenceFilter() *ConfidenceFilter {
	return &ConfidenceFilter{
		MinSignal:  DefaultMinSignal,
		FullSignal: DefaultFullSignal,
		prev:       NoObject,
	}
}

// Process feeds one reading and returns the new estimate, or NoObject.
func (f *ConfidenceFilter) Process(rawDistance, signalStrength int) float64 {
	if signalStrength < f.MinSignal {
		f.prev = NoObject
		return NoObject
	}

	weight := f.weight(signalStrength)
	out := float64(rawDistance)*weight + f.prev*(1-weight)
	f.prev = out
	return out
}

// Value returns the current estimate.
func (f *ConfidenceFilter) Value() float64 {
	return f.prev
}

// Reset forgets the current estimate.
func (f *ConfidenceFilter) Reset() {
	f.prev = NoObject
}

func (f *ConfidenceFilter) weight(signal int) float64 {
	if f.FullSignal <= f.MinSignal {
		return maxWeight
	}
	w := fmap(float64(signal), float64(f.MinSignal), float64(f.FullSignal), minWeight, maxWeight)
	return math.Max(minWeight, math.Min(maxWeight, w))
}

func fmap(x, inMin, inMax, outMin, outMax float64) float64 {
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

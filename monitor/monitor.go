// Package monitor drives the acquisition worker at a fixed frame rate and
// publishes what it gets: filtered distance, metrics, the sample log and a
// live websocket stream.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/b3nn0/lidarlite/datalog"
	"github.com/b3nn0/lidarlite/sensors"
	"github.com/b3nn0/lidarlite/sensors/lidarlite"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const defaultFrameInterval = 16 * time.Millisecond // ~60 frames per second

// Acquirer is the consumer side of the acquisition worker.
type Acquirer interface {
	RequestRead() bool
	ConsumeOutput() (sensors.Sample, bool)
}

// SampleLogger stores consumed samples.
type SampleLogger interface {
	LogSample(row datalog.SampleRow) bool
}

// Status is a snapshot of the monitor, served by the status endpoint and
// streamed to websocket clients.
type Status struct {
	Distance          int
	SignalStrength    int
	Filtered          float64
	ObjectDetected    bool
	SensorStatus      string
	LastError         string
	LastSample        time.Time
	FrameRate         float64
	Frames            uint64
	Samples           uint64
	Errors            uint64
	ConsecutiveErrors int
	PowerCycles       uint64
	CpuTemp           float32
}

type Monitor struct {
	acq     Acquirer
	filter  *sensors.ConfidenceFilter
	metrics *Metrics
	log     *zap.SugaredLogger
	clock   clock.Clock

	datalog    SampleLogger
	stream     *Broadcaster
	powerCycle func() error

	frameInterval time.Duration
	cycleAfter    int

	mu         sync.Mutex
	status     Status
	rateStart  time.Time
	rateFrames int
}

type MonitorOption func(*Monitor)

func WithLogger(l *zap.SugaredLogger) MonitorOption {
	return func(m *Monitor) { m.log = l }
}

func WithClock(c clock.Clock) MonitorOption {
	return func(m *Monitor) { m.clock = c }
}

func WithMetrics(metrics *Metrics) MonitorOption {
	return func(m *Monitor) { m.metrics = metrics }
}

func WithFilter(f *sensors.ConfidenceFilter) MonitorOption {
	return func(m *Monitor) { m.filter = f }
}

func WithDataLog(l SampleLogger) MonitorOption {
	return func(m *Monitor) { m.datalog = l }
}

func WithBroadcaster(b *Broadcaster) MonitorOption {
	return func(m *Monitor) { m.stream = b }
}

func WithFrameInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.frameInterval = d
		}
	}
}

// WithPowerCycle installs fn to be called after n consecutive failed samples.
func WithPowerCycle(n int, fn func() error) MonitorOption {
	return func(m *Monitor) {
		m.cycleAfter = n
		m.powerCycle = fn
	}
}

func New(acq Acquirer, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		acq:           acq,
		filter:        sensors.NewConfidenceFilter(),
		log:           zap.NewNop().Sugar(),
		clock:         clock.New(),
		frameInterval: defaultFrameInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	m.status.Filtered = m.filter.Value()
	m.rateStart = m.clock.Now()
	return m
}

// Run calls Frame every frame interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.Ticker(m.frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Frame()
		}
	}
}

// Frame asks for the next read and consumes whatever the previous request
// produced. It reports whether a new sample was consumed.
func (m *Monitor) Frame() bool {
	if !m.acq.RequestRead() {
		m.metrics.Contended.Inc()
	}
	sample, ok := m.acq.ConsumeOutput()

	var cycle bool
	m.mu.Lock()
	m.status.Frames++
	m.updateFrameRate()
	if ok {
		cycle = m.process(sample)
	}
	status := m.status
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.publish(sample, status)
	if cycle {
		if err := m.powerCycle(); err != nil {
			m.log.Errorf("LIDAR Error: power cycle failed: %s", err)
		}
	}
	return true
}

func (m *Monitor) updateFrameRate() {
	m.rateFrames++
	elapsed := m.clock.Since(m.rateStart)
	if elapsed >= time.Second {
		m.status.FrameRate = float64(m.rateFrames) / elapsed.Seconds()
		m.rateFrames = 0
		m.rateStart = m.clock.Now()
	}
}

// process folds one sample into the status and reports whether the sensor
// should be power cycled. Called with mu held.
func (m *Monitor) process(s sensors.Sample) bool {
	m.status.Samples++
	m.status.Distance = s.Distance
	m.status.SignalStrength = s.SignalStrength
	m.status.LastSample = s.At
	if s.Status != "" {
		m.status.SensorStatus = s.Status
	}
	m.metrics.Samples.Inc()
	m.metrics.Distance.Set(float64(s.Distance))
	m.metrics.SignalStrength.Set(float64(s.SignalStrength))

	if s.Err != nil {
		m.status.Errors++
		m.status.ConsecutiveErrors++
		m.status.LastError = s.Err.Error()
		m.metrics.Errors.WithLabelValues(errorKind(s.Err)).Inc()
		return m.dueForPowerCycle()
	}

	m.status.ConsecutiveErrors = 0
	m.status.LastError = ""
	m.status.Filtered = m.filter.Process(s.Distance, s.SignalStrength)
	m.status.ObjectDetected = m.status.Filtered != sensors.NoObject
	m.metrics.Filtered.Set(m.status.Filtered)
	return false
}

// dueForPowerCycle is called with mu held.
func (m *Monitor) dueForPowerCycle() bool {
	if m.powerCycle == nil || m.cycleAfter <= 0 || m.status.ConsecutiveErrors < m.cycleAfter {
		return false
	}
	m.log.Warnf("LIDAR Error: %d consecutive failed samples, power cycling the sensor", m.status.ConsecutiveErrors)
	m.status.ConsecutiveErrors = 0
	m.status.PowerCycles++
	m.metrics.PowerCycles.Inc()
	m.filter.Reset()
	m.status.Filtered = m.filter.Value()
	m.status.ObjectDetected = false
	return true
}

func (m *Monitor) publish(s sensors.Sample, status Status) {
	if m.datalog != nil {
		row := datalog.SampleRow{
			Timestamp:      s.At.UnixMilli(),
			Distance:       s.Distance,
			SignalStrength: s.SignalStrength,
			Filtered:       status.Filtered,
			Status:         s.Status,
		}
		if s.Err != nil {
			row.Error = s.Err.Error()
		}
		m.datalog.LogSample(row)
	}
	if m.stream != nil {
		msg, err := json.Marshal(&status)
		if err == nil {
			m.stream.Send(msg)
		}
	}
}

// SetCpuTemp records the board temperature.
func (m *Monitor) SetCpuTemp(t float32) {
	m.mu.Lock()
	m.status.CpuTemp = t
	m.mu.Unlock()
	m.metrics.CpuTemp.Set(float64(t))
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, lidarlite.ErrAcquisitionTimeout):
		return "timeout"
	case errors.Is(err, lidarlite.ErrTransientRead):
		return "read"
	case errors.Is(err, lidarlite.ErrNotReady):
		return "not_ready"
	default:
		return "other"
	}
}

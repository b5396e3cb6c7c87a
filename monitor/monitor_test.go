package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/b3nn0/lidarlite/datalog"
	"github.com/b3nn0/lidarlite/sensors"
	"github.com/b3nn0/lidarlite/sensors/lidarlite"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAcquirer hands out queued samples, one per ConsumeOutput.
type fakeAcquirer struct {
	mu        sync.Mutex
	samples   []sensors.Sample
	requests  int
	contended bool
}

func (a *fakeAcquirer) push(s ...sensors.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = append(a.samples, s...)
}

func (a *fakeAcquirer) RequestRead() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests++
	return !a.contended
}

func (a *fakeAcquirer) ConsumeOutput() (sensors.Sample, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.samples) == 0 {
		return sensors.Sample{}, false
	}
	s := a.samples[0]
	a.samples = a.samples[1:]
	return s, true
}

type memLog struct {
	rows []datalog.SampleRow
}

func (l *memLog) LogSample(row datalog.SampleRow) bool {
	l.rows = append(l.rows, row)
	return true
}

func good(dist, sig int) sensors.Sample {
	return sensors.Sample{Distance: dist, SignalStrength: sig, At: time.UnixMilli(1000)}
}

func failed(err error) sensors.Sample {
	return sensors.Sample{Distance: -1, SignalStrength: -1, Err: err, At: time.UnixMilli(2000)}
}

func TestFrameFiltersSamples(t *testing.T) {
	acq := &fakeAcquirer{}
	metrics := NewMetrics(prometheus.NewRegistry())
	logged := &memLog{}
	m := New(acq, WithMetrics(metrics), WithDataLog(logged), WithClock(clock.NewMock()))

	assert.False(t, m.Frame(), "nothing consumed yet")
	assert.Equal(t, sensors.NoObject, m.Status().Filtered)

	acq.push(good(100, 80), good(120, 50))
	require.True(t, m.Frame())
	require.True(t, m.Frame())

	st := m.Status()
	assert.InDelta(t, 110.5, st.Filtered, 1e-9)
	assert.True(t, st.ObjectDetected)
	assert.Equal(t, 120, st.Distance)
	assert.EqualValues(t, 3, st.Frames)
	assert.EqualValues(t, 2, st.Samples)
	assert.Equal(t, 3, acq.requests)

	assert.InDelta(t, 110.5, testutil.ToFloat64(metrics.Filtered), 1e-9)
	assert.Equal(t, 50.0, testutil.ToFloat64(metrics.SignalStrength))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Samples))

	require.Len(t, logged.rows, 2)
	assert.Equal(t, datalog.SampleRow{Timestamp: 1000, Distance: 100, SignalStrength: 80, Filtered: 100}, logged.rows[0])
}

func TestFrameWeakSignal(t *testing.T) {
	acq := &fakeAcquirer{}
	m := New(acq, WithClock(clock.NewMock()))

	acq.push(good(100, 80), good(300, 5))
	m.Frame()
	m.Frame()
	assert.Equal(t, sensors.NoObject, m.Status().Filtered)
	assert.False(t, m.Status().ObjectDetected)
}

func TestFrameErrorsKeepEstimate(t *testing.T) {
	acq := &fakeAcquirer{}
	metrics := NewMetrics(prometheus.NewRegistry())
	m := New(acq, WithMetrics(metrics), WithClock(clock.NewMock()))

	acq.push(good(100, 80), failed(lidarlite.ErrAcquisitionTimeout), failed(&lidarlite.ReadError{Register: 0x10, Attempts: 21}))
	m.Frame()
	m.Frame()
	m.Frame()

	st := m.Status()
	assert.Equal(t, 100.0, st.Filtered)
	assert.EqualValues(t, 2, st.Errors)
	assert.Equal(t, 2, st.ConsecutiveErrors)
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("read")))

	acq.push(good(100, 80))
	m.Frame()
	assert.Zero(t, m.Status().ConsecutiveErrors)
	assert.Empty(t, m.Status().LastError)
}

func TestFramePowerCycle(t *testing.T) {
	acq := &fakeAcquirer{}
	metrics := NewMetrics(prometheus.NewRegistry())
	var cycles int
	m := New(acq, WithMetrics(metrics), WithClock(clock.NewMock()), WithPowerCycle(3, func() error {
		cycles++
		return errors.New("gpio unavailable")
	}))

	acq.push(good(100, 80))
	for i := 0; i < 7; i++ {
		acq.push(failed(errors.New("i2c: no ack")))
	}
	for i := 0; i < 8; i++ {
		m.Frame()
	}

	assert.Equal(t, 2, cycles)
	st := m.Status()
	assert.EqualValues(t, 2, st.PowerCycles)
	assert.Equal(t, 1, st.ConsecutiveErrors)
	assert.Equal(t, sensors.NoObject, st.Filtered, "estimate is reset by a power cycle")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PowerCycles))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("other")))
}

func TestFrameContended(t *testing.T) {
	acq := &fakeAcquirer{contended: true}
	metrics := NewMetrics(prometheus.NewRegistry())
	m := New(acq, WithMetrics(metrics), WithClock(clock.NewMock()))

	m.Frame()
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Contended))
}

func TestFrameRate(t *testing.T) {
	clk := clock.NewMock()
	m := New(&fakeAcquirer{}, WithClock(clk))

	for i := 0; i < 61; i++ {
		clk.Add(time.Second / 60)
		m.Frame()
	}
	assert.InDelta(t, 60, m.Status().FrameRate, 1)
}

func TestSensorStatusKept(t *testing.T) {
	acq := &fakeAcquirer{}
	m := New(acq, WithClock(clock.NewMock()))

	s := good(10, 90)
	s.Status = "STATUS BYTE: 0x80 eye safety;"
	acq.push(s, good(10, 90))
	m.Frame()
	m.Frame()
	assert.Equal(t, "STATUS BYTE: 0x80 eye safety;", m.Status().SensorStatus)
}

func TestRunUntilCancelled(t *testing.T) {
	acq := &fakeAcquirer{}
	acq.push(good(100, 80))
	m := New(acq, WithFrameInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return m.Status().Samples == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSetCpuTemp(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	m := New(&fakeAcquirer{}, WithMetrics(metrics))
	m.SetCpuTemp(48.5)
	assert.Equal(t, float32(48.5), m.Status().CpuTemp)
	assert.Equal(t, 48.5, testutil.ToFloat64(metrics.CpuTemp))
}

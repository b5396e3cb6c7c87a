package sensors

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const defaultIdleInterval = 4 * time.Millisecond // well above 60Hz, so an idle worker adds no visible delay

// LidarWorker runs blocking range reads on its own goroutine so that a
// faster consumer never waits on the sensor. The consumer asks for a read
// with RequestRead and collects the result later with ConsumeOutput.
type LidarWorker struct {
	reader RangeReader
	box    Mailbox[Sample]

	clock          clock.Clock
	log            *zap.SugaredLogger
	idle           time.Duration
	stabilizeEvery int

	mu   sync.Mutex // guards quit and done
	quit chan struct{}
	done chan struct{}

	requests atomic.Uint64
	reads    atomic.Uint64
	failures atomic.Uint64
	consumed atomic.Uint64
}

// WorkerOption configures a LidarWorker.
type WorkerOption func(*LidarWorker)

func WithWorkerLogger(l *zap.SugaredLogger) WorkerOption {
	return func(w *LidarWorker) { w.log = l }
}

func WithWorkerClock(c clock.Clock) WorkerOption {
	return func(w *LidarWorker) { w.clock = c }
}

// WithIdleInterval sets how long the loop sleeps when no read is requested.
func WithIdleInterval(d time.Duration) WorkerOption {
	return func(w *LidarWorker) {
		if d > 0 {
			w.idle = d
		}
	}
}

// WithStabilizeEvery takes one DC stabilized reading out of every n. n <= 1
// stabilizes every reading.
func WithStabilizeEvery(n int) WorkerOption {
	return func(w *LidarWorker) { w.stabilizeEvery = n }
}

// WorkerStats are running totals since the worker was created.
type WorkerStats struct {
	Requests uint64 // accepted RequestRead calls
	Reads    uint64 // completed acquisitions
	Failures uint64 // acquisitions that ended with an error
	Consumed uint64 // samples handed out by ConsumeOutput
}

func NewLidarWorker(reader RangeReader, opts ...WorkerOption) *LidarWorker {
	w := &LidarWorker{
		reader:         reader,
		clock:          clock.New(),
		log:            zap.NewNop().Sugar(),
		idle:           defaultIdleInterval,
		stabilizeEvery: 1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the acquisition goroutine unless it is already running.
func (w *LidarWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.quit != nil {
		return
	}
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.quit, w.done)
}

// Stop asks the goroutine to exit and waits for it. A read in progress is
// finished first; the loop only notices the request between iterations.
func (w *LidarWorker) Stop() {
	w.mu.Lock()
	quit, done := w.quit, w.done
	w.quit, w.done = nil, nil
	w.mu.Unlock()

	if quit == nil {
		return
	}
	close(quit)
	<-done
}

// Running reports whether the acquisition goroutine has been started.
func (w *LidarWorker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.quit != nil
}

// RequestRead asks for a distance and signal strength read. It returns false
// without waiting when the shared slot is locked.
func (w *LidarWorker) RequestRead() bool {
	if !w.box.Request() {
		return false
	}
	w.requests.Add(1)
	return true
}

// ConsumeOutput returns the latest completed sample if one arrived since the
// previous call. It never waits.
func (w *LidarWorker) ConsumeOutput() (Sample, bool) {
	s, err := w.box.TryTake()
	if err != nil {
		return Sample{}, false
	}
	w.consumed.Add(1)
	return s, true
}

// IsOutputNew reports whether ConsumeOutput has a sample to hand out.
func (w *LidarWorker) IsOutputNew() bool {
	return w.box.Fresh()
}

func (w *LidarWorker) Stats() WorkerStats {
	return WorkerStats{
		Requests: w.requests.Load(),
		Reads:    w.reads.Load(),
		Failures: w.failures.Load(),
		Consumed: w.consumed.Load(),
	}
}

func (w *LidarWorker) run(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var n int
	for {
		select {
		case <-quit:
			return
		default:
		}

		if !w.box.Requested() {
			w.clock.Sleep(w.idle)
			continue
		}

		stabilize := w.stabilizeEvery <= 1 || n%w.stabilizeEvery == 0
		n++
		w.box.Publish(w.acquire(stabilize))
	}
}

// acquire performs one blocking read sequence. Errors end up in the sample;
// they never stop the loop.
func (w *LidarWorker) acquire(stabilize bool) Sample {
	s := Sample{Distance: -1, SignalStrength: -1}

	dist, err := w.reader.ReadDistance(stabilize)
	if err == nil {
		s.Distance = int(dist)
	} else {
		s.Err = err
	}

	sig, err := w.reader.ReadSignalStrength()
	if err == nil {
		s.SignalStrength = int(sig)
	} else if s.Err == nil {
		s.Err = err
	}

	if sr, ok := w.reader.(StatusReporter); ok {
		s.Status = sr.StatusReport()
	}

	s.At = w.clock.Now()
	w.reads.Add(1)
	if s.Err != nil {
		w.failures.Add(1)
		w.log.Debugf("LIDAR Error: acquisition failed: %s", s.Err)
	}
	return s
}

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/b3nn0/lidarlite/sensors"
	"github.com/b3nn0/lidarlite/sensors/lidarlite"
	_ "github.com/kidoman/embd/host/all"
	"go.uber.org/zap"
)

func main() {
	bus := flag.Int("bus", 1, "I2C bus number")
	acqName := flag.String("acq", "default", "acquisition mode: default, fast, low-sensitivity, high-sensitivity")
	threaded := flag.Bool("threaded", false, "read through the background worker and the confidence filter")
	frame := flag.Duration("frame", 16*time.Millisecond, "frame interval")
	verbose := flag.Bool("v", false, "log driver messages")
	flag.Parse()

	acq, ok := lidarlite.ParseAcquisition(*acqName)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown acquisition mode %q\n", *acqName)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	lidar := lidarlite.New(lidarlite.EmbdOpener{Bus: byte(*bus)}, lidarlite.WithLogger(logger.Sugar()))
	info, err := lidar.Initialize(acq, lidarlite.Address)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lidar.Close()

	fmt.Printf("LIDAR Lite hardware version: %d\n", info.Hardware)

	if *threaded {
		readThreaded(lidar, *frame, logger.Sugar())
	} else {
		readDirect(lidar, *frame)
	}
}

type frameRate struct {
	start  time.Time
	frames int
	hz     float64
}

func (f *frameRate) tick() float64 {
	if f.start.IsZero() {
		f.start = time.Now()
	}
	f.frames++
	if elapsed := time.Since(f.start); elapsed >= time.Second {
		f.hz = float64(f.frames) / elapsed.Seconds()
		f.frames = 0
		f.start = time.Now()
	}
	return f.hz
}

// readDirect blocks on every read, so the frame rate drops to what the
// sensor can deliver.
func readDirect(lidar *lidarlite.Device, frame time.Duration) {
	var rate frameRate
	clock := time.NewTicker(frame)
	for range clock.C {
		hz := rate.tick()
		distance := -1
		if d, err := lidar.ReadDistance(true); err == nil {
			distance = int(d)
		}
		fmt.Printf("Frame rate = %05.2f Hz, Distance = %d cm, %s\n", hz, distance, lidar.StatusReport())
	}
}

// readThreaded keeps the frame rate while the worker reads in the
// background. Frames without a new sample repeat the last estimate.
func readThreaded(lidar *lidarlite.Device, frame time.Duration, log *zap.SugaredLogger) {
	worker := sensors.NewLidarWorker(lidar, sensors.WithWorkerLogger(log), sensors.WithStabilizeEvery(100))
	worker.Start()
	defer worker.Stop()

	filter := sensors.NewConfidenceFilter()
	var (
		rate   frameRate
		sample = sensors.Sample{Distance: -1, SignalStrength: -1}
	)
	clock := time.NewTicker(frame)
	for range clock.C {
		hz := rate.tick()
		worker.RequestRead()
		if s, ok := worker.ConsumeOutput(); ok {
			sample = s
			if s.Err == nil {
				filter.Process(s.Distance, s.SignalStrength)
			}
		}
		fmt.Printf("Frame rate = %05.2f Hz, Distance = %d cm, Signal = %d, Filtered = %.1f cm, %s\n",
			hz, sample.Distance, sample.SignalStrength, filter.Value(), sample.Status)
	}
}

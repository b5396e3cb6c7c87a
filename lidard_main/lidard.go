package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/b3nn0/lidarlite/common"
	"github.com/b3nn0/lidarlite/datalog"
	"github.com/b3nn0/lidarlite/monitor"
	"github.com/b3nn0/lidarlite/sensors"
	"github.com/b3nn0/lidarlite/sensors/lidarlite"
	"github.com/b3nn0/lidarlite/settings"
	"github.com/dustin/go-humanize"
	_ "github.com/kidoman/embd/host/all"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/takama/daemon"
	"go.uber.org/zap"
)

const (
	// name of the service
	name        = "lidard"
	description = "LIDAR-Lite range sensor acquisition and filtering"

	debugLogFile = "lidard.log"
)

var stdlog, errlog *log.Logger

// rig is one running sensor pipeline built from a settings snapshot.
type rig struct {
	cfg settings.Settings
	dev *lidarlite.Device

	infoMu sync.Mutex
	info   lidarlite.HardwareInfo

	worker *sensors.LidarWorker
	mon    *monitor.Monitor
	power  *powerSwitch

	cancel context.CancelFunc
	done   chan struct{}
}

type lidard struct {
	log     *zap.SugaredLogger
	metrics *monitor.Metrics
	stream  *monitor.Broadcaster
	dlog    *datalog.Writer
	started time.Time

	mu  sync.Mutex
	rig *rig
}

func (l *lidard) opener(cfg settings.Settings) lidarlite.Opener {
	if cfg.BusDriver == settings.BusDriverPeriph {
		return lidarlite.PeriphOpener{Name: cfg.I2CBusName}
	}
	return lidarlite.EmbdOpener{Bus: byte(cfg.I2CBus)}
}

func (l *lidard) startRig(cfg settings.Settings) (*rig, error) {
	opts := []lidarlite.Option{lidarlite.WithLogger(l.log)}
	if cfg.BurstRead {
		opts = append(opts, lidarlite.WithBurstRead())
	}
	r := &rig{cfg: cfg, dev: lidarlite.New(l.opener(cfg), opts...)}

	info, err := r.dev.Initialize(cfg.AcquisitionMode(), cfg.Address)
	if err != nil {
		return nil, err
	}
	r.info = info

	r.worker = sensors.NewLidarWorker(r.dev,
		sensors.WithWorkerLogger(l.log),
		sensors.WithIdleInterval(time.Duration(cfg.IdleIntervalMs)*time.Millisecond),
		sensors.WithStabilizeEvery(cfg.StabilizeEvery))

	filter := sensors.NewConfidenceFilter()
	filter.MinSignal = cfg.MinSignal
	filter.FullSignal = cfg.FullSignal

	monOpts := []monitor.MonitorOption{
		monitor.WithLogger(l.log),
		monitor.WithMetrics(l.metrics),
		monitor.WithFilter(filter),
		monitor.WithBroadcaster(l.stream),
		monitor.WithFrameInterval(time.Duration(cfg.FrameIntervalMs) * time.Millisecond),
	}
	if l.dlog != nil {
		monOpts = append(monOpts, monitor.WithDataLog(l.dlog))
	}
	if cfg.PowerPin > 0 {
		if r.power, err = openPowerSwitch(cfg.PowerPin); err != nil {
			l.log.Warnf("LIDAR Error: can't open power pin %d, power cycling disabled: %s", cfg.PowerPin, err)
		} else {
			monOpts = append(monOpts, monitor.WithPowerCycle(cfg.PowerCycleAfter, r.powerCycle))
		}
	}
	r.mon = monitor.New(r.worker, monOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.worker.Start()
	go func() {
		defer close(r.done)
		r.mon.Run(ctx)
	}()
	return r, nil
}

// powerCycle runs on the monitor goroutine. The worker is stopped so nothing
// touches the bus while the sensor is down.
func (r *rig) powerCycle() error {
	r.worker.Stop()
	defer r.worker.Start()

	r.power.Cycle()
	info, err := r.dev.Reset(r.cfg.AcquisitionMode())
	if err != nil {
		return err
	}
	r.infoMu.Lock()
	r.info = info
	r.infoMu.Unlock()
	return nil
}

func (r *rig) hardware() lidarlite.HardwareInfo {
	r.infoMu.Lock()
	defer r.infoMu.Unlock()
	return r.info
}

func (r *rig) stop() {
	r.cancel()
	<-r.done
	r.worker.Stop()
	r.dev.Close()
	if r.power != nil {
		r.power.Close()
	}
}

// reload swaps the running pipeline for one built from cfg.
func (l *lidard) reload(cfg settings.Settings) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rig != nil {
		l.rig.stop()
		l.rig = nil
	}
	r, err := l.startRig(cfg)
	if err != nil {
		return err
	}
	l.rig = r
	return nil
}

func (l *lidard) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rig != nil {
		l.rig.stop()
		l.rig = nil
	}
	l.stream.Close()
	if l.dlog != nil {
		l.dlog.Close()
	}
}

type statusReport struct {
	monitor.Status
	SampleAge    string
	Uptime       string
	Hardware     byte
	Software     byte
	Profile      string
	Capabilities string
	Worker       sensors.WorkerStats
	LogDropped   string
	Clients      int
}

func (l *lidard) handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	report := statusReport{
		Uptime:  humanize.RelTime(l.started, time.Now(), "", ""),
		Clients: l.stream.Clients(),
	}
	l.mu.Lock()
	if l.rig != nil {
		report.Status = l.rig.mon.Status()
		info := l.rig.hardware()
		report.Hardware = info.Hardware
		report.Software = info.Software
		report.Profile = info.Profile.Name
		report.Capabilities = info.Profile.Capabilities.String()
		report.Worker = l.rig.worker.Stats()
	}
	l.mu.Unlock()
	if !report.LastSample.IsZero() {
		report.SampleAge = humanize.Time(report.LastSample)
	}
	if l.dlog != nil {
		report.LogDropped = humanize.Comma(int64(l.dlog.Dropped()))
	}

	statusJSON, _ := json.Marshal(&report)
	w.Header().Set("Content-Type", "application/json")
	w.Write(statusJSON)
}

func (l *lidard) cpuTemp(t float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rig != nil {
		l.rig.mon.SetCpuTemp(t)
	}
}

// Service has embedded daemon
type Service struct {
	daemon.Daemon
}

// Manage by daemon commands or run the daemon
func (service *Service) Manage() (string, error) {
	configPath := flag.String("config", settings.ConfigLocation, "settings file")
	addr := flag.String("addr", "", "HTTP listen address, overrides the settings file")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	usage := "Usage: " + name + " install | remove | start | stop | status"
	// if received any kind of command, do it
	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "install":
			if !common.IsRunningAsRoot() {
				return "", fmt.Errorf("%s install must be run as root", name)
			}
			return service.Install()
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	cfg, err := settings.Load(*configPath)
	if err != nil {
		errlog.Printf("%s, using defaults\n", err)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	cfg.Debug = cfg.Debug || *debug

	logFile, err := common.OpenLogFile(cfg.LogDir, debugLogFile)
	if err != nil {
		return "", err
	}
	defer logFile.Close()
	quit := make(chan struct{})
	defer close(quit)
	go logFile.Watch(quit, 30*time.Second)

	logger := common.NewLogger(logFile, cfg.Debug)
	defer logger.Sync()

	l := &lidard{
		log:     logger.Sugar(),
		metrics: monitor.NewMetrics(prometheus.DefaultRegisterer),
		stream:  monitor.NewBroadcaster(),
		started: time.Now(),
	}
	if cfg.DataLogPath != "" {
		if l.dlog, err = datalog.Open(cfg.DataLogPath, l.log); err != nil {
			l.log.Warnf("Datalog Error: %s, not logging samples", err)
		}
	}
	if err := l.reload(cfg); err != nil {
		return "", err
	}
	defer l.shutdown()

	go common.CpuTempMonitor(quit, time.Second, l.cpuTemp)

	// Set up channel on which to send signal notifications.
	// We must use a buffered channel or risk missing the signal
	// if we're not ready to receive when the signal is sent.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleStatusRequest)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/stream", l.stream.Handler())
	go func() {
		if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
			l.log.Errorf("HTTP Error: %s", err)
		}
	}()

	// interrupt by system signal
	for {
		killSignal := <-interrupt
		l.log.Infof("Got signal: %s", killSignal)
		switch killSignal {
		case syscall.SIGINT:
			return "Daemon was interrupted by system signal", nil
		case syscall.SIGUSR1:
			newCfg, err := settings.Load(*configPath)
			if err != nil {
				l.log.Errorf("%s, keeping current settings", err)
				continue
			}
			newCfg.HTTPAddr = cfg.HTTPAddr
			if err := l.reload(newCfg); err != nil {
				l.log.Errorf("LIDAR Error: reload failed: %s", err)
			}
		default:
			return "Daemon was killed", nil
		}
	}
}

func init() {
	stdlog = log.New(os.Stdout, "", 0)
	errlog = log.New(os.Stderr, "", 0)
}

func main() {
	srv, err := daemon.New(name, description, daemon.SystemDaemon)
	if err != nil {
		errlog.Println("Error: ", err)
		os.Exit(1)
	}
	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		errlog.Println(status, "\nError: ", err)
		os.Exit(1)
	}
	stdlog.Println(status)
}

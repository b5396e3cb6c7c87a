package monitor

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus collectors updated once per consumed sample.
type Metrics struct {
	Distance       prometheus.Gauge
	Filtered       prometheus.Gauge
	SignalStrength prometheus.Gauge
	CpuTemp        prometheus.Gauge

	Samples     prometheus.Counter
	Errors      *prometheus.CounterVec
	Contended   prometheus.Counter
	PowerCycles prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lidar_distance_cm",
			Help: "Last raw distance, cm. -1 when the read failed.",
		}),
		Filtered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lidar_filtered_distance_cm",
			Help: "Signal weighted distance estimate, cm. -1 when no object is detected.",
		}),
		SignalStrength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lidar_signal_strength",
			Help: "Return signal strength of the last sample.",
		}),
		CpuTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lidar_cpu_temp",
			Help: "Board temperature, degrees C.",
		}),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lidar_samples_total",
			Help: "Samples consumed from the acquisition worker.",
		}),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lidar_sample_errors_total",
				Help: "Samples that carried a read error.",
			},
			[]string{"kind"},
		),
		Contended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lidar_request_contended_total",
			Help: "Read requests skipped because the worker held the slot.",
		}),
		PowerCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lidar_power_cycles_total",
			Help: "Sensor power cycles after repeated errors.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Distance, m.Filtered, m.SignalStrength, m.CpuTemp,
			m.Samples, m.Errors, m.Contended, m.PowerCycles)
	}
	return m
}

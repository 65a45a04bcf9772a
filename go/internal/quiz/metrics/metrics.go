package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records what a session view observes on its push channel.
type Collector interface {
	RecordFrame(kind string)
	RecordUnrecognizedFrame()
	RecordSend(command string, success bool)
	RecordReconnectAttempt(attempt int, success bool)
	RecordPhase(role, phase string)
}

// NoOpCollector is used when metrics aren't needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordFrame(kind string) {}
func (NoOpCollector) RecordUnrecognizedFrame() {}
func (NoOpCollector) RecordSend(command string, success bool) {}
func (NoOpCollector) RecordReconnectAttempt(attempt int, success bool) {}
func (NoOpCollector) RecordPhase(role, phase string) {}

// PrometheusCollector implements Collector with client_golang.
type PrometheusCollector struct {
	frames       *prometheus.CounterVec
	unrecognized prometheus.Counter
	sends        *prometheus.CounterVec
	reconnects   *prometheus.CounterVec
	phase        *prometheus.GaugeVec
	phases       []string
}

// NewPrometheusCollector creates the session metrics and registers them with reg.
func NewPrometheusCollector(reg prometheus.Registerer, phases []string) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Decoded push channel frames by kind.",
		}, []string{"kind"}),
		unrecognized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Subsystem: "session",
			Name:      "frames_unrecognized_total",
			Help:      "Frames dropped because they did not match the protocol.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Subsystem: "session",
			Name:      "commands_sent_total",
			Help:      "Outbound commands by command and outcome.",
		}, []string{"command", "status"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Subsystem: "connection",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts by attempt number and outcome.",
		}, []string{"attempt", "status"}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quiz",
			Subsystem: "session",
			Name:      "phase",
			Help:      "1 for the current phase of the session view, 0 otherwise.",
		}, []string{"role", "phase"}),
		phases: phases,
	}

	for _, col := range []prometheus.Collector{c.frames, c.unrecognized, c.sends, c.reconnects, c.phase} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *PrometheusCollector) RecordFrame(kind string) {
	c.frames.WithLabelValues(kind).Inc()
}

func (c *PrometheusCollector) RecordUnrecognizedFrame() {
	c.unrecognized.Inc()
}

func (c *PrometheusCollector) RecordSend(command string, success bool) {
	c.sends.WithLabelValues(command, status(success)).Inc()
}

func (c *PrometheusCollector) RecordReconnectAttempt(attempt int, success bool) {
	c.reconnects.WithLabelValues(strconv.Itoa(attempt), status(success)).Inc()
}

func (c *PrometheusCollector) RecordPhase(role, phase string) {
	for _, p := range c.phases {
		c.phase.WithLabelValues(role, p).Set(0)
	}
	c.phase.WithLabelValues(role, phase).Set(1)
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

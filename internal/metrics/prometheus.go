package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the calibration transfer
type Metrics struct {
	// Command metrics
	CommandsSent         *prometheus.CounterVec
	CommandDuration      *prometheus.HistogramVec
	InProgressExtensions prometheus.Counter
	EnterAttempts        prometheus.Counter

	// Coefficient stream metrics
	StreamPacketsSent   prometheus.Counter
	CoefficientsSent    prometheus.Counter
	CurvesSent          prometheus.Counter
	DecimationOutcomes  *prometheus.CounterVec
	ChannelsTransferred prometheus.Counter

	// Run metrics
	TransferState    prometheus.Gauge
	TransferRuns     *prometheus.CounterVec
	TransferDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Command metrics
		CommandsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ocatransfer_commands_total",
			Help: "Total number of commands sent to the receiver by command and outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ocatransfer_command_duration_seconds",
			Help:    "Time from write to verdict for receiver commands",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"command"}),
		InProgressExtensions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ocatransfer_inprogress_extensions_total",
			Help: "Total number of INPROGRESS replies that extended a command timeout",
		}),
		EnterAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ocatransfer_enter_calibration_attempts_total",
			Help: "Total number of ENTER_AUDY attempts",
		}),

		// Coefficient stream metrics
		StreamPacketsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "ocatransfer_stream_packets_total",
			Help: "Total number of coefficient stream packets sent",
		}),
		CoefficientsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "ocatransfer_coefficients_total",
			Help: "Total number of filter coefficients sent",
		}),
		CurvesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "ocatransfer_curves_total",
			Help: "Total number of channel curves transferred",
		}),
		DecimationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ocatransfer_decimation_total",
			Help: "Total number of filter conversions by outcome",
		}, []string{"outcome"}),
		ChannelsTransferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "ocatransfer_channels_transferred_total",
			Help: "Total number of channels whose filters were transferred",
		}),

		// Run metrics
		TransferState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ocatransfer_state",
			Help: "Current transfer state as its ordinal",
		}),
		TransferRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ocatransfer_runs_total",
			Help: "Total number of transfer runs by result",
		}, []string{"result"}),
		TransferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ocatransfer_run_duration_seconds",
			Help:    "Duration of complete transfer runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ocatransfer_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ocatransfer_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordCommand records one receiver command and its outcome
func (m *Metrics) RecordCommand(command, outcome string, durationSeconds float64, extensions int) {
	m.CommandsSent.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(durationSeconds)
	if extensions > 0 {
		m.InProgressExtensions.Add(float64(extensions))
	}
}

// RecordEnterAttempt increments the enter-calibration attempts counter
func (m *Metrics) RecordEnterAttempt() {
	m.EnterAttempts.Inc()
}

// RecordStreamPacket records a coefficient packet and the floats it carried
func (m *Metrics) RecordStreamPacket(floats int) {
	m.StreamPacketsSent.Inc()
	m.CoefficientsSent.Add(float64(floats))
}

// RecordCurve increments the curves counter
func (m *Metrics) RecordCurve() {
	m.CurvesSent.Inc()
}

// RecordDecimation records a filter conversion outcome
func (m *Metrics) RecordDecimation(outcome string) {
	m.DecimationOutcomes.WithLabelValues(outcome).Inc()
}

// RecordChannel increments the channels transferred counter
func (m *Metrics) RecordChannel() {
	m.ChannelsTransferred.Inc()
}

// SetState sets the current transfer state
func (m *Metrics) SetState(ordinal int) {
	m.TransferState.Set(float64(ordinal))
}

// RecordRun records the end of a transfer run
func (m *Metrics) RecordRun(result string, durationSeconds float64) {
	m.TransferRuns.WithLabelValues(result).Inc()
	m.TransferDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

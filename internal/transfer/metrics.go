package transfer

import (
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/metrics"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/protocol"
)

// MetricsObserver records transfer events in Prometheus metrics
type MetricsObserver struct {
	metrics *metrics.Metrics
}

// NewMetricsObserver creates an observer feeding m
func NewMetricsObserver(m *metrics.Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

// Observe implements Observer
func (o *MetricsObserver) Observe(e Event) {
	switch e.Kind {
	case EventState:
		o.metrics.SetState(int(e.State))
	case EventCommand:
		o.metrics.RecordCommand(e.Command, e.Outcome, e.Elapsed.Seconds(), e.Extensions)
		if e.Command == protocol.CmdEnterCalibration {
			o.metrics.RecordEnterAttempt()
		}
	case EventStream:
		o.metrics.RecordStreamPacket(e.Floats)
	case EventDecimation:
		o.metrics.RecordDecimation(e.Outcome)
		o.metrics.RecordCurve()
	case EventChannel:
		o.metrics.RecordChannel()
	case EventDone:
		result := "success"
		if e.Err != nil {
			result = "failure"
		}
		o.metrics.RecordRun(result, e.Elapsed.Seconds())
	}
}

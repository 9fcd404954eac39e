package transfer

import "time"

// State is a stage of the transfer state machine
type State int

const (
	StateIdle State = iota
	StateConnected
	StateQueried
	StateValidated
	StateCalibrationModeEntered
	StateLayoutSent
	StateFixedPointInit
	StateStreamingChannels
	StateFinalized
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateQueried:
		return "queried"
	case StateValidated:
		return "validated"
	case StateCalibrationModeEntered:
		return "calibration_mode_entered"
	case StateLayoutSent:
		return "layout_sent"
	case StateFixedPointInit:
		return "fixed_point_init"
	case StateStreamingChannels:
		return "streaming_channels"
	case StateFinalized:
		return "finalized"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind identifies what an Event reports
type EventKind int

const (
	EventState      EventKind = iota // State changed
	EventCommand                     // A command completed or failed
	EventStream                      // A coefficient stream packet was sent
	EventDecimation                  // A curve went through the decimation engine
	EventChannel                     // All curves of a channel were sent
	EventDone                        // The run ended
)

// String returns the event kind name
func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventCommand:
		return "command"
	case EventStream:
		return "stream"
	case EventDecimation:
		return "decimation"
	case EventChannel:
		return "channel"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is a progress notification from a running transfer
type Event struct {
	Kind       EventKind
	At         time.Time
	State      State
	Label      string        // Command label, e.g. "PACKET 2/5 SW1 Flat SR01"
	Command    string        // Command name, e.g. "SET_COEFDT"
	Outcome    string        // Transport or decimation outcome
	Elapsed    time.Duration // Command latency, or run duration for EventDone
	Extensions int           // INPROGRESS extensions
	Floats     int           // Coefficients carried by a stream packet
	Channel    string
	Curve      string
	Err        error
}

// Observer receives transfer events. Observe is called synchronously
// from the transfer goroutine and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

// Observe calls f(e)
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// Observers fans events out to several observers
type Observers []Observer

// Observe forwards e to every non-nil observer
func (o Observers) Observe(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(e)
		}
	}
}

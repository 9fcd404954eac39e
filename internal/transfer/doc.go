// Package transfer drives one calibration upload to a receiver.
//
// The Orchestrator walks a fixed state machine over a single session:
// query the receiver, reconcile its configuration with the calibration file,
// enter calibration mode, send the speaker layout, optionally prepare a
// fixed-point receiver, stream every channel's filter curves at every sample
// rate, then finalize and leave calibration mode. Commands are strictly
// sequential and the delays between them are required by receiver firmware.
//
// Any failure aborts the whole run. Errors are wrapped in a StepError naming
// the step that failed, and the session is always closed on the way out.
//
// Progress is reported to an Observer, which is how metrics, MQTT progress
// events and the status endpoint follow a run.
package transfer

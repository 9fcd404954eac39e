package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrEnterCalibrationExhausted = errors.New("receiver did not enter calibration mode")
	ErrMissingStatusField        = errors.New("required field missing from receiver status")
	ErrLayoutTooLarge            = errors.New("SET_SETDAT payload exceeds packet size threshold")
)

// StepError names the transfer step that failed
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepErr(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}

// Package reconcile checks a calibration file against the receiver's live
// speaker configuration before anything is written to the receiver.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/calibration"
)

// ErrChannelMismatch means the calibration file targets channels the receiver does not have active
var ErrChannelMismatch = errors.New("configuration mismatch requires manual correction on the receiver")

// Input is what reconciliation compares
type Input struct {
	FileChannels   []string // Command ids from the calibration file
	ActiveChannels []string // Receiver's active channel ids, in receiver order
	FileAssignBin  string   // Optional amp-assign map stored in the calibration file
	LiveAssignBin  string   // Receiver's current amp-assign map
}

// Result is the outcome of a reconciliation
type Result struct {
	// Calibration channels that are not active on the receiver (fatal)
	Missing []string
	// Active receiver channels with no calibration data; left untouched
	Untouched []string
	// AssignBinCompared is false when the file carries no amp-assign map
	AssignBinCompared bool
	AssignBinMismatch bool
}

// OK reports whether the transfer may proceed
func (r *Result) OK() bool {
	return len(r.Missing) == 0
}

// Reconcile compares channel sets after alias normalization.
// The receiver's configuration is authoritative: a calibration channel absent
// from it is fatal, the reverse only a warning. The amp-assign maps are only
// compared for information; the receiver's current map is always used.
func Reconcile(in Input, logger *slog.Logger) (*Result, error) {
	result := &Result{}

	live := make(map[string]bool, len(in.ActiveChannels))
	for _, id := range in.ActiveChannels {
		live[calibration.NormalizeChannelID(id)] = true
	}

	inFile := make(map[string]bool, len(in.FileChannels))
	for _, id := range in.FileChannels {
		norm := calibration.NormalizeChannelID(id)
		if inFile[norm] {
			continue
		}
		inFile[norm] = true
		if !live[norm] {
			result.Missing = append(result.Missing, id)
		}
	}

	seen := make(map[string]bool, len(in.ActiveChannels))
	for _, id := range in.ActiveChannels {
		norm := calibration.NormalizeChannelID(id)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		if !inFile[norm] {
			result.Untouched = append(result.Untouched, id)
		}
	}

	if strings.TrimSpace(in.FileAssignBin) != "" {
		result.AssignBinCompared = true
		result.AssignBinMismatch = strings.TrimSpace(in.FileAssignBin) != strings.TrimSpace(in.LiveAssignBin)
	}

	if len(result.Missing) > 0 {
		logger.Error("Calibration channels are not active on the receiver",
			slog.Any("missing", result.Missing),
			slog.Any("receiver_active", in.ActiveChannels))
		return result, fmt.Errorf("channels [%s] are not active on the receiver (active: [%s]): %w",
			strings.Join(result.Missing, ", "), strings.Join(in.ActiveChannels, ", "), ErrChannelMismatch)
	}

	switch {
	case !result.AssignBinCompared:
		logger.Info("Skipping amp assignment comparison, calibration file has no AssignBin")
	case result.AssignBinMismatch:
		logger.Warn("Amp assignment differs from the calibration file, using the receiver's current assignment",
			slog.String("file", in.FileAssignBin),
			slog.String("receiver", in.LiveAssignBin))
	default:
		logger.Info("Amp assignment matches the calibration file")
	}

	if len(result.Untouched) > 0 {
		logger.Warn("Receiver channels without calibration data will not be updated",
			slog.Any("channels", result.Untouched))
	}

	return result, nil
}

package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/calibration"
)

const inactiveSpeaker = "N"

// Info is the GET_AVRINF response
type Info struct {
	DType        string        `json:"DType"`
	CoefWaitTime *CoefWaitTime `json:"CoefWaitTime,omitempty"`
}

// CoefWaitTime holds the receiver's fixed-point init wait hints in milliseconds
type CoefWaitTime struct {
	Init  *int `json:"Init,omitempty"`
	Final *int `json:"Final,omitempty"`
}

// InitWait returns the hinted wait before INIT_COEFS, or def
func (i *Info) InitWait(def time.Duration) time.Duration {
	if i.CoefWaitTime == nil || i.CoefWaitTime.Init == nil {
		return def
	}
	return time.Duration(*i.CoefWaitTime.Init) * time.Millisecond
}

// FinalWait returns the hinted wait after the INIT_COEFS pair, or def
func (i *Info) FinalWait(def time.Duration) time.Duration {
	if i.CoefWaitTime == nil || i.CoefWaitTime.Final == nil {
		return def
	}
	return time.Duration(*i.CoefWaitTime.Final) * time.Millisecond
}

// SpeakerSetup is one ChSetup entry, serialized by the receiver as {"FL":"S"}
type SpeakerSetup struct {
	ID   string
	Type string
}

// UnmarshalJSON decodes a single-key object
func (s *SpeakerSetup) UnmarshalJSON(data []byte) error {
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		return err
	}
	if len(entry) != 1 {
		return fmt.Errorf("ChSetup entry must have exactly one key, got %d", len(entry))
	}
	for id, v := range entry {
		s.ID = id
		switch t := v.(type) {
		case string:
			s.Type = t
		case nil:
			s.Type = ""
		default:
			s.Type = fmt.Sprint(t)
		}
	}
	return nil
}

// Active reports whether the receiver has this speaker enabled
func (s SpeakerSetup) Active() bool {
	return s.Type != inactiveSpeaker
}

// SubwooferSetup is the SWSetup status block. Firmware reports SWNum
// either as a number or as a numeric string.
type SubwooferSetup struct {
	SWNum json.RawMessage `json:"SWNum"`
}

// Count returns the subwoofer count when SWNum is a usable number
func (s *SubwooferSetup) Count() (int, bool) {
	if s == nil || len(s.SWNum) == 0 {
		return 0, false
	}
	raw := strings.Trim(strings.TrimSpace(string(s.SWNum)), `"`)
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// Status is the GET_AVRSTS response
type Status struct {
	ChSetup   []SpeakerSetup  `json:"ChSetup"`
	AmpAssign json.RawMessage `json:"AmpAssign"`
	AssignBin string          `json:"AssignBin"`
	SWSetup   *SubwooferSetup `json:"SWSetup,omitempty"`
}

// Validate checks the fields the transfer cannot proceed without
func (s *Status) Validate() error {
	if s.ChSetup == nil {
		return fmt.Errorf("ChSetup: %w", ErrMissingStatusField)
	}
	if s.AssignBin == "" {
		return fmt.Errorf("AssignBin: %w", ErrMissingStatusField)
	}
	if len(bytes.TrimSpace(s.AmpAssign)) == 0 || bytes.Equal(bytes.TrimSpace(s.AmpAssign), []byte("null")) {
		return fmt.Errorf("AmpAssign: %w", ErrMissingStatusField)
	}
	return nil
}

// ActiveChannels returns the enabled channel ids in receiver order
func (s *Status) ActiveChannels() []string {
	ids := make([]string, 0, len(s.ChSetup))
	for _, entry := range s.ChSetup {
		if entry.Active() {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}

// activeSet returns the normalized ids of the enabled channels
func (s *Status) activeSet() map[string]bool {
	set := make(map[string]bool, len(s.ChSetup))
	for _, entry := range s.ChSetup {
		if entry.Active() {
			set[calibration.NormalizeChannelID(entry.ID)] = true
		}
	}
	return set
}

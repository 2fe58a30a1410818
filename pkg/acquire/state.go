/*
   magpie - DiscFerret disc image acquisition
   Copyright (c) 2026, the magpie authors

   This file is part of magpie.

   magpie is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   magpie is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with magpie. If not, see <http://www.gnu.org/licenses/>.
*/

package acquire

// State is a step of the acquisition sequence.
type State int

const (
	StateInit State = iota
	StateMicrocodeLoaded
	StateConfigured
	StateSelected
	StateSpunUp
	StateCalibrated
	StateScanning
	StateScrubbing
	StateCancelled
	StateParked
	StateClosed
	StateFailed
)

//
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateMicrocodeLoaded:
		return "microcode-loaded"
	case StateConfigured:
		return "configured"
	case StateSelected:
		return "selected"
	case StateSpunUp:
		return "spun-up"
	case StateCalibrated:
		return "calibrated"
	case StateScanning:
		return "scanning"
	case StateScrubbing:
		return "scrubbing"
	case StateCancelled:
		return "cancelled"
	case StateParked:
		return "parked"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "<unknown>"
	}
}

//
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is how an acquisition run ended.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Failed
)

//
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "<unknown>"
	}
}

//
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result summarizes a finished run. Err is only set for Failed.
type Result struct {
	Outcome Outcome
	Err     error
	Frames  int
	Bytes   uint64
}

// Progress is a snapshot of a run in progress.
type Progress struct {
	State   State  `json:"state" yaml:"state"`
	Track   uint   `json:"track" yaml:"track"`
	Head    uint   `json:"head" yaml:"head"`
	Sector  uint   `json:"sector" yaml:"sector"`
	Frames  int    `json:"frames" yaml:"frames"`
	Bytes   uint64 `json:"bytes" yaml:"bytes"`
	Attempt int    `json:"recalibrationAttempt" yaml:"recalibrationAttempt"`
}

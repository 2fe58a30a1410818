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

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/discferret/magpie/pkg/device"
)

//
var (
	ErrApplication         = errors.New("acquisition error")
	ErrTimeout             = fmt.Errorf("%w: timed out", ErrApplication)
	ErrRecalibrationFailed = errors.New("recalibration failed")
	ErrInvalidSampleCount  = errors.New("invalid sample count")
	ErrInvalidOptions      = errors.New("invalid acquisition options")
)

// defaults for acquisition options
const (
	DefaultClockMHz         = 100
	DefaultReads            = 1
	DefaultScrubPasses      = 3
	DefaultRecalibrateTries = 3
	DefaultReadyTimeout     = 30 * time.Second
	DefaultAcquireTimeout   = 60 * time.Second
	DefaultSettleDelay      = 100 * time.Millisecond
	DefaultHeadSettle       = 500 * time.Millisecond
)

// Options control an acquisition run. Use DefaultOptions as a starting point.
type Options struct {
	// serial number of the device to use, empty for the first one found
	Serial string
	// sample clock in MHz, one of 25, 50, 100
	ClockMHz int
	// number of revolutions to capture per track, 1 through 16
	Reads uint
	// number of index pulses to skip before capturing, 0 through 15
	WaitIndex uint
	// capture without waiting for index pulses
	NoIndex bool
	// clean the drive heads instead of acquiring
	Scrub       bool
	ScrubPasses uint
	//
	RecalibrateTries uint
	// upper bounds for status polling, zero waits forever
	ReadyTimeout   time.Duration
	AcquireTimeout time.Duration
	// pause between status polls, zero polls continuously
	PollInterval time.Duration
	// pause after each head move while scrubbing
	SettleDelay time.Duration
	// pause before each capture in no-index mode
	HeadSettle time.Duration
}

//
func DefaultOptions() Options {
	return Options{
		ClockMHz:         DefaultClockMHz,
		Reads:            DefaultReads,
		ScrubPasses:      DefaultScrubPasses,
		RecalibrateTries: DefaultRecalibrateTries,
		ReadyTimeout:     DefaultReadyTimeout,
		AcquireTimeout:   DefaultAcquireTimeout,
		SettleDelay:      DefaultSettleDelay,
		HeadSettle:       DefaultHeadSettle,
	}
}

// Validate checks all options, reporting every problem found.
func (o *Options) Validate() error {

	var problems []string

	if _, ok := device.ClockForMHz(o.ClockMHz); !ok {
		problems = append(problems,
			fmt.Sprintf("clock rate %dMHz not one of 25, 50, 100", o.ClockMHz))
	}
	if o.Reads < 1 || o.Reads > device.MaxReads {
		problems = append(problems,
			fmt.Sprintf("read count %d not within 1-%d", o.Reads, device.MaxReads))
	}
	if o.WaitIndex > device.MaxWaitIndex {
		problems = append(problems, fmt.Sprintf(
			"index wait count %d exceeds %d", o.WaitIndex, device.MaxWaitIndex))
	}
	if o.RecalibrateTries < 1 {
		problems = append(problems, "at least one recalibration attempt required")
	}
	if o.ReadyTimeout < 0 || o.AcquireTimeout < 0 || o.PollInterval < 0 ||
		o.SettleDelay < 0 || o.HeadSettle < 0 {
		problems = append(problems, "negative durations not allowed")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(problems, "; "))
	}
	return nil
}

// clock returns the clock selector for the configured sample rate.
func (o *Options) clock() device.Clock {
	c, _ := device.ClockForMHz(o.ClockMHz)
	return c
}

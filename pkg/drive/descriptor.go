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

package drive

import (
	"errors"
	"fmt"
	"time"
)

// mechanical limits of the step rate, in microseconds
const (
	MinStepRateMicros = 250
	MaxStepRateMicros = 63750
)

// MaxGeometry is the largest track or head count an image frame can record.
const MaxGeometry = 0xffff

// defaults for unspecified drive parameters
const (
	DefaultHeads          = 1
	DefaultSpinUpMillis   = 1000
	DefaultStepRateMicros = 6000
	DefaultTracks         = 40
	DefaultTrackStep      = 1
)

//
var ErrInvalid = errors.New("invalid drive parameters")

// Spec carries the parameters for a new Descriptor. It is validated by New.
type Spec struct {
	DriveType      string
	FriendlyName   string
	StepRateMicros int
	SpinUpMillis   int
	Tracks         int
	TrackStep      int
	Heads          int
	TracksPerInch  float64
}

// DefaultSpec returns a spec with all defaulted fields filled in.
func DefaultSpec(driveType string) Spec {
	return Spec{
		DriveType:      driveType,
		StepRateMicros: DefaultStepRateMicros,
		SpinUpMillis:   DefaultSpinUpMillis,
		Tracks:         DefaultTracks,
		TrackStep:      DefaultTrackStep,
		Heads:          DefaultHeads,
	}
}

/*
	New validates s and creates a descriptor from it. Descriptors cannot be
	changed after creation.
*/
func New(s Spec) (*Descriptor, error) {

	if s.DriveType == "" {
		return nil, fmt.Errorf("%w: empty drive type", ErrInvalid)
	}
	if s.FriendlyName == "" {
		return nil, fmt.Errorf("%w: empty friendly name", ErrInvalid)
	}
	if s.StepRateMicros < MinStepRateMicros || s.StepRateMicros > MaxStepRateMicros {
		return nil, fmt.Errorf("%w: step rate %dus not within %d-%dus",
			ErrInvalid, s.StepRateMicros, MinStepRateMicros, MaxStepRateMicros)
	}
	if s.SpinUpMillis < 0 {
		return nil, fmt.Errorf("%w: negative spin-up time", ErrInvalid)
	}
	if s.Tracks < 1 || s.Tracks > MaxGeometry {
		return nil, fmt.Errorf("%w: track count must be within 1-%d",
			ErrInvalid, MaxGeometry)
	}
	if s.TrackStep < 1 {
		return nil, fmt.Errorf("%w: track step must be at least 1", ErrInvalid)
	}
	if s.Heads < 1 || s.Heads > MaxGeometry {
		return nil, fmt.Errorf("%w: head count must be within 1-%d",
			ErrInvalid, MaxGeometry)
	}
	if !(s.TracksPerInch >= 0) {
		return nil, fmt.Errorf("%w: tracks per inch must not be negative", ErrInvalid)
	}

	return &Descriptor{
		driveType:    s.DriveType,
		friendlyName: s.FriendlyName,
		stepRate:     uint(s.StepRateMicros),
		spinUp:       uint(s.SpinUpMillis),
		tracks:       uint(s.Tracks),
		trackStep:    uint(s.TrackStep),
		heads:        uint(s.Heads),
		tpi:          s.TracksPerInch,
	}, nil
}

// Descriptor holds the resolved mechanical parameters of one drive type.
type Descriptor struct {
	driveType    string
	friendlyName string
	stepRate     uint
	spinUp       uint
	tracks       uint
	trackStep    uint
	heads        uint
	tpi          float64
}

//
func (d *Descriptor) DriveType() string {
	return d.driveType
}

//
func (d *Descriptor) FriendlyName() string {
	return d.friendlyName
}

// StepRateMicros is the time between step pulses in microseconds.
func (d *Descriptor) StepRateMicros() uint {
	return d.stepRate
}

//
func (d *Descriptor) SpinUpMillis() uint {
	return d.spinUp
}

//
func (d *Descriptor) SpinUp() time.Duration {
	return time.Duration(d.spinUp) * time.Millisecond
}

//
func (d *Descriptor) Tracks() uint {
	return d.tracks
}

// TrackStep is the number of physical steps per logical track.
func (d *Descriptor) TrackStep() uint {
	return d.trackStep
}

//
func (d *Descriptor) Heads() uint {
	return d.heads
}

// TracksPerInch is 0 when unknown.
func (d *Descriptor) TracksPerInch() float64 {
	return d.tpi
}

//
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s (%s): %g tpi, %d tracks, %d heads",
		d.driveType, d.friendlyName, d.tpi, d.tracks, d.heads)
}

// Summary is a serializable view of a descriptor, for listings.
type Summary struct {
	DriveType      string  `json:"driveType" yaml:"driveType"`
	FriendlyName   string  `json:"friendlyName" yaml:"friendlyName"`
	StepRateMicros uint    `json:"stepRateMicros" yaml:"stepRateMicros"`
	SpinUpMillis   uint    `json:"spinUpMillis" yaml:"spinUpMillis"`
	Tracks         uint    `json:"tracks" yaml:"tracks"`
	TrackStep      uint    `json:"trackStep" yaml:"trackStep"`
	Heads          uint    `json:"heads" yaml:"heads"`
	TracksPerInch  float64 `json:"tracksPerInch" yaml:"tracksPerInch"`
}

//
func (d *Descriptor) Summary() *Summary {
	return &Summary{
		DriveType:      d.driveType,
		FriendlyName:   d.friendlyName,
		StepRateMicros: d.stepRate,
		SpinUpMillis:   d.spinUp,
		Tracks:         d.tracks,
		TrackStep:      d.trackStep,
		Heads:          d.heads,
		TracksPerInch:  d.tpi,
	}
}

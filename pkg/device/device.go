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

package device

import (
	"fmt"
)

/*
	Session is an open connection to an imaging device. All calls are
	synchronous and block until the device has answered. A session is owned by
	exactly one user at a time and is not safe for concurrent use.
*/
type Session interface {
	//
	Close() error
	// LoadMicrocode uploads the default control microcode to the device.
	LoadMicrocode() error
	//
	Info() (*Info, error)
	// Status returns the raw status word, see the Status* constants.
	Status() (uint32, error)
	// SetSeekRate sets the step pulse rate in microseconds.
	SetSeekRate(micros uint) error
	//
	SeekAbsolute(track uint) error
	SeekRelative(steps int) error
	// Recalibrate steps the head towards track zero, giving up after tracks
	// step pulses.
	Recalibrate(tracks uint) error
	//
	Poke(reg Register, val byte) error
	//
	RAMAddr() (uint32, error)
	SetRAMAddr(addr uint32) error
	// ReadRAM fills buf from acquisition RAM, starting at the current RAM
	// address.
	ReadRAM(buf []byte) error
	// IndexFrequency measures the disc rotation speed in RPM. With wait set,
	// the device waits for a fresh index pulse before measuring.
	IndexFrequency(wait bool) (float64, error)
}

// Opener opens a device session. An empty serial number selects the first
// device found.
type Opener func(serial string) (Session, error)

//
type Info struct {
	Serial        string `json:"serial" yaml:"serial"`
	HardwareRev   string `json:"hardwareRevision" yaml:"hardwareRevision"`
	FirmwareVer   uint16 `json:"firmwareVersion" yaml:"firmwareVersion"`
	MicrocodeType uint16 `json:"microcodeType" yaml:"microcodeType"`
	MicrocodeVer  uint16 `json:"microcodeVersion" yaml:"microcodeVersion"`
}

//
func (i *Info) String() string {
	return fmt.Sprintf(
		"serial %s, hardware %s, firmware %04x, microcode type %04x rev %04x",
		i.Serial, i.HardwareRev, i.FirmwareVer, i.MicrocodeType, i.MicrocodeVer)
}

// SeekRateUnits converts a step rate in microseconds into the device's 250us
// rate units. Rates outside 250us through 63.75ms yield ErrSeekRateOutOfRange.
func SeekRateUnits(micros uint) (byte, error) {
	if micros < MinStepRateMicros || micros > MaxStepRateMicros {
		return 0, fmt.Errorf("%w: %dus", ErrSeekRateOutOfRange, micros)
	}
	return byte(micros / StepRateUnitMicros), nil
}

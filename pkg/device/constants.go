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

// Register addresses on the device's control bus
type Register byte

const (
	RegDriveControl Register = 0x04
	RegACQCON       Register = 0x10
	RegACQStartEvt  Register = 0x20
	RegACQStopEvt   Register = 0x21
	RegACQStartNum  Register = 0x22
	RegACQStopNum   Register = 0x23
	RegACQClkSel    Register = 0x24
	RegHSIODir      Register = 0x30
)

//
func (r Register) String() string {
	switch r {
	case RegDriveControl:
		return "DRIVE_CONTROL"
	case RegACQCON:
		return "ACQCON"
	case RegACQStartEvt:
		return "ACQ_START_EVT"
	case RegACQStopEvt:
		return "ACQ_STOP_EVT"
	case RegACQStartNum:
		return "ACQ_START_NUM"
	case RegACQStopNum:
		return "ACQ_STOP_NUM"
	case RegACQClkSel:
		return "ACQ_CLKSEL"
	case RegHSIODir:
		return "HSIO_DIR"
	default:
		return "<unknown>"
	}
}

// ACQCON commands
const (
	ACQConStart byte = 0x01
	ACQConAbort byte = 0x04
)

// acquisition trigger events
const (
	ACQEventAlways byte = 0x00
	ACQEventIndex  byte = 0x01
	ACQEventNever  byte = 0x08
)

// Clock is an acquisition sample clock selector
type Clock byte

const (
	Clock100MHz Clock = 0x00
	Clock50MHz  Clock = 0x01
	Clock25MHz  Clock = 0x02
)

// ClockForMHz maps a sample rate in MHz to its clock selector.
func ClockForMHz(mhz int) (Clock, bool) {
	switch mhz {
	case 100:
		return Clock100MHz, true
	case 50:
		return Clock50MHz, true
	case 25:
		return Clock25MHz, true
	default:
		return 0, false
	}
}

//
func (c Clock) MHz() int {
	switch c {
	case Clock100MHz:
		return 100
	case Clock50MHz:
		return 50
	case Clock25MHz:
		return 25
	default:
		return 0
	}
}

// drive control pins, as asserted through RegDriveControl
const (
	PinDensity byte = 0x01
	PinInUse   byte = 0x02
	PinDS0     byte = 0x04
	PinDS1     byte = 0x08
	PinDS2     byte = 0x10
	PinDS3     byte = 0x20
	PinMotEn   byte = 0x40
	PinSideSel byte = 0x80
)

// status word bits
const (
	StatusACQMask      uint32 = 0x0007
	StatusACQIdle      uint32 = 0x0000
	StatusACQWaiting   uint32 = 0x0001
	StatusACQAcquiring uint32 = 0x0002
	StatusRAMEmpty     uint32 = 0x0008
	StatusRAMFull      uint32 = 0x0010
	StatusIndex        uint32 = 0x0100
	StatusTrack0       uint32 = 0x0200
	StatusWriteProtect uint32 = 0x0400
	StatusDiscChange   uint32 = 0x0800
	StatusDensity      uint32 = 0x1000
)

// HSIODirInput switches all high speed I/O pins to input
const HSIODirInput byte = 0xff

// acquisition RAM is 512K
const RAMSize = 512 * 1024

// step rate limits; the device takes the rate in 250us units, 1 to 255
const (
	StepRateUnitMicros = 250
	MinStepRateMicros  = StepRateUnitMicros
	MaxStepRateMicros  = 255 * StepRateUnitMicros
)

// limits for acquisition trigger counts
const (
	MaxReads     = 16
	MaxWaitIndex = 15
)

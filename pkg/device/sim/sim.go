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

/*
	Package sim provides a simulated imaging device. It is used for dry runs
	of the acquisition sequence without hardware attached, and as the device
	double in tests.
*/
package sim

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/discferret/magpie/pkg/device"
)

// Config controls the behavior of a simulated device. Zero values give an
// always ready device capturing DefaultSampleCount bytes per acquisition.
type Config struct {
	//
	Serial string
	// SampleCount returns the RAM address reported after the n-th capture
	// (0-based). Reports beyond RAM size are kept as is, as is the case with
	// real hardware, so callers must clamp.
	SampleCount func(capture int) uint32
	// RAMFull reports whether the n-th capture overflowed acquisition RAM.
	RAMFull func(capture int) bool
	// RecalibrateFailures lets this many recalibrations fail before
	// succeeding.
	RecalibrateFailures int
	// BusyPolls is the number of status reads an acquisition stays busy.
	BusyPolls int
	// NotReadyPolls is the number of initial status reads without the ready
	// line asserted.
	NotReadyPolls int
	// OnCapture is called after the n-th acquisition has been started.
	OnCapture func(capture int)
	// Fail may inject an error for the named operation.
	Fail func(op string) error
	//
	RPM float64
}

//
const DefaultSampleCount = 4096

// New creates a simulated device.
func New(cfg Config) *Device {
	if cfg.RPM == 0 {
		cfg.RPM = 300
	}
	return &Device{cfg: cfg}
}

// Device is a simulated imaging device. Use Open as the device.Opener.
type Device struct {
	//
	cfg Config
	//
	open      bool
	microcode bool
	rateUnits byte
	track     int
	regs      map[device.Register]byte
	ramAddr   uint32
	ramFull   bool
	busy      int
	polls     int
	captures  int
	recals    int
	//
	journal []string
}

// Open opens a session on the simulated device.
func (d *Device) Open(serial string) (device.Session, error) {
	if serial != "" && d.cfg.Serial != "" && serial != d.cfg.Serial {
		return nil, device.NewError("open", device.CodeNoDevice)
	}
	if err := d.fail("open"); err != nil {
		return nil, err
	}
	d.open = true
	d.regs = map[device.Register]byte{}
	d.record("open %s", serial)
	return d, nil
}

// Journal returns all operations performed on this device so far.
func (d *Device) Journal() []string {
	return append([]string(nil), d.journal...)
}

// Captures returns the number of acquisitions started so far.
func (d *Device) Captures() int {
	return d.captures
}

// Recalibrations returns the number of recalibrations attempted so far.
func (d *Device) Recalibrations() int {
	return d.recals
}

// Track returns the physical track the head is on.
func (d *Device) Track() int {
	return d.track
}

// Register returns the last value poked into reg.
func (d *Device) Register(reg device.Register) byte {
	return d.regs[reg]
}

// IsOpen reports whether a session is currently open.
func (d *Device) IsOpen() bool {
	return d.open
}

//
func (d *Device) Close() error {
	if !d.open {
		return device.NewError("close", device.CodeNotOpen)
	}
	d.open = false
	d.record("close")
	return nil
}

//
func (d *Device) LoadMicrocode() error {
	if err := d.check("microcode"); err != nil {
		return err
	}
	d.microcode = true
	d.record("microcode")
	return nil
}

//
func (d *Device) Info() (*device.Info, error) {
	if err := d.check("info"); err != nil {
		return nil, err
	}
	serial := d.cfg.Serial
	if serial == "" {
		serial = "SIM00001"
	}
	return &device.Info{
		Serial:        serial,
		HardwareRev:   "sim",
		FirmwareVer:   0x001b,
		MicrocodeType: 0xdd55,
		MicrocodeVer:  0x002e,
	}, nil
}

//
func (d *Device) Status() (uint32, error) {
	if err := d.check("status"); err != nil {
		return 0, err
	}

	var st uint32

	d.polls++
	if d.polls > d.cfg.NotReadyPolls {
		st |= device.StatusDiscChange
	}
	if d.track == 0 {
		st |= device.StatusTrack0
	}

	if d.busy > 0 {
		d.busy--
		st |= device.StatusACQAcquiring
	}
	if d.ramFull {
		st |= device.StatusRAMFull
	}

	return st, nil
}

//
func (d *Device) SetSeekRate(micros uint) error {
	if err := d.check("seekrate"); err != nil {
		return err
	}
	units, err := device.SeekRateUnits(micros)
	if err != nil {
		return err
	}
	d.rateUnits = units
	d.record("seekrate %d", micros)
	return nil
}

//
func (d *Device) SeekAbsolute(track uint) error {
	if err := d.check("seek"); err != nil {
		return err
	}
	d.track = int(track)
	d.record("seek %d", track)
	return nil
}

//
func (d *Device) SeekRelative(steps int) error {
	if err := d.check("step"); err != nil {
		return err
	}
	d.track += steps
	if d.track < 0 {
		d.track = 0
	}
	d.record("step %d", steps)
	return nil
}

//
func (d *Device) Recalibrate(tracks uint) error {
	if err := d.check("recalibrate"); err != nil {
		return err
	}
	d.recals++
	d.record("recalibrate %d", tracks)
	if d.recals <= d.cfg.RecalibrateFailures {
		return device.NewError("recalibrate", device.CodeSeekFailed)
	}
	d.track = 0
	return nil
}

//
func (d *Device) Poke(reg device.Register, val byte) error {
	if err := d.check("poke"); err != nil {
		return err
	}
	d.regs[reg] = val
	d.record("poke %s 0x%02x", reg, val)

	if reg == device.RegACQCON {
		switch val {
		case device.ACQConStart:
			d.capture()
		case device.ACQConAbort:
			d.busy = 0
		}
	}
	return nil
}

//
func (d *Device) capture() {

	n := d.captures
	d.captures++

	count := uint32(DefaultSampleCount)
	if d.cfg.SampleCount != nil {
		count = d.cfg.SampleCount(n)
	}
	d.ramAddr = count
	d.ramFull = d.cfg.RAMFull != nil && d.cfg.RAMFull(n)
	d.busy = d.cfg.BusyPolls

	log.WithFields(log.Fields{
		"capture": n,
		"bytes":   count,
		"full":    d.ramFull,
	}).Trace("simulated capture")

	if d.cfg.OnCapture != nil {
		d.cfg.OnCapture(n)
	}
}

//
func (d *Device) RAMAddr() (uint32, error) {
	if err := d.check("ramaddr"); err != nil {
		return 0, err
	}
	return d.ramAddr, nil
}

//
func (d *Device) SetRAMAddr(addr uint32) error {
	if err := d.check("setramaddr"); err != nil {
		return err
	}
	d.ramAddr = addr
	return nil
}

// ReadRAM fills buf with a pattern derived from RAM address and current
// track, so captures are distinguishable.
func (d *Device) ReadRAM(buf []byte) error {
	if err := d.check("ramread"); err != nil {
		return err
	}
	if uint32(len(buf))+d.ramAddr > device.RAMSize {
		return device.NewError("ramread", device.CodeBadParameter)
	}
	for ix := range buf {
		buf[ix] = byte(int(d.ramAddr) + ix + d.track)
	}
	d.ramAddr += uint32(len(buf))
	d.record("ramread %d", len(buf))
	return nil
}

//
func (d *Device) IndexFrequency(wait bool) (float64, error) {
	if err := d.check("index"); err != nil {
		return 0, err
	}
	return d.cfg.RPM, nil
}

//
func (d *Device) check(op string) error {
	if !d.open {
		return device.NewError(op, device.CodeNotOpen)
	}
	if op != "microcode" && op != "info" && !d.microcode {
		return device.NewError(op, device.CodeNotConfigured)
	}
	return d.fail(op)
}

//
func (d *Device) fail(op string) error {
	if d.cfg.Fail != nil {
		return d.cfg.Fail(op)
	}
	return nil
}

//
func (d *Device) record(format string, args ...interface{}) {
	d.journal = append(d.journal, fmt.Sprintf(format, args...))
}

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
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/discferret/magpie/pkg/device"
	"github.com/discferret/magpie/pkg/image"
)

/*
	scan captures all tracks, heads, and sectors of the disc into the image
	opened via out. Cancellation is checked before each track, head, and
	sector, never in the middle of a capture. The image is closed when scan
	returns.
*/
func (s *Sequencer) scan(out OutputFunc) (cancelled bool, err error) {

	w, err := out()
	if err != nil {
		return false, fmt.Errorf("cannot open image: %w", err)
	}
	defer func() {
		if cErr := w.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("error closing image: %w", cErr)
		}
	}()

	if s.buf == nil {
		s.buf = make([]byte, device.RAMSize)
	}

	for track := uint(0); track < s.drive.Tracks(); track++ {

		if s.cancelled() {
			return true, nil
		}

		if err := s.session.SeekAbsolute(track * s.drive.TrackStep()); err != nil {
			return false, appError(fmt.Sprintf("seeking to track %d", track), err)
		}

		for head := uint(0); head < s.drive.Heads(); head++ {

			if s.cancelled() {
				return true, nil
			}

			for _, sector := range sectors {

				if s.cancelled() {
					return true, nil
				}

				if err := s.capture(w, track, head, sector); err != nil {
					return false, err
				}
			}
		}
	}

	return false, nil
}

// capture acquires a single track, head, and sector, and writes it to w.
func (s *Sequencer) capture(w FrameWriter, track, head, sector uint) error {

	s.update(func(p *Progress) {
		p.Track, p.Head, p.Sector = track, head, sector
	})

	out, err := s.behavior.Outputs(s.drive.DriveType(), track, head, sector)
	if err != nil {
		return err
	}

	startEvt, stopEvt := device.ACQEventIndex, device.ACQEventIndex
	if s.opts.NoIndex {
		startEvt, stopEvt = device.ACQEventAlways, device.ACQEventNever
	}

	for _, p := range []struct {
		reg  device.Register
		val  byte
		what string
	}{
		{device.RegDriveControl, out, "setting drive outputs"},
		{device.RegACQStartEvt, startEvt, "setting acquisition start event"},
		{device.RegACQStartNum, byte(s.opts.WaitIndex), "setting acquisition start count"},
		{device.RegACQStopEvt, stopEvt, "setting acquisition stop event"},
		{device.RegACQStopNum, byte(s.opts.Reads - 1), "setting acquisition stop count"},
		{device.RegACQClkSel, byte(s.opts.clock()), "setting acquisition clock"},
	} {
		if err := s.session.Poke(p.reg, p.val); err != nil {
			return appError(p.what, err)
		}
	}

	if err := s.session.SetRAMAddr(0); err != nil {
		return appError("resetting RAM address", err)
	}

	if s.opts.NoIndex {
		s.sleep(s.opts.HeadSettle)
	}

	if err := s.waitReady(); err != nil {
		return err
	}

	if err := s.session.Poke(device.RegACQCON, device.ACQConStart); err != nil {
		return appError("starting acquisition", err)
	}

	if err := s.waitIdle(); err != nil {
		return err
	}

	count, err := s.session.RAMAddr()
	if err != nil {
		return appError("reading RAM address", err)
	}
	st, err := s.status()
	if err != nil {
		return err
	}
	if st&device.StatusRAMFull != 0 {
		log.WithFields(log.Fields{
			"track": track,
			"head":  head,
		}).Warn("acquisition RAM full, sample data may have overflowed")
		RegisterMetrics()
		ramOverflows.Inc()
		count = device.RAMSize
	}
	if count > device.RAMSize {
		count = device.RAMSize
	}

	log.Infof("CHS %d:%d:%d, %d bytes of sample data", track, head, sector, count)

	if count < 1 {
		return fmt.Errorf("%w: %d bytes at CHS %d:%d:%d",
			ErrInvalidSampleCount, count, track, head, sector)
	}

	if err := s.session.SetRAMAddr(0); err != nil {
		return appError("resetting RAM address", err)
	}
	data := s.buf[:count]
	if err := s.session.ReadRAM(data); err != nil {
		return appError("reading acquisition RAM", err)
	}

	h := image.Header{
		Track:  uint16(track),
		Head:   uint16(head),
		Sector: uint16(sector),
	}
	if err := w.WriteFrame(h, data); err != nil {
		return fmt.Errorf("error writing frame: %w", err)
	}

	recordFrame(len(data))
	s.update(func(p *Progress) {
		p.Frames++
		p.Bytes += uint64(len(data))
	})

	return nil
}

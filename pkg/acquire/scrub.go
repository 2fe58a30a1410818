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
	log "github.com/sirupsen/logrus"
)

/*
	scrub cleans the drive heads by sweeping them across the disc in coarse
	strides, forth and back, for the configured number of passes. Nothing is
	captured. Cancellation is checked before each move.
*/
func (s *Sequencer) scrub() (cancelled bool, err error) {

	tracks := s.drive.Tracks()
	stride := uint(2)
	if tracks >= 16 {
		stride = tracks / 8
	}

	passes := s.opts.ScrubPasses
	for pass := uint(1); pass <= passes; pass++ {

		log.Infof("cleaning drive heads, pass %d of %d", pass, passes)

		for cyl := uint(0); cyl < tracks; cyl += stride {

			far := cyl + stride - 1
			if far >= tracks {
				far = tracks - 1
			}

			for _, t := range []uint{far, cyl} {
				if s.cancelled() {
					return true, nil
				}
				s.update(func(p *Progress) { p.Track = t })
				if err := s.session.SeekAbsolute(t); err != nil {
					log.Warnf("seek to track %d failed while scrubbing: %v", t, err)
				}
				s.sleep(s.opts.SettleDelay)
			}
		}
	}

	return false, s.recalibrate()
}

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
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/discferret/magpie/pkg/device"
)

// deadline returns the point in time at which a wait bounded by timeout
// expires, or the zero time for an unbounded wait.
func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

//
func expired(dl time.Time) bool {
	return !dl.IsZero() && time.Now().After(dl)
}

//
func (s *Sequencer) pause() {
	if s.opts.PollInterval > 0 {
		s.sleep(s.opts.PollInterval)
	}
}

//
func (s *Sequencer) status() (uint32, error) {
	st, err := s.session.Status()
	if err != nil {
		return 0, appError("reading status", err)
	}
	return st, nil
}

// waitReady polls the device status until the drive script considers the
// drive ready.
func (s *Sequencer) waitReady() error {

	dl := deadline(s.opts.ReadyTimeout)

	for {
		st, err := s.status()
		if err != nil {
			return err
		}
		ready, err := s.behavior.IsReady(s.drive.DriveType(), st)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if expired(dl) {
			return fmt.Errorf("%w after %v waiting for drive ready, status %#x",
				ErrTimeout, s.opts.ReadyTimeout, st)
		}
		s.pause()
	}
}

// waitIdle polls the device status until the acquisition engine is idle.
func (s *Sequencer) waitIdle() error {

	dl := deadline(s.opts.AcquireTimeout)

	for {
		st, err := s.status()
		if err != nil {
			return err
		}
		if st&device.StatusACQMask == device.StatusACQIdle {
			return nil
		}
		if expired(dl) {
			return fmt.Errorf("%w after %v waiting for acquisition, status %#x",
				ErrTimeout, s.opts.AcquireTimeout, st)
		}
		s.pause()
	}
}

/*
	recalibrate moves the head to track zero, making up to RecalibrateTries
	attempts, each after waiting for the drive to become ready. Once the head
	is home, it waits for ready one more time.
*/
func (s *Sequencer) recalibrate() error {

	tries := int(s.opts.RecalibrateTries)
	var err error

	for attempt := 1; attempt <= tries; attempt++ {

		s.update(func(p *Progress) { p.Attempt = attempt })

		if err = s.waitReady(); err != nil {
			return err
		}

		if err = s.session.Recalibrate(s.drive.Tracks()); err == nil {
			recordRecalibration(true)
			log.Infof("recalibration attempt %d succeeded", attempt)
			break
		}

		recordRecalibration(false)
		log.Warnf("recalibration attempt %d of %d failed: %v", attempt, tries, err)
	}

	s.update(func(p *Progress) { p.Attempt = 0 })

	if err != nil {
		return fmt.Errorf("%w after %d attempts: %w", ErrRecalibrationFailed, tries, err)
	}

	return s.waitReady()
}

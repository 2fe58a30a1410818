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
	Package acquire runs the acquisition sequence. It brings up the device and
	drive, recalibrates the head, then either captures every track, head and
	sector of the disc into an image, or scrubs the heads. Drive specific
	behavior comes from a drive script.
*/
package acquire

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/discferret/magpie/pkg/device"
	"github.com/discferret/magpie/pkg/drive"
	"github.com/discferret/magpie/pkg/image"
)

// Behavior is the drive specific behavior the sequence relies on.
// *script.Script satisfies it.
type Behavior interface {
	IsReady(driveType string, status uint32) (bool, error)
	Outputs(driveType string, track, head, sector uint) (byte, error)
}

// FrameWriter receives captured frames. *image.File satisfies it.
type FrameWriter interface {
	WriteFrame(h image.Header, data []byte) error
	Close() error
}

// OutputFunc opens the image to write to. It is only called when the
// sequence reaches the scanning step.
type OutputFunc func() (FrameWriter, error)

// sectors captured per track and head; sector enumeration is not format aware
var sectors = []uint{1}

// Sequencer runs one acquisition with a given drive and device.
type Sequencer struct {
	//
	open     device.Opener
	drive    *drive.Descriptor
	behavior Behavior
	opts     Options
	cancel   *atomic.Bool
	//
	session device.Session
	buf     []byte
	sleep   func(time.Duration)
	//
	progress Progress
	mutex    sync.Mutex
}

/*
	New creates a sequencer. cancel is the cancellation flag, which may be set
	from any goroutine at any time. If nil, a private flag is used that can be
	set with Cancel.
*/
func New(open device.Opener, d *drive.Descriptor, b Behavior, opts Options,
	cancel *atomic.Bool) (*Sequencer, error) {

	if open == nil || d == nil || b == nil {
		return nil, fmt.Errorf("%w: device, drive, and behavior are required",
			ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if cancel == nil {
		cancel = &atomic.Bool{}
	}

	return &Sequencer{
		open:     open,
		drive:    d,
		behavior: b,
		opts:     opts,
		cancel:   cancel,
		sleep:    time.Sleep,
	}, nil
}

// Cancel requests the running sequence to stop scanning or scrubbing at the
// next opportunity.
func (s *Sequencer) Cancel() {
	s.cancel.Store(true)
}

//
func (s *Sequencer) cancelled() bool {
	return s.cancel.Load()
}

// Progress returns a snapshot of the sequence's current progress.
func (s *Sequencer) Progress() Progress {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.progress
}

//
func (s *Sequencer) setState(st State) {
	s.mutex.Lock()
	s.progress.State = st
	s.mutex.Unlock()
	RegisterMetrics()
	stateGauge.Set(float64(st))
	log.WithField("state", st).Debug("acquisition state")
}

//
func (s *Sequencer) update(fn func(p *Progress)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fn(&s.progress)
}

/*
	Run performs the acquisition sequence. Whatever happens, the drive gets
	deselected and the device session closed before Run returns. Cancellation
	is not a failure: a cancelled run still parks the head, and all frames
	written up to that point form a valid image.
*/
func (s *Sequencer) Run(out OutputFunc) Result {

	log.WithFields(log.Fields{
		"drive": s.drive.DriveType(),
		"scrub": s.opts.Scrub,
	}).Info("starting acquisition sequence")

	cancelled, err := s.run(out)

	p := s.Progress()
	res := Result{Frames: p.Frames, Bytes: p.Bytes}

	switch {
	case err != nil:
		res.Outcome = Failed
		res.Err = err
		s.setState(StateFailed)
		log.Errorf("acquisition failed: %v", err)
	case cancelled:
		res.Outcome = Cancelled
		log.Warn("acquisition cancelled")
	default:
		res.Outcome = Completed
		log.Info("acquisition complete")
	}

	RegisterMetrics()
	runs.WithLabelValues(res.Outcome.String()).Inc()

	return res
}

//
func (s *Sequencer) run(out OutputFunc) (cancelled bool, err error) {

	s.setState(StateInit)

	if s.session, err = s.open(s.opts.Serial); err != nil {
		return false, fmt.Errorf("cannot open device: %w", err)
	}
	defer func() {
		s.shutdown()
		if err == nil {
			s.setState(StateClosed)
		}
	}()

	if err = s.bringUp(); err != nil {
		return false, err
	}

	if s.opts.Scrub {
		s.setState(StateScrubbing)
		cancelled, err = s.scrub()
	} else {
		s.setState(StateScanning)
		cancelled, err = s.scan(out)
	}
	if err != nil {
		return cancelled, err
	}
	if cancelled {
		s.setState(StateCancelled)
	}

	log.Info("moving heads back to track zero")
	if err = s.recalibrate(); err != nil {
		return cancelled, err
	}
	s.setState(StateParked)

	return cancelled, nil
}

// shutdown deselects the drive and closes the session. Errors are only
// logged, since shutdown also runs when the device has already failed.
func (s *Sequencer) shutdown() {
	if err := s.session.Poke(device.RegDriveControl, 0); err != nil {
		log.Errorf("error deselecting drive: %v", err)
	}
	if err := s.session.Close(); err != nil {
		log.Errorf("error closing device: %v", err)
	}
	s.session = nil
}

// bringUp takes the sequence from an open session through to a calibrated
// drive.
func (s *Sequencer) bringUp() error {

	if err := s.session.LoadMicrocode(); err != nil {
		return appError("loading microcode", err)
	}
	s.setState(StateMicrocodeLoaded)

	info, err := s.session.Info()
	if err != nil {
		return appError("reading device info", err)
	}
	log.Infof("device: %s", info)

	log.Infof("drive: %s", s.drive)

	if err = s.session.SetSeekRate(s.drive.StepRateMicros()); err != nil {
		if errors.Is(err, device.ErrSeekRateOutOfRange) {
			return fmt.Errorf("cannot set seek rate: %w", err)
		}
		return appError("setting seek rate", err)
	}
	if err := s.session.Poke(device.RegHSIODir, device.HSIODirInput); err != nil {
		return appError("setting HSIO direction", err)
	}
	s.setState(StateConfigured)

	if err := s.selectDrive(); err != nil {
		return err
	}
	s.setState(StateSelected)

	log.Debugf("waiting %v for spin-up", s.drive.SpinUp())
	s.sleep(s.drive.SpinUp())
	s.setState(StateSpunUp)

	return s.calibrate()
}

//
func (s *Sequencer) selectDrive() error {
	out, err := s.behavior.Outputs(s.drive.DriveType(), 0, 0, 1)
	if err != nil {
		return err
	}
	if err := s.session.Poke(device.RegDriveControl, out); err != nil {
		return appError("selecting drive", err)
	}
	return nil
}

//
func (s *Sequencer) calibrate() error {

	if err := s.session.Poke(device.RegACQCON, device.ACQConAbort); err != nil {
		return appError("aborting acquisition", err)
	}

	// nudge the head off the track zero stop; failure does no harm
	if err := s.session.SeekRelative(1); err != nil {
		log.Debugf("ignoring failed head nudge: %v", err)
	}

	// deselect and reselect to clear latched seek errors
	if err := s.session.Poke(device.RegDriveControl, 0); err != nil {
		return appError("deselecting drive", err)
	}
	if err := s.selectDrive(); err != nil {
		return err
	}

	if err := s.recalibrate(); err != nil {
		return err
	}

	if !s.opts.NoIndex {
		// the measurement is informational only, failures don't stop the run
		var rpm float64
		var err error
		for ix := 0; ix < 3; ix++ {
			if rpm, err = s.session.IndexFrequency(true); err != nil {
				log.Warnf("measuring index frequency: %v", err)
			}
		}
		if err == nil {
			RegisterMetrics()
			rpmGauge.Set(rpm)
			log.Infof("disc rotation speed: %.2f RPM", rpm)
		}
	}

	s.setState(StateCalibrated)
	return nil
}

//
func appError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrApplication, what, err)
}

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

package run

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/discferret/magpie/pkg/acquire"
	"github.com/discferret/magpie/pkg/control"
	"github.com/discferret/magpie/pkg/device"
	"github.com/discferret/magpie/pkg/device/bridge"
	"github.com/discferret/magpie/pkg/device/sim"
	"github.com/discferret/magpie/pkg/image"
	"github.com/discferret/magpie/pkg/profile"
	"github.com/discferret/magpie/pkg/registry"
)

//
var printer = message.NewPrinter(language.English)

//
func NewAcquire() *Acquire {

	a := &Acquire{}
	a.Runner = *NewRunner(
		`acquire -t|--type {drive type} -o|--output {file} [-d|--device {port}]
      [--serial {serial}] [-c|--clock {25|50|100}] [-m|--multi {reads}]
      [--waitidx {count}] [--noindex] [-s|--scripts {folder}] [--profile {file}]
      [--simulate] [-l|--listen {address}] [-f|--force]`,
		"acquire a disc image",
		`
Use the acquire command for reading a disc into an image file. The drive type
selects the drive script that knows how to talk to the drive. While acquiring,
Ctrl-C stops after the current track, parks the heads, and closes the image,
which then holds all tracks read so far. Hit Ctrl-C twice to exit immediately.`,
		"", loggingHelp+runnerHelpEpilogue, a.Run)

	a.addSettings()
	a.AddSetting(&a.Output, "output", "o", "", nil, "image output file", false)
	a.AddSetting(&a.Clock, "clock", "c", "", acquire.DefaultClockMHz,
		"sample clock in MHz, 25, 50, or 100", false)
	a.AddSetting(&a.Reads, "multi", "m", "", uint(acquire.DefaultReads),
		"number of revolutions to read per track (1-16)", false)
	a.AddSetting(&a.WaitIndex, "waitidx", "", "", uint(0),
		"number of index pulses to skip before reading (0-15)", false)
	a.AddSetting(&a.NoIndex, "noindex", "", "", false,
		"read without waiting for index pulses, for drives without index", false)
	a.AddSetting(&a.Force, "force", "f", "", false,
		"overwrite existing output file without asking", false)

	return a
}

//
func NewScrub() *Acquire {

	a := &Acquire{scrub: true}
	a.Runner = *NewRunner(
		`scrub -t|--type {drive type} [-d|--device {port}] [--serial {serial}]
      [--passes {count}] [-s|--scripts {folder}] [--profile {file}] [--simulate]`,
		"clean drive heads",
		`
Use the scrub command for cleaning the drive heads with a cleaning disc. The
heads are swept across the disc forth and back for the given number of passes.`,
		"", loggingHelp+runnerHelpEpilogue, a.Run)

	a.addSettings()
	a.AddSetting(&a.Passes, "passes", "", "", uint(acquire.DefaultScrubPasses),
		"number of cleaning passes", false)

	return a
}

// Acquire is the command for both acquiring and scrubbing.
type Acquire struct {
	//
	Runner
	//
	DriveType string
	Device    string
	Serial    string
	Profile   string
	Simulate  bool
	Listen    string
	//
	ReadyTimeout   time.Duration
	AcquireTimeout time.Duration
	//
	Output    string
	Clock     int
	Reads     uint
	WaitIndex uint
	NoIndex   bool
	Force     bool
	Passes    uint
	//
	scrub bool
}

// addSettings adds the settings common to acquiring and scrubbing
func (a *Acquire) addSettings() {
	a.AddBaseSettings()
	a.AddScriptSettings()
	a.AddSetting(&a.DriveType, "type", "t", "", nil, "drive type", true)
	a.AddSetting(&a.Device, "device", "d", "MAGPIE_DEVICE", nil,
		"serial port of the device bridge", false)
	a.AddSetting(&a.Serial, "serial", "", "MAGPIE_SERIAL", nil,
		"serial number of the device to use, first found if omitted", false)
	a.AddSetting(&a.Profile, "profile", "", "", nil,
		"acquisition profile file; flags given explicitly take precedence", false)
	a.AddSetting(&a.Simulate, "simulate", "", "", false,
		"run against a simulated device", false)
	a.AddSetting(&a.Listen, "listen", "l", "", nil,
		"address for the API server, no API server when omitted", false)
	a.AddSetting(&a.ReadyTimeout, "ready-timeout", "", "",
		acquire.DefaultReadyTimeout,
		"how long to wait for the drive to become ready, 0 for forever", false)
	a.AddSetting(&a.AcquireTimeout, "acquire-timeout", "", "",
		acquire.DefaultAcquireTimeout,
		"how long to wait for a capture to complete, 0 for forever", false)
}

/*
	settings merges defaults, profile, and explicitly given flags, in this
	order of precedence.
*/
func (a *Acquire) settings() (profile.Profile, error) {

	p := profile.Default()
	p.Scripts = DefaultScriptsDir

	if a.Profile != "" {
		var err error
		if p, err = profile.Load(a.Profile, p); err != nil {
			return p, err
		}
		log.WithField("path", a.Profile).Info("acquisition profile loaded")
	}

	o := &p.Options

	if err := a.Overlay(map[string]interface{}{
		"serial":          &o.Serial,
		"device":          &p.Device,
		"scripts":         &p.Scripts,
		"depth":           &p.Depth,
		"ready-timeout":   &o.ReadyTimeout,
		"acquire-timeout": &o.AcquireTimeout,
		"clock":           &o.ClockMHz,
		"multi":           &o.Reads,
		"waitidx":         &o.WaitIndex,
		"noindex":         &o.NoIndex,
		"passes":          &o.ScrubPasses,
	}); err != nil {
		return p, err
	}

	if a.IsSet("duplicates") {
		var err error
		if p.Duplicates, err = registry.ParsePolicy(a.Duplicates); err != nil {
			return p, err
		}
	}

	o.Scrub = a.scrub
	return p, o.Validate()
}

//
func (a *Acquire) Run() error {

	a.ParseSettings()

	p, err := a.settings()
	if err != nil {
		return err
	}

	if !a.scrub {
		if a.Output == "" {
			return fmt.Errorf("%w: no output file given", acquire.ErrApplication)
		}
		if _, err := os.Stat(a.Output); err == nil && !a.Force {
			if !GetUserConfirmation(fmt.Sprintf(
				"%s already exists, overwrite?", a.Output)) {
				return nil
			}
		}
	}

	reg := a.loadRegistry(p.Scripts, p.Depth, p.Duplicates)
	defer reg.Close()

	d, behavior, err := reg.Resolve(a.DriveType)
	if err != nil {
		return err
	}

	open, err := a.opener(&p)
	if err != nil {
		return err
	}

	cancel := &atomic.Bool{}
	seq, err := acquire.New(open, d, behavior, p.Options, cancel)
	if err != nil {
		return err
	}

	if a.Listen != "" {
		api := control.NewAPIServer(a.Listen, seq, reg)
		go func() {
			if err := api.Serve(); err != nil {
				log.Errorf("API server closed with error: %v", err)
			}
		}()
		defer api.Stop()
	}

	stop := trapSignals(cancel)
	defer stop()

	res := seq.Run(func() (acquire.FrameWriter, error) {
		return image.Create(a.Output)
	})

	switch res.Outcome {
	case acquire.Completed, acquire.Cancelled:
		if !a.scrub {
			printer.Printf("\n%s: %d frames, %d bytes of sample data written to %s\n\n",
				res.Outcome, res.Frames, res.Bytes, a.Output)
		}
		return nil
	default:
		return res.Err
	}
}

// opener selects the device to use
func (a *Acquire) opener(p *profile.Profile) (device.Opener, error) {

	if a.Simulate {
		log.Warn("using simulated device, no disc will be read")
		return sim.New(sim.Config{Serial: p.Options.Serial}).Open, nil
	}

	if p.Device == "" {
		return nil, fmt.Errorf(
			"you need to specify the --device command line flag or the " +
				"MAGPIE_DEVICE environment variable")
	}

	return bridge.Opener(p.Device), nil
}

/*
	trapSignals sets the cancel flag on the first SIGINT or SIGTERM, so that
	the acquisition can stop in an orderly fashion. A second signal exits
	immediately. The returned function stops the trap.
*/
func trapSignals(cancel *atomic.Bool) func() {

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for sigCount := 1; ; sigCount++ {
			select {
			case sig := <-sigs:
				log.WithField("signal", sig).Info("signal received")
				if sigCount == 1 {
					log.Info("stopping after current track, hit Ctrl-C again to force exit...")
					cancel.Store(true)
				} else {
					log.Warn("forcing exit, image may be incomplete")
					os.Exit(1)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

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
	Package profile loads acquisition profiles. A profile is a TOML file
	holding acquisition settings for a particular setup, for example a drive
	that needs longer timeouts. Only settings present in the file are applied,
	everything else keeps its current value.

		serial            = "DFUNIT01"
		clock_mhz         = 50
		reads             = 2
		wait_index        = 0
		no_index          = false
		scrub_passes      = 3
		recalibrate_tries = 5
		ready_timeout     = "45s"
		acquire_timeout   = "1m"
		poll_interval     = "1ms"
		settle_delay      = "100ms"
		head_settle       = "500ms"
		device            = "/dev/ttyUSB0"
		scripts           = "/usr/share/magpie/drives"
		depth             = 4
		duplicates        = "overwrite"
*/
package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/discferret/magpie/pkg/acquire"
	"github.com/discferret/magpie/pkg/registry"
)

// Profile holds all settings a profile file can change.
type Profile struct {
	Options    acquire.Options
	Device     string
	Scripts    string
	Depth      int
	Duplicates registry.DuplicatePolicy
}

//
func Default() Profile {
	return Profile{
		Options: acquire.DefaultOptions(),
		Depth:   registry.DefaultMaxDepth,
	}
}

//
type fileProfile struct {
	Serial           string `toml:"serial"`
	ClockMHz         int    `toml:"clock_mhz"`
	Reads            uint   `toml:"reads"`
	WaitIndex        uint   `toml:"wait_index"`
	NoIndex          bool   `toml:"no_index"`
	ScrubPasses      uint   `toml:"scrub_passes"`
	RecalibrateTries uint   `toml:"recalibrate_tries"`
	ReadyTimeout     string `toml:"ready_timeout"`
	AcquireTimeout   string `toml:"acquire_timeout"`
	PollInterval     string `toml:"poll_interval"`
	SettleDelay      string `toml:"settle_delay"`
	HeadSettle       string `toml:"head_settle"`
	Device           string `toml:"device"`
	Scripts          string `toml:"scripts"`
	Depth            int    `toml:"depth"`
	Duplicates       string `toml:"duplicates"`
}

/*
	Load reads the profile file at path and applies it on top of base.
	Unknown keys are rejected, so that typos do not go unnoticed.
*/
func Load(path string, base Profile) (Profile, error) {

	var raw fileProfile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return base, fmt.Errorf("cannot load profile: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for ix, k := range undecoded {
			keys[ix] = k.String()
		}
		return base, fmt.Errorf("unknown profile settings in %s: %s",
			path, strings.Join(keys, ", "))
	}

	p := base
	o := &p.Options

	if meta.IsDefined("serial") {
		o.Serial = strings.TrimSpace(raw.Serial)
	}
	if meta.IsDefined("clock_mhz") {
		o.ClockMHz = raw.ClockMHz
	}
	if meta.IsDefined("reads") {
		o.Reads = raw.Reads
	}
	if meta.IsDefined("wait_index") {
		o.WaitIndex = raw.WaitIndex
	}
	if meta.IsDefined("no_index") {
		o.NoIndex = raw.NoIndex
	}
	if meta.IsDefined("scrub_passes") {
		o.ScrubPasses = raw.ScrubPasses
	}
	if meta.IsDefined("recalibrate_tries") {
		o.RecalibrateTries = raw.RecalibrateTries
	}

	for _, d := range []struct {
		key    string
		raw    string
		target *time.Duration
	}{
		{"ready_timeout", raw.ReadyTimeout, &o.ReadyTimeout},
		{"acquire_timeout", raw.AcquireTimeout, &o.AcquireTimeout},
		{"poll_interval", raw.PollInterval, &o.PollInterval},
		{"settle_delay", raw.SettleDelay, &o.SettleDelay},
		{"head_settle", raw.HeadSettle, &o.HeadSettle},
	} {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return base, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.target = v
	}

	if meta.IsDefined("device") {
		p.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("scripts") {
		p.Scripts = strings.TrimSpace(raw.Scripts)
	}
	if meta.IsDefined("depth") {
		if raw.Depth < 0 {
			return base, fmt.Errorf("depth must not be negative: %d", raw.Depth)
		}
		p.Depth = raw.Depth
	}
	if meta.IsDefined("duplicates") {
		if p.Duplicates, err = registry.ParsePolicy(
			strings.TrimSpace(raw.Duplicates)); err != nil {
			return base, err
		}
	}

	if err := o.Validate(); err != nil {
		return base, fmt.Errorf("profile %s: %w", path, err)
	}

	return p, nil
}

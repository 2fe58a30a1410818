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

package control

import (
	"fmt"

	"github.com/discferret/magpie/pkg/acquire"
)

//
func progressString(p *acquire.Progress) string {

	ret := fmt.Sprintf("\nstate:  %s\nframes: %d (%d bytes)", p.State, p.Frames, p.Bytes)

	switch p.State {
	case acquire.StateScanning:
		ret += fmt.Sprintf("\nat:     CHS %d:%d:%d", p.Track, p.Head, p.Sector)
	case acquire.StateScrubbing:
		ret += fmt.Sprintf("\nat:     track %d", p.Track)
	}

	if p.Attempt > 0 {
		ret += fmt.Sprintf("\nrecalibrating, attempt %d", p.Attempt)
	}

	return ret
}

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
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/discferret/magpie/pkg/drive"
	"github.com/discferret/magpie/pkg/registry"
)

//
var errNoRegistry = errors.New("no drive scripts loaded")

//
func (a *api) drives(w http.ResponseWriter, req *http.Request) {

	if a.registry == nil {
		handleError(errNoRegistry, http.StatusServiceUnavailable, w)
		return
	}

	list := a.registry.Types()

	if wantsJSON(req) {
		sendJSONReply(list, http.StatusOK, w)
		return
	}

	var sb strings.Builder
	sb.WriteString("\nDRIVE TYPE           SCRIPT")
	for _, e := range list {
		fmt.Fprintf(&sb, "\n%-20s %s", e.DriveType, e.Path)
	}
	sendReply([]byte(sb.String()), http.StatusOK, w)
}

//
func (a *api) drive(w http.ResponseWriter, req *http.Request) {

	if a.registry == nil {
		handleError(errNoRegistry, http.StatusServiceUnavailable, w)
		return
	}

	d, _, err := a.registry.Resolve(mux.Vars(req)["type"])
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, registry.ErrUnknownDriveType) {
			status = http.StatusNotFound
		}
		handleError(err, status, w)
		return
	}

	if wantsJSON(req) {
		sendJSONReply(d.Summary(), http.StatusOK, w)
	} else {
		sendReply([]byte(descriptorString(d)), http.StatusOK, w)
	}
}

//
func descriptorString(d *drive.Descriptor) string {
	s := d.Summary()
	return fmt.Sprintf(`
drive type:     %s
name:           %s
tracks:         %d, step %d
heads:          %d
tracks/inch:    %g
step rate:      %dus
spin-up:        %dms`,
		s.DriveType, s.FriendlyName, s.Tracks, s.TrackStep, s.Heads,
		s.TracksPerInch, s.StepRateMicros, s.SpinUpMillis)
}

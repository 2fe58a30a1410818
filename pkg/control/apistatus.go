/*
   magpie - DiscFerret disc image acquisition
   Copyright (c) 2026, the magpie authors
   Portions copyright (c) 2021, Alexander Vollschwitz

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
	"net/http"
)

//
var errNoAcquisition = errors.New("no acquisition running")

//
func (a *api) status(w http.ResponseWriter, req *http.Request) {

	if a.acquisition == nil {
		handleError(errNoAcquisition, http.StatusServiceUnavailable, w)
		return
	}

	p := a.acquisition.Progress()

	if wantsJSON(req) {
		sendJSONReply(&p, http.StatusOK, w)
	} else {
		sendReply([]byte(progressString(&p)), http.StatusOK, w)
	}
}

//
func (a *api) cancel(w http.ResponseWriter, req *http.Request) {

	if a.acquisition == nil {
		handleError(errNoAcquisition, http.StatusServiceUnavailable, w)
		return
	}

	a.acquisition.Cancel()
	sendReply([]byte("cancelling"), http.StatusAccepted, w)
}

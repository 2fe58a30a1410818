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
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/discferret/magpie/pkg/acquire"
)

// watch is a long poll for the next change in acquisition progress
func (a *api) watch(w http.ResponseWriter, req *http.Request) {

	if a.acquisition == nil {
		handleError(errNoAcquisition, http.StatusServiceUnavailable, w)
		return
	}

	timeout, err := strconv.Atoi(req.URL.Query().Get("timeout"))
	if err != nil || timeout < 0 || 1800 < timeout {
		timeout = 600
	}

	log.Debugf("starting watch for %s, timeout %d", req.RemoteAddr, timeout)
	update := make(chan *acquire.Progress, 1)

	select {
	case a.longPollQueue <- update:
	case <-time.After(time.Duration(timeout) * time.Second):
		log.Debugf("closing watch for %s after timeout", req.RemoteAddr)
		sendReply([]byte{}, http.StatusRequestTimeout, w)
		return
	case <-a.stop:
		sendReply([]byte{}, http.StatusServiceUnavailable, w)
		return
	}

	log.Debugf("sending progress change to %s", req.RemoteAddr)
	sendJSONReply(<-update, http.StatusOK, w)
}

//
func (a *api) watchProgress() {

	if a.acquisition == nil {
		return
	}

	log.Debug("start watching for progress changes")

	var last acquire.Progress

	for {
		select {
		case <-a.stop:
			log.Debug("stopped watching for progress changes")
			return
		case <-time.After(a.watchInterval):
		}

		p := a.acquisition.Progress()
		if p == last {
			continue
		}
		last = p

	Loop:
		for {
			select {
			case cl := <-a.longPollQueue:
				change := p
				cl <- &change
			default:
				break Loop
			}
		}
	}
}

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
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

//
func (a *api) config(w http.ResponseWriter, req *http.Request) {

	item, err := getArg(req, "item")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	value, err := getArg(req, "value")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	switch item {
	case "loglevel":
		level, err := log.ParseLevel(value)
		if handleError(err, http.StatusUnprocessableEntity, w) {
			return
		}
		log.SetLevel(level)
		sendReply([]byte(fmt.Sprintf("log level set to %s", level)),
			http.StatusOK, w)

	default:
		handleError(fmt.Errorf("unknown config item: '%s'", item),
			http.StatusUnprocessableEntity, w)
	}
}

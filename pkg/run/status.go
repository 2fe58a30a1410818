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
	"io"
)

//
func NewStatus() *Status {

	s := &Status{}
	s.Runner = *NewRunner(
		"status [-a|--address {address}]",
		"get progress of a running acquisition",
		`
Use the status command to get the progress of an acquisition that was started
with the --listen flag.`,
		"", runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddAPISettings()

	return s
}

//
type Status struct {
	Runner
}

//
func (s *Status) Run() error {

	s.ParseSettings()

	resp, err := s.apiCall("GET", "/status", false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	msg, err := io.ReadAll(resp)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", msg)
	return nil
}

//
func NewCancel() *Cancel {

	c := &Cancel{}
	c.Runner = *NewRunner(
		"cancel [-a|--address {address}]",
		"cancel a running acquisition",
		`
Use the cancel command to stop an acquisition that was started with the --listen
flag. The acquisition stops after the current track, parks the heads, and closes
the image. This is the same as hitting Ctrl-C once in the acquiring console.`,
		"", runnerHelpEpilogue, c.Run)

	c.AddBaseSettings()
	c.AddAPISettings()

	return c
}

//
type Cancel struct {
	Runner
}

//
func (c *Cancel) Run() error {

	c.ParseSettings()

	resp, err := c.apiCall("PUT", "/cancel", false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	msg, err := io.ReadAll(resp)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", msg)
	return nil
}

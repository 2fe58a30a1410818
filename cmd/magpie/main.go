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

package main

import (
	"fmt"
	"os"

	"github.com/discferret/magpie/pkg/run"
)

//
var MagpieVersion string

//
func synopsis() {
	fmt.Print(`
synopsis: magpie {acquire|scrub|drives|inspect|status|cancel|version} ...

run 'magpie {action} -h|--help' to see detailed info

`)
}

//
func version() {
	fmt.Printf("\nmagpie %s\n\n", MagpieVersion)
}

//
func main() {

	var action string
	var args []string

	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch action {

	case "acquire":
		version()
		run.DieOnError(run.NewAcquire().Execute(args))

	case "scrub":
		version()
		run.DieOnError(run.NewScrub().Execute(args))

	case "drives":
		run.DieOnError(run.NewDrives().Execute(args))

	case "inspect":
		run.DieOnError(run.NewInspect().Execute(args))

	case "status":
		run.DieOnError(run.NewStatus().Execute(args))

	case "cancel":
		run.DieOnError(run.NewCancel().Execute(args))

	case "version":
		version()

	case "":
		fallthrough
	case "-h":
		fallthrough
	case "--help":
		synopsis()

	default:
		run.Die("unknown action: %s\n", action)
	}
}

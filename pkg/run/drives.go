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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"go.yaml.in/yaml/v3"

	"github.com/discferret/magpie/pkg/drive"
	"github.com/discferret/magpie/pkg/registry"
)

//
func NewDrives() *Drives {

	d := &Drives{}
	d.Runner = *NewRunner(
		"drives [-s|--scripts {folder}] [-o|--output {text|yaml|json}]",
		"list drive types",
		`
Use the drives command to list all drive types defined by the drive scripts in
the script folder, together with their drive parameters. Drive types whose
parameters cannot be parsed are listed with the problem found.`,
		"", runnerHelpEpilogue, d.Run)

	d.AddBaseSettings()
	d.AddScriptSettings()
	d.AddSetting(&d.Format, "output", "o", "", "text",
		"output format, 'text', 'yaml', or 'json'", false)

	return d
}

//
type Drives struct {
	Runner
	//
	Format string
}

//
func (d *Drives) Run() error {

	d.ParseSettings()

	policy, err := registry.ParsePolicy(d.Duplicates)
	if err != nil {
		return err
	}

	reg := d.loadRegistry(d.Scripts, d.Depth, policy)
	defer reg.Close()

	return writeDrives(os.Stdout, d.Format, listDrives(reg))
}

// driveEntry is a drive type as listed by the drives command
type driveEntry struct {
	DriveType string         `json:"driveType" yaml:"driveType"`
	Script    string         `json:"script" yaml:"script"`
	Drive     *drive.Summary `json:"drive,omitempty" yaml:"drive,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
}

//
func listDrives(reg *registry.Registry) []driveEntry {

	var ret []driveEntry

	for _, e := range reg.Types() {
		entry := driveEntry{DriveType: e.DriveType, Script: e.Path}
		if d, _, err := reg.Resolve(e.DriveType); err != nil {
			entry.Error = err.Error()
		} else {
			entry.Drive = d.Summary()
		}
		ret = append(ret, entry)
	}

	return ret
}

//
func writeDrives(w io.Writer, format string, list []driveEntry) error {

	switch format {

	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return err
		}
		return enc.Close()

	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "\nDRIVE TYPE\tNAME\tTRACKS\tHEADS\tSTEP RATE\tSCRIPT")
		for _, e := range list {
			if e.Drive == nil {
				fmt.Fprintf(tw, "%s\t<%s>\t\t\t\t%s\n", e.DriveType, e.Error, e.Script)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%dus\t%s\n", e.DriveType,
				e.Drive.FriendlyName, e.Drive.Tracks, e.Drive.TrackStep,
				e.Drive.Heads, e.Drive.StepRateMicros, e.Script)
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

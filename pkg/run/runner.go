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

package run

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/discferret/magpie/pkg/control"
	"github.com/discferret/magpie/pkg/registry"
)

//
const runnerHelpEpilogue = `- When a flag can be set via environment variable, the variable name is given
  in parenthesis at the end of the flag explanation. Note however that a flag,
  when specified overrides an environment variable.
`

const loggingHelp = `- Logging can be configured with these environment variables:

  LOG_FORMAT		set to 'json' for JSON logging
  LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
  LOG_METHODS		set to non-empty for including methods in log
  LOG_LEVEL		panic, fatal, error, warn, info, debug, trace

`

// DefaultScriptsDir is where drive scripts are looked for when no folder is
// given.
const DefaultScriptsDir = "./scripts"

//
var defaultAPIAddress = fmt.Sprintf("127.0.0.1:%d", control.DefaultPort)

/*
	NewRunner creates a base runner for commands to use. The parameters are
	passed to the base command wrapped by this runner.
*/
func NewRunner(use, short, long, helpPrologue, helpEpilogue string,
	exec func() error) *Runner {
	return &Runner{
		Command: *NewCommand(
			use, short, long, helpPrologue, helpEpilogue, exec),
	}
}

//
type Runner struct {
	//
	Command
	//
	Verbose bool
	Address string
	//
	Scripts    string
	Depth      int
	Duplicates string
}

//
func (r *Runner) AddBaseSettings() {
	// Implementation Note: This cannot be included in NewRunner, but rather has
	// to be called from the top level command type. Otherwise, we will confuse
	// Cobra/Viper and the settings will not be filled with their values.
	r.AddSetting(&r.Verbose, "verbose", "v", "", false,
		"verbose output, same as LOG_LEVEL=debug", false)
}

// AddAPISettings adds the address setting for commands talking to the API of
// a running acquisition.
func (r *Runner) AddAPISettings() {
	r.AddSetting(&r.Address, "address", "a", "MAGPIE_API", defaultAPIAddress,
		"address of the acquisition's API server", false)
}

// AddScriptSettings adds the settings for commands that need drive scripts.
func (r *Runner) AddScriptSettings() {
	r.AddSetting(&r.Scripts, "scripts", "s", "MAGPIE_SCRIPTS", DefaultScriptsDir,
		"folder with drive scripts", false)
	r.AddSetting(&r.Depth, "depth", "", "", registry.DefaultMaxDepth,
		"maximum folder depth when looking for drive scripts", false)
	r.AddSetting(&r.Duplicates, "duplicates", "", "", "reject",
		`what to do when several scripts define the same drive type,
'reject' keeps the first definition, 'overwrite' the last`, false)
}

// ParseSettings parses all settings, and applies the verbose setting.
func (r *Runner) ParseSettings() {
	r.Command.ParseSettings()
	if r.Verbose {
		raiseLogLevel(log.DebugLevel)
	}
}

/*
	loadRegistry scans the script folder and returns the resulting registry.
	Broken scripts do not fail the scan, they are only reported, since the
	drive type asked for may well be defined by another script.
*/
func (r *Runner) loadRegistry(scripts string, depth int,
	policy registry.DuplicatePolicy) *registry.Registry {

	reg := registry.New(registry.WithDuplicatePolicy(policy))

	log.WithField("path", scripts).Debug("scanning for drive scripts")
	if err := reg.Scan(scripts, depth); err != nil {
		for _, e := range unjoin(err) {
			log.Warnf("ignoring drive script: %v", e)
		}
	}

	log.Infof("%d drive types found in %s", reg.Len(), scripts)
	return reg
}

// unjoin splits up an error created by errors.Join
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

//
func (r *Runner) apiCall(method, path string, json bool,
	body io.Reader) (io.ReadCloser, error) {

	addr := r.Address
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, control.DefaultPort)
	}

	client := &http.Client{}
	req, err := http.NewRequest(
		method, fmt.Sprintf("http://%s%s", addr, path), body)
	if err != nil {
		return nil, err
	}

	if json {
		req.Header.Add("Content-Type", "application/json")
		req.Header.Add("Accept", "application/json")
	} else {
		req.Header.Add("Content-Type", "text/plain")
		req.Header.Add("Accept", "text/plain")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API call failed with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return resp.Body, nil
}

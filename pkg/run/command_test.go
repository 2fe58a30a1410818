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
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func TestOverlayAppliesExplicitSettingsOnly(t *testing.T) {

	t.Setenv("MAGPIE_TEST_TIMEOUT", "2m")

	var clock int
	var reads uint
	var timeout time.Duration

	// values as they would come from a profile
	dstClock, dstReads, dstTimeout := 25, uint(4), 5*time.Second

	var overlayErr error
	c := NewCommand("overlay", "", "", "", "", nil)
	c.cmd.RunE = func(*cobra.Command, []string) error {
		c.ParseSettings()
		overlayErr = c.Overlay(map[string]interface{}{
			"ovl-clock":   &dstClock,
			"ovl-reads":   &dstReads,
			"ovl-timeout": &dstTimeout,
			"ovl-unknown": &dstClock,
		})
		return nil
	}
	c.AddSetting(&clock, "ovl-clock", "", "", 100, "clock", false)
	c.AddSetting(&reads, "ovl-reads", "", "", uint(1), "reads", false)
	c.AddSetting(&timeout, "ovl-timeout", "", "MAGPIE_TEST_TIMEOUT",
		30*time.Second, "timeout", false)

	if err := c.Execute([]string{"--ovl-clock", "50"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if overlayErr != nil {
		t.Fatalf("overlay: %v", overlayErr)
	}

	if dstClock != 50 {
		t.Fatalf("flag must override, got clock %d", dstClock)
	}
	if dstReads != 4 {
		t.Fatalf("unset flag must not override, got reads %d", dstReads)
	}
	if dstTimeout != 2*time.Minute {
		t.Fatalf("environment must override, got timeout %v", dstTimeout)
	}
	if reads != 1 {
		t.Fatalf("expected default for bound field, got %d", reads)
	}
}

func TestOverlayTypeMismatch(t *testing.T) {

	var name string
	var dst int

	var overlayErr error
	c := NewCommand("mismatch", "", "", "", "", nil)
	c.cmd.RunE = func(*cobra.Command, []string) error {
		c.ParseSettings()
		overlayErr = c.Overlay(map[string]interface{}{"mm-name": &dst})
		return nil
	}
	c.AddSetting(&name, "mm-name", "", "", nil, "name", false)

	if err := c.Execute([]string{"--mm-name", "x"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if overlayErr == nil {
		t.Fatalf("expected error applying string setting to int")
	}
}

func TestRequiredSetting(t *testing.T) {

	var typ string
	s, err := newSetting(&typ, "req-type", "MAGPIE_TEST_REQ_TYPE", true)
	if err != nil {
		t.Fatalf("new setting: %v", err)
	}

	err = s.parse()
	if err == nil {
		t.Fatalf("expected error for missing required setting")
	}
	for _, want := range []string{"--req-type", "MAGPIE_TEST_REQ_TYPE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestSettingsMustBeScalars(t *testing.T) {

	var list []string
	if _, err := newSetting(&list, "list", "", false); err == nil {
		t.Fatalf("expected slice setting to be rejected")
	}

	var n int
	if _, err := newSetting(n, "notptr", "", false); err == nil {
		t.Fatalf("expected non-pointer target to be rejected")
	}
}

func TestConfigureLogging(t *testing.T) {

	t.Cleanup(func() {
		configureLogging(os.Stderr, func(string) string { return "" })
		log.SetLevel(log.InfoLevel)
	})

	env := map[string]string{"LOG_FORMAT": "JSON", "LOG_LEVEL": "warn"}
	var buf bytes.Buffer
	configureLogging(&buf, func(k string) string { return env[k] })

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"level":"warning"`) || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("expected JSON warning entry, got %s", out)
	}
}

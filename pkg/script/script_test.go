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

package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/discferret/magpie/pkg/device"
)

const behavior = `
function isDriveReady(drivetype, status)
	return bit.band(status, STATUS_READY_DCHG) ~= 0
end

function getDriveOutputs(drivetype, track, head, sector)
	local o = bit.bor(PIN_DS0, PIN_MOTEN)
	if head == 1 then
		o = bit.bor(o, PIN_SIDESEL)
	end
	return o
end
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drive.lua")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func loadScript(t *testing.T, body string, opts ...Option) *Script {
	t.Helper()
	s, err := Load(writeScript(t, body), opts...)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func specWith(fields string) string {
	return fmt.Sprintf("drivespecs = { [\"X\"] = { %s } }\n", fields) + behavior
}

func TestLoadEnumeratesTypes(t *testing.T) {
	s := loadScript(t, `
drivespecs = {
	["PC-35"] = { friendlyname = "PC 3.5in" },
	["PC-525"] = { friendlyname = "PC 5.25in" },
	["AMIGA"] = { friendlyname = "Amiga" },
}`+behavior)

	got := strings.Join(s.Types(), ",")
	if got != "AMIGA,PC-35,PC-525" {
		t.Fatalf("unexpected types: %s", got)
	}
	if !s.Defines("PC-35") || s.Defines("Q") {
		t.Fatalf("Defines mismatch")
	}
}

func TestDescriptorParsesAllFields(t *testing.T) {
	s := loadScript(t, specWith(`FriendlyName = "PC 3.5in 80 track", Heads = 2,
		SPINUP = 500, stepRate = 3, tracks = 80, trackstep = 2, tpi = 135`))

	d, err := s.Descriptor("X")
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if d.FriendlyName() != "PC 3.5in 80 track" || d.Heads() != 2 ||
		d.SpinUpMillis() != 500 || d.StepRateMicros() != 3000 ||
		d.Tracks() != 80 || d.TrackStep() != 2 || d.TracksPerInch() != 135 {
		t.Fatalf("unexpected descriptor: %+v", d.Summary())
	}

	again, err := s.Descriptor("X")
	if err != nil || again != d {
		t.Fatalf("expected cached descriptor, got %v, %v", again, err)
	}
}

func TestDescriptorDefaults(t *testing.T) {
	s := loadScript(t, specWith(`friendlyname = "defaults"`))
	d, err := s.Descriptor("X")
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if d.Heads() != 1 || d.SpinUpMillis() != 1000 || d.StepRateMicros() != 6000 ||
		d.Tracks() != 40 || d.TrackStep() != 1 || d.TracksPerInch() != 0 {
		t.Fatalf("unexpected defaults: %+v", d.Summary())
	}
}

func TestStepRateConversion(t *testing.T) {
	tests := []struct {
		steprate string
		micros   uint
		ok       bool
	}{
		{"0.1", 0, false},
		{"0.2", 0, false},
		{"0.25", 250, true},
		{"6.0", 6000, true},
		{"12.5", 12500, true},
		{"63.75", 63750, true},
		{"63.76", 0, false},
		{"-3", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.steprate, func(t *testing.T) {
			s := loadScript(t, specWith(
				`friendlyname = "rate", steprate = `+tc.steprate))
			d, err := s.Descriptor("X")
			if tc.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if d.StepRateMicros() != tc.micros {
					t.Fatalf("got %dus want %dus", d.StepRateMicros(), tc.micros)
				}
			} else if !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("expected ErrOutOfRange, got %v", err)
			}
		})
	}
}

func TestMissingFriendlyNameIsRejected(t *testing.T) {
	for _, fields := range []string{
		``,
		`heads = 2`,
		`tracks = 80, heads = 2, steprate = 3, spinup = 500, trackstep = 1, tpi = 96`,
	} {
		s := loadScript(t, specWith(fields))
		_, err := s.Descriptor("X")
		if !errors.Is(err, ErrMissingField) {
			t.Fatalf("fields {%s}: expected ErrMissingField, got %v", fields, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) || pe.DriveType != "X" || pe.Path != s.Path() {
			t.Fatalf("expected parse error tagged with drive type, got %v", err)
		}
	}
}

func TestInvalidFields(t *testing.T) {
	tests := []struct {
		fields string
		cause  error
	}{
		{`friendlyname = "a", sectors = 9`, ErrUnknownKey},
		{`friendlyname = ""`, ErrOutOfRange},
		{`friendlyname = 42`, ErrMalformedSpec},
		{`friendlyname = "a", heads = 0`, ErrOutOfRange},
		{`friendlyname = "a", heads = 1.5`, ErrMalformedSpec},
		{`friendlyname = "a", heads = "two"`, ErrMalformedSpec},
		{`friendlyname = "a", tracks = 0`, ErrOutOfRange},
		{`friendlyname = "a", tracks = 65536`, ErrOutOfRange},
		{`friendlyname = "a", heads = 70000`, ErrOutOfRange},
		{`friendlyname = "a", trackstep = 0`, ErrOutOfRange},
		{`friendlyname = "a", spinup = -1`, ErrOutOfRange},
		{`friendlyname = "a", tpi = -48`, ErrOutOfRange},
		{`friendlyname = "a", steprate = {}`, ErrMalformedSpec},
		{`friendlyname = "a", [1] = 7`, ErrUnknownKey},
	}

	for _, tc := range tests {
		s := loadScript(t, specWith(tc.fields))
		if _, err := s.Descriptor("X"); !errors.Is(err, tc.cause) {
			t.Fatalf("fields {%s}: expected %v, got %v", tc.fields, tc.cause, err)
		}
	}
}

func TestUnknownKeyIsNamed(t *testing.T) {
	s := loadScript(t, specWith(`friendlyname = "a", Sectors = 9`))
	_, err := s.Descriptor("X")
	if err == nil || !strings.Contains(err.Error(), "Sectors") {
		t.Fatalf("expected error naming the key, got %v", err)
	}
}

func TestMalformedSpecTable(t *testing.T) {

	_, err := Load(writeScript(t, `drivespecs = { ["X"] = "nope" }`))
	var pe *ParseError
	if !errors.Is(err, ErrMalformedSpec) || !errors.As(err, &pe) || pe.DriveType != "X" {
		t.Fatalf("expected malformed spec for X, got %v", err)
	}

	_, err = Load(writeScript(t, `drivespecs = { { friendlyname = "array" } }`))
	if !errors.Is(err, ErrMalformedSpec) || !errors.As(err, &pe) || pe.Index != 1 {
		t.Fatalf("expected malformed spec at index 1, got %v", err)
	}

	_, err = Load(writeScript(t, `specs = {}`))
	if !errors.Is(err, ErrMalformedSpec) {
		t.Fatalf("expected malformed spec for missing table, got %v", err)
	}

	_, err = Load(writeScript(t, `drivespecs = {`))
	if !errors.Is(err, ErrScript) {
		t.Fatalf("expected script error, got %v", err)
	}
}

func TestUndefinedType(t *testing.T) {
	s := loadScript(t, specWith(`friendlyname = "a"`))
	if _, err := s.Descriptor("Q"); !errors.Is(err, ErrUndefinedType) {
		t.Fatalf("expected ErrUndefinedType, got %v", err)
	}
}

func TestBehavior(t *testing.T) {
	s := loadScript(t, specWith(`friendlyname = "a"`))

	ready, err := s.IsReady("X", device.StatusDiscChange|device.StatusTrack0)
	if err != nil || !ready {
		t.Fatalf("expected ready, got %v, %v", ready, err)
	}
	ready, err = s.IsReady("X", device.StatusTrack0)
	if err != nil || ready {
		t.Fatalf("expected not ready, got %v, %v", ready, err)
	}

	out, err := s.Outputs("X", 0, 0, 1)
	if err != nil || out != device.PinDS0|device.PinMotEn {
		t.Fatalf("unexpected outputs %#x, %v", out, err)
	}
	out, err = s.Outputs("X", 10, 1, 1)
	if err != nil || out != device.PinDS0|device.PinMotEn|device.PinSideSel {
		t.Fatalf("unexpected outputs %#x, %v", out, err)
	}
}

func TestBehaviorErrors(t *testing.T) {

	tests := []struct {
		name  string
		body  string
		cause error
	}{
		{"missing", `drivespecs = {}`, ErrNotCallable},
		{"wrong type", `drivespecs = {}
			function isDriveReady(d, s) return 1 end
			function getDriveOutputs(d, t, h, s) return "x" end`, ErrBadResult},
		{"out of range", `drivespecs = {}
			function isDriveReady(d, s) return nil end
			function getDriveOutputs(d, t, h, s) return 256 end`, ErrBadResult},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := loadScript(t, tc.body)
			_, err := s.IsReady("X", 0)
			var ee *EvaluationError
			if !errors.Is(err, tc.cause) || !errors.As(err, &ee) || ee.Function != FnIsReady {
				t.Fatalf("isDriveReady: expected %v, got %v", tc.cause, err)
			}
			if _, err := s.Outputs("X", 0, 0, 1); !errors.Is(err, tc.cause) {
				t.Fatalf("getDriveOutputs: expected %v, got %v", tc.cause, err)
			}
		})
	}
}

func TestBehaviorRuntimeError(t *testing.T) {
	s := loadScript(t, `drivespecs = {}
		function isDriveReady(d, s) error("boom") end`)
	_, err := s.IsReady("X", 0)
	var ee *EvaluationError
	if !errors.As(err, &ee) || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected evaluation error, got %v", err)
	}
}

func TestBehaviorTimeout(t *testing.T) {
	s := loadScript(t, `drivespecs = {}
		function isDriveReady(d, s) while true do end end`,
		WithEvalTimeout(50*time.Millisecond))
	var ee *EvaluationError
	if _, err := s.IsReady("X", 0); !errors.As(err, &ee) {
		t.Fatalf("expected evaluation error, got %v", err)
	}
}

func TestSandbox(t *testing.T) {
	s := loadScript(t, `
drivespecs = {}
assert(os == nil, "os reachable")
assert(io == nil, "io reachable")
assert(dofile == nil and loadfile == nil and require == nil, "file access reachable")
assert(bit.bnot(0) == -1)
assert(bit.lshift(1, 4) == 16)
assert(bit.rshift(0x80, 7) == 1)
assert(bit.bxor(PIN_DS0, PIN_DS0) == 0)
function isDriveReady(d, s) return string.len(d) > 0 and math.floor(1.5) == 1 end
`)
	if ready, err := s.IsReady("X", 0); err != nil || !ready {
		t.Fatalf("expected ready from sandboxed libs, got %v, %v", ready, err)
	}
}

func TestClosedScript(t *testing.T) {
	s, err := Load(writeScript(t, specWith(`friendlyname = "a"`)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Close()
	if _, err := s.IsReady("X", 0); !errors.Is(err, ErrNotCallable) {
		t.Fatalf("expected ErrNotCallable after close, got %v", err)
	}
}

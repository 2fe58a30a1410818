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
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/discferret/magpie/pkg/image"
	"github.com/discferret/magpie/pkg/registry"
)

const drivesScript = `
drivespecs = {
	pc35hd = { friendlyname = "PC 3.5in HD", tracks = 80, heads = 2, steprate = 3 },
	bad = { friendlyname = "negative heads", heads = -1 },
}
function isDriveReady(drivetype, status) return true end
function getDriveOutputs(drivetype, track, head, sector) return PIN_DS0 end
`

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pc.lua"), []byte(drivesScript), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	r := &Runner{}
	reg := r.loadRegistry(dir, registry.DefaultMaxDepth, registry.DuplicateReject)
	t.Cleanup(reg.Close)
	return reg
}

func TestListDrives(t *testing.T) {

	list := listDrives(testRegistry(t))
	if len(list) != 2 {
		t.Fatalf("expected 2 drive types, got %+v", list)
	}
	if list[0].DriveType != "bad" || list[0].Drive != nil || list[0].Error == "" {
		t.Fatalf("expected parse problem for 'bad', got %+v", list[0])
	}
	if d := list[1].Drive; d == nil || d.Tracks != 80 || d.StepRateMicros != 3000 {
		t.Fatalf("unexpected entry %+v", list[1])
	}
}

func TestWriteDrives(t *testing.T) {

	list := listDrives(testRegistry(t))

	var buf bytes.Buffer
	if err := writeDrives(&buf, "json", list); err != nil {
		t.Fatalf("json: %v", err)
	}
	var fromJSON []driveEntry
	if err := json.Unmarshal(buf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(fromJSON) != 2 || fromJSON[1].Drive.FriendlyName != "PC 3.5in HD" {
		t.Fatalf("unexpected json listing %+v", fromJSON)
	}

	buf.Reset()
	if err := writeDrives(&buf, "yaml", list); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var fromYAML []driveEntry
	if err := yaml.Unmarshal(buf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(fromYAML) != 2 || fromYAML[1].Drive.Heads != 2 {
		t.Fatalf("unexpected yaml listing %+v", fromYAML)
	}

	buf.Reset()
	if err := writeDrives(&buf, "text", list); err != nil {
		t.Fatalf("text: %v", err)
	}
	if !strings.Contains(buf.String(), "PC 3.5in HD") ||
		!strings.Contains(buf.String(), "3000us") {
		t.Fatalf("unexpected text listing:\n%s", buf.String())
	}

	if err := writeDrives(&buf, "xml", list); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func testImage(t *testing.T, frames int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := image.NewWriter(&buf)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	for ix := 0; ix < frames; ix++ {
		h := image.Header{Track: uint16(ix / 2), Head: uint16(ix % 2), Sector: 1}
		if err := w.WriteFrame(h, make([]byte, 1000+ix)); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
	return buf.Bytes()
}

func TestInspect(t *testing.T) {

	var out bytes.Buffer
	if err := inspect(bytes.NewReader(testImage(t, 4)), &out, "text"); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"image format DFE2", "CHS   1:1:1", "4 frames", "4,006 bytes"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := inspect(bytes.NewReader(testImage(t, 3)), &out, "yaml"); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var sum imageSummary
	if err := yaml.Unmarshal(out.Bytes(), &sum); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if sum.Magic != image.Magic || len(sum.Frames) != 3 || sum.Frames[2].Length != 1002 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestInspectTruncated(t *testing.T) {

	raw := testImage(t, 3)
	var out bytes.Buffer

	err := inspect(bytes.NewReader(raw[:len(raw)-10]), &out, "text")
	if !errors.Is(err, image.ErrTruncated) {
		t.Fatalf("expected truncation error, got %v", err)
	}
	if !strings.Contains(out.String(), "2 frames") {
		t.Fatalf("good frames should be listed:\n%s", out.String())
	}
}

func TestUnjoin(t *testing.T) {
	one, two := errors.New("one"), errors.New("two")
	if errs := unjoin(errors.Join(one, two)); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if errs := unjoin(one); len(errs) != 1 || errs[0] != one {
		t.Fatalf("expected single error, got %v", errs)
	}
}

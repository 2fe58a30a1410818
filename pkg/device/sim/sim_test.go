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

package sim

import (
	"testing"

	"github.com/discferret/magpie/pkg/device"
)

func TestJournal(t *testing.T) {

	d := New(Config{})
	s, err := d.Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.LoadMicrocode(); err != nil {
		t.Fatalf("microcode: %v", err)
	}

	for _, p := range []struct {
		reg device.Register
		val byte
	}{
		{device.RegDriveControl, device.PinDS0 | device.PinMotEn},
		{device.RegDriveControl, 0},
		{device.RegHSIODir, device.HSIODirInput},
	} {
		if err := s.Poke(p.reg, p.val); err != nil {
			t.Fatalf("poke: %v", err)
		}
	}
	if err := s.SeekAbsolute(12); err != nil {
		t.Fatalf("seek: %v", err)
	}
	s.Close()

	want := []string{
		"open ",
		"microcode",
		"poke DRIVE_CONTROL 0x44",
		"poke DRIVE_CONTROL 0x00",
		"poke HSIO_DIR 0xff",
		"seek 12",
		"close",
	}
	got := d.Journal()
	if len(got) != len(want) {
		t.Fatalf("journal mismatch: got=%q want=%q", got, want)
	}
	for ix := range want {
		if got[ix] != want[ix] {
			t.Fatalf("journal entry %d: got %q want %q", ix, got[ix], want[ix])
		}
	}
}

func TestMicrocodeRequired(t *testing.T) {

	d := New(Config{})
	s, err := d.Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.Info(); err != nil {
		t.Fatalf("info must work without microcode: %v", err)
	}
	if err := s.SeekAbsolute(1); device.CodeOf(err) != device.CodeNotConfigured {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestSerialMismatch(t *testing.T) {
	d := New(Config{Serial: "DF000001"})
	if _, err := d.Open("DF000002"); device.CodeOf(err) != device.CodeNoDevice {
		t.Fatalf("expected no device, got %v", err)
	}
}

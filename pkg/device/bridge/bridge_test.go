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

package bridge

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/discferret/magpie/pkg/device"
)

// fakeBridge answers bridge commands on one end of a pipe, and records the
// commands it received.
type fakeBridge struct {
	conn     net.Conn
	commands [][]byte
	done     chan struct{}
}

func startFakeBridge(t *testing.T, noise []byte) (*fakeBridge, net.Conn) {
	t.Helper()
	host, adapter := net.Pipe()
	f := &fakeBridge{conn: adapter, done: make(chan struct{})}
	go f.serve(noise)
	t.Cleanup(func() {
		host.Close()
		<-f.done
	})
	return f, host
}

func (f *fakeBridge) serve(noise []byte) {
	defer close(f.done)
	defer f.conn.Close()

	hello := make([]byte, commandLength)
	if _, err := io.ReadFull(f.conn, hello); err != nil {
		return
	}
	if _, err := f.conn.Write(append(noise, helloBridge...)); err != nil {
		return
	}

	for {
		cmd := make([]byte, commandLength)
		if _, err := io.ReadFull(f.conn, cmd); err != nil {
			return
		}
		f.commands = append(f.commands, cmd)
		if _, err := f.conn.Write(f.answer(cmd)); err != nil {
			return
		}
	}
}

func (f *fakeBridge) answer(cmd []byte) []byte {
	ok := []byte{0}
	switch cmd[0] {
	case opStatus:
		st := make([]byte, 4)
		binary.BigEndian.PutUint32(st, device.StatusDiscChange|device.StatusTrack0)
		return append(ok, st...)
	case opInfo:
		info := make([]byte, infoLength)
		copy(info[0:16], "DF000042")
		copy(info[16:24], "rev1.1")
		binary.BigEndian.PutUint16(info[24:26], 0x001b)
		binary.BigEndian.PutUint16(info[26:28], 0xdd55)
		binary.BigEndian.PutUint16(info[28:30], 0x002e)
		return append(ok, info...)
	case opSeekRate:
		if cmd[1] > 100 {
			return []byte{byte(0xff)} // bad parameter
		}
		return ok
	case opRecal:
		return []byte{byte(0xf8)} // seek failed
	case opRAMAddrGet:
		return append(ok, 0, 0, 0x10, 0)
	case opRAMRead:
		l := int(cmd[1])<<16 | int(cmd[2])<<8 | int(cmd[3])
		data := make([]byte, l)
		for ix := range data {
			data[ix] = byte(ix)
		}
		return append(ok, data...)
	case opIndexFreq:
		return append(ok, 0, 0x04, 0x93, 0xe0) // 300.000 RPM
	default:
		return ok
	}
}

func TestSyncSkipsNoise(t *testing.T) {
	f, host := startFakeBridge(t, []byte("xxhl"))
	s, err := NewSession(host)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := s.Poke(device.RegDriveControl, device.PinDS0|device.PinMotEn); err != nil {
		t.Fatalf("poke: %v", err)
	}
	s.Close()
	<-f.done
	if len(f.commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(f.commands))
	}
	want := []byte{opPoke, byte(device.RegDriveControl), device.PinDS0 | device.PinMotEn, 0}
	if string(f.commands[0]) != string(want) {
		t.Fatalf("command mismatch: got=%v want=%v", f.commands[0], want)
	}
}

func TestStatusInfoAndRAM(t *testing.T) {
	_, host := startFakeBridge(t, nil)
	s, err := NewSession(host)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	st, err := s.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st != device.StatusDiscChange|device.StatusTrack0 {
		t.Fatalf("unexpected status %#x", st)
	}

	info, err := s.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Serial != "DF000042" || info.HardwareRev != "rev1.1" || info.MicrocodeVer != 0x002e {
		t.Fatalf("unexpected info: %+v", info)
	}

	addr, err := s.RAMAddr()
	if err != nil {
		t.Fatalf("ram addr: %v", err)
	}
	if addr != 0x1000 {
		t.Fatalf("expected ram addr 0x1000, got %#x", addr)
	}

	buf := make([]byte, 300)
	if err := s.ReadRAM(buf); err != nil {
		t.Fatalf("ram read: %v", err)
	}
	if buf[299] != byte(299&0xff) {
		t.Fatalf("unexpected ram content %d", buf[299])
	}

	rpm, err := s.IndexFrequency(true)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if rpm != 300 {
		t.Fatalf("expected 300 RPM, got %f", rpm)
	}
}

func TestSeekRateErrors(t *testing.T) {
	_, host := startFakeBridge(t, nil)
	s, err := NewSession(host)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if err := s.SetSeekRate(6000); err != nil {
		t.Fatalf("seek rate 6000us: %v", err)
	}
	// rejected locally, never sent
	if err := s.SetSeekRate(100); !errors.Is(err, device.ErrSeekRateOutOfRange) {
		t.Fatalf("expected ErrSeekRateOutOfRange, got %v", err)
	}
	// rejected by bridge
	if err := s.SetSeekRate(30000); !errors.Is(err, device.ErrSeekRateOutOfRange) {
		t.Fatalf("expected ErrSeekRateOutOfRange from bridge, got %v", err)
	}
}

func TestDeviceCodeIsReported(t *testing.T) {
	_, host := startFakeBridge(t, nil)
	s, err := NewSession(host)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	err = s.Recalibrate(80)
	var de *device.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected device error, got %v", err)
	}
	if de.Code != device.CodeSeekFailed || de.Op != "recalibrate" {
		t.Fatalf("unexpected device error: %+v", de)
	}
}

func TestCommandEncoding(t *testing.T) {
	f, host := startFakeBridge(t, nil)
	s, err := NewSession(host)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if err := s.SeekAbsolute(300); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if err := s.SeekRelative(-1); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := s.SetRAMAddr(0x012345); err != nil {
		t.Fatalf("ram addr: %v", err)
	}
	if err := s.Poke(device.RegHSIODir, device.HSIODirInput); err != nil {
		t.Fatalf("poke: %v", err)
	}
	if err := s.SetRAMAddr(0x1000000); device.CodeOf(err) != device.CodeBadParameter {
		t.Fatalf("expected bad parameter for oversize address, got %v", err)
	}
	s.Close()
	<-f.done

	want := [][]byte{
		{opSeekAbs, 0x01, 0x2c, 0},
		{opSeekRel, 0xff, 0xff, 0},
		{opRAMAddrSet, 0x01, 0x23, 0x45},
		{opPoke, byte(device.RegHSIODir), 0xff, 0},
	}
	if len(f.commands) != len(want) {
		t.Fatalf("expected %d commands, got %v", len(want), f.commands)
	}
	for ix, w := range want {
		if string(f.commands[ix]) != string(w) {
			t.Fatalf("command %d mismatch: got=%v want=%v", ix, f.commands[ix], w)
		}
	}
}

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

/*
	Package bridge talks to an imaging device through a serial bridge adapter.
	The adapter relays register and RAM access to the device. Commands are
	four bytes long, an opcode followed by three argument bytes. Every command
	is answered with a signed result code byte, followed by the command's
	payload if the code is zero.
*/
package bridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/discferret/magpie/pkg/device"
)

//
const commandLength = 4
const infoLength = 30

// opcodes
const (
	opMicrocode  = 'u'
	opInfo       = 'i'
	opStatus     = 's'
	opSeekRate   = 'r'
	opSeekAbs    = 'a'
	opSeekRel    = 'l'
	opRecal      = 'z'
	opPoke       = 'p'
	opRAMAddrGet = 'g'
	opRAMAddrSet = 'A'
	opRAMRead    = 'R'
	opIndexFreq  = 'f'
)

//
var helloHost = []byte("hlom")
var helloBridge = []byte("hlob")

// Opener returns a device.Opener that opens the bridge attached to the serial
// port p.
func Opener(p string) device.Opener {
	return func(serialNum string) (device.Session, error) {
		s, err := Open(p, serialNum)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Open opens the bridge on serial port p, syncs with it, and checks that the
// attached device has the given serial number, if not empty.
func Open(p, serialNum string) (*Session, error) {

	log.WithField("port", p).Info("opening bridge port")
	port, err := openPort(p)
	if err != nil {
		return nil, device.NewErrorWrap("open", device.CodeNoDevice, err)
	}

	s, err := NewSession(port)
	if err != nil {
		port.Close()
		return nil, err
	}

	if serialNum != "" {
		// microcode is not needed for identification
		info, err := s.Info()
		if err != nil {
			s.Close()
			return nil, err
		}
		if info.Serial != serialNum {
			s.Close()
			return nil, device.NewErrorWrap("open", device.CodeNoDevice,
				fmt.Errorf("serial number %s does not match %s",
					info.Serial, serialNum))
		}
	}

	return s, nil
}

//
func openPort(p string) (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        p,
		BaudRate:        1000000,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
}

// NewSession creates a session on an already opened port, and syncs with the
// bridge.
func NewSession(port io.ReadWriteCloser) (*Session, error) {
	s := &Session{port: port, cmd: make([]byte, commandLength)}
	if err := s.syncOnHello(); err != nil {
		return nil, device.NewErrorWrap("sync", device.CodeTransport, err)
	}
	return s, nil
}

// Session is a device session through a bridge adapter.
type Session struct {
	port io.ReadWriteCloser
	cmd  []byte
}

//
func (s *Session) syncOnHello() error {

	log.Debug("syncing with bridge")

	if err := s.send(helloHost); err != nil {
		return fmt.Errorf("error sending hello: %v", err)
	}

	hello := make([]byte, commandLength)
	if err := s.receive(hello); err != nil {
		return err
	}

	for skipped := 0; !bytes.Equal(hello, helloBridge); skipped++ {
		if skipped > 1024 {
			return errors.New("no hello from bridge")
		}
		shiftLeft(hello)
		if err := s.receive(hello[len(hello)-1:]); err != nil {
			return err
		}
	}

	log.Debug("synced with bridge")
	return nil
}

//
func (s *Session) Close() error {
	return s.port.Close()
}

//
func (s *Session) LoadMicrocode() error {
	return s.call("microcode", nil, opMicrocode, 0, 0, 0)
}

//
func (s *Session) Info() (*device.Info, error) {

	raw := make([]byte, infoLength)
	if err := s.call("info", raw, opInfo, 0, 0, 0); err != nil {
		return nil, err
	}

	return &device.Info{
		Serial:        cString(raw[0:16]),
		HardwareRev:   cString(raw[16:24]),
		FirmwareVer:   binary.BigEndian.Uint16(raw[24:26]),
		MicrocodeType: binary.BigEndian.Uint16(raw[26:28]),
		MicrocodeVer:  binary.BigEndian.Uint16(raw[28:30]),
	}, nil
}

//
func (s *Session) Status() (uint32, error) {
	raw := make([]byte, 4)
	if err := s.call("status", raw, opStatus, 0, 0, 0); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(raw), nil
}

//
func (s *Session) SetSeekRate(micros uint) error {

	units, err := device.SeekRateUnits(micros)
	if err != nil {
		return err
	}

	err = s.call("seekrate", nil, opSeekRate, units, 0, 0)
	if device.CodeOf(err) == device.CodeBadParameter {
		return fmt.Errorf("%w: %v", device.ErrSeekRateOutOfRange, err)
	}
	return err
}

//
func (s *Session) SeekAbsolute(track uint) error {
	if track > 0xffff {
		return device.NewError("seek", device.CodeBadParameter)
	}
	return s.call("seek", nil, opSeekAbs, byte(track>>8), byte(track), 0)
}

//
func (s *Session) SeekRelative(steps int) error {
	if steps < -0x8000 || steps > 0x7fff {
		return device.NewError("step", device.CodeBadParameter)
	}
	v := uint16(int16(steps))
	return s.call("step", nil, opSeekRel, byte(v>>8), byte(v), 0)
}

//
func (s *Session) Recalibrate(tracks uint) error {
	if tracks > 0xffff {
		return device.NewError("recalibrate", device.CodeBadParameter)
	}
	return s.call("recalibrate", nil, opRecal, byte(tracks>>8), byte(tracks), 0)
}

//
func (s *Session) Poke(reg device.Register, val byte) error {
	return s.call("poke", nil, opPoke, byte(reg), val, 0)
}

//
func (s *Session) RAMAddr() (uint32, error) {
	raw := make([]byte, 4)
	if err := s.call("ramaddr", raw, opRAMAddrGet, 0, 0, 0); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(raw), nil
}

//
func (s *Session) SetRAMAddr(addr uint32) error {
	if addr > 0xffffff {
		return device.NewError("setramaddr", device.CodeBadParameter)
	}
	return s.call("setramaddr", nil,
		opRAMAddrSet, byte(addr>>16), byte(addr>>8), byte(addr))
}

//
func (s *Session) ReadRAM(buf []byte) error {
	l := len(buf)
	if l > 0xffffff {
		return device.NewError("ramread", device.CodeBadParameter)
	}
	return s.call("ramread", buf, opRAMRead, byte(l>>16), byte(l>>8), byte(l))
}

// IndexFrequency returns the rotation speed, which the bridge reports in
// thousandths of an RPM.
func (s *Session) IndexFrequency(wait bool) (float64, error) {
	var w byte
	if wait {
		w = 1
	}
	raw := make([]byte, 4)
	if err := s.call("index", raw, opIndexFreq, w, 0, 0); err != nil {
		return 0, err
	}
	return float64(binary.BigEndian.Uint32(raw)) / 1000, nil
}

// call sends a command and reads back result code and, on success, exactly
// len(payload) bytes of payload.
func (s *Session) call(op string, payload []byte, opcode, a0, a1, a2 byte) error {

	s.cmd[0], s.cmd[1], s.cmd[2], s.cmd[3] = opcode, a0, a1, a2

	log.WithFields(log.Fields{
		"op":      op,
		"command": s.cmd,
	}).Trace("bridge call")

	if err := s.send(s.cmd); err != nil {
		return device.NewErrorWrap(op, device.CodeTransport, err)
	}

	code := make([]byte, 1)
	if err := s.receive(code); err != nil {
		return device.NewErrorWrap(op, device.CodeTransport, err)
	}

	if c := device.Code(int8(code[0])); c != device.CodeOK {
		return device.NewError(op, c)
	}

	if len(payload) > 0 {
		if err := s.receive(payload); err != nil {
			return device.NewErrorWrap(op, device.CodeTransport, err)
		}
	}

	return nil
}

//
func (s *Session) receive(data []byte) error {
	_, err := io.ReadFull(s.port, data)
	return err
}

//
func (s *Session) send(data []byte) error {
	_, err := s.port.Write(data)
	return err
}

//
func shiftLeft(buf []byte) {
	if len(buf) > 1 {
		for ix := 0; ix < len(buf)-1; ix++ {
			buf[ix] = buf[ix+1]
		}
	}
}

//
func cString(raw []byte) string {
	if ix := bytes.IndexByte(raw, 0); ix >= 0 {
		raw = raw[:ix]
	}
	return strings.TrimSpace(string(raw))
}

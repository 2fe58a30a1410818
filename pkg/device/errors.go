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

package device

import (
	"errors"
	"fmt"
)

// ErrSeekRateOutOfRange is returned when a step rate is not accepted by the
// device. It means the drive is incompatible, not that the device misbehaves.
var ErrSeekRateOutOfRange = errors.New("seek rate out of range")

// Code is a result code reported by the device
type Code int

const (
	CodeOK            Code = 0
	CodeBadParameter  Code = -1
	CodeNotOpen       Code = -2
	CodeNoDevice      Code = -3
	CodeTransport     Code = -4
	CodeNotConfigured Code = -5
	CodeHardware      Code = -6
	CodeTimeout       Code = -7
	CodeSeekFailed    Code = -8
)

//
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeBadParameter:
		return "bad parameter"
	case CodeNotOpen:
		return "device not open"
	case CodeNoDevice:
		return "no matching device"
	case CodeTransport:
		return "transport error"
	case CodeNotConfigured:
		return "microcode not loaded"
	case CodeHardware:
		return "hardware error"
	case CodeTimeout:
		return "timeout"
	case CodeSeekFailed:
		return "seek failed"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}

// Error is a failed device call. It carries the operation and the code the
// device reported.
type Error struct {
	Op   string
	Code Code
	Err  error
}

//
func NewError(op string, code Code) *Error {
	return &Error{Op: op, Code: code}
}

//
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device %s failed (%s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("device %s failed (%s)", e.Op, e.Code)
}

//
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the device code from err, CodeOK if err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeOK
}

//
func NewErrorWrap(op string, code Code, err error) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

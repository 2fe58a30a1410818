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
)

// causes of parse errors
var (
	ErrScript        = errors.New("script error")
	ErrMalformedSpec = errors.New("malformed drive spec")
	ErrUnknownKey    = errors.New("unrecognised key")
	ErrOutOfRange    = errors.New("value out of range")
	ErrMissingField  = errors.New("required field missing")
	ErrUndefinedType = errors.New("drive type not defined by script")
)

// causes of evaluation errors
var (
	ErrNotCallable = errors.New("behavior function not defined")
	ErrBadResult   = errors.New("behavior function returned wrong type")
)

/*
	ParseError is a problem with the drive spec table of a script. It always
	names the script file, and where possible either the drive type or the
	position of the offending entry within the drive spec table.
*/
type ParseError struct {
	Path      string
	DriveType string
	// 1-based position in the drive spec table, 0 if unknown
	Index int
	Err   error
}

//
func (e *ParseError) Error() string {
	switch {
	case e.DriveType != "":
		return fmt.Sprintf("[%s, drivespec '%s']: %v", e.Path, e.DriveType, e.Err)
	case e.Index > 0:
		return fmt.Sprintf("[%s, drivespec #%d]: %v", e.Path, e.Index, e.Err)
	default:
		return fmt.Sprintf("[%s]: %v", e.Path, e.Err)
	}
}

//
func (e *ParseError) Unwrap() error {
	return e.Err
}

//
func specError(path, driveType string, cause error, format string,
	args ...interface{}) *ParseError {
	return &ParseError{
		Path:      path,
		DriveType: driveType,
		Err:       errorf(cause, format, args...),
	}
}

//
func errorf(cause error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", cause, fmt.Sprintf(format, args...))
}

// EvaluationError is a failure of a behavior function at runtime.
type EvaluationError struct {
	Path      string
	Function  string
	DriveType string
	Err       error
}

//
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("[%s] evaluating %s('%s'): %v",
		e.Path, e.Function, e.DriveType, e.Err)
}

//
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

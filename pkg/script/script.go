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

/*
	Package script loads drive behavior scripts. A drive script is a Lua file
	defining a 'drivespecs' table, which maps drive type identifiers to records
	with the mechanical parameters of that drive type, and two functions:

		isDriveReady(drivetype, status) -> boolean
		getDriveOutputs(drivetype, track, head, sector) -> integer

	Each loaded script runs in its own sandboxed Lua state, which is released
	when the script is closed.
*/
package script

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/discferret/magpie/pkg/drive"
)

//
const (
	SpecTable   = "drivespecs"
	FnIsReady   = "isDriveReady"
	FnGetOutput = "getDriveOutputs"
)

// DefaultEvalTimeout bounds a single call into a behavior function.
const DefaultEvalTimeout = time.Second

// Option configures a script when loading.
type Option func(s *Script)

// WithEvalTimeout sets the time limit for a single behavior function call.
// Zero disables the limit.
func WithEvalTimeout(d time.Duration) Option {
	return func(s *Script) {
		s.evalTimeout = d
	}
}

/*
	Load runs the script file at path in a new sandbox, and enumerates the drive
	types it defines. The drive spec records themselves are only parsed when
	asked for via Descriptor. The returned script needs to be closed when no
	longer used.
*/
func Load(path string, opts ...Option) (*Script, error) {

	log.WithField("path", path).Debug("loading drive script")

	L, err := newSandbox(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	s := &Script{
		path:        path,
		state:       L,
		evalTimeout: DefaultEvalTimeout,
		descriptors: map[string]*drive.Descriptor{},
	}
	for _, o := range opts {
		o(s)
	}

	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, specError(path, "", ErrScript, "%v", err)
	}

	if err := s.enumerate(); err != nil {
		L.Close()
		return nil, err
	}

	return s, nil
}

// Script is a loaded drive script.
type Script struct {
	//
	path        string
	state       *lua.LState
	types       []string
	evalTimeout time.Duration
	descriptors map[string]*drive.Descriptor
	//
	mutex sync.Mutex
}

//
func (s *Script) Path() string {
	return s.path
}

// Types returns the drive types defined by this script, in sorted order.
func (s *Script) Types() []string {
	return append([]string(nil), s.types...)
}

// Defines reports whether this script defines driveType.
func (s *Script) Defines(driveType string) bool {
	ix := sort.SearchStrings(s.types, driveType)
	return ix < len(s.types) && s.types[ix] == driveType
}

// Close releases the Lua state of this script. The script must not be used
// afterwards.
func (s *Script) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.state != nil {
		s.state.Close()
		s.state = nil
	}
}

//
func (s *Script) specTable() (*lua.LTable, error) {
	tbl, ok := s.state.GetGlobal(SpecTable).(*lua.LTable)
	if !ok {
		return nil, specError(s.path, "", ErrMalformedSpec,
			"script does not contain a '%s' table", SpecTable)
	}
	return tbl, nil
}

// enumerate collects the drive type keys of the drive spec table.
func (s *Script) enumerate() error {

	tbl, err := s.specTable()
	if err != nil {
		return err
	}

	var types []string
	pos := 0

	for k, v := tbl.Next(lua.LNil); k != lua.LNil; k, v = tbl.Next(k) {
		pos++
		key, ok := k.(lua.LString)
		if !ok {
			return &ParseError{Path: s.path, Index: pos, Err: errorf(
				ErrMalformedSpec,
				"%s must be a table keyed by drive type, not an array",
				SpecTable)}
		}
		if _, ok := v.(*lua.LTable); !ok {
			return specError(s.path, string(key), ErrMalformedSpec,
				"%s contains a non-table entry", SpecTable)
		}
		types = append(types, string(key))
	}

	sort.Strings(types)
	s.types = types
	return nil
}

/*
	Descriptor parses the drive spec record for driveType into a descriptor.
	The record is parsed once, later calls return the same descriptor.
*/
func (s *Script) Descriptor(driveType string) (*drive.Descriptor, error) {

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if d, ok := s.descriptors[driveType]; ok {
		return d, nil
	}

	if s.state == nil {
		return nil, &ParseError{Path: s.path, DriveType: driveType,
			Err: ErrScript}
	}

	tbl, err := s.specTable()
	if err != nil {
		return nil, err
	}

	rec, ok := tbl.RawGetString(driveType).(*lua.LTable)
	if !ok {
		return nil, specError(s.path, driveType, ErrUndefinedType,
			"no table entry")
	}

	d, err := parseSpec(s.path, driveType, rec)
	if err != nil {
		return nil, err
	}

	s.descriptors[driveType] = d
	return d, nil
}

// IsReady evaluates the script's readiness predicate for the given raw status
// word.
func (s *Script) IsReady(driveType string, status uint32) (bool, error) {

	ret, err := s.call(FnIsReady, driveType,
		lua.LString(driveType), lua.LNumber(status))
	if err != nil {
		return false, err
	}

	b, ok := ret.(lua.LBool)
	if !ok {
		return false, &EvaluationError{Path: s.path, Function: FnIsReady,
			DriveType: driveType, Err: errorf(ErrBadResult,
				"expected boolean, got %s", ret.Type())}
	}
	return bool(b), nil
}

// Outputs evaluates the script's output pin mapping for a physical address,
// and returns the value for the drive control register.
func (s *Script) Outputs(driveType string, track, head, sector uint) (byte, error) {

	ret, err := s.call(FnGetOutput, driveType, lua.LString(driveType),
		lua.LNumber(track), lua.LNumber(head), lua.LNumber(sector))
	if err != nil {
		return 0, err
	}

	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, &EvaluationError{Path: s.path, Function: FnGetOutput,
			DriveType: driveType, Err: errorf(ErrBadResult,
				"expected integer, got %s", ret.Type())}
	}

	f := float64(n)
	if f != math.Trunc(f) || f < 0 || f > 255 {
		return 0, &EvaluationError{Path: s.path, Function: FnGetOutput,
			DriveType: driveType, Err: errorf(ErrBadResult,
				"%v is not a valid output bit pattern", f)}
	}

	return byte(f), nil
}

//
func (s *Script) call(fn, driveType string, args ...lua.LValue) (lua.LValue, error) {

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state == nil {
		return nil, &EvaluationError{Path: s.path, Function: fn,
			DriveType: driveType, Err: errorf(ErrNotCallable, "script closed")}
	}

	f := s.state.GetGlobal(fn)
	if f.Type() != lua.LTFunction {
		return nil, &EvaluationError{Path: s.path, Function: fn,
			DriveType: driveType, Err: ErrNotCallable}
	}

	if s.evalTimeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.evalTimeout)
		defer cancel()
		s.state.SetContext(ctx)
		defer s.state.RemoveContext()
	}

	if err := s.state.CallByParam(
		lua.P{Fn: f, NRet: 1, Protect: true}, args...); err != nil {
		return nil, &EvaluationError{Path: s.path, Function: fn,
			DriveType: driveType, Err: err}
	}

	ret := s.state.Get(-1)
	s.state.Pop(1)
	return ret, nil
}

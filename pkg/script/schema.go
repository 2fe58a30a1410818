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
	"math"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/discferret/magpie/pkg/drive"
)

// drive spec record keys, matched case-insensitively
const (
	keyFriendlyName = "friendlyname"
	keyHeads        = "heads"
	keySpinUp       = "spinup"
	keyStepRate     = "steprate"
	keyTracks       = "tracks"
	keyTrackStep    = "trackstep"
	keyTPI          = "tpi"
)

/*
	parseSpec turns a drive spec record into a descriptor. Unset fields take
	their defaults, except for the friendly name, which is mandatory. Unknown
	keys, values of the wrong type, and values out of range are errors.
*/
func parseSpec(path, driveType string, rec *lua.LTable) (*drive.Descriptor, error) {

	spec := drive.DefaultSpec(driveType)
	named := false

	fail := func(cause error, format string, args ...interface{}) error {
		return specError(path, driveType, cause, format, args...)
	}

	for k, v := rec.Next(lua.LNil); k != lua.LNil; k, v = rec.Next(k) {

		if _, ok := k.(lua.LString); !ok {
			return nil, fail(ErrUnknownKey, "%q", k.String())
		}

		key := strings.ToLower(k.String())
		var err error

		switch key {

		case keyFriendlyName:
			str, ok := v.(lua.LString)
			if !ok {
				return nil, fail(ErrMalformedSpec,
					"value of '%s' must be a string", key)
			}
			if str == "" {
				return nil, fail(ErrOutOfRange, "'%s' must not be empty", key)
			}
			spec.FriendlyName = string(str)
			named = true

		case keyHeads:
			if spec.Heads, err = integer(v); err != nil {
				return nil, fail(ErrMalformedSpec, "value of '%s' %v", key, err)
			}
			if spec.Heads < 1 || spec.Heads > drive.MaxGeometry {
				return nil, fail(ErrOutOfRange,
					"value of '%s' must be between 1 and %d", key,
					drive.MaxGeometry)
			}

		case keySpinUp:
			if spec.SpinUpMillis, err = integer(v); err != nil {
				return nil, fail(ErrMalformedSpec, "value of '%s' %v", key, err)
			}
			if spec.SpinUpMillis < 0 {
				return nil, fail(ErrOutOfRange,
					"value of '%s' must not be negative", key)
			}

		case keyStepRate:
			ms, err := number(v)
			if err != nil {
				return nil, fail(ErrMalformedSpec, "value of '%s' %v", key, err)
			}
			// milliseconds to microseconds
			us := ms * 1000
			if !(us >= drive.MinStepRateMicros && us <= drive.MaxStepRateMicros) {
				return nil, fail(ErrOutOfRange,
					"value of '%s' must be between %gms and %gms, got %gms",
					key, float64(drive.MinStepRateMicros)/1000,
					float64(drive.MaxStepRateMicros)/1000, ms)
			}
			spec.StepRateMicros = int(math.Round(us))

		case keyTracks:
			if spec.Tracks, err = integer(v); err != nil {
				return nil, fail(ErrMalformedSpec, "value of '%s' %v", key, err)
			}
			if spec.Tracks < 1 || spec.Tracks > drive.MaxGeometry {
				return nil, fail(ErrOutOfRange,
					"value of '%s' must be between 1 and %d", key,
					drive.MaxGeometry)
			}

		case keyTrackStep:
			if spec.TrackStep, err = integer(v); err != nil {
				return nil, fail(ErrMalformedSpec, "value of '%s' %v", key, err)
			}
			if spec.TrackStep < 1 {
				return nil, fail(ErrOutOfRange,
					"value of '%s' must be greater than zero", key)
			}

		case keyTPI:
			if spec.TracksPerInch, err = number(v); err != nil {
				return nil, fail(ErrMalformedSpec, "value of '%s' %v", key, err)
			}
			if spec.TracksPerInch < 0 {
				return nil, fail(ErrOutOfRange,
					"value of '%s' must not be negative", key)
			}

		default:
			return nil, fail(ErrUnknownKey, "%q", k.String())
		}
	}

	if !named {
		return nil, fail(ErrMissingField, "'%s' not specified", keyFriendlyName)
	}

	d, err := drive.New(spec)
	if err != nil {
		return nil, fail(ErrMalformedSpec, "%v", err)
	}
	return d, nil
}

//
type valueError string

func (e valueError) Error() string {
	return string(e)
}

//
func number(v lua.LValue) (float64, error) {
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, valueError("must be a number, got " + v.Type().String())
	}
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, valueError("must be a finite number")
	}
	return f, nil
}

//
func integer(v lua.LValue) (int, error) {
	f, err := number(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, valueError("must be an integer")
	}
	return int(f), nil
}

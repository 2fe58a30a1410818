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
	log "github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/discferret/magpie/pkg/device"
)

// names of the constants visible to scripts
var constants = map[string]uint32{
	"PIN_DENSITY":       uint32(device.PinDensity),
	"PIN_INUSE":         uint32(device.PinInUse),
	"PIN_DS0":           uint32(device.PinDS0),
	"PIN_DS1":           uint32(device.PinDS1),
	"PIN_DS2":           uint32(device.PinDS2),
	"PIN_DS3":           uint32(device.PinDS3),
	"PIN_MOTEN":         uint32(device.PinMotEn),
	"PIN_SIDESEL":       uint32(device.PinSideSel),
	"STATUS_INDEX":      device.StatusIndex,
	"STATUS_TRACK0":     device.StatusTrack0,
	"STATUS_WRPROT":     device.StatusWriteProtect,
	"STATUS_READY_DCHG": device.StatusDiscChange,
	"STATUS_DENSITY":    device.StatusDensity,
}

// base library functions removed from the sandbox, they reach the file system
var unsafeGlobals = []string{"dofile", "loadfile", "require", "module"}

/*
	newSandbox creates a Lua state for running a drive script. It only has the
	base, table, string, and math libraries, a LuaBit compatible bit library,
	and the pin & status constants. print is routed to the debug log.
*/
func newSandbox(path string) (*lua.LState, error) {

	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, err
		}
	}

	for _, g := range unsafeGlobals {
		L.SetGlobal(g, lua.LNil)
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		msg := ""
		for ix := 1; ix <= L.GetTop(); ix++ {
			if ix > 1 {
				msg += "\t"
			}
			msg += L.ToStringMeta(L.Get(ix)).String()
		}
		log.WithField("script", path).Debug(msg)
		return 0
	}))

	L.SetGlobal("bit", L.SetFuncs(L.NewTable(), bitFuncs))

	for name, val := range constants {
		L.SetGlobal(name, lua.LNumber(val))
	}

	return L, nil
}

// bit operations work on 32 bit values, results are signed as with LuaBit
var bitFuncs = map[string]lua.LGFunction{
	"tobit": func(L *lua.LState) int {
		return pushBits(L, bitArg(L, 1))
	},
	"bnot": func(L *lua.LState) int {
		return pushBits(L, ^bitArg(L, 1))
	},
	"band": func(L *lua.LState) int {
		v := uint32(0xffffffff)
		for ix := 1; ix <= L.GetTop(); ix++ {
			v &= bitArg(L, ix)
		}
		return pushBits(L, v)
	},
	"bor": func(L *lua.LState) int {
		var v uint32
		for ix := 1; ix <= L.GetTop(); ix++ {
			v |= bitArg(L, ix)
		}
		return pushBits(L, v)
	},
	"bxor": func(L *lua.LState) int {
		var v uint32
		for ix := 1; ix <= L.GetTop(); ix++ {
			v ^= bitArg(L, ix)
		}
		return pushBits(L, v)
	},
	"lshift": func(L *lua.LState) int {
		return pushBits(L, bitArg(L, 1)<<(bitArg(L, 2)&31))
	},
	"rshift": func(L *lua.LState) int {
		return pushBits(L, bitArg(L, 1)>>(bitArg(L, 2)&31))
	},
	"arshift": func(L *lua.LState) int {
		return pushBits(L, uint32(int32(bitArg(L, 1))>>(bitArg(L, 2)&31)))
	},
}

//
func bitArg(L *lua.LState, n int) uint32 {
	return uint32(int64(L.CheckNumber(n)))
}

//
func pushBits(L *lua.LState, v uint32) int {
	L.Push(lua.LNumber(int32(v)))
	return 1
}

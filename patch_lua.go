// patch_lua.go - Lua patch scripting front-end

package main

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// LoadPatchLua runs a Lua script that builds a patch through the `rack`
// table and returns the result. The script is declarative: it places
// modules, sets controls and draws cables, in order.
//
//	rack.name("acid line")
//	rack.module("vco", "osc1", 0)
//	rack.knob("osc1", "tune", 0.5)
//	rack.cable("osc1", "out", "main", "left")
func LoadPatchLua(path string) (*Patch, error) {
	p := &Patch{
		Knobs:    map[string]map[string]float32{},
		Switches: map[string]map[string]float32{},
		Buttons:  map[string]map[string]float32{},
	}

	L := lua.NewState()
	defer L.Close()

	tbl := L.NewTable()
	L.SetField(tbl, "name", L.NewFunction(func(L *lua.LState) int {
		p.Name = L.CheckString(1)
		return 0
	}))
	L.SetField(tbl, "module", L.NewFunction(func(L *lua.LState) int {
		p.Modules = append(p.Modules, PatchModule{
			Type:       L.CheckString(1),
			InstanceID: L.CheckString(2),
			Row:        int(L.OptNumber(3, 0)),
		})
		return 0
	}))
	L.SetField(tbl, "knob", L.NewFunction(luaSetControl(p.Knobs)))
	L.SetField(tbl, "switch", L.NewFunction(luaSetControl(p.Switches)))
	L.SetField(tbl, "button", L.NewFunction(luaSetControl(p.Buttons)))
	L.SetField(tbl, "cable", L.NewFunction(func(L *lua.LState) int {
		p.Cables = append(p.Cables, Cable{
			FromModule: L.CheckString(1),
			FromPort:   L.CheckString(2),
			ToModule:   L.CheckString(3),
			ToPort:     L.CheckString(4),
		})
		return 0
	}))
	L.SetGlobal("rack", tbl)

	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("lua patch %s: %w", path, err)
	}
	return p, nil
}

func luaSetControl(dst map[string]map[string]float32) lua.LGFunction {
	return func(L *lua.LState) int {
		id := L.CheckString(1)
		name := L.CheckString(2)
		value := float32(L.CheckNumber(3))
		if dst[id] == nil {
			dst[id] = map[string]float32{}
		}
		dst[id][name] = value
		return 0
	}
}

// IsLuaPatch reports whether path names a Lua script rather than JSON.
func IsLuaPatch(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".lua")
}

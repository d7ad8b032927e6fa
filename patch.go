// patch.go - Patch description, JSON persistence and rack construction

package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// PatchModule is one placed module in a patch description.
type PatchModule struct {
	Type       string `json:"type"`
	InstanceID string `json:"instanceId"`
	Row        int    `json:"row"`
}

// Patch is the complete persisted form of a rack: topology plus initial
// control values. Knobs, switches and buttons are keyed instanceId -> param.
type Patch struct {
	Name     string                        `json:"name"`
	Modules  []PatchModule                 `json:"modules"`
	Knobs    map[string]map[string]float32 `json:"knobs,omitempty"`
	Switches map[string]map[string]float32 `json:"switches,omitempty"`
	Buttons  map[string]map[string]float32 `json:"buttons,omitempty"`
	Cables   []Cable                       `json:"cables"`
}

// Apply builds the patch into the rack. Structure errors are load-time
// reports, not failures: an unknown module type or a dangling cable endpoint
// is logged and skipped, and the remainder of the patch still loads. The
// returned count is the number of skipped elements.
func (p *Patch) Apply(rk *Rack) int {
	skipped := 0
	for _, pm := range p.Modules {
		if _, err := rk.AddModule(pm.Type, pm.InstanceID, pm.Row); err != nil {
			logger.Warn("patch: module skipped", "patch", p.Name, "instance", pm.InstanceID, "err", err)
			skipped++
			continue
		}
	}
	for _, group := range []map[string]map[string]float32{p.Knobs, p.Switches, p.Buttons} {
		for id, params := range group {
			m, ok := rk.Module(id)
			if !ok {
				continue
			}
			for name, value := range params {
				m.Params[name] = value
			}
		}
	}
	for _, c := range p.Cables {
		if err := rk.Connect(c); err != nil {
			logger.Warn("patch: cable dropped", "patch", p.Name,
				"from", c.FromModule+"."+c.FromPort, "to", c.ToModule+"."+c.ToPort, "err", err)
			skipped++
		}
	}
	return skipped
}

// SnapshotPatch captures the rack's current topology and parameter values as
// a patch. Saving then reloading reconstructs an identical topology with
// identical initial parameters.
func SnapshotPatch(name string, rk *Rack) *Patch {
	p := &Patch{
		Name:     name,
		Knobs:    make(map[string]map[string]float32),
		Switches: make(map[string]map[string]float32),
		Buttons:  make(map[string]map[string]float32),
	}
	for _, m := range rk.Modules() {
		p.Modules = append(p.Modules, PatchModule{Type: m.Kind.Type, InstanceID: m.ID, Row: m.Row})
		for _, c := range m.Kind.Controls {
			v, ok := m.Params[c.Name]
			if !ok {
				continue
			}
			var group map[string]map[string]float32
			switch c.Kind {
			case "switch":
				group = p.Switches
			case "button":
				group = p.Buttons
			default:
				group = p.Knobs
			}
			if group[m.ID] == nil {
				group[m.ID] = make(map[string]float32)
			}
			group[m.ID][c.Name] = v
		}
	}
	p.Cables = rk.Cables()
	if len(p.Knobs) == 0 {
		p.Knobs = nil
	}
	if len(p.Switches) == 0 {
		p.Switches = nil
	}
	if len(p.Buttons) == 0 {
		p.Buttons = nil
	}
	return p
}

// LoadPatchFile reads a JSON patch description from disk.
func LoadPatchFile(path string) (*Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load patch: %w", err)
	}
	return ParsePatch(data)
}

// ParsePatch decodes a JSON patch description.
func ParsePatch(data []byte) (*Patch, error) {
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse patch: %w", err)
	}
	return &p, nil
}

// SavePatchFile writes the patch as indented JSON.
func SavePatchFile(path string, p *Patch) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("save patch: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save patch: %w", err)
	}
	return nil
}

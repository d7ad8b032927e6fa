// mod_output.go - Stereo audio sink module

package main

const MODULE_AUDIO_OUT = "audioout"

type audioOutState struct{}

func (st *audioOutState) reset() {}

// process only maintains telemetry. The rack itself reads the summed left
// and right input buffers when an audio backend asks for a block.
func (st *audioOutState) process(m *ModuleInstance) {
	var peakL, peakR float32
	for _, v := range m.Inputs["left"] {
		if a := abs32(v); a > peakL {
			peakL = a
		}
	}
	for _, v := range m.Inputs["right"] {
		if a := abs32(v); a > peakR {
			peakR = a
		}
	}
	m.LEDs["vuL"] = clamp32(peakL/AUDIO_MAX, 0, 1)
	m.LEDs["vuR"] = clamp32(peakR/AUDIO_MAX, 0, 1)
}

func audioOutKind() *ModuleKind {
	k := &ModuleKind{
		Type:     MODULE_AUDIO_OUT,
		Name:     "Output",
		Width:    4,
		Color:    "#111111",
		Category: "IO",
		Inputs: []PortSpec{
			{Name: "left", Label: "L"},
			{Name: "right", Label: "R"},
		},
		Controls: []ControlSpec{
			{Name: "level", Kind: "knob", Label: "Level", Min: 0, Max: 1, Default: 0.8},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, &audioOutState{})
	}
	return k
}

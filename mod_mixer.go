// mod_mixer.go - Mixer and VCA modules

package main

const MIXER_CHANNELS = 4

type mixerState struct{}

func (st *mixerState) reset() {}

// process sums each input scaled by its level knob. Linear superposition
// only: no clipping and no normalization, fan-in semantics are the patch's
// business.
func (st *mixerState) process(m *ModuleInstance) {
	out := m.Outputs["out"]
	for i := range out {
		out[i] = 0
	}
	var peak float32
	for ch := 1; ch <= MIXER_CHANNELS; ch++ {
		in := m.Inputs[mixerPort("in", ch)]
		level := m.ParamClamped(mixerPort("level", ch))
		for i := range out {
			out[i] += in[i] * level
		}
	}
	for i := range out {
		if a := abs32(out[i]); a > peak {
			peak = a
		}
	}
	m.LEDs["out"] = peak / AUDIO_MAX
}

func mixerPort(base string, ch int) string {
	return base + string(rune('0'+ch))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func mixerKind() *ModuleKind {
	k := &ModuleKind{
		Type:     "mixer",
		Name:     "Mixer",
		Width:    6,
		Color:    "#555555",
		Category: "Utility",
		Inputs: []PortSpec{
			{Name: "in1", Label: "In 1"},
			{Name: "in2", Label: "In 2"},
			{Name: "in3", Label: "In 3"},
			{Name: "in4", Label: "In 4"},
		},
		Outputs: []PortSpec{
			{Name: "out", Label: "Out"},
		},
		Controls: []ControlSpec{
			{Name: "level1", Kind: "knob", Label: "1", Min: 0, Max: 1, Default: 1},
			{Name: "level2", Kind: "knob", Label: "2", Min: 0, Max: 1, Default: 1},
			{Name: "level3", Kind: "knob", Label: "3", Min: 0, Max: 1, Default: 1},
			{Name: "level4", Kind: "knob", Label: "4", Min: 0, Max: 1, Default: 1},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, &mixerState{})
	}
	return k
}

type vcaState struct{}

func (st *vcaState) reset() {}

func (st *vcaState) process(m *ModuleInstance) {
	in := m.Inputs["in"]
	cv := m.Inputs["cv"]
	out := m.Outputs["out"]
	gain := m.ParamClamped("gain")

	for i := range out {
		g := clamp32(cv[i]/CV_MAX, 0, 1) * gain
		out[i] = clamp32(in[i]*g, -CV_MAX, CV_MAX)
	}
	m.LEDs["level"] = clamp32(cv[len(cv)-1]/CV_MAX, 0, 1)
}

func vcaKind() *ModuleKind {
	k := &ModuleKind{
		Type:     "vca",
		Name:     "VCA",
		Width:    4,
		Color:    "#2e6e6e",
		Category: "Utility",
		Inputs: []PortSpec{
			{Name: "in", Label: "In"},
			// Unpatched CV normalizes to full scale so a bare VCA passes
			// audio at unity.
			{Name: "cv", Label: "CV", Default: CV_MAX},
		},
		Outputs: []PortSpec{
			{Name: "out", Label: "Out"},
		},
		Controls: []ControlSpec{
			{Name: "gain", Kind: "knob", Label: "Gain", Min: 0, Max: 2, Default: 1},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, &vcaState{})
	}
	return k
}

// mod_filter.go - Two-pole state-variable filter module

package main

const (
	FILTER_OFF = iota
	FILTER_LOWPASS
	FILTER_HIGHPASS
	FILTER_BANDPASS
)

const (
	SVF_MAX_CUTOFF    = 0.95 // Normalized cutoff ceiling after CV modulation
	SVF_MAX_RESONANCE = 4.0
	SVF_CUTOFF_HZ_MAX = 20000.0
)

type filterState struct {
	lp float32
	bp float32
	hp float32
}

func (st *filterState) reset() {
	*st = filterState{}
}

func (st *filterState) process(m *ModuleInstance) {
	in := m.Inputs["in"]
	cutoffCV := m.Inputs["cutoff"]
	out := m.Outputs["out"]

	ftype := int(m.Param("type"))
	baseCutoff := m.ParamClamped("cutoff")
	resonance := m.ParamClamped("resonance") * SVF_MAX_RESONANCE
	modAmount := m.ParamClamped("modDepth")

	if ftype == FILTER_OFF {
		copy(out, in)
		m.LEDs["cutoff"] = baseCutoff
		return
	}

	sr := float32(m.cfg.SampleRate)
	twoPi := float32(2 * 3.14159265358979)

	for i := range out {
		cutoff := clamp32(baseCutoff+cutoffCV[i]/CV_MAX*modAmount, 0, SVF_MAX_CUTOFF)
		f := twoPi * cutoff * SVF_CUTOFF_HZ_MAX / sr

		lp := st.lp + f*st.bp
		hp := (in[i] - lp) - resonance*st.bp
		bp := st.bp + f*hp

		// Clamp the states so runaway resonance can't blow the filter up.
		st.lp = clamp32(lp, AUDIO_MIN, AUDIO_MAX)
		st.bp = clamp32(bp, AUDIO_MIN, AUDIO_MAX)
		st.hp = clamp32(hp, AUDIO_MIN, AUDIO_MAX)

		switch ftype {
		case FILTER_LOWPASS:
			out[i] = st.lp
		case FILTER_HIGHPASS:
			out[i] = st.hp
		case FILTER_BANDPASS:
			out[i] = st.bp
		}
	}

	m.LEDs["cutoff"] = baseCutoff
}

func filterKind() *ModuleKind {
	k := &ModuleKind{
		Type:     "svf",
		Name:     "Filter",
		Width:    6,
		Color:    "#d4a017",
		Category: "Filter",
		Inputs: []PortSpec{
			{Name: "in", Label: "In"},
			{Name: "cutoff", Label: "Cutoff CV"},
		},
		Outputs: []PortSpec{
			{Name: "out", Label: "Out"},
		},
		Controls: []ControlSpec{
			{Name: "cutoff", Kind: "knob", Label: "Cutoff", Min: 0, Max: 1, Default: 0.5},
			{Name: "resonance", Kind: "knob", Label: "Res", Min: 0, Max: 1, Default: 0},
			{Name: "modDepth", Kind: "knob", Label: "Mod", Min: 0, Max: 1, Default: 0},
			{Name: "type", Kind: "switch", Label: "Type", Min: 0, Max: 3, Default: 1, Steps: 4},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, &filterState{})
	}
	return k
}

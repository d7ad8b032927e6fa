// mod_lfo.go - Low-frequency oscillator module

package main

import "math"

const (
	LFO_MIN_HZ = 0.01
	LFO_MAX_HZ = 30.0
)

type lfoState struct {
	phase float32
}

func (st *lfoState) reset() {
	st.phase = 0
}

func (st *lfoState) process(m *ModuleInstance) {
	reset := m.Inputs["reset"]
	out := m.Outputs["out"]
	uni := m.Outputs["uni"]

	wave := int(m.Param("wave"))
	rate := m.ParamClamped("rate")
	hz := LFO_MIN_HZ * pow32(LFO_MAX_HZ/LFO_MIN_HZ, rate)
	inc := hz * 2 * float32(math.Pi) / float32(m.cfg.SampleRate)
	twoPi := float32(2 * math.Pi)

	for i := range out {
		if reset[i] >= GATE_THRESHOLD && st.phase > inc {
			// Level-sensitive reset keeps the LFO pinned while the input is
			// held high; useful for clocked resets.
			st.phase = 0
		}

		var raw float32
		switch wave {
		case WAVE_SQUARE:
			if st.phase < twoPi/2 {
				raw = 1
			} else {
				raw = -1
			}
		case WAVE_TRIANGLE:
			raw = 2*float32(math.Abs(float64(2*(st.phase/twoPi)-1))) - 1
		default:
			raw = float32(math.Sin(float64(st.phase)))
		}

		st.phase += inc
		if st.phase >= twoPi {
			st.phase -= twoPi
		}

		out[i] = raw * AUDIO_MAX
		uni[i] = (raw + 1) / 2 * CV_MAX
	}

	m.LEDs["phase"] = (float32(math.Sin(float64(st.phase))) + 1) / 2
}

func lfoKind() *ModuleKind {
	k := &ModuleKind{
		Type:     "lfo",
		Name:     "LFO",
		Width:    4,
		Color:    "#9467bd",
		Category: "Modulation",
		Inputs: []PortSpec{
			{Name: "reset", Label: "Reset"},
		},
		Outputs: []PortSpec{
			{Name: "out", Label: "Out"},
			{Name: "uni", Label: "Uni"},
		},
		Controls: []ControlSpec{
			{Name: "rate", Kind: "knob", Label: "Rate", Min: 0, Max: 1, Default: 0.4},
			{Name: "wave", Kind: "switch", Label: "Wave", Min: 0, Max: 2, Default: 2, Steps: 3},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, &lfoState{})
	}
	return k
}

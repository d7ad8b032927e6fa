// mod_oscillator.go - VCO module: square (with PWM), triangle, sine, sawtooth

package main

import "math"

const (
	WAVE_SQUARE = iota
	WAVE_TRIANGLE
	WAVE_SINE
	WAVE_SAW
)

const (
	VCO_BASE_HZ     = 27.5 // Freq knob at 0 (A0)
	VCO_OCTAVE_SPAN = 8.0  // Knob sweep in octaves, top is A8
	VCO_FM_HZ_MAX   = 500  // Linear FM depth at full knob, Hz per volt
	VCO_MAX_HZ      = 20000
	VCO_PWM_MAX_HZ  = 12.7 // PWM LFO rate at full knob
)

type oscillatorState struct {
	phase    float32 // Current phase, 0..2pi
	pwmPhase float32 // PWM LFO phase
	sync     bool    // Sync comparator state for edge detection
}

func (st *oscillatorState) reset() {
	*st = oscillatorState{}
}

func (st *oscillatorState) process(m *ModuleInstance) {
	pitch := m.Inputs["pitch"]
	fm := m.Inputs["fm"]
	syncIn := m.Inputs["sync"]
	out := m.Outputs["out"]
	syncOut := m.Outputs["sync"]

	wave := int(m.Param("wave"))
	freqKnob := m.ParamClamped("freq")
	duty := m.ParamClamped("duty")
	pwmRate := m.ParamClamped("pwmRate") * VCO_PWM_MAX_HZ
	pwmDepth := m.ParamClamped("pwmDepth")
	fmDepth := m.ParamClamped("fmDepth")

	baseHz := VCO_BASE_HZ * pow32(2, freqKnob*VCO_OCTAVE_SPAN)
	sr := float32(m.cfg.SampleRate)
	twoPi := float32(2 * math.Pi)

	for i := range out {
		hz := baseHz*pow32(2, pitch[i]/VOLTS_PER_OCTAVE) + fm[i]*fmDepth*VCO_FM_HZ_MAX/AUDIO_MAX
		if hz < 0 {
			hz = 0
		}
		if hz > VCO_MAX_HZ {
			hz = VCO_MAX_HZ
		}

		// Hard sync: an edge on the sync input snaps the phase to zero.
		high := syncIn[i] >= GATE_THRESHOLD
		if high && !st.sync {
			st.phase = 0
		}
		st.sync = high

		var raw float32
		switch wave {
		case WAVE_SQUARE:
			currentDuty := duty
			if pwmDepth > 0 {
				st.pwmPhase += pwmRate * twoPi / sr
				if st.pwmPhase >= twoPi {
					st.pwmPhase -= twoPi
				}
				lfo := float32(math.Abs(float64(2*(st.pwmPhase/twoPi)-1)))*2 - 1
				currentDuty = clamp32(duty+lfo*pwmDepth, 0, 1)
			}
			if st.phase < twoPi*currentDuty {
				raw = 1
			} else {
				raw = -1
			}
		case WAVE_TRIANGLE:
			raw = 2*float32(math.Abs(float64(2*(st.phase/twoPi)-1))) - 1
		case WAVE_SINE:
			raw = float32(math.Sin(float64(st.phase)))
		case WAVE_SAW:
			raw = 2*(st.phase/twoPi) - 1
		}

		st.phase += hz * twoPi / sr
		if st.phase >= twoPi {
			st.phase -= twoPi
			syncOut[i] = GATE_HIGH
		} else {
			syncOut[i] = 0
		}

		out[i] = raw * AUDIO_MAX
	}

	m.LEDs["freq"] = baseHz / VCO_MAX_HZ
}

func oscillatorKind() *ModuleKind {
	k := &ModuleKind{
		Type:     "vco",
		Name:     "VCO",
		Width:    8,
		Color:    "#c23b22",
		Category: "Source",
		Inputs: []PortSpec{
			{Name: "pitch", Label: "V/Oct"},
			{Name: "fm", Label: "FM"},
			{Name: "sync", Label: "Sync"},
		},
		Outputs: []PortSpec{
			{Name: "out", Label: "Out"},
			{Name: "sync", Label: "Sync"},
		},
		Controls: []ControlSpec{
			{Name: "freq", Kind: "knob", Label: "Freq", Min: 0, Max: 1, Default: 0.5},
			{Name: "wave", Kind: "switch", Label: "Wave", Min: 0, Max: 3, Default: 0, Steps: 4},
			{Name: "duty", Kind: "knob", Label: "Duty", Min: 0, Max: 1, Default: 0.5},
			{Name: "pwmRate", Kind: "knob", Label: "PWM Rate", Min: 0, Max: 1, Default: 0},
			{Name: "pwmDepth", Kind: "knob", Label: "PWM Depth", Min: 0, Max: 1, Default: 0},
			{Name: "fmDepth", Kind: "knob", Label: "FM Depth", Min: 0, Max: 1, Default: 0},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, &oscillatorState{})
	}
	return k
}

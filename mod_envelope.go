// mod_envelope.go - ADSR envelope generator module

package main

const (
	ENV_PHASE_IDLE = iota
	ENV_PHASE_ATTACK
	ENV_PHASE_DECAY
	ENV_PHASE_SUSTAIN
	ENV_PHASE_RELEASE
)

// Knob-to-time mapping: exponential from 1ms at 0 to 10s at 1. The curve is
// part of the module's audible identity and must not drift between builds.
const (
	ENV_TIME_MIN_S = 0.001
	ENV_TIME_SPAN  = 10000.0 // ENV_TIME_MIN_S * ENV_TIME_SPAN^1 = 10s
)

// envTimeSamples converts a 0-1 knob value to a duration in samples.
func envTimeSamples(knob float32, sampleRate int) int {
	t := ENV_TIME_MIN_S * pow32(ENV_TIME_SPAN, clamp32(knob, 0, 1))
	n := int(t * float32(sampleRate))
	if n < 1 {
		n = 1
	}
	return n
}

type envelopeState struct {
	phase int     // Current ADSR stage
	value float32 // Current envelope level (0..1)
	from  float32 // Level at entry into the current ramp
	pos   int     // Samples elapsed in the current ramp
	ramp  int     // Ramp length in samples, captured at stage entry
	gate  bool    // Gate comparator state for edge detection
}

func (st *envelopeState) reset() {
	*st = envelopeState{}
}

// trigger restarts the attack from the current envelope value. Retriggering
// mid-stage therefore never produces a discontinuity larger than one
// attack-slope step.
func (st *envelopeState) trigger(m *ModuleInstance) {
	st.phase = ENV_PHASE_ATTACK
	st.from = st.value
	st.pos = 0
	st.ramp = envTimeSamples(m.ParamClamped("attack"), m.cfg.SampleRate)
}

func (st *envelopeState) release(m *ModuleInstance) {
	st.phase = ENV_PHASE_RELEASE
	st.from = st.value
	st.pos = 0
	st.ramp = envTimeSamples(m.ParamClamped("release"), m.cfg.SampleRate)
}

func (st *envelopeState) process(m *ModuleInstance) {
	gate := m.Inputs["gate"]
	out := m.Outputs["env"]
	sustain := m.ParamClamped("sustain")

	for i := range out {
		high := gate[i] >= GATE_THRESHOLD
		if high && !st.gate {
			st.trigger(m)
		}
		if !high && st.gate && st.phase != ENV_PHASE_IDLE {
			st.release(m)
		}
		st.gate = high

		switch st.phase {
		case ENV_PHASE_IDLE:
			st.value = 0

		case ENV_PHASE_ATTACK:
			st.pos++
			st.value = st.from + (1-st.from)*float32(st.pos)/float32(st.ramp)
			if st.pos >= st.ramp {
				st.value = 1
				st.phase = ENV_PHASE_DECAY
				st.pos = 0
				st.ramp = envTimeSamples(m.ParamClamped("decay"), m.cfg.SampleRate)
			}

		case ENV_PHASE_DECAY:
			st.pos++
			st.value = 1 - (1-sustain)*float32(st.pos)/float32(st.ramp)
			if st.pos >= st.ramp {
				st.value = sustain
				st.phase = ENV_PHASE_SUSTAIN
			}

		case ENV_PHASE_SUSTAIN:
			st.value = sustain

		case ENV_PHASE_RELEASE:
			st.pos++
			st.value = st.from * (1 - float32(st.pos)/float32(st.ramp))
			if st.pos >= st.ramp {
				st.value = 0
				st.phase = ENV_PHASE_IDLE
			}
		}

		out[i] = clamp32(st.value, 0, 1) * CV_MAX
	}

	m.LEDs["level"] = st.value
}

func envelopeKind() *ModuleKind {
	k := &ModuleKind{
		Type:     "adsr",
		Name:     "ADSR",
		Width:    8,
		Color:    "#b5651d",
		Category: "Modulation",
		Inputs: []PortSpec{
			{Name: "gate", Label: "Gate"},
		},
		Outputs: []PortSpec{
			{Name: "env", Label: "Env"},
		},
		Controls: []ControlSpec{
			{Name: "attack", Kind: "knob", Label: "Attack", Min: 0, Max: 1, Default: 0.2},
			{Name: "decay", Kind: "knob", Label: "Decay", Min: 0, Max: 1, Default: 0.3},
			{Name: "sustain", Kind: "knob", Label: "Sustain", Min: 0, Max: 1, Default: 0.7},
			{Name: "release", Kind: "knob", Label: "Release", Min: 0, Max: 1, Default: 0.3},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, &envelopeState{})
	}
	return k
}

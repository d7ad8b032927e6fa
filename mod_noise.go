// mod_noise.go - Triggered noise / burst generator module

package main

const (
	NOISE_MODE_CONTINUOUS = 0 // Downsampled-and-held white noise
	NOISE_MODE_VCA        = 1 // Edge-triggered amplitude bursts
)

// Downsample factor curve: r=1 gives unheld full-rate noise, r->0 holds each
// random draw for up to ~500 samples.
const NOISE_HOLD_SPAN = 500.0

// Burst envelope: fixed short attack, decay linear in the rate parameter.
const (
	NOISE_BURST_ATTACK_S  = 0.001
	NOISE_BURST_DECAY_MIN = 0.010
	NOISE_BURST_DECAY_MAX = 0.500
)

// noiseHoldFactor returns how many consecutive samples a random draw is held.
func noiseHoldFactor(rate float32) int {
	r := clamp32(rate, 0, 1)
	return int(1 + (1-r)*(1-r)*NOISE_HOLD_SPAN)
}

type noiseState struct {
	held      float32 // Current held random sample, bipolar in continuous mode
	heldUnit  float32 // Held random sample on [0,1] for burst mode
	holdLeft  int     // Samples until the next draw
	trig      bool    // Trigger comparator state for edge detection
	env       float32 // Burst envelope level (0..1)
	envPhase  int     // ENV_PHASE_ATTACK / ENV_PHASE_RELEASE / ENV_PHASE_IDLE
	envFrom   float32 // Envelope level at trigger time
	envPos    int     // Samples elapsed in the current envelope segment
	attackLen int     // Burst attack in samples
	decayLen  int     // Burst decay in samples, captured at trigger time
}

func (st *noiseState) reset() {
	*st = noiseState{}
}

func (st *noiseState) draw(m *ModuleInstance) {
	r := m.cfg.GetRand()
	st.heldUnit = r.Float32()
	st.held = (st.heldUnit*2 - 1) * AUDIO_MAX
	st.holdLeft = noiseHoldFactor(m.ParamClamped("rate"))
}

func (st *noiseState) process(m *ModuleInstance) {
	trig := m.Inputs["trigger"]
	out := m.Outputs["out"]
	rate := m.ParamClamped("rate")
	burst := int(m.Param("mode")) == NOISE_MODE_VCA

	for i := range out {
		if st.holdLeft <= 0 {
			st.draw(m)
		}
		st.holdLeft--

		if !burst {
			out[i] = st.held
			continue
		}

		// A sustained-high trigger must not refire: edges only. The decay
		// length is captured here so a rate change mid-burst leaves the
		// in-flight envelope untouched.
		high := trig[i] >= GATE_THRESHOLD
		if high && !st.trig {
			st.envPhase = ENV_PHASE_ATTACK
			st.envFrom = st.env
			st.envPos = 0
			st.attackLen = secondsToSamples(NOISE_BURST_ATTACK_S, m.cfg.SampleRate)
			decay := NOISE_BURST_DECAY_MIN + float64(rate)*(NOISE_BURST_DECAY_MAX-NOISE_BURST_DECAY_MIN)
			st.decayLen = secondsToSamples(decay, m.cfg.SampleRate)
		}
		st.trig = high

		switch st.envPhase {
		case ENV_PHASE_ATTACK:
			st.envPos++
			st.env = st.envFrom + (1-st.envFrom)*float32(st.envPos)/float32(st.attackLen)
			if st.envPos >= st.attackLen {
				st.env = 1
				st.envPhase = ENV_PHASE_RELEASE
				st.envPos = 0
			}
		case ENV_PHASE_RELEASE:
			st.envPos++
			st.env = 1 - float32(st.envPos)/float32(st.decayLen)
			if st.envPos >= st.decayLen {
				st.env = 0
				st.envPhase = ENV_PHASE_IDLE
			}
		default:
			st.env = 0
		}

		out[i] = clamp32(st.heldUnit*st.env, 0, 1)
	}

	m.LEDs["level"] = st.env
}

// secondsToSamples converts a duration to a sample count, at least 1.
func secondsToSamples(seconds float64, sampleRate int) int {
	n := int(seconds * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	return n
}

func noiseKind() *ModuleKind {
	k := &ModuleKind{
		Type:     "noise",
		Name:     "Noise",
		Width:    4,
		Color:    "#708090",
		Category: "Source",
		Inputs: []PortSpec{
			{Name: "trigger", Label: "Trig"},
		},
		Outputs: []PortSpec{
			{Name: "out", Label: "Out"},
		},
		Controls: []ControlSpec{
			{Name: "rate", Kind: "knob", Label: "Rate", Min: 0, Max: 1, Default: 1},
			{Name: "mode", Kind: "switch", Label: "Mode", Min: 0, Max: 1, Default: 0, Steps: 2},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, &noiseState{})
	}
	return k
}

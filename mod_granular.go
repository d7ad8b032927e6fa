// mod_granular.go - Granular synthesis engine module

package main

import "math"

const (
	GRAIN_MODE_FREEZE  = 0 // Gate high stops writing the capture buffer
	GRAIN_MODE_SYNC    = 1 // Grains align to a periodic clock; gate edge resets its phase
	GRAIN_MODE_TRIGGER = 2 // One grain burst per rising edge
)

const (
	GRAIN_DIR_FORWARD = 0
	GRAIN_DIR_REVERSE = 1
	GRAIN_DIR_RANDOM  = 2
)

const (
	GRAIN_CAPTURE_SECONDS = 2.0 // Circular capture buffer length
	GRAIN_MAX_VOICES      = 32  // Simultaneous grain cap
	GRAIN_TRIGGER_BURST   = 4   // Grains spawned per trigger edge

	GRAIN_LEN_MIN_S = 0.02 // Size knob at 0
	GRAIN_LEN_MAX_S = 0.5  // Size knob at 1

	GRAIN_RATE_MIN_HZ = 0.5  // Density knob at 0, grains per second
	GRAIN_RATE_MAX_HZ = 50.0 // Density knob at 1

	GRAIN_PITCH_SEMITONES = 12.0 // Pitch knob span, +/- one octave
)

// Shimmer tail: parallel comb bank into series allpass diffusors. Delay
// lengths are prime so the tail has no audible periodicity.
var grainCombDelays = [4]int{1687, 1601, 2053, 2251}
var grainCombDecays = [4]float32{0.97, 0.95, 0.93, 0.91}

const (
	GRAIN_ALLPASS_DELAY_1 = 389
	GRAIN_ALLPASS_DELAY_2 = 307
	GRAIN_ALLPASS_COEF    = 0.5
	GRAIN_VERB_ATTEN      = 0.3
)

type grain struct {
	active bool
	pos    float64 // Absolute read position in the capture buffer
	inc    float64 // Samples advanced per output sample (signed)
	age    int
	dur    int
}

// grainVerb is one channel of the shimmer stage.
type grainVerb struct {
	comb       [4][]float32
	combPos    [4]int
	combDecay  [4]float32
	allpass    [2][]float32
	allpassPos [2]int
}

func newGrainVerb() *grainVerb {
	v := &grainVerb{}
	for i := range v.comb {
		v.comb[i] = make([]float32, grainCombDelays[i])
		v.combDecay[i] = grainCombDecays[i]
	}
	v.allpass[0] = make([]float32, GRAIN_ALLPASS_DELAY_1)
	v.allpass[1] = make([]float32, GRAIN_ALLPASS_DELAY_2)
	return v
}

func (v *grainVerb) clear() {
	for i := range v.comb {
		for j := range v.comb[i] {
			v.comb[i][j] = 0
		}
		v.combPos[i] = 0
	}
	for i := range v.allpass {
		for j := range v.allpass[i] {
			v.allpass[i][j] = 0
		}
		v.allpassPos[i] = 0
	}
}

func (v *grainVerb) tick(input float32) float32 {
	var out float32
	for i := range v.comb {
		buf := v.comb[i]
		d := buf[v.combPos[i]]
		buf[v.combPos[i]] = input + d*v.combDecay[i]
		out += d
		v.combPos[i] = (v.combPos[i] + 1) % len(buf)
	}
	for i := range v.allpass {
		buf := v.allpass[i]
		d := buf[v.allpassPos[i]]
		buf[v.allpassPos[i]] = out + d*GRAIN_ALLPASS_COEF
		out = d - out
		v.allpassPos[i] = (v.allpassPos[i] + 1) % len(buf)
	}
	return out * GRAIN_VERB_ATTEN
}

type granularState struct {
	capL, capR []float32
	writePos   int
	written    int // Total samples ever written, capped at capacity

	grains    [GRAIN_MAX_VOICES]grain
	nextSpawn int  // Samples until the scheduler clock next fires
	gate      bool // Gate comparator state for edge detection

	verbL, verbR *grainVerb
}

func newGranularState(cfg ModuleConfig) *granularState {
	n := int(GRAIN_CAPTURE_SECONDS * float64(cfg.SampleRate))
	return &granularState{
		capL:  make([]float32, n),
		capR:  make([]float32, n),
		verbL: newGrainVerb(),
		verbR: newGrainVerb(),
	}
}

func (st *granularState) reset() {
	for i := range st.capL {
		st.capL[i] = 0
		st.capR[i] = 0
	}
	st.writePos = 0
	st.written = 0
	st.nextSpawn = 0
	st.gate = false
	for i := range st.grains {
		st.grains[i] = grain{}
	}
	st.verbL.clear()
	st.verbR.clear()
}

// spawn starts one grain at a random position inside the written region,
// placed so the grain can never overtake the write head or walk off the
// unwritten tail of the buffer.
func (st *granularState) spawn(m *ModuleInstance) {
	slot := -1
	for i := range st.grains {
		if !st.grains[i].active {
			slot = i
			break
		}
	}
	if slot < 0 {
		return
	}

	rng := m.cfg.GetRand()
	size := m.ParamClamped("size")
	dur := secondsToSamples(float64(GRAIN_LEN_MIN_S+size*(GRAIN_LEN_MAX_S-GRAIN_LEN_MIN_S)), m.cfg.SampleRate)

	pitch := m.ParamClamped("pitch") * GRAIN_PITCH_SEMITONES
	rate := math.Pow(2, float64(pitch)/12)

	dir := int(m.Param("direction"))
	reverse := dir == GRAIN_DIR_REVERSE
	if dir == GRAIN_DIR_RANDOM {
		reverse = rng.Float32() < 0.5
	}

	// Forward grains need headroom ahead of the start so a pitched-up read
	// stays behind the write head for the grain's whole life.
	span := int(float64(dur)*math.Max(rate, 1)) + 2
	avail := st.written
	if avail > len(st.capL) {
		avail = len(st.capL)
	}
	if avail <= span {
		return
	}

	back := span + rng.Intn(avail-span)
	start := st.writePos - back
	for start < 0 {
		start += len(st.capL)
	}

	inc := rate
	if reverse {
		// Reverse grains read backwards from the far end of their span.
		start = (start + span - 2) % len(st.capL)
		inc = -rate
	}

	st.grains[slot] = grain{active: true, pos: float64(start), inc: inc, dur: dur}
}

// readCap reads the capture buffer with linear interpolation and wrapping.
func readCap(buf []float32, pos float64) float32 {
	n := len(buf)
	f := math.Floor(pos)
	frac := float32(pos - f)
	i0 := int(f) % n
	if i0 < 0 {
		i0 += n
	}
	i1 := i0 + 1
	if i1 >= n {
		i1 = 0
	}
	return buf[i0] + (buf[i1]-buf[i0])*frac
}

// raisedCosine is the grain window: 0 at the edges, 1 at the center.
func raisedCosine(age, dur int) float32 {
	if dur <= 1 {
		return 1
	}
	return float32(0.5 * (1 - math.Cos(2*math.Pi*float64(age)/float64(dur-1))))
}

func (st *granularState) process(m *ModuleInstance) {
	inL := m.Inputs["inL"]
	inR := m.Inputs["inR"]
	gate := m.Inputs["gate"]
	outL := m.Outputs["outL"]
	outR := m.Outputs["outR"]

	mode := int(m.Param("mode"))
	blend := m.ParamClamped("blend")
	shimmer := m.ParamClamped("feedback")
	density := m.ParamClamped("density")

	rateHz := GRAIN_RATE_MIN_HZ * math.Pow(GRAIN_RATE_MAX_HZ/GRAIN_RATE_MIN_HZ, float64(density))
	interval := int(float64(m.cfg.SampleRate) / rateHz)
	if interval < 1 {
		interval = 1
	}

	for i := range outL {
		high := gate[i] >= GATE_THRESHOLD
		rising := high && !st.gate
		st.gate = high

		frozen := mode == GRAIN_MODE_FREEZE && high
		if !frozen {
			st.capL[st.writePos] = inL[i]
			st.capR[st.writePos] = inR[i]
			st.writePos++
			if st.writePos >= len(st.capL) {
				st.writePos = 0
			}
			if st.written < len(st.capL) {
				st.written++
			}
		}

		switch mode {
		case GRAIN_MODE_TRIGGER:
			if rising {
				for g := 0; g < GRAIN_TRIGGER_BURST; g++ {
					st.spawn(m)
				}
			}
		case GRAIN_MODE_SYNC:
			if rising {
				st.nextSpawn = 0
			}
			fallthrough
		default:
			if st.nextSpawn <= 0 {
				st.spawn(m)
				st.nextSpawn = interval
			}
			st.nextSpawn--
		}

		var wetL, wetR, norm float32
		active := 0
		for gi := range st.grains {
			g := &st.grains[gi]
			if !g.active {
				continue
			}
			w := raisedCosine(g.age, g.dur)
			wetL += readCap(st.capL, g.pos) * w
			wetR += readCap(st.capR, g.pos) * w
			norm += w
			g.pos += g.inc
			g.age++
			if g.age >= g.dur {
				g.active = false
			}
			active++
		}
		if norm > 1e-6 {
			wetL /= norm
			wetR /= norm
		}

		if shimmer > 0 {
			wetL += st.verbL.tick(wetL) * shimmer
			wetR += st.verbR.tick(wetR) * shimmer
		}

		outL[i] = clamp32(inL[i]*(1-blend)+wetL*blend, AUDIO_MIN, AUDIO_MAX)
		outR[i] = clamp32(inR[i]*(1-blend)+wetR*blend, AUDIO_MIN, AUDIO_MAX)

		if i == len(outL)-1 {
			m.LEDs["grains"] = float32(active) / GRAIN_MAX_VOICES
			if high {
				m.LEDs["gate"] = 1
			} else {
				m.LEDs["gate"] = 0
			}
		}
	}
}

func granularKind() *ModuleKind {
	k := &ModuleKind{
		Type:     "granular",
		Name:     "Grains",
		Width:    12,
		Color:    "#4a7abc",
		Category: "Texture",
		Inputs: []PortSpec{
			{Name: "inL", Label: "In L"},
			{Name: "inR", Label: "In R"},
			{Name: "gate", Label: "Gate"},
		},
		Outputs: []PortSpec{
			{Name: "outL", Label: "Out L"},
			{Name: "outR", Label: "Out R"},
		},
		Controls: []ControlSpec{
			{Name: "density", Kind: "knob", Label: "Density", Min: 0, Max: 1, Default: 0.5},
			{Name: "size", Kind: "knob", Label: "Size", Min: 0, Max: 1, Default: 0.4},
			{Name: "pitch", Kind: "knob", Label: "Pitch", Min: -1, Max: 1, Default: 0},
			{Name: "blend", Kind: "knob", Label: "Blend", Min: 0, Max: 1, Default: 0.5},
			{Name: "feedback", Kind: "knob", Label: "Shimmer", Min: 0, Max: 1, Default: 0},
			{Name: "direction", Kind: "switch", Label: "Dir", Min: 0, Max: 2, Default: 0, Steps: 3},
			{Name: "mode", Kind: "switch", Label: "Mode", Min: 0, Max: 2, Default: 0, Steps: 3},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, newGranularState(cfg))
	}
	return k
}
